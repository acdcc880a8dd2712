package planificadores

import (
	"fmt"

	"github.com/anthonyandrei/CSOPESY-MO2/internal"
)

// Snapshots de solo lectura para los reportes (screen -ls, process-smi,
// vmstat, report-util y el API de monitoreo). Cada consulta toma el lock que
// corresponde y devuelve copias.

type ProcesoResumen struct {
	Nombre string          `json:"nombre"`
	Estado internal.Estado `json:"estado"`
}

type UtilizacionCPU struct {
	CoresUsados      int     `json:"cores_usados"`
	CoresDisponibles int     `json:"cores_disponibles"`
	Porcentaje       float64 `json:"porcentaje"`
}

type ResumenMemoria struct {
	Total uint32 `json:"total"`
	Usada uint32 `json:"usada"`
	Libre uint32 `json:"libre"`
}

type ProcesoMemoria struct {
	PID     int    `json:"pid"`
	Nombre  string `json:"nombre"`
	VMSize  uint32 `json:"vm_size"`
	RSS     uint32 `json:"rss"`
}

type VMStat struct {
	Memoria        ResumenMemoria `json:"memoria"`
	TicksActivos   uint64         `json:"ticks_activos"`
	TicksOciosos   uint64         `json:"ticks_ociosos"`
	TicksTotales   uint64         `json:"ticks_totales"`
	PaginasTraidas uint64         `json:"paginas_traidas"`
	PaginasSacadas uint64         `json:"paginas_sacadas"`
}

type VistaPCB struct {
	PID                int             `json:"pid"`
	Nombre             string          `json:"nombre"`
	Estado             internal.Estado `json:"estado"`
	InstruccionActual  uint32          `json:"instruccion_actual"`
	TotalInstrucciones uint32          `json:"total_instrucciones"`
	Variables          map[string]int  `json:"variables"`
	UltimasLineasLog   []string        `json:"ultimas_lineas_log"`
	LineaFault         string          `json:"linea_fault,omitempty"`
	MensajeViolacion   string          `json:"mensaje_violacion,omitempty"`
}

// ListadoProcesos devuelve nombre y estado de todos los procesos vivos y
// terminados, en orden ready, running, sleeping, finished.
func (s *Service) ListadoProcesos() []ProcesoResumen {
	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()

	listado := make([]ProcesoResumen, 0)
	for _, p := range s.ReadyQueue {
		listado = append(listado, ProcesoResumen{Nombre: p.Nombre, Estado: p.Estado})
	}
	for _, p := range s.Cores {
		if p != nil {
			listado = append(listado, ProcesoResumen{Nombre: p.Nombre, Estado: internal.EstadoRunning})
		}
	}
	for _, p := range s.SleepingQueue {
		listado = append(listado, ProcesoResumen{Nombre: p.Nombre, Estado: p.Estado})
	}
	for _, p := range s.FinishedQueue {
		listado = append(listado, ProcesoResumen{Nombre: p.Nombre, Estado: p.Estado})
	}
	return listado
}

// Utilizacion calcula la utilización instantánea con la definición estricta:
// un core cuyo proceso espera una página no cuenta como usado.
func (s *Service) Utilizacion() UtilizacionCPU {
	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()

	usados := 0
	for _, p := range s.Cores {
		if p != nil && !p.EsperandoPagina {
			usados++
		}
	}

	total := len(s.Cores)
	porcentaje := 0.0
	if total > 0 {
		porcentaje = float64(usados) / float64(total) * 100.0
	}
	return UtilizacionCPU{
		CoresUsados:      usados,
		CoresDisponibles: total - usados,
		Porcentaje:       porcentaje,
	}
}

func (s *Service) ResumenDeMemoria() ResumenMemoria {
	usada := s.Memoria.MemoriaUsada()
	return ResumenMemoria{
		Total: s.Memoria.MemoriaTotal(),
		Usada: usada,
		Libre: s.Memoria.MemoriaTotal() - usada,
	}
}

// ListadoMemoria devuelve VM size y RSS de cada proceso, para process-smi.
func (s *Service) ListadoMemoria() []ProcesoMemoria {
	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()

	listado := make([]ProcesoMemoria, 0)
	agregar := func(p *internal.Proceso) {
		listado = append(listado, ProcesoMemoria{
			PID:    p.PID,
			Nombre: p.Nombre,
			VMSize: p.TamanioMemoria,
			RSS:    s.Memoria.RSSProceso(p.PID),
		})
	}
	for _, p := range s.ReadyQueue {
		agregar(p)
	}
	for _, p := range s.Cores {
		if p != nil {
			agregar(p)
		}
	}
	for _, p := range s.SleepingQueue {
		agregar(p)
	}
	for _, p := range s.FinishedQueue {
		agregar(p)
	}
	return listado
}

func (s *Service) EstadisticasVM() VMStat {
	activos := s.TicksActivos.Load()
	ociosos := s.TicksOciosos.Load()
	return VMStat{
		Memoria:        s.ResumenDeMemoria(),
		TicksActivos:   activos,
		TicksOciosos:   ociosos,
		TicksTotales:   activos + ociosos,
		PaginasTraidas: s.Memoria.PagedIn(),
		PaginasSacadas: s.Memoria.PagedOut(),
	}
}

// VistaProceso arma la vista de PCB que muestra screen -r / process-smi
// dentro de un screen: últimas 10 líneas del exec log y, si el proceso murió
// por violación de memoria, la línea FAULT y el mensaje para el usuario.
func (s *Service) VistaProceso(nombre string) (VistaPCB, error) {
	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()

	p := s.buscarSinLock(nombre)
	if p == nil {
		return VistaPCB{}, ErrProcesoNoEncontrado
	}

	variables := make(map[string]int, len(p.Variables))
	for k, v := range p.Variables {
		variables[k] = v
	}

	vista := VistaPCB{
		PID:                p.PID,
		Nombre:             p.Nombre,
		Estado:             p.Estado,
		InstruccionActual:  p.InstruccionActual,
		TotalInstrucciones: p.TotalInstrucciones,
		Variables:          variables,
		UltimasLineasLog:   p.UltimasLineasLog(10),
	}
	if p.Estado == internal.EstadoMemoryViolated {
		vista.LineaFault = p.UltimaLineaFault()
		vista.MensajeViolacion = fmt.Sprintf(
			"Process %s shut down due to memory access violation error that occurred at %s. %s invalid.",
			p.Nombre, p.ViolacionHora.Format("15:04:05"), p.ViolacionToken,
		)
	}
	return vista, nil
}

func (s *Service) buscarSinLock(nombre string) *internal.Proceso {
	for _, p := range s.ReadyQueue {
		if p.Nombre == nombre {
			return p
		}
	}
	for _, p := range s.SleepingQueue {
		if p.Nombre == nombre {
			return p
		}
	}
	for _, p := range s.Cores {
		if p != nil && p.Nombre == nombre {
			return p
		}
	}
	for _, p := range s.FinishedQueue {
		if p.Nombre == nombre {
			return p
		}
	}
	return nil
}
