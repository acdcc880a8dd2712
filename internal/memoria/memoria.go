// Package memoria administra el pool fijo de marcos físicos, las tablas de
// páginas por proceso y el reemplazo por demanda (fifo/lru). Todo serializa
// sobre un único mutex: acá el objetivo es determinismo, no throughput.
package memoria

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

// marcoLibre marca un marco sin dueño en PIDPropietario.
const marcoLibre = -1

// noResidente es el centinela de una entrada de tabla de páginas sin marco.
const noResidente = -1

type Marco struct {
	ID               int
	PIDPropietario   int
	NumPagina        int
	Sucio            bool // reservado, nunca se consulta
	TickAsignado     uint64
	TickUltimoAcceso uint64
}

type Administrador struct {
	mu sync.Mutex

	marcos []Marco
	// tablasPaginas[pid][pagina] = índice de marco, o noResidente.
	tablasPaginas map[int]map[int]int

	tamanioMarco uint32
	memoriaTotal uint32
	politica     string

	pagedIn  atomic.Uint64
	pagedOut atomic.Uint64

	bitacora *Bitacora
	Log      *slog.Logger
}

// NewAdministrador arma el pool de marcos y trunca la bitácora de backing
// store. Falla si memPorMarco es 0 o no divide a la memoria total.
func NewAdministrador(memoriaTotal, memPorMarco uint32, politica, rutaBitacora string, logger *slog.Logger) (*Administrador, error) {
	if memPorMarco == 0 {
		return nil, fmt.Errorf("mem-per-frame no puede ser 0")
	}
	if memoriaTotal%memPorMarco != 0 {
		return nil, fmt.Errorf("mem-per-frame (%d) no divide a max-overall-mem (%d)", memPorMarco, memoriaTotal)
	}
	if politica != "fifo" && politica != "lru" {
		return nil, fmt.Errorf("política de reemplazo %q no reconocida", politica)
	}

	totalMarcos := int(memoriaTotal / memPorMarco)
	marcos := make([]Marco, totalMarcos)
	for i := range marcos {
		marcos[i] = Marco{ID: i, PIDPropietario: marcoLibre, NumPagina: -1}
	}

	a := &Administrador{
		marcos:        marcos,
		tablasPaginas: make(map[int]map[int]int),
		tamanioMarco:  memPorMarco,
		memoriaTotal:  memoriaTotal,
		politica:      politica,
		bitacora:      NewBitacora(rutaBitacora, logger),
		Log:           logger,
	}

	logger.Info("Administrador de memoria inicializado",
		log.IntAttr("marcos", totalMarcos),
		log.IntAttr("tamanio_marco", int(memPorMarco)),
		log.StringAttr("politica", politica),
	)
	return a, nil
}

// Alocar crea la tabla de páginas del proceso con todas las entradas no
// residentes: paginación por demanda pura, ningún marco se asigna acá.
func (a *Administrador) Alocar(pid int, tamanio uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	numPaginas := int((tamanio + a.tamanioMarco - 1) / a.tamanioMarco)
	tabla := make(map[int]int, numPaginas)
	for pagina := 0; pagina < numPaginas; pagina++ {
		tabla[pagina] = noResidente
	}
	a.tablasPaginas[pid] = tabla

	a.Log.Debug("Tabla de páginas creada",
		log.IntAttr("pid", pid),
		log.IntAttr("paginas", numPaginas),
	)
}

// Liberar suelta todos los marcos del proceso y elimina su tabla de páginas.
// Con un PID desconocido es un no-op.
func (a *Administrador) Liberar(pid int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.marcos {
		if a.marcos[i].PIDPropietario == pid {
			a.marcos[i].PIDPropietario = marcoLibre
			a.marcos[i].NumPagina = -1
			a.marcos[i].Sucio = false
		}
	}
	delete(a.tablasPaginas, pid)
}

func (a *Administrador) paginaDeDireccion(direccion uint32) int {
	return int(direccion / a.tamanioMarco)
}

// EsResidente informa si la página que contiene la dirección está respaldada
// por un marco. Si lo está, refresca el tick de último acceso (clave LRU).
func (a *Administrador) EsResidente(pid int, direccion uint32, tick uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	tabla, existe := a.tablasPaginas[pid]
	if !existe {
		return false
	}
	marco, existe := tabla[a.paginaDeDireccion(direccion)]
	if !existe || marco == noResidente {
		return false
	}

	a.marcos[marco].TickUltimoAcceso = tick
	return true
}

// SolicitarPagina resuelve un fallo de página: busca un marco libre o
// desaloja una víctima, y trae la página. Idempotente si ya es residente.
// Nunca falla: el pool no está vacío y siempre hay víctima posible.
func (a *Administrador) SolicitarPagina(pid int, direccion uint32, tick uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pagina := a.paginaDeDireccion(direccion)
	tabla, existe := a.tablasPaginas[pid]
	if !existe {
		return
	}
	if marco, ok := tabla[pagina]; ok && marco != noResidente {
		return
	}

	marco := a.buscarMarcoLibre()
	if marco == -1 {
		marco = a.elegirVictima()
		a.desalojar(marco)
	}
	a.traerPagina(pid, pagina, marco, tick)
}

func (a *Administrador) buscarMarcoLibre() int {
	for i := range a.marcos {
		if a.marcos[i].PIDPropietario == marcoLibre {
			return i
		}
	}
	return -1
}

// elegirVictima aplica la política sobre los marcos ocupados. FIFO compara el
// tick de asignación, LRU el de último acceso; empata el índice más bajo.
func (a *Administrador) elegirVictima() int {
	victima := -1
	var minTick uint64
	for i := range a.marcos {
		if a.marcos[i].PIDPropietario == marcoLibre {
			continue
		}

		clave := a.marcos[i].TickAsignado
		if a.politica == "lru" {
			clave = a.marcos[i].TickUltimoAcceso
		}
		if victima == -1 || clave < minTick {
			minTick = clave
			victima = i
		}
	}
	return victima
}

// desalojar saca la página víctima del marco: registra el swap-out en la
// bitácora y marca la entrada de la tabla del dueño como no residente.
func (a *Administrador) desalojar(marco int) {
	m := &a.marcos[marco]
	if m.PIDPropietario == marcoLibre {
		return
	}

	a.bitacora.SwapOut(m.PIDPropietario, m.NumPagina, m.ID)
	if tabla, existe := a.tablasPaginas[m.PIDPropietario]; existe {
		tabla[m.NumPagina] = noResidente
	}
	a.pagedOut.Add(1)

	a.Log.Debug("Página desalojada",
		log.IntAttr("pid", m.PIDPropietario),
		log.IntAttr("pagina", m.NumPagina),
		log.IntAttr("marco", m.ID),
	)
}

func (a *Administrador) traerPagina(pid, pagina, marco int, tick uint64) {
	a.bitacora.SwapIn(pid, pagina, marco)

	m := &a.marcos[marco]
	m.PIDPropietario = pid
	m.NumPagina = pagina
	m.Sucio = false
	m.TickAsignado = tick
	m.TickUltimoAcceso = tick

	a.tablasPaginas[pid][pagina] = marco
	a.pagedIn.Add(1)

	a.Log.Debug("Página traída a memoria",
		log.IntAttr("pid", pid),
		log.IntAttr("pagina", pagina),
		log.IntAttr("marco", marco),
	)
}

func (a *Administrador) MemoriaTotal() uint32 {
	return a.memoriaTotal
}

func (a *Administrador) MemoriaUsada() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ocupados := uint32(0)
	for i := range a.marcos {
		if a.marcos[i].PIDPropietario != marcoLibre {
			ocupados++
		}
	}
	return ocupados * a.tamanioMarco
}

func (a *Administrador) MemoriaLibre() uint32 {
	return a.memoriaTotal - a.MemoriaUsada()
}

// RSSProceso devuelve los bytes del proceso respaldados por marcos.
func (a *Administrador) RSSProceso(pid int) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	paginas := uint32(0)
	for i := range a.marcos {
		if a.marcos[i].PIDPropietario == pid {
			paginas++
		}
	}
	return paginas * a.tamanioMarco
}

func (a *Administrador) PagedIn() uint64 {
	return a.pagedIn.Load()
}

func (a *Administrador) PagedOut() uint64 {
	return a.pagedOut.Load()
}

func (a *Administrador) Cerrar() {
	a.bitacora.Cerrar()
}
