package planificadores

import (
	"errors"
	"fmt"

	"github.com/anthonyandrei/CSOPESY-MO2/internal"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

var (
	ErrMemoriaInvalida        = errors.New("invalid memory allocation")
	ErrInstruccionesInvalidas = errors.New("invalid command")
	ErrProcesoNoEncontrado    = errors.New("process not found")
)

const (
	memoriaMinProceso      = 64
	memoriaMaxProceso      = 65536
	maxInstruccionesScript = 50

	// Síntesis de procesos batch.
	probabilidadFor       = 10 // 1 en 10
	minIteracionesFor     = 2
	maxIteracionesFor     = 5
	minCuerpoFor          = 2
	maxCuerpoFor          = 5
	maxValorDeclare       = 100
	maxOperandoAritmetico = 50
	minTicksSleep         = 1
	maxTicksSleep         = 10
	rangoDireccionesBatch = 4096
)

var poolVariables = []string{"x", "y", "z", "counter"}

// CrearProcesoManual admite un proceso con el guion inicial de cinco
// instrucciones (declarar, incrementar, imprimir). Es el camino de screen -s.
func (s *Service) CrearProcesoManual(nombre string, tamanioMemoria uint32) (*internal.Proceso, error) {
	instrucciones := []internal.Instruccion{
		{Op: internal.OpDeclare, Args: []string{"x", "0"}},
		{Op: internal.OpAdd, Args: []string{"x", "x", "1"}},
		{Op: internal.OpPrint, Args: []string{"x = +x"}},
		{Op: internal.OpAdd, Args: []string{"x", "x", "1"}},
		{Op: internal.OpPrint, Args: []string{"x = +x"}},
	}
	return s.admitir(nombre, tamanioMemoria, instrucciones)
}

// CrearProcesoScript admite un proceso con instrucciones provistas por el
// usuario (screen -c). Acá se validan la cantidad de instrucciones (1–50) y
// la aridad de cada una.
func (s *Service) CrearProcesoScript(nombre string, tamanioMemoria uint32, instrucciones []internal.Instruccion) (*internal.Proceso, error) {
	if len(instrucciones) == 0 || len(instrucciones) > maxInstruccionesScript {
		return nil, ErrInstruccionesInvalidas
	}
	for _, ins := range instrucciones {
		if !aridadValida(ins) {
			return nil, ErrInstruccionesInvalidas
		}
	}
	return s.admitir(nombre, tamanioMemoria, instrucciones)
}

func (s *Service) admitir(nombre string, tamanioMemoria uint32, instrucciones []internal.Instruccion) (*internal.Proceso, error) {
	if nombre == "" || !memoriaDeProcesoValida(tamanioMemoria) {
		return nil, ErrMemoriaInvalida
	}

	pid := s.pids.GetUniqueID()
	p := internal.NewProceso(pid, nombre, uint32(len(instrucciones)), tamanioMemoria)
	p.Instrucciones = instrucciones

	s.Memoria.Alocar(pid, tamanioMemoria)

	s.mutexColas.Lock()
	s.ReadyQueue = append(s.ReadyQueue, p)
	s.mutexColas.Unlock()

	s.Log.Info(fmt.Sprintf("## (%d) Se crea el proceso - Estado: READY", pid),
		log.StringAttr("proceso", nombre),
		log.IntAttr("tamanio_memoria", int(tamanioMemoria)),
	)
	return p, nil
}

// aridadValida chequea operandos por opcode. PRINT acepta cero o un mensaje.
func aridadValida(ins internal.Instruccion) bool {
	switch ins.Op {
	case internal.OpPrint:
		return true
	case internal.OpDeclare:
		return len(ins.Args) == 2
	case internal.OpAdd, internal.OpSubtract:
		return len(ins.Args) == 3
	case internal.OpSleep:
		return len(ins.Args) == 1
	case internal.OpFor:
		return len(ins.Args) == 2
	case internal.OpRead, internal.OpWrite:
		return len(ins.Args) == 2
	default:
		return false
	}
}

// memoriaDeProcesoValida exige potencia de dos en [64, 65536].
func memoriaDeProcesoValida(tamanio uint32) bool {
	if tamanio < memoriaMinProceso || tamanio > memoriaMaxProceso {
		return false
	}
	return tamanio&(tamanio-1) == 0
}

// BuscarProceso busca por nombre en orden ready, sleeping, running, finished.
func (s *Service) BuscarProceso(nombre string) (*internal.Proceso, error) {
	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()

	if p := s.buscarSinLock(nombre); p != nil {
		return p, nil
	}
	return nil, ErrProcesoNoEncontrado
}

// generarProcesoBatch sintetiza un proceso aleatorio y lo encola en ready.
// Se llama con el lock de colas tomado, desde el lazo de ticks.
func (s *Service) generarProcesoBatch() {
	numInstrucciones := int(s.Config.MinIns)
	if s.Config.MaxIns > s.Config.MinIns {
		numInstrucciones = s.enRango(int(s.Config.MinIns), int(s.Config.MaxIns))
	}

	pid := s.pids.GetUniqueID()
	nombre := nombreDeProceso(pid)

	instrucciones := make([]internal.Instruccion, 0, numInstrucciones)
	for i := 0; i < numInstrucciones; i++ {
		restantes := numInstrucciones - i - 1
		if restantes >= minCuerpoFor && s.rng.Intn(probabilidadFor) == 0 {
			maxBloque := maxCuerpoFor
			if restantes < maxBloque {
				maxBloque = restantes
			}
			instrucciones = append(instrucciones, internal.Instruccion{
				Op: internal.OpFor,
				Args: []string{
					fmt.Sprintf("%d", s.enRango(minIteracionesFor, maxIteracionesFor)),
					fmt.Sprintf("%d", s.enRango(minCuerpoFor, maxBloque)),
				},
			})
			continue
		}
		instrucciones = append(instrucciones, s.instruccionAleatoria())
	}

	p := internal.NewProceso(pid, nombre, uint32(numInstrucciones), TamanioMemoriaBatch)
	p.Instrucciones = instrucciones

	s.Memoria.Alocar(pid, TamanioMemoriaBatch)
	s.ReadyQueue = append(s.ReadyQueue, p)

	s.Log.Debug("Proceso batch generado",
		log.StringAttr("proceso", nombre),
		log.IntAttr("instrucciones", numInstrucciones),
	)
}

func (s *Service) instruccionAleatoria() internal.Instruccion {
	switch s.rng.Intn(7) {
	case 0:
		// Sin argumentos: el ejecutor usa el mensaje por defecto.
		return internal.Instruccion{Op: internal.OpPrint}
	case 1:
		return internal.Instruccion{Op: internal.OpDeclare, Args: []string{
			s.variableAleatoria(),
			fmt.Sprintf("%d", s.rng.Intn(maxValorDeclare)),
		}}
	case 2:
		return internal.Instruccion{Op: internal.OpAdd, Args: []string{
			s.variableAleatoria(),
			s.operandoAleatorio(maxOperandoAritmetico),
			s.operandoAleatorio(maxOperandoAritmetico),
		}}
	case 3:
		return internal.Instruccion{Op: internal.OpSubtract, Args: []string{
			s.variableAleatoria(),
			s.operandoAleatorio(maxOperandoAritmetico),
			s.operandoAleatorio(maxOperandoAritmetico),
		}}
	case 4:
		return internal.Instruccion{Op: internal.OpSleep, Args: []string{
			fmt.Sprintf("%d", s.enRango(minTicksSleep, maxTicksSleep)),
		}}
	case 5:
		return internal.Instruccion{Op: internal.OpRead, Args: []string{
			s.variableAleatoria(),
			s.direccionAleatoria(),
		}}
	default:
		return internal.Instruccion{Op: internal.OpWrite, Args: []string{
			s.direccionAleatoria(),
			s.operandoAleatorio(maxValorDeclare),
		}}
	}
}

func (s *Service) enRango(min, max int) int {
	return min + s.rng.Intn(max-min+1)
}

func (s *Service) variableAleatoria() string {
	return poolVariables[s.rng.Intn(len(poolVariables))]
}

// operandoAleatorio devuelve mitad de las veces una variable del pool y
// mitad un literal en [0, maxLiteral).
func (s *Service) operandoAleatorio(maxLiteral int) string {
	if s.rng.Intn(2) == 0 {
		return fmt.Sprintf("%d", s.rng.Intn(maxLiteral))
	}
	return s.variableAleatoria()
}

func (s *Service) direccionAleatoria() string {
	return fmt.Sprintf("0x%X", s.rng.Intn(rangoDireccionesBatch))
}

// nombreDeProceso arma p01, p02, ..., p10, p11, p100.
func nombreDeProceso(pid int) string {
	if pid < 10 {
		return fmt.Sprintf("p0%d", pid)
	}
	return fmt.Sprintf("p%d", pid)
}
