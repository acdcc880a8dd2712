package planificadores

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anthonyandrei/CSOPESY-MO2/internal"
	"github.com/anthonyandrei/CSOPESY-MO2/internal/memoria"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/config"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

// Los tests manejan el reloj llamando CicloDeTick directamente, sin el
// pacing real de 100 ms del lazo.

func configDePrueba() *config.Config {
	return &config.Config{
		NumCPU:            1,
		Scheduler:         "fcfs",
		QuantumCycles:     1,
		BatchProcessFreq:  1,
		MinIns:            3,
		MaxIns:            3,
		DelaysPerExec:     0,
		MaxOverallMem:     4 * 64,
		MemPerFrame:       64,
		MinMemPerProc:     64,
		MaxMemPerProc:     1024,
		ReplacementPolicy: "fifo",
	}
}

func nuevoServicio(t *testing.T, cfg *config.Config) (*Service, *bytes.Buffer) {
	t.Helper()
	logger := log.BuildLogger("error")
	adm, err := memoria.NewAdministrador(cfg.MaxOverallMem, cfg.MemPerFrame,
		cfg.ReplacementPolicy, filepath.Join(t.TempDir(), "backing-store.txt"), logger)
	if err != nil {
		t.Fatalf("error creando administrador de memoria: %v", err)
	}
	t.Cleanup(adm.Cerrar)

	salida := &bytes.Buffer{}
	return NewService(cfg, adm, salida, logger), salida
}

func ticks(s *Service, n int) {
	for i := 0; i < n; i++ {
		s.CicloDeTick()
	}
}

func TestSmokeFCFSUnCore(t *testing.T) {
	ass := assert.New(t)
	s, salida := nuevoServicio(t, configDePrueba())

	p, err := s.CrearProcesoScript("p01", 1024, []internal.Instruccion{
		{Op: internal.OpDeclare, Args: []string{"x", "41"}},
		{Op: internal.OpAdd, Args: []string{"x", "x", "1"}},
		{Op: internal.OpPrint, Args: []string{"v=+x"}},
	})
	ass.NoError(err)

	ticks(s, 6)

	ass.Contains(salida.String(), "[p01] v=42")
	ass.Equal(internal.EstadoFinished, p.Estado)
	ass.Equal(uint32(3), p.InstruccionActual)
	ass.Len(s.FinishedQueue, 1)
}

func lineasDeSalida(salida *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(salida.String(), "\n"), "\n")
}

func TestAlternanciaRR(t *testing.T) {
	ass := assert.New(t)
	cfg := configDePrueba()
	cfg.Scheduler = "rr"
	cfg.QuantumCycles = 2
	s, salida := nuevoServicio(t, cfg)

	printN := func(msg string, n int) []internal.Instruccion {
		ins := make([]internal.Instruccion, n)
		for i := range ins {
			ins[i] = internal.Instruccion{Op: internal.OpPrint, Args: []string{msg}}
		}
		return ins
	}

	_, err := s.CrearProcesoScript("p01", 1024, printN("a", 4))
	ass.NoError(err)
	_, err = s.CrearProcesoScript("p02", 1024, printN("b", 4))
	ass.NoError(err)

	ticks(s, 20)

	lineas := lineasDeSalida(salida)
	if ass.GreaterOrEqual(len(lineas), 8) {
		quiere := []string{
			"[p01] a", "[p01] a", "[p02] b", "[p02] b",
			"[p01] a", "[p01] a", "[p02] b", "[p02] b",
		}
		ass.Equal(quiere, lineas[:8], "la salida alterna en pares de quantum")
	}
}

func TestSleepYDespertar(t *testing.T) {
	ass := assert.New(t)
	s, salida := nuevoServicio(t, configDePrueba())

	p, err := s.CrearProcesoScript("p01", 1024, []internal.Instruccion{
		{Op: internal.OpPrint, Args: []string{"pre"}},
		{Op: internal.OpSleep, Args: []string{"5"}},
		{Op: internal.OpPrint, Args: []string{"post"}},
	})
	ass.NoError(err)

	// t1 dispatch, t2 pre, t3 sleep (despertar = 3+5 = 8)
	ticks(s, 3)
	ass.Equal(internal.EstadoSleeping, p.Estado)
	ass.Equal(uint64(8), p.DespertarEnTick)
	ass.Contains(salida.String(), "[p01] pre")
	ass.NotContains(salida.String(), "[p01] post")

	// Hasta el tick 7 inclusive sigue durmiendo.
	ticks(s, 4)
	ass.Equal(internal.EstadoSleeping, p.Estado)
	ass.Len(s.SleepingQueue, 1)

	// Tick 8: despierta y se despacha; tick 9: ejecuta el print.
	ticks(s, 2)
	ass.Contains(salida.String(), "[p01] post")
}

func TestOrdenFIFODeDispatch(t *testing.T) {
	ass := assert.New(t)
	s, salida := nuevoServicio(t, configDePrueba())

	_, err := s.CrearProcesoScript("primero", 1024, []internal.Instruccion{
		{Op: internal.OpPrint, Args: []string{"1"}},
	})
	ass.NoError(err)
	_, err = s.CrearProcesoScript("segundo", 1024, []internal.Instruccion{
		{Op: internal.OpPrint, Args: []string{"2"}},
	})
	ass.NoError(err)

	ticks(s, 8)

	lineas := lineasDeSalida(salida)
	if ass.GreaterOrEqual(len(lineas), 2) {
		ass.Equal("[primero] 1", lineas[0])
		ass.Equal("[segundo] 2", lineas[1])
	}
}

func TestStallPorFalloDePagina(t *testing.T) {
	ass := assert.New(t)
	cfg := configDePrueba()
	cfg.Scheduler = "rr"
	cfg.QuantumCycles = 2
	s, _ := nuevoServicio(t, cfg)

	p, err := s.CrearProcesoScript("p01", 64, []internal.Instruccion{
		{Op: internal.OpWrite, Args: []string{"0x10", "7"}},
	})
	ass.NoError(err)

	// t1: dispatch con quantum 2.
	ticks(s, 1)
	ass.Equal(uint32(2), p.QuantumRestante)

	// t2: fallo de página: pide la página, no ejecuta, no descuenta quantum.
	ticks(s, 1)
	ass.True(p.EsperandoPagina)
	ass.Equal(uint32(0), p.InstruccionActual)
	ass.Equal(uint32(2), p.QuantumRestante)
	ass.Equal(uint64(1), s.Memoria.PagedIn())

	// Con el proceso stalleado el core no cuenta como utilizado.
	util := s.Utilizacion()
	ass.Equal(0, util.CoresUsados)

	// t3: la página ya es residente, el WRITE ejecuta.
	ticks(s, 1)
	ass.False(p.EsperandoPagina)
	ass.Equal(uint32(1), p.InstruccionActual)
	ass.Equal(uint16(7), p.MemoriaDatos[0x10])
	ass.Equal(uint32(1), p.QuantumRestante)
}

func TestViolacionDeMemoriaEnElTick(t *testing.T) {
	ass := assert.New(t)
	s, _ := nuevoServicio(t, configDePrueba())

	p, err := s.CrearProcesoScript("p01", 64, []internal.Instruccion{
		{Op: internal.OpWrite, Args: []string{"0x100", "5"}},
	})
	ass.NoError(err)

	ticks(s, 3)

	ass.Equal(internal.EstadoMemoryViolated, p.Estado)
	ass.Len(s.FinishedQueue, 1)
	ass.Equal(uint64(0), s.Memoria.PagedIn(), "una dirección fuera de rango no consume marcos")
	ass.Equal(uint32(0), s.Memoria.RSSProceso(p.PID))

	vista, err := s.VistaProceso("p01")
	ass.NoError(err)
	ass.Contains(vista.LineaFault, "FAULT: invalid WRITE address 0x100")
	ass.Contains(vista.MensajeViolacion, "Process p01 shut down due to memory access violation error")
	ass.Contains(vista.MensajeViolacion, "0x100 invalid.")
}

func TestGeneracionBatch(t *testing.T) {
	ass := assert.New(t)
	cfg := configDePrueba()
	cfg.BatchProcessFreq = 2
	cfg.NumCPU = 2
	s, _ := nuevoServicio(t, cfg)

	ticks(s, 4)
	ass.Empty(s.ListadoProcesos(), "sin scheduler-start no se generan procesos")

	s.IniciarGeneracion()
	ticks(s, 6)
	generados := len(s.ListadoProcesos())
	ass.GreaterOrEqual(generados, 2)

	s.DetenerGeneracion()
	ticks(s, 4)
	// Nada nuevo se admite; lo ya creado puede terminar pero no desaparecer.
	ass.Equal(generados, len(s.ListadoProcesos()))
}

func TestContadoresDeUtilizacion(t *testing.T) {
	ass := assert.New(t)
	cfg := configDePrueba()
	cfg.NumCPU = 2
	s, _ := nuevoServicio(t, cfg)

	ticks(s, 3)
	ass.Equal(uint64(0), s.TicksActivos.Load())
	ass.Equal(uint64(6), s.TicksOciosos.Load())

	_, err := s.CrearProcesoScript("p01", 1024, []internal.Instruccion{
		{Op: internal.OpPrint, Args: []string{"hola"}},
	})
	ass.NoError(err)

	// t4 despacha (slots vacíos al contar), t5 y t6 lo encuentran ocupado
	// hasta que termina.
	ticks(s, 3)
	stats := s.EstadisticasVM()
	ass.Equal(stats.TicksActivos+stats.TicksOciosos, stats.TicksTotales)
	ass.Equal(uint64(2), stats.TicksActivos)
}

func TestVistaProcesoYListados(t *testing.T) {
	ass := assert.New(t)
	s, _ := nuevoServicio(t, configDePrueba())

	_, err := s.CrearProcesoScript("p01", 1024, []internal.Instruccion{
		{Op: internal.OpDeclare, Args: []string{"x", "5"}},
		{Op: internal.OpPrint},
	})
	ass.NoError(err)

	listado := s.ListadoProcesos()
	if ass.Len(listado, 1) {
		ass.Equal("p01", listado[0].Nombre)
		ass.Equal(internal.EstadoReady, listado[0].Estado)
	}

	ticks(s, 5)

	vista, err := s.VistaProceso("p01")
	ass.NoError(err)
	ass.Equal(internal.EstadoFinished, vista.Estado)
	ass.Equal(5, vista.Variables["x"])
	ass.NotEmpty(vista.UltimasLineasLog)
	ass.Empty(vista.MensajeViolacion)

	_, err = s.VistaProceso("no-existe")
	ass.ErrorIs(err, ErrProcesoNoEncontrado)

	mem := s.ListadoMemoria()
	if ass.Len(mem, 1) {
		ass.Equal(uint32(1024), mem[0].VMSize)
		ass.Equal(uint32(0), mem[0].RSS, "al terminar se liberan los marcos")
	}
}
