// Package planificadores contiene el planificador de corto plazo del
// emulador: el lazo global de ticks, las colas de procesos, los slots por
// core y la generación periódica de procesos batch.
package planificadores

import (
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthonyandrei/CSOPESY-MO2/internal"
	"github.com/anthonyandrei/CSOPESY-MO2/internal/memoria"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/config"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/uniqueid"
)

// CPUTickDelay es el paso real del lazo: 100 ms de pared equivalen a un tick
// simulado. El pacing es parte del contrato del planificador.
const CPUTickDelay = 100 * time.Millisecond

// TamanioMemoriaBatch es el tamaño fijo de los procesos sintetizados.
const TamanioMemoriaBatch = 1024

type Service struct {
	Config   *config.Config
	Log      *slog.Logger
	Memoria  *memoria.Administrador
	Ejecutor *internal.Ejecutor

	// mutexColas protege las tres colas, los slots de cores y las búsquedas
	// de la admisión.
	mutexColas     sync.Mutex
	ReadyQueue     []*internal.Proceso
	SleepingQueue  []*internal.Proceso
	FinishedQueue  []*internal.Proceso
	Cores          []*internal.Proceso // nil = core libre

	GlobalTick   atomic.Uint64
	TicksActivos atomic.Uint64
	TicksOciosos atomic.Uint64
	generando    atomic.Bool

	pids *uniqueid.UniqueID
	rng  *rand.Rand

	ultimoTickGeneracion uint64

	detener  chan struct{}
	detenido chan struct{}
}

func NewService(cfg *config.Config, adm *memoria.Administrador, salida io.Writer, logger *slog.Logger) *Service {
	return &Service{
		Config:        cfg,
		Log:           logger,
		Memoria:       adm,
		Ejecutor:      internal.NewEjecutor(cfg.DelaysPerExec, salida, logger),
		ReadyQueue:    make([]*internal.Proceso, 0),
		SleepingQueue: make([]*internal.Proceso, 0),
		FinishedQueue: make([]*internal.Proceso, 0),
		Cores:         make([]*internal.Proceso, cfg.NumCPU),
		pids:          uniqueid.Init(),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		detener:       make(chan struct{}),
		detenido:      make(chan struct{}),
	}
}

// IniciarHiloPlanificador arranca el lazo de ticks en su propia goroutine.
func (s *Service) IniciarHiloPlanificador() {
	go s.lazoDeTicks()
	s.Log.Info("Hilo del planificador iniciado",
		log.IntAttr("cores", len(s.Cores)),
		log.StringAttr("algoritmo", s.Config.Scheduler),
	)
}

// Detener frena el lazo de ticks y espera a que termine el tick en curso.
func (s *Service) Detener() {
	close(s.detener)
	<-s.detenido
}

func (s *Service) lazoDeTicks() {
	defer close(s.detenido)

	ticker := time.NewTicker(CPUTickDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.detener:
			return
		case <-ticker.C:
			s.CicloDeTick()
		}
	}
}

// IniciarGeneracion habilita la síntesis periódica de procesos
// (scheduler-start).
func (s *Service) IniciarGeneracion() {
	s.generando.Store(true)
	s.Log.Info("Generación de procesos habilitada")
}

// DetenerGeneracion la deshabilita; los procesos ya creados siguen.
func (s *Service) DetenerGeneracion() {
	s.generando.Store(false)
	s.Log.Info("Generación de procesos deshabilitada")
}
