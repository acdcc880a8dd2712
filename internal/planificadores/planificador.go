package planificadores

import (
	"fmt"

	"github.com/anthonyandrei/CSOPESY-MO2/internal"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

// CicloDeTick ejecuta un tick completo del planificador. El orden por tick es
// fijo: tick global, contadores de utilización, generación batch, despertar
// durmientes, un paso de instrucción por core ocupado, quantum/preempción y
// dispatch de cores libres.
func (s *Service) CicloDeTick() {
	tick := s.GlobalTick.Add(1)

	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()

	ocupados := 0
	for _, p := range s.Cores {
		if p != nil {
			ocupados++
		}
	}
	s.TicksActivos.Add(uint64(ocupados))
	s.TicksOciosos.Add(uint64(len(s.Cores) - ocupados))

	if s.generando.Load() && tick-s.ultimoTickGeneracion >= s.Config.BatchProcessFreq {
		s.ultimoTickGeneracion = tick
		s.generarProcesoBatch()
	}

	s.despertarDurmientes(tick)
	s.ejecutarCores(tick)
	s.despacharProcesos()
}

// despertarDurmientes mueve a ready, en orden de recorrido, los procesos cuyo
// tick de despertar ya pasó.
func (s *Service) despertarDurmientes(tick uint64) {
	restantes := s.SleepingQueue[:0]
	for _, p := range s.SleepingQueue {
		if tick >= p.DespertarEnTick {
			s.Log.Debug("Proceso despierta",
				log.StringAttr("proceso", p.Nombre),
				log.Uint64Attr("tick", tick),
			)
			p.Estado = internal.EstadoReady
			s.ReadyQueue = append(s.ReadyQueue, p)
		} else {
			restantes = append(restantes, p)
		}
	}
	s.SleepingQueue = restantes
}

// ejecutarCores corre un paso por core ocupado y resuelve las transiciones.
func (s *Service) ejecutarCores(tick uint64) {
	for i, p := range s.Cores {
		if p == nil {
			continue
		}

		// Pre-chequeo de residencia para READ/WRITE: ante un fallo de página
		// se pide la página y el proceso stallea este tick, sin ejecutar y
		// sin descontar quantum.
		if s.fallaDePagina(p, tick) {
			p.EsperandoPagina = true
			continue
		}
		p.EsperandoPagina = false

		s.Ejecutor.EjecutarUna(p, tick)

		switch p.Estado {
		case internal.EstadoFinished, internal.EstadoMemoryViolated:
			// Terminal: los marcos se liberan con avidez.
			s.Memoria.Liberar(p.PID)
			s.FinishedQueue = append(s.FinishedQueue, p)
			s.Cores[i] = nil
			s.Log.Info(fmt.Sprintf("## (%d) Pasa del estado EXEC al estado %s", p.PID, p.Estado),
				log.StringAttr("proceso", p.Nombre),
			)
			continue

		case internal.EstadoSleeping:
			s.SleepingQueue = append(s.SleepingQueue, p)
			s.Cores[i] = nil
			s.Log.Debug("Proceso a la cola de durmientes",
				log.StringAttr("proceso", p.Nombre),
				log.Uint64Attr("despertar_en", p.DespertarEnTick),
			)
			continue
		}

		if s.Config.Scheduler == "rr" {
			if p.QuantumRestante > 0 {
				p.QuantumRestante--
			}
			if p.QuantumRestante == 0 {
				p.Estado = internal.EstadoReady
				s.ReadyQueue = append(s.ReadyQueue, p)
				s.Cores[i] = nil
				s.Log.Debug("Proceso desalojado por fin de quantum",
					log.StringAttr("proceso", p.Nombre),
					log.IntAttr("core", i),
				)
			}
		}
	}
}

// fallaDePagina detecta si la instrucción actual es un READ/WRITE con
// dirección válida y en rango cuya página no está residente. En ese caso
// dispara la carga y devuelve true. Las direcciones malformadas o fuera de
// rango no pasan por acá: las termina el ejecutor como violación.
func (s *Service) fallaDePagina(p *internal.Proceso, tick uint64) bool {
	if p.InstruccionActual >= uint32(len(p.Instrucciones)) {
		return false
	}

	ins := p.Instrucciones[p.InstruccionActual]
	var token string
	switch ins.Op {
	case internal.OpRead:
		if len(ins.Args) < 2 {
			return false
		}
		token = ins.Args[1]
	case internal.OpWrite:
		if len(ins.Args) < 2 {
			return false
		}
		token = ins.Args[0]
	default:
		return false
	}

	direccion, ok := internal.ParsearDireccionHex(token)
	if !ok || direccion >= p.TamanioMemoria {
		return false
	}

	if s.Memoria.EsResidente(p.PID, direccion, tick) {
		return false
	}

	s.Memoria.SolicitarPagina(p.PID, direccion, tick)
	s.Log.Debug("Fallo de página",
		log.StringAttr("proceso", p.Nombre),
		log.StringAttr("direccion", token),
		log.Uint64Attr("tick", tick),
	)
	return true
}

// despacharProcesos llena los cores libres desde el frente de la cola ready.
func (s *Service) despacharProcesos() {
	for i := range s.Cores {
		if s.Cores[i] != nil {
			continue
		}
		if len(s.ReadyQueue) == 0 {
			break
		}

		p := s.ReadyQueue[0]
		s.ReadyQueue = s.ReadyQueue[1:]

		p.Estado = internal.EstadoRunning
		if s.Config.Scheduler == "rr" {
			p.QuantumRestante = s.Config.QuantumCycles
		}
		s.Cores[i] = p

		s.Log.Debug("Proceso despachado",
			log.StringAttr("proceso", p.Nombre),
			log.IntAttr("core", i),
		)
	}
}
