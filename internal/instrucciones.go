package internal

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

const (
	valorMinUint16 = 0
	valorMaxUint16 = 65535
)

// Ejecutor corre exactamente una instrucción de un proceso por llamada.
// Las transiciones de estado (SLEEPING, FINISHED, MEMORY-VIOLATED) quedan en
// el PCB; mover el proceso de cola es responsabilidad del planificador.
type Ejecutor struct {
	DelaysPorExec uint32
	Salida        io.Writer
	Log           *slog.Logger
}

func NewEjecutor(delaysPorExec uint32, salida io.Writer, logger *slog.Logger) *Ejecutor {
	return &Ejecutor{
		DelaysPorExec: delaysPorExec,
		Salida:        salida,
		Log:           logger,
	}
}

// EjecutarUna ejecuta p.Instrucciones[p.InstruccionActual] en el tick dado.
func (e *Ejecutor) EjecutarUna(p *Proceso, tick uint64) {
	// delays-per-exec: busy-wait previo a cada instrucción. El proceso
	// retiene el core pero no ejecuta.
	if p.DelayRestante > 0 {
		p.DelayRestante--
		return
	}

	if p.InstruccionActual >= uint32(len(p.Instrucciones)) {
		e.Log.Debug("Proceso finalizado",
			log.StringAttr("proceso", p.Nombre),
			log.IntAttr("pid", p.PID),
		)
		p.Estado = EstadoFinished
		return
	}

	ins := p.Instrucciones[p.InstruccionActual]
	p.LogEvento(tick, "EXEC "+ins.String())

	switch ins.Op {
	case OpPrint:
		mensaje := fmt.Sprintf("Hello world from %s!", p.Nombre)
		if len(ins.Args) > 0 {
			mensaje = ins.Args[0]
		}
		mensaje = e.expandirMensaje(mensaje, p)
		fmt.Fprintf(e.Salida, "[%s] %s\n", p.Nombre, mensaje)

	case OpDeclare:
		if len(ins.Args) < 2 {
			e.instruccionInvalida(p, ins, "DECLARE requiere 2 operandos")
			break
		}
		valor, err := strconv.Atoi(ins.Args[1])
		if err != nil {
			e.instruccionInvalida(p, ins, "literal no parseable")
			break
		}
		if e.asegurarSlotTabla(p, ins.Args[0]) {
			p.Variables[ins.Args[0]] = saturarUint16(valor)
		}

	case OpAdd:
		e.ejecutarAritmetica(p, ins, true)

	case OpSubtract:
		e.ejecutarAritmetica(p, ins, false)

	case OpSleep:
		if len(ins.Args) < 1 {
			e.instruccionInvalida(p, ins, "SLEEP requiere 1 operando")
			break
		}
		ticks, err := strconv.Atoi(ins.Args[0])
		if err != nil {
			e.instruccionInvalida(p, ins, "literal no parseable")
			break
		}
		p.Estado = EstadoSleeping
		p.DespertarEnTick = tick + uint64(ticks)
		// Avanza antes de ceder el core: al despertar sigue con la próxima.
		p.InstruccionActual++
		return

	case OpRead:
		if len(ins.Args) < 2 {
			e.instruccionInvalida(p, ins, "READ requiere 2 operandos")
			break
		}
		direccion, ok := ParsearDireccionHex(ins.Args[1])
		if !ok || direccion >= p.TamanioMemoria {
			e.violacionDeMemoria(p, tick, OpRead, ins.Args[1])
			return
		}
		if e.asegurarSlotTabla(p, ins.Args[0]) {
			p.Variables[ins.Args[0]] = saturarUint16(int(p.MemoriaDatos[direccion]))
		}

	case OpWrite:
		if len(ins.Args) < 2 {
			e.instruccionInvalida(p, ins, "WRITE requiere 2 operandos")
			break
		}
		direccion, ok := ParsearDireccionHex(ins.Args[0])
		if !ok || direccion >= p.TamanioMemoria {
			e.violacionDeMemoria(p, tick, OpWrite, ins.Args[0])
			return
		}
		valor, ok := e.valorOperando(p, ins.Args[1])
		if !ok {
			e.instruccionInvalida(p, ins, "literal no parseable")
			break
		}
		p.MemoriaDatos[direccion] = uint16(saturarUint16(valor))

	case OpFor:
		if e.ejecutarFor(p, ins) {
			// Ya saltó al cuerpo del loop; no avanzar ni correr epílogo.
			p.DelayRestante = e.DelaysPorExec
			return
		}

	default:
		e.instruccionInvalida(p, ins, "opcode desconocido")
	}

	p.InstruccionActual++

	// Epílogo de loops: si se pasó el final del FOR más interno, decrementar
	// la iteración y volver al inicio, o desapilar el frame.
	if len(p.LoopStack) > 0 {
		frame := &p.LoopStack[len(p.LoopStack)-1]
		if p.InstruccionActual > frame.FinLoop {
			if frame.IteracionesRestantes > 0 {
				frame.IteracionesRestantes--
				p.InstruccionActual = frame.InicioLoop
			} else {
				p.LoopStack = p.LoopStack[:len(p.LoopStack)-1]
			}
		}
	}

	p.DelayRestante = e.DelaysPorExec
}

// ejecutarFor apila un frame de loop y salta al cuerpo. Devuelve true si
// saltó; false si la instrucción se trató como no-op y hay que avanzar.
func (e *Ejecutor) ejecutarFor(p *Proceso, ins Instruccion) bool {
	if len(ins.Args) < 2 {
		e.instruccionInvalida(p, ins, "FOR requiere 2 operandos")
		return false
	}
	iteraciones, err1 := strconv.Atoi(ins.Args[0])
	tamanioBloque, err2 := strconv.Atoi(ins.Args[1])
	if err1 != nil || err2 != nil {
		e.instruccionInvalida(p, ins, "literal no parseable")
		return false
	}

	if len(p.LoopStack) >= MaxProfundidadLoop {
		e.Log.Debug("FOR ignorado por profundidad máxima",
			log.StringAttr("proceso", p.Nombre),
			log.IntAttr("profundidad", len(p.LoopStack)),
		)
		return false
	}

	inicio := p.InstruccionActual + 1
	fin := p.InstruccionActual + uint32(tamanioBloque)
	if inicio >= uint32(len(p.Instrucciones)) || fin > uint32(len(p.Instrucciones)) {
		e.Log.Debug("FOR ignorado: el bloque excede las instrucciones",
			log.StringAttr("proceso", p.Nombre),
		)
		return false
	}

	p.LoopStack = append(p.LoopStack, LoopFrame{
		InicioLoop: inicio,
		FinLoop:    fin,
		// La primera iteración arranca ahora.
		IteracionesRestantes: iteraciones - 1,
	})
	p.InstruccionActual = inicio
	return true
}

func (e *Ejecutor) ejecutarAritmetica(p *Proceso, ins Instruccion, esSuma bool) {
	if len(ins.Args) < 3 {
		e.instruccionInvalida(p, ins, "requiere 3 operandos")
		return
	}

	destino := ins.Args[0]
	if !e.asegurarSlotTabla(p, destino) {
		return
	}

	a, okA := e.valorOperando(p, ins.Args[1])
	b, okB := e.valorOperando(p, ins.Args[2])
	if !okA || !okB {
		e.instruccionInvalida(p, ins, "literal no parseable")
		return
	}

	resultado := a + b
	if !esSuma {
		resultado = a - b
	}
	p.Variables[destino] = saturarUint16(resultado)
}

func (e *Ejecutor) violacionDeMemoria(p *Proceso, tick uint64, op, token string) {
	p.LogEvento(tick, fmt.Sprintf("FAULT: invalid %s address %s", op, token))
	p.Estado = EstadoMemoryViolated
	p.ViolacionToken = token
	p.ViolacionOp = op
	p.ViolacionHora = time.Now()

	e.Log.Info(fmt.Sprintf("## (%d) Violación de memoria en %s", p.PID, op),
		log.StringAttr("proceso", p.Nombre),
		log.StringAttr("direccion", token),
		log.IntAttr("tamanio_memoria", int(p.TamanioMemoria)),
	)
}

// instruccionInvalida deja registro y sigue de largo: la instrucción se
// saltea avanzando el contador, no es una violación de memoria.
func (e *Ejecutor) instruccionInvalida(p *Proceso, ins Instruccion, motivo string) {
	e.Log.Debug("Instrucción inválida salteada",
		log.StringAttr("proceso", p.Nombre),
		log.StringAttr("instruccion", ins.String()),
		log.StringAttr("motivo", motivo),
	)
}

// asegurarSlotTabla reserva lugar en la tabla de símbolos para una variable
// nueva. Devuelve false si los 64 bytes ya están usados; en ese caso la
// variable no se almacena.
func (e *Ejecutor) asegurarSlotTabla(p *Proceso, nombre string) bool {
	if _, existe := p.Variables[nombre]; existe {
		return true
	}
	if p.BytesTablaUsados+BytesPorVariable > BytesTablaSimbolos {
		e.Log.Debug("Tabla de símbolos llena, variable ignorada",
			log.StringAttr("proceso", p.Nombre),
			log.StringAttr("variable", nombre),
		)
		return false
	}
	p.BytesTablaUsados += BytesPorVariable
	p.Variables[nombre] = 0
	return true
}

// valorOperando resuelve un operando variable-o-literal. Para variables
// aplica la regla de auto-alta: si no hay lugar en la tabla, vale 0 y no se
// guarda. El bool es false solo ante un literal no parseable.
func (e *Ejecutor) valorOperando(p *Proceso, operando string) (int, bool) {
	if operando == "" {
		return 0, true
	}

	if esLiteral(operando) {
		valor, err := strconv.Atoi(operando)
		if err != nil {
			return 0, false
		}
		return valor, true
	}

	if !e.asegurarSlotTabla(p, operando) {
		return 0, true
	}
	return p.Variables[operando], true
}

// expandirMensaje reemplaza cada +identificador por el valor decimal de la
// variable, con la misma regla de auto-alta que el resto de los operandos.
func (e *Ejecutor) expandirMensaje(mensaje string, p *Proceso) string {
	var sb strings.Builder
	for i := 0; i < len(mensaje); {
		if mensaje[i] != '+' {
			sb.WriteByte(mensaje[i])
			i++
			continue
		}

		j := i + 1
		for j < len(mensaje) && esCaracterIdentificador(mensaje[j]) {
			j++
		}
		// Un '+' solo, o seguido de algo que no es identificador, queda tal
		// cual. El identificador no puede arrancar con dígito.
		if j == i+1 || esDigito(mensaje[i+1]) {
			sb.WriteByte(mensaje[i])
			i++
			continue
		}

		nombre := mensaje[i+1 : j]
		valor := 0
		if e.asegurarSlotTabla(p, nombre) {
			valor = p.Variables[nombre]
		}
		sb.WriteString(strconv.Itoa(valor))
		i = j
	}
	return sb.String()
}

// ParsearDireccionHex valida y convierte un token 0x.../0X... a dirección.
func ParsearDireccionHex(token string) (uint32, bool) {
	if len(token) < 3 {
		return 0, false
	}
	if token[0] != '0' || (token[1] != 'x' && token[1] != 'X') {
		return 0, false
	}
	valor, err := strconv.ParseUint(token[2:], 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(valor), true
}

func saturarUint16(valor int) int {
	if valor < valorMinUint16 {
		return valorMinUint16
	}
	if valor > valorMaxUint16 {
		return valorMaxUint16
	}
	return valor
}

func esLiteral(s string) bool {
	return esDigito(s[0]) || (s[0] == '-' && len(s) > 1)
}

func esDigito(c byte) bool {
	return c >= '0' && c <= '9'
}

func esCaracterIdentificador(c byte) bool {
	return c == '_' || esDigito(c) ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
