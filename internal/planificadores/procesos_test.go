package planificadores

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anthonyandrei/CSOPESY-MO2/internal"
)

func TestCrearProcesoManual(t *testing.T) {
	ass := assert.New(t)
	s, _ := nuevoServicio(t, configDePrueba())

	p, err := s.CrearProcesoManual("proc1", 256)
	ass.NoError(err)
	ass.Equal(1, p.PID)
	ass.Equal(internal.EstadoReady, p.Estado)
	ass.Equal(uint32(5), p.TotalInstrucciones)
	ass.Len(p.Instrucciones, 5)

	// Los PID son crecientes.
	p2, err := s.CrearProcesoManual("proc2", 256)
	ass.NoError(err)
	ass.Equal(2, p2.PID)
}

func TestAdmisionMemoriaInvalida(t *testing.T) {
	s, _ := nuevoServicio(t, configDePrueba())

	tests := []struct {
		name    string
		nombre  string
		tamanio uint32
	}{
		{name: "muy chica", nombre: "p", tamanio: 32},
		{name: "muy grande", nombre: "p", tamanio: 131072},
		{name: "no potencia de dos", nombre: "p", tamanio: 100},
		{name: "sin nombre", nombre: "", tamanio: 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CrearProcesoManual(tt.nombre, tt.tamanio)
			assert.ErrorIs(t, err, ErrMemoriaInvalida)
		})
	}

	// Nada quedó encolado.
	assert.Empty(t, s.ListadoProcesos())
}

func TestAdmisionScriptInvalido(t *testing.T) {
	ass := assert.New(t)
	s, _ := nuevoServicio(t, configDePrueba())

	_, err := s.CrearProcesoScript("p", 256, nil)
	ass.ErrorIs(err, ErrInstruccionesInvalidas)

	muchas := make([]internal.Instruccion, 51)
	for i := range muchas {
		muchas[i] = internal.Instruccion{Op: internal.OpPrint}
	}
	_, err = s.CrearProcesoScript("p", 256, muchas)
	ass.ErrorIs(err, ErrInstruccionesInvalidas)

	tests := []struct {
		name string
		ins  internal.Instruccion
	}{
		{name: "declare con un operando", ins: internal.Instruccion{Op: internal.OpDeclare, Args: []string{"x"}}},
		{name: "add con dos operandos", ins: internal.Instruccion{Op: internal.OpAdd, Args: []string{"x", "y"}}},
		{name: "sleep sin operandos", ins: internal.Instruccion{Op: internal.OpSleep}},
		{name: "for con un operando", ins: internal.Instruccion{Op: internal.OpFor, Args: []string{"2"}}},
		{name: "read con un operando", ins: internal.Instruccion{Op: internal.OpRead, Args: []string{"x"}}},
		{name: "opcode desconocido", ins: internal.Instruccion{Op: "JUMP", Args: []string{"3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CrearProcesoScript("p", 256, []internal.Instruccion{tt.ins})
			assert.ErrorIs(t, err, ErrInstruccionesInvalidas)
		})
	}

	ass.Empty(s.ListadoProcesos())
}

func TestBuscarProceso(t *testing.T) {
	ass := assert.New(t)
	s, _ := nuevoServicio(t, configDePrueba())

	_, err := s.CrearProcesoManual("buscado", 256)
	ass.NoError(err)

	p, err := s.BuscarProceso("buscado")
	ass.NoError(err)
	ass.Equal("buscado", p.Nombre)

	_, err = s.BuscarProceso("fantasma")
	ass.ErrorIs(err, ErrProcesoNoEncontrado)
}

func TestNombreDeProceso(t *testing.T) {
	tests := []struct {
		pid  int
		want string
	}{
		{pid: 1, want: "p01"},
		{pid: 9, want: "p09"},
		{pid: 10, want: "p10"},
		{pid: 1240, want: "p1240"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nombreDeProceso(tt.pid))
	}
}

func TestGeneracionRespetaRangos(t *testing.T) {
	ass := assert.New(t)
	cfg := configDePrueba()
	cfg.MinIns = 5
	cfg.MaxIns = 12
	s, _ := nuevoServicio(t, cfg)

	for i := 0; i < 20; i++ {
		s.mutexColas.Lock()
		s.generarProcesoBatch()
		s.mutexColas.Unlock()
	}

	s.mutexColas.Lock()
	defer s.mutexColas.Unlock()
	for _, p := range s.ReadyQueue {
		ass.GreaterOrEqual(len(p.Instrucciones), 5)
		ass.LessOrEqual(len(p.Instrucciones), 12)
		ass.Equal(uint32(TamanioMemoriaBatch), p.TamanioMemoria)

		for idx, ins := range p.Instrucciones {
			if ins.Op != internal.OpFor {
				ass.True(aridadValida(ins), "instrucción generada inválida: %s", ins)
				continue
			}
			// Un FOR generado siempre deja cuerpo dentro del programa.
			ass.Less(idx+1, len(p.Instrucciones))
		}
	}
}
