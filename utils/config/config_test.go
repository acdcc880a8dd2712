package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func escribirConfig(t *testing.T, contenido string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(path, []byte(contenido), 0644); err != nil {
		t.Fatalf("error escribiendo config de prueba: %v", err)
	}
	return path
}

const configCompleta = `num-cpu 4
scheduler rr
quantum-cycles 4
batch-process-freq 2
min-ins 5
max-ins 20
delays-per-exec 0
max-overall-mem 4096
mem-per-frame 256
min-mem-per-proc 64
max-mem-per-proc 1024
replacement-policy lru
`

func TestCargar(t *testing.T) {
	ass := assert.New(t)

	cfg, err := Cargar(escribirConfig(t, configCompleta))
	ass.NoError(err)
	ass.Equal(4, cfg.NumCPU)
	ass.Equal("rr", cfg.Scheduler)
	ass.Equal(uint32(4), cfg.QuantumCycles)
	ass.Equal(uint64(2), cfg.BatchProcessFreq)
	ass.Equal(uint32(5), cfg.MinIns)
	ass.Equal(uint32(20), cfg.MaxIns)
	ass.Equal(uint32(4096), cfg.MaxOverallMem)
	ass.Equal(uint32(256), cfg.MemPerFrame)
	ass.Equal("lru", cfg.ReplacementPolicy)
	ass.NoError(cfg.Validar())
}

func TestCargarClaveDesconocida(t *testing.T) {
	ass := assert.New(t)

	// Una clave desconocida consume exactamente un token: lo que sigue se
	// tiene que parsear normal.
	cfg, err := Cargar(escribirConfig(t, "clave-rara 99 num-cpu 2 scheduler fcfs"))
	ass.NoError(err)
	ass.Equal(2, cfg.NumCPU)
	ass.Equal("fcfs", cfg.Scheduler)
}

func TestCargarArchivoInexistente(t *testing.T) {
	_, err := Cargar(filepath.Join(t.TempDir(), "no-existe.txt"))
	assert.Error(t, err)
}

func TestValidar(t *testing.T) {
	base := func() *Config {
		return &Config{
			NumCPU:            1,
			Scheduler:         "fcfs",
			QuantumCycles:     1,
			BatchProcessFreq:  1,
			MinIns:            1,
			MaxIns:            1,
			MaxOverallMem:     1024,
			MemPerFrame:       64,
			MinMemPerProc:     64,
			MaxMemPerProc:     1024,
			ReplacementPolicy: "fifo",
		}
	}

	tests := []struct {
		name    string
		mutar   func(c *Config)
		wantErr bool
	}{
		{name: "válida", mutar: func(c *Config) {}},
		{name: "num-cpu cero", mutar: func(c *Config) { c.NumCPU = 0 }, wantErr: true},
		{name: "scheduler desconocido", mutar: func(c *Config) { c.Scheduler = "sjf" }, wantErr: true},
		{name: "quantum cero", mutar: func(c *Config) { c.QuantumCycles = 0 }, wantErr: true},
		{name: "batch-freq cero", mutar: func(c *Config) { c.BatchProcessFreq = 0 }, wantErr: true},
		{name: "min-ins cero", mutar: func(c *Config) { c.MinIns = 0 }, wantErr: true},
		{name: "max-ins menor a min-ins", mutar: func(c *Config) { c.MaxIns = 0 }, wantErr: true},
		{name: "mem-per-frame cero", mutar: func(c *Config) { c.MemPerFrame = 0 }, wantErr: true},
		{name: "frame no divide a la memoria", mutar: func(c *Config) { c.MemPerFrame = 100 }, wantErr: true},
		{name: "min-mem mayor a max-mem", mutar: func(c *Config) { c.MinMemPerProc = 2048 }, wantErr: true},
		{name: "política desconocida", mutar: func(c *Config) { c.ReplacementPolicy = "clock" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutar(cfg)
			err := cfg.Validar()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfigInvalida)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
