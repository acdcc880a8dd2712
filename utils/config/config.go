package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

var ErrConfigInvalida = errors.New("configuración inválida")

// Config es el snapshot de configuración del emulador. Se carga una sola vez
// en initialize y después nadie lo muta.
type Config struct {
	NumCPU            int    `json:"num_cpu"`
	Scheduler         string `json:"scheduler"`
	QuantumCycles     uint32 `json:"quantum_cycles"`
	BatchProcessFreq  uint64 `json:"batch_process_freq"`
	MinIns            uint32 `json:"min_ins"`
	MaxIns            uint32 `json:"max_ins"`
	DelaysPerExec     uint32 `json:"delays_per_exec"`
	MaxOverallMem     uint32 `json:"max_overall_mem"`
	MemPerFrame       uint32 `json:"mem_per_frame"`
	MinMemPerProc     uint32 `json:"min_mem_per_proc"`
	MaxMemPerProc     uint32 `json:"max_mem_per_proc"`
	ReplacementPolicy string `json:"replacement_policy"`
}

// Cargar lee un config.txt de pares clave/valor separados por blancos.
// Una clave desconocida consume y descarta el token siguiente.
func Cargar(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error al abrir el archivo de configuración: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	scanner.Split(bufio.ScanWords)

	leerToken := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}

	for scanner.Scan() {
		clave := scanner.Text()
		valor, ok := leerToken()
		if !ok {
			return nil, fmt.Errorf("%w: la clave %q no tiene valor", ErrConfigInvalida, clave)
		}

		if err := cfg.asignar(clave, valor); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error al leer el archivo de configuración: %w", err)
	}

	return cfg, nil
}

func (c *Config) asignar(clave, valor string) error {
	var err error
	switch clave {
	case "num-cpu":
		_, err = fmt.Sscanf(valor, "%d", &c.NumCPU)
	case "scheduler":
		c.Scheduler = valor
	case "quantum-cycles":
		_, err = fmt.Sscanf(valor, "%d", &c.QuantumCycles)
	case "batch-process-freq":
		_, err = fmt.Sscanf(valor, "%d", &c.BatchProcessFreq)
	case "min-ins":
		_, err = fmt.Sscanf(valor, "%d", &c.MinIns)
	case "max-ins":
		_, err = fmt.Sscanf(valor, "%d", &c.MaxIns)
	case "delays-per-exec":
		_, err = fmt.Sscanf(valor, "%d", &c.DelaysPerExec)
	case "max-overall-mem":
		_, err = fmt.Sscanf(valor, "%d", &c.MaxOverallMem)
	case "mem-per-frame":
		_, err = fmt.Sscanf(valor, "%d", &c.MemPerFrame)
	case "min-mem-per-proc":
		_, err = fmt.Sscanf(valor, "%d", &c.MinMemPerProc)
	case "max-mem-per-proc":
		_, err = fmt.Sscanf(valor, "%d", &c.MaxMemPerProc)
	case "replacement-policy":
		c.ReplacementPolicy = valor
	default:
		// Clave desconocida: el valor ya fue consumido, se descarta.
	}

	if err != nil {
		return fmt.Errorf("%w: valor %q inválido para la clave %q", ErrConfigInvalida, valor, clave)
	}
	return nil
}

// Validar aplica los rangos del enunciado. Si falla, el emulador no se
// inicializa y no queda estado creado.
func (c *Config) Validar() error {
	if c.NumCPU < 1 {
		return fmt.Errorf("%w: num-cpu debe ser >= 1", ErrConfigInvalida)
	}
	if c.Scheduler != "fcfs" && c.Scheduler != "rr" {
		return fmt.Errorf("%w: scheduler %q no reconocido (fcfs|rr)", ErrConfigInvalida, c.Scheduler)
	}
	if c.QuantumCycles < 1 {
		return fmt.Errorf("%w: quantum-cycles debe ser >= 1", ErrConfigInvalida)
	}
	if c.BatchProcessFreq < 1 {
		return fmt.Errorf("%w: batch-process-freq debe ser >= 1", ErrConfigInvalida)
	}
	if c.MinIns < 1 || c.MaxIns < c.MinIns {
		return fmt.Errorf("%w: se requiere max-ins >= min-ins >= 1", ErrConfigInvalida)
	}
	if c.MemPerFrame == 0 {
		return fmt.Errorf("%w: mem-per-frame debe ser > 0", ErrConfigInvalida)
	}
	if c.MaxOverallMem == 0 || c.MaxOverallMem%c.MemPerFrame != 0 {
		return fmt.Errorf("%w: mem-per-frame debe dividir a max-overall-mem", ErrConfigInvalida)
	}
	if c.MinMemPerProc > c.MaxMemPerProc {
		return fmt.Errorf("%w: se requiere max-mem-per-proc >= min-mem-per-proc", ErrConfigInvalida)
	}
	if c.ReplacementPolicy != "fifo" && c.ReplacementPolicy != "lru" {
		return fmt.Errorf("%w: replacement-policy %q no reconocida (fifo|lru)", ErrConfigInvalida, c.ReplacementPolicy)
	}
	return nil
}
