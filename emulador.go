package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/anthonyandrei/CSOPESY-MO2/cmd/api"
	"github.com/anthonyandrei/CSOPESY-MO2/internal"
	"github.com/anthonyandrei/CSOPESY-MO2/internal/memoria"
	"github.com/anthonyandrei/CSOPESY-MO2/internal/planificadores"
	"github.com/anthonyandrei/CSOPESY-MO2/pkg/monitor"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/config"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

const (
	rutaBackingStore = "csopesy-backing-store.txt"
	rutaReporte      = "csopesy-log.txt"
)

// emulador junta las piezas que arma initialize. Antes de initialize solo
// funcionan help y exit.
type emulador struct {
	servicio *planificadores.Service
	admin    *memoria.Administrador
	monitor  *monitor.Monitor
}

func main() {
	rutaConfig := flag.String("config", "config.txt", "ruta del archivo de configuración")
	puertoMonitor := flag.Int("puerto-monitor", 8090, "puerto del API de monitoreo")
	nivelLog := flag.String("log", "info", "nivel de log (debug|info|warn|error)")
	flag.Parse()

	logger := log.BuildLogger(*nivelLog)

	fmt.Println("=====================================")
	fmt.Println("          CSOPESY OS Emulator        ")
	fmt.Println("=====================================")
	fmt.Println("Type 'initialize' to start or 'help' for commands.")
	fmt.Println()

	var emu *emulador
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		entrada := strings.TrimSpace(scanner.Text())
		if entrada == "" {
			continue
		}

		cmd, resto := parsearComando(entrada)

		if cmd == "exit" {
			break
		}
		if cmd == "help" {
			mostrarAyuda()
			continue
		}
		if cmd == "initialize" {
			if emu != nil {
				fmt.Println("Already initialized.")
				continue
			}
			nuevo, err := inicializar(*rutaConfig, *puertoMonitor, *nivelLog == "debug", logger)
			if err != nil {
				fmt.Println(err)
				continue
			}
			emu = nuevo
			fmt.Println("Initialized.")
			continue
		}

		if emu == nil {
			fmt.Println("Emulator not initialized.")
			continue
		}
		emu.manejarComando(cmd, resto, scanner)
	}

	if emu != nil {
		emu.servicio.Detener()
		emu.admin.Cerrar()
	}
}

func inicializar(rutaConfig string, puertoMonitor int, verbose bool, logger *slog.Logger) (*emulador, error) {
	cfg, err := config.Cargar(rutaConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validar(); err != nil {
		return nil, err
	}

	if verbose {
		_, _ = pp.Println(cfg)
	}

	admin, err := memoria.NewAdministrador(cfg.MaxOverallMem, cfg.MemPerFrame,
		cfg.ReplacementPolicy, rutaBackingStore, logger)
	if err != nil {
		return nil, err
	}

	servicio := planificadores.NewService(cfg, admin, os.Stdout, logger)
	servicio.IniciarHiloPlanificador()

	handler := api.NewHandler(servicio, logger)
	mux := http.NewServeMux()
	handler.RegistrarRutas(mux)
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", puertoMonitor), mux); err != nil {
			logger.Error("Error en el server de monitoreo", log.ErrAttr(err))
		}
	}()

	return &emulador{
		servicio: servicio,
		admin:    admin,
		monitor:  monitor.NewMonitor("127.0.0.1", puertoMonitor, logger),
	}, nil
}

func (e *emulador) manejarComando(cmd, resto string, scanner *bufio.Scanner) {
	switch cmd {
	case "screen":
		e.manejarScreen(resto, scanner)
	case "scheduler-start":
		e.servicio.IniciarGeneracion()
	case "scheduler-stop":
		e.servicio.DetenerGeneracion()
	case "report-util":
		e.reporteUtilizacion()
	case "process-smi":
		e.processSMI()
	case "vmstat":
		e.vmstat()
	default:
		fmt.Println("Unknown command")
	}
}

// ============================================================================
// screen
// ============================================================================

func (e *emulador) manejarScreen(parametros string, scanner *bufio.Scanner) {
	sub, resto := parsearComando(parametros)

	switch sub {
	case "-s":
		campos := strings.Fields(resto)
		if len(campos) != 2 {
			fmt.Println("invalid memory allocation")
			return
		}
		tamanio, err := strconv.ParseUint(campos[1], 10, 32)
		if err != nil {
			fmt.Println("invalid memory allocation")
			return
		}
		if _, err := e.servicio.CrearProcesoManual(campos[0], uint32(tamanio)); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("Process %s created.\n", campos[0])

	case "-c":
		nombre, tamanio, codigo, err := parsearScreenC(resto)
		if err != nil {
			fmt.Println(err)
			return
		}
		instrucciones, err := parsearInstrucciones(codigo)
		if err != nil {
			fmt.Println(err)
			return
		}
		if _, err := e.servicio.CrearProcesoScript(nombre, tamanio, instrucciones); err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("Process %s created.\n", nombre)

	case "-r":
		e.adjuntarProceso(strings.TrimSpace(resto), scanner)

	case "-ls":
		util := e.servicio.Utilizacion()
		fmt.Printf("CPU Utilization: %.2f%%\n", util.Porcentaje)
		fmt.Println("Processes:")
		for _, p := range e.servicio.ListadoProcesos() {
			fmt.Printf("%s [%s]\n", p.Nombre, p.Estado)
		}

	default:
		fmt.Println("Unknown command")
	}
}

// adjuntarProceso es el sub-shell de screen -r: muestra el PCB a pedido
// hasta que el usuario sale.
func (e *emulador) adjuntarProceso(nombre string, scanner *bufio.Scanner) {
	if _, err := e.servicio.BuscarProceso(nombre); err != nil {
		fmt.Println("process not found")
		return
	}

	fmt.Printf("Attached to %s\n", nombre)
	for {
		fmt.Printf("%s> ", nombre)
		if !scanner.Scan() {
			return
		}
		cmd := strings.TrimSpace(scanner.Text())

		switch cmd {
		case "process-smi":
			vista, err := e.servicio.VistaProceso(nombre)
			if err != nil {
				fmt.Println("process not found")
				return
			}
			imprimirVistaPCB(vista)
		case "exit":
			return
		}
	}
}

func imprimirVistaPCB(vista planificadores.VistaPCB) {
	fmt.Printf("PID: %d\n", vista.PID)
	fmt.Printf("State: %s\n", vista.Estado)
	fmt.Printf("Instruction: %d/%d\n", vista.InstruccionActual, vista.TotalInstrucciones)

	fmt.Println("\nVariables:")
	for nombre, valor := range vista.Variables {
		fmt.Printf("  %s = %d\n", nombre, valor)
	}

	fmt.Println("\nExecution log:")
	for i := len(vista.UltimasLineasLog) - 1; i >= 0; i-- {
		fmt.Printf("  %s\n", vista.UltimasLineasLog[i])
	}

	if vista.MensajeViolacion != "" {
		fmt.Println("\nViolation:")
		fmt.Printf("  %s\n", vista.LineaFault)
		fmt.Printf("  %s\n", vista.MensajeViolacion)
	}
}

// ============================================================================
// Reportes
// ============================================================================

// reporteUtilizacion arma csopesy-log.txt consultando el API de monitoreo.
func (e *emulador) reporteUtilizacion() {
	util, err := e.monitor.ObtenerUtilizacion()
	if err != nil {
		fmt.Println("report failed:", err)
		return
	}
	listado, err := e.monitor.ObtenerProcesos()
	if err != nil {
		fmt.Println("report failed:", err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CPU Utilization: %.2f%%\n", util.Porcentaje)
	for _, p := range listado {
		fmt.Fprintf(&sb, "%s [%s]\n", p.Nombre, p.Estado)
	}

	if err := os.WriteFile(rutaReporte, []byte(sb.String()), 0644); err != nil {
		fmt.Println("report failed:", err)
		return
	}
	fmt.Println("Report saved.")
}

func (e *emulador) processSMI() {
	util := e.servicio.Utilizacion()
	mem := e.servicio.ResumenDeMemoria()

	fmt.Println("PROCESS-SMI")
	fmt.Println("-----------")
	fmt.Printf("CPU Utilization: %.2f%% (%d used, %d available)\n\n",
		util.Porcentaje, util.CoresUsados, util.CoresDisponibles)

	fmt.Println("Memory Summary:")
	fmt.Printf("  Total: %s\n", formatearBytes(mem.Total))
	fmt.Printf("  Used : %s\n", formatearBytes(mem.Usada))
	fmt.Printf("  Free : %s\n\n", formatearBytes(mem.Libre))

	fmt.Printf("%-6s%-20s%-14s%-14s\n", "PID", "NAME", "VM-SIZE", "RSS")
	fmt.Println(strings.Repeat("-", 54))
	for _, p := range e.servicio.ListadoMemoria() {
		fmt.Printf("%-6d%-20s%-14s%-14s\n",
			p.PID, p.Nombre, formatearBytes(p.VMSize), formatearBytes(p.RSS))
	}
	fmt.Println()
}

func (e *emulador) vmstat() {
	stats := e.servicio.EstadisticasVM()

	fmt.Println("VMSTAT")
	fmt.Println("------")
	fmt.Printf("Total memory   : %d bytes (%s)\n", stats.Memoria.Total, formatearBytes(stats.Memoria.Total))
	fmt.Printf("Used memory    : %d bytes (%s)\n", stats.Memoria.Usada, formatearBytes(stats.Memoria.Usada))
	fmt.Printf("Free memory    : %d bytes (%s)\n\n", stats.Memoria.Libre, formatearBytes(stats.Memoria.Libre))

	fmt.Printf("Idle cpu ticks : %d\n", stats.TicksOciosos)
	fmt.Printf("Active cpu ticks: %d\n", stats.TicksActivos)
	fmt.Printf("Total cpu ticks : %d\n", stats.TicksTotales)
	fmt.Printf("CPU Utilization : %.2f%%\n\n", e.servicio.Utilizacion().Porcentaje)

	fmt.Printf("Num paged in   : %d\n", stats.PaginasTraidas)
	fmt.Printf("Num paged out  : %d\n\n", stats.PaginasSacadas)
}

// ============================================================================
// Parseo de comandos
// ============================================================================

func parsearComando(entrada string) (string, string) {
	partes := strings.SplitN(strings.TrimSpace(entrada), " ", 2)
	if len(partes) == 1 {
		return partes[0], ""
	}
	return partes[0], strings.TrimSpace(partes[1])
}

// parsearScreenC separa nombre, tamaño y el string de instrucciones entre
// comillas de un screen -c.
func parsearScreenC(resto string) (string, uint32, string, error) {
	campos := strings.SplitN(resto, " ", 3)
	if len(campos) != 3 {
		return "", 0, "", planificadores.ErrInstruccionesInvalidas
	}

	tamanio, err := strconv.ParseUint(strings.TrimSpace(campos[1]), 10, 32)
	if err != nil {
		return "", 0, "", planificadores.ErrMemoriaInvalida
	}

	codigo := strings.TrimSpace(campos[2])
	if len(codigo) < 2 || codigo[0] != '"' || codigo[len(codigo)-1] != '"' {
		return "", 0, "", planificadores.ErrInstruccionesInvalidas
	}
	return campos[0], uint32(tamanio), codigo[1 : len(codigo)-1], nil
}

// parsearInstrucciones convierte el string separado por ';' en la lista de
// instrucciones que consume la admisión. PRINT toma el resto de la línea como
// único argumento (sin las comillas, si las tiene).
func parsearInstrucciones(codigo string) ([]internal.Instruccion, error) {
	instrucciones := make([]internal.Instruccion, 0)

	for _, linea := range strings.Split(codigo, ";") {
		linea = strings.TrimSpace(linea)
		if linea == "" {
			continue
		}

		op, resto := parsearComando(linea)
		ins := internal.Instruccion{Op: op}

		if op == internal.OpPrint {
			if resto != "" {
				ins.Args = []string{pelarComillas(resto)}
			}
		} else if resto != "" {
			ins.Args = strings.Fields(resto)
		}

		instrucciones = append(instrucciones, ins)
	}

	if len(instrucciones) == 0 {
		return nil, planificadores.ErrInstruccionesInvalidas
	}
	return instrucciones, nil
}

func pelarComillas(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func formatearBytes(bytes uint32) string {
	const (
		kb = 1024.0
		mb = kb * 1024.0
		gb = mb * 1024.0
	)
	b := float64(bytes)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GB", b/gb)
	case b >= mb:
		return fmt.Sprintf("%.2f MB", b/mb)
	case b >= kb:
		return fmt.Sprintf("%.2f KB", b/kb)
	default:
		return fmt.Sprintf("%.2f B", b)
	}
}

func mostrarAyuda() {
	fmt.Println("\nAvailable Commands")
	fmt.Println("------------------")
	fmt.Println("initialize")
	fmt.Println("screen -s <name> <memsize>")
	fmt.Println("screen -c <name> <memsize> \"<instructions>\"")
	fmt.Println("screen -r <name>")
	fmt.Println("screen -ls")
	fmt.Println("scheduler-start")
	fmt.Println("scheduler-stop")
	fmt.Println("report-util")
	fmt.Println("process-smi")
	fmt.Println("vmstat")
	fmt.Println("exit")
	fmt.Println()
	fmt.Println("Inside screen:")
	fmt.Println("  process-smi")
	fmt.Println("  exit")
	fmt.Println()
}
