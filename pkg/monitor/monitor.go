// Package monitor es el cliente HTTP del API de monitoreo del emulador. Lo
// consume report-util para armar el reporte de utilización sin tocar las
// estructuras internas del planificador.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthonyandrei/CSOPESY-MO2/internal/planificadores"
	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

type Monitor struct {
	IP     string
	Puerto int
	Log    *slog.Logger
}

func NewMonitor(ip string, puerto int, logger *slog.Logger) *Monitor {
	return &Monitor{
		IP:     ip,
		Puerto: puerto,
		Log:    logger,
	}
}

// ObtenerUtilizacion consulta la utilización instantánea de CPU.
func (m *Monitor) ObtenerUtilizacion() (planificadores.UtilizacionCPU, error) {
	var util planificadores.UtilizacionCPU
	err := m.obtener("/monitor/utilizacion", &util)
	return util, err
}

// ObtenerProcesos consulta el listado de procesos con su estado.
func (m *Monitor) ObtenerProcesos() ([]planificadores.ProcesoResumen, error) {
	var listado []planificadores.ProcesoResumen
	err := m.obtener("/monitor/procesos", &listado)
	return listado, err
}

// ObtenerVMStat consulta el snapshot de memoria, ticks y paginación.
func (m *Monitor) ObtenerVMStat() (planificadores.VMStat, error) {
	var stats planificadores.VMStat
	err := m.obtener("/monitor/vmstat", &stats)
	return stats, err
}

func (m *Monitor) obtener(ruta string, destino any) error {
	url := fmt.Sprintf("http://%s:%d%s", m.IP, m.Puerto, ruta)

	resp, err := http.Get(url)
	if err != nil {
		m.Log.Error("Error al consultar el API de monitoreo",
			log.ErrAttr(err),
			log.StringAttr("url", url),
		)
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		m.Log.Error("El API de monitoreo respondió con error",
			log.StringAttr("url", url),
			log.IntAttr("status_code", resp.StatusCode),
		)
		return fmt.Errorf("el monitor respondió con status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(destino); err != nil {
		m.Log.Error("Error al decodificar la respuesta del monitor",
			log.ErrAttr(err),
			log.StringAttr("url", url),
		)
		return err
	}
	return nil
}
