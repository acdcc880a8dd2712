// Package api expone los snapshots de consulta del emulador por HTTP. Es una
// superficie de solo lectura: la admisión de procesos sigue siendo in-process.
package api

import (
	"log/slog"
	"net/http"

	"github.com/anthonyandrei/CSOPESY-MO2/internal/planificadores"
)

type Handler struct {
	Log      *slog.Logger
	Servicio *planificadores.Service
}

func NewHandler(servicio *planificadores.Service, logger *slog.Logger) *Handler {
	return &Handler{
		Log:      logger,
		Servicio: servicio,
	}
}

// RegistrarRutas monta los endpoints de monitoreo en el mux.
func (h *Handler) RegistrarRutas(mux *http.ServeMux) {
	mux.HandleFunc("/monitor/vmstat", h.ConsultarVMStat)
	mux.HandleFunc("/monitor/procesos", h.ConsultarProcesos)
	mux.HandleFunc("/monitor/utilizacion", h.ConsultarUtilizacion)
}
