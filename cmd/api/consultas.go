package api

import (
	"encoding/json"
	"net/http"

	"github.com/anthonyandrei/CSOPESY-MO2/utils/log"
)

// ConsultarVMStat responde el snapshot de memoria, ticks y paginación.
func (h *Handler) ConsultarVMStat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats := h.Servicio.EstadisticasVM()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.Log.ErrorContext(ctx, "Error al codificar la respuesta de vmstat", log.ErrAttr(err))
		http.Error(w, "error al codificar la respuesta", http.StatusInternalServerError)
		return
	}

	h.Log.DebugContext(ctx, "Consulta de vmstat respondida",
		log.Uint64Attr("ticks_totales", stats.TicksTotales),
	)
}

// ConsultarProcesos responde el listado de procesos con su estado.
func (h *Handler) ConsultarProcesos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listado := h.Servicio.ListadoProcesos()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listado); err != nil {
		h.Log.ErrorContext(ctx, "Error al codificar el listado de procesos", log.ErrAttr(err))
		http.Error(w, "error al codificar la respuesta", http.StatusInternalServerError)
		return
	}

	h.Log.DebugContext(ctx, "Listado de procesos respondido",
		log.IntAttr("procesos", len(listado)),
	)
}

// ConsultarUtilizacion responde la utilización instantánea de CPU con la
// definición estricta: un core esperando una página no cuenta como usado.
func (h *Handler) ConsultarUtilizacion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	util := h.Servicio.Utilizacion()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(util); err != nil {
		h.Log.ErrorContext(ctx, "Error al codificar la utilización", log.ErrAttr(err))
		http.Error(w, "error al codificar la respuesta", http.StatusInternalServerError)
		return
	}

	h.Log.DebugContext(ctx, "Utilización respondida",
		log.IntAttr("cores_usados", util.CoresUsados),
	)
}
