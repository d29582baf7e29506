package www

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pyralink/export"
	"pyralink/store"
)

// ExportRunner is what the manual re-export endpoint drives; satisfied by
// export.Orchestrator.
type ExportRunner interface {
	Run(ctx context.Context, orderNo, trigger string) (*export.Attempt, error)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func parseLimit(r *http.Request, def int) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// apiSequence exposes the counter state for operator reconciliation after a
// sequence alert.
func (h *Handlers) apiSequence(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.alloc.Current()
	resp := map[string]interface{}{"initialized": ok}
	if ok {
		resp["last_issued"] = cur
		resp["last_file"] = h.naming.FileName(cur)
	}
	writeJSON(w, resp)
}

func (h *Handlers) apiListExports(w http.ResponseWriter, r *http.Request) {
	entries, err := h.db.ListExportLog(parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.ExportLogEntry{}
	}
	writeJSON(w, entries)
}

func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.db.ListOrders()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	writeJSON(w, orders)
}

func (h *Handlers) apiOrderExports(w http.ResponseWriter, r *http.Request) {
	orderNo := chi.URLParam(r, "orderNo")
	entries, err := h.db.ListExportLogForOrder(orderNo, parseLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.ExportLogEntry{}
	}
	writeJSON(w, entries)
}

// apiTriggerExport runs one attempt outside the event flow. The pipeline
// still decides skip/export itself, so hitting this on an unchanged order is
// harmless.
func (h *Handlers) apiTriggerExport(w http.ResponseWriter, r *http.Request) {
	orderNo := chi.URLParam(r, "orderNo")
	if _, err := h.db.GetOrderByNo(orderNo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "unknown order "+orderNo)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	attempt, err := h.orch.Run(r.Context(), orderNo, "manual")
	if err != nil {
		h.log.Errorf("manual export for %s: %v", orderNo, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(attempt)
		return
	}
	writeJSON(w, attempt)
}
