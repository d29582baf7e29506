package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pyralink/export"
	"pyralink/logging"
	"pyralink/sequence"
	"pyralink/store"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db     *store.DB
	orch   ExportRunner
	alloc  *sequence.Allocator
	naming export.Naming
	log    logging.Logger
}

// NewRouter creates the chi router for the operator API.
func NewRouter(db *store.DB, orch ExportRunner, alloc *sequence.Allocator, naming export.Naming, log logging.Logger) http.Handler {
	h := &Handlers{db: db, orch: orch, alloc: alloc, naming: naming, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealth)
		r.Get("/sequence", h.apiSequence)
		r.Get("/exports", h.apiListExports)
		r.Get("/orders", h.apiListOrders)
		r.Get("/orders/{orderNo}/exports", h.apiOrderExports)
		r.Post("/orders/{orderNo}/export", h.apiTriggerExport)
	})

	return r
}
