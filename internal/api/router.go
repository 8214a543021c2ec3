package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ws "github.com/factumarket/audit-trail/internal/websocket"
)

// Store is the full read surface the router needs from the audit store.
type Store interface {
	AuditReader
	StatsReader
}

// NewRouter creates and configures the HTTP router for the audit read API.
// dlq and hub may be nil; their routes are simply not mounted.
func NewRouter(store Store, dlq DeadLetterQueue, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	auditHandler := NewAuditHandler(store)
	statsHandler := NewStatsHandler(store)

	r.Get("/health", HealthHandler())

	r.Route("/audit", func(r chi.Router) {
		r.Get("/", auditHandler.List)
		r.Get("/stats", statsHandler.Get)
		r.Get("/{entityID:[0-9]+}", auditHandler.GetByEntity)
	})

	if dlq != nil {
		dlqHandler := NewDeadLetterHandler(dlq)
		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", dlqHandler.List)
			r.Get("/stats", dlqHandler.Stats)
			r.Post("/replay", dlqHandler.Replay)
			r.Delete("/", dlqHandler.Purge)
		})
	}

	if hub != nil {
		r.Get("/ws", hub.HandleWebSocket)
	}

	return r
}

// corsMiddleware allows dashboard requests from other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
