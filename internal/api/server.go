// Package api exposes the orchestrator's command surface over HTTP. The chat
// gateway is the primary command source in production; this API serves
// operational tooling and local development.
package api

import (
	"net/http"
	"time"

	"github.com/audioroom/maestro/internal/log"
	"github.com/audioroom/maestro/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server routes HTTP commands to the orchestrator.
type Server struct {
	orch          *orchestrator.Orchestrator
	ratePerMinute int
}

// NewServer creates the API server.
func NewServer(orch *orchestrator.Orchestrator, ratePerMinute int) *Server {
	if ratePerMinute < 1 {
		ratePerMinute = 120
	}
	return &Server{orch: orch, ratePerMinute: ratePerMinute}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(s.ratePerMinute, time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/rooms/{roomID}", func(r chi.Router) {
		r.Post("/play", s.handlePlay)
		r.Post("/skip", s.handleSkip)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/stop", s.handleStop)
		r.Post("/loop", s.handleLoop)
		r.Post("/shuffle", s.handleShuffle)
		r.Post("/volume", s.handleVolume)
		r.Post("/filter", s.handleFilter)
		r.Post("/remove", s.handleRemove)
		r.Post("/move", s.handleMove)
		r.Post("/disconnect", s.handleDisconnect)
		r.Get("/queue", s.handleQueue)
		r.Get("/now", s.handleNow)
	})

	return r
}

// requestID attaches a request ID to the context and response for log
// correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.orch.Registry().Len(),
	})
}
