package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Server is the observability HTTP endpoint: a JSON plugin roster and an SSE
// stream of roster changes.
type Server struct {
	registry *Registry
	log      zerolog.Logger
	http     *http.Server
}

// NewServer builds a Server bound to addr, routed with gorilla/mux the same
// way the rest of this codebase's ambient debug/HTTP surfaces are.
func NewServer(addr string, registry *Registry, log zerolog.Logger) *Server {
	s := &Server{registry: registry, log: log.With().Str("component", "observability").Logger()}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/plugins", s.handlePlugins).Methods(http.MethodGet)
	router.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// ListenAndServe blocks until the server stops, which only happens via
// Shutdown or a listener failure. It never returns http.ErrServerClosed as
// an error from a clean shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("observability: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight SSE streams
// and requests to end or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("globibot gateway observability endpoint"))
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.registry.List()); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode plugin roster")
	}
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.registry.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.log.Warn().Err(err).Msg("failed to encode sse update")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
