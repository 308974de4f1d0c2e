package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/duplex/pkg/websocket"
)

// SessionLister reports the registered websocket sessions.
// *websocket.Upgrader implements it.
type SessionLister interface {
	Sessions() []websocket.SessionInfo
}

// AdminHandler returns the admin router.
//
//	GET /healthz   200 "ok", 503 once shutdown has begun
//	GET /metrics   Prometheus exposition
//	GET /sessions  JSON array of session names and connection counts
func (s *Server) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog: slogErrorLog{s},
	}))
	r.Get("/sessions", s.handleSessions)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.isClosed() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("shutting down\n"))
		return
	}
	w.Write([]byte("ok\n"))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	infos := []websocket.SessionInfo{}
	if s.sessions != nil {
		infos = append(infos, s.sessions.Sessions()...)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		s.logger.Debug("sessions write failed", "error", err)
	}
}

func (s *Server) startAdmin() error {
	ln, err := net.Listen("tcp", s.config.AdminAddress)
	if err != nil {
		return fmt.Errorf("server: admin listen %s: %w", s.config.AdminAddress, err)
	}

	srv := &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.admin = srv
	s.mu.Unlock()

	s.logger.Info("admin listening", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", "error", err)
		}
	}()
	return nil
}

// slogErrorLog adapts the server logger to promhttp.Logger.
type slogErrorLog struct{ s *Server }

func (l slogErrorLog) Println(v ...interface{}) {
	l.s.logger.Error("metrics handler", "error", fmt.Sprint(v...))
}
