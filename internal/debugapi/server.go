package debugapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chattie/chattie/internal/middleware"
	"github.com/chattie/chattie/internal/observability"
	"github.com/chattie/chattie/internal/session"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Session is the part of a running session the debug API exposes.
type Session interface {
	Snapshot() session.Snapshot
	Reconnect(ctx context.Context) error
}

// Server serves health probes, Prometheus metrics and a JSON view of the
// local stores.
type Server struct {
	router  *mux.Router
	handler http.Handler
	health  *observability.HealthChecker
	metrics *observability.Metrics
	session Session
	logger  *zap.Logger
}

func New(health *observability.HealthChecker, metrics *observability.Metrics, sess Session, allowedOrigins []string, logger *zap.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		health:  health,
		metrics: metrics,
		session: sess,
		logger:  logger,
	}

	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.Timeout(requestTimeout))

	s.router.HandleFunc("/health", health.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", health.HandleReadiness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/live", health.HandleLiveness).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	debug := s.router.PathPrefix("/debug").Subrouter()
	debug.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	debug.HandleFunc("/reconnect", s.handleReconnect).Methods(http.MethodPost)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("debug server shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("debug server listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reconnect(r.Context()); err != nil {
		s.logger.Warn("manual reconnect failed", zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reconnected"})
}
