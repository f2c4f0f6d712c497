package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/config"
	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/simulation"
	"github.com/couchcryptid/storm-data-flood-service/internal/swmm"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes = 1 << 20

	// responseSlack is added to the engine timeout so a slow run can still
	// write its summary.
	responseSlack = 30 * time.Second
)

// SimulationService is what the REST surface needs from the simulation layer.
type SimulationService interface {
	sharedobs.ReadinessChecker
	Run(ctx context.Context, req domain.SimulationRequest) (domain.FloodSummary, error)
	Runs(ctx context.Context, limit int) ([]domain.RunRecord, error)
	RunByID(ctx context.Context, id string) (domain.RunRecord, error)
}

// Server exposes the simulation API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        SimulationService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the simulation, run history,
// /healthz, /readyz, and /metrics routes behind the CORS allow-list.
func NewServer(cfg *config.Config, svc SimulationService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      withCORS(cfg.CORSAllowedOrigins, mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.EngineTimeout + responseSlack,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		logger: logger,
	}

	mux.HandleFunc("POST /run-simulation", s.handleRunSimulation)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRunSimulation(w http.ResponseWriter, r *http.Request) {
	var req domain.SimulationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		status := http.StatusBadRequest
		if maxErr := new(http.MaxBytesError); errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, fmt.Errorf("decode request: %w", err))
		return
	}

	summary, err := s.svc.Run(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.RunByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, run)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeError(w, status, err)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, simulation.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, swmm.ErrEngineFailed),
		errors.Is(err, swmm.ErrInvalidOutput),
		errors.Is(err, simulation.ErrResultsUnreadable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
