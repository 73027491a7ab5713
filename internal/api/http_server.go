package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldhire/internal/config"
	"fieldhire/internal/dispatch"
	"fieldhire/internal/domain"
	"fieldhire/internal/export"
	"fieldhire/internal/metrics"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the dispatch engine over HTTP. Routing is prefix based;
// booking actions are sub-paths of the booking id.
type HTTPServer struct {
	cfg         config.APIConfig
	repo        domain.Repository
	router      *dispatch.Router
	coordinator *dispatch.Coordinator
	lifecycle   *dispatch.Lifecycle
	resolver    *dispatch.Resolver
	exporter    *export.Exporter
	server      *http.Server
	auth        *HTTPAuth
	logger      *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	repo domain.Repository,
	router *dispatch.Router,
	coordinator *dispatch.Coordinator,
	lifecycle *dispatch.Lifecycle,
	resolver *dispatch.Resolver,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:         cfg,
		repo:        repo,
		router:      router,
		coordinator: coordinator,
		lifecycle:   lifecycle,
		resolver:    resolver,
		exporter:    exporter,
		logger:      logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	apiMux.HandleFunc("/api/v1/bookings/", srv.handleBookingAction)
	apiMux.HandleFunc("/api/v1/requests/open", srv.handleOpenRequests)
	apiMux.HandleFunc("/api/v1/damage-reports/", srv.handleDamageReportAction)
	apiMux.HandleFunc("/api/v1/resources", srv.handleResources)
	apiMux.HandleFunc("/api/v1/export", srv.handleExport)

	root := http.NewServeMux()
	root.HandleFunc("/health", srv.handleHealth)
	root.Handle("/api/v1/", srv.auth.Wrap(apiMux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bookingPath splits "/api/v1/bookings/{id}[/{action}]" into its parts.
func bookingPath(path string) (id, action string, ok bool) {
	rest := strings.TrimPrefix(path, "/api/v1/bookings/")
	if rest == path || rest == "" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	case 3:
		// dispute/resolve is the only two-segment action
		if parts[1] == "dispute" && parts[2] == "resolve" {
			return parts[0], "dispute/resolve", true
		}
	}
	return "", "", false
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.IncHTTP(endpointLabel(r.URL.Path))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel collapses booking ids out of the path so the metric
// cardinality stays bounded.
func endpointLabel(path string) string {
	if id, action, ok := bookingPath(path); ok && id != "" {
		if action == "" {
			return "/api/v1/bookings/{id}"
		}
		return "/api/v1/bookings/{id}/" + action
	}
	if strings.HasPrefix(path, "/api/v1/damage-reports/") {
		return "/api/v1/damage-reports/{id}/resolve"
	}
	return path
}

// writeDispatchError maps engine errors onto HTTP statuses. Conflict
// warnings carry the conflicting bookings so the client can confirm.
func writeDispatchError(w http.ResponseWriter, err error) {
	var conflictErr *dispatch.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     conflictErr.Error(),
			"conflicts": conflictErr.Conflicts,
			"hint":      "repeat the request with confirm_conflicts=true to accept anyway",
		})
	case errors.Is(err, dispatch.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrQuantityExceeded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrResourceUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
