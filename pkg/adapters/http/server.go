package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var rawSpec []byte

// Engine is the part of the triage engine the HTTP surface needs.
type Engine interface {
	Run(ctx context.Context, req triage.RunRequest) (*triage.RunResult, error)
	Checkpoint(ctx context.Context, executionID string) (*domain.State, error)
	Topology() triage.Topology
}

// Server serves the triage REST API.
type Server struct {
	Engine  Engine
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
// Requests to documented operations are validated against the embedded OpenAPI document.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	server := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	validator, err := newValidator(rawSpec)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(validator.middleware)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if server.metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.metrics)
	}

	r.Post("/runs", server.CreateRun)
	r.Get("/runs/{executionID}", server.GetRun)
	r.Get("/graph", server.GetGraph)
	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Triage API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error       string `json:"error"`
	ExecutionID string `json:"execution_id,omitempty"`
	Node        string `json:"node,omitempty"`
}

// CreateRun handles POST /runs.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body triage.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("CreateRun: invalid request body", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := s.Engine.Run(r.Context(), body)
	if err != nil {
		resp := ErrorResponse{Error: err.Error()}
		if result != nil {
			resp.ExecutionID = result.ExecutionID
		}
		var nerr *domain.NodeError
		if errors.As(err, &nerr) {
			resp.Node = nerr.Node
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("CreateRun failed", "visit_id", body.VisitID, "error", err)
		} else {
			s.logger.Warn("CreateRun rejected", "visit_id", body.VisitID, "error", err)
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetRun handles GET /runs/{executionID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "executionID")
	state, err := s.Engine.Checkpoint(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("GetRun failed", "execution_id", id, "error", err)
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error(), ExecutionID: id})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Topology())
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := loadSpec(rawSpec); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "triage-http",
		"version":     strings.TrimSpace(triage.Version),
		"api_version": apiVersion,
	})
}

// statusFor maps workflow errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *domain.ValidationError
	var nerr *domain.NodeError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVisitNotFound), errors.Is(err, domain.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLocked):
		return http.StatusConflict
	case errors.As(err, &nerr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
