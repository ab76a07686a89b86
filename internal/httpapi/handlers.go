package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"

	"github.com/runmetrics/runmetrics/internal/metrics"
	"github.com/runmetrics/runmetrics/internal/presenter"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 1 << 20

// MetricsCaller runs metric requests. *presenter.MetricsPresenter is the
// production implementation.
type MetricsCaller interface {
	Call(ctx context.Context, req presenter.MetricRequest) (*metrics.MetricResult, error)
}

// MetricsHandler serves the metric routes.
type MetricsHandler struct {
	metrics MetricsCaller
	logger  zerolog.Logger
	now     func() time.Time
	schema  []byte
}

// NewMetricsHandler creates the metric route handlers.
func NewMetricsHandler(caller MetricsCaller, logger zerolog.Logger) (*MetricsHandler, error) {
	schema, err := json.Marshal(jsonschema.Reflect(&QueryRequest{}))
	if err != nil {
		return nil, fmt.Errorf("failed to build request schema: %w", err)
	}

	return &MetricsHandler{
		metrics: caller,
		logger:  logger.With().Str("component", "metrics_handler").Logger(),
		now:     time.Now,
		schema:  schema,
	}, nil
}

// Routes mounts the handlers on r.
func (h *MetricsHandler) Routes(r chi.Router) {
	r.Get("/metrics/schema", h.Schema)
	r.Post("/metrics/query", h.Query)
	r.Get("/metrics/{kind}", h.Get)
}

// Get handles GET /api/v1/metrics/{kind}.
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := GetAuthenticatedToken(r.Context())
	if token == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	params, err := paramsFromQuery(r.URL.Query(), token.Scope, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.serve(w, r, presenter.MetricRequest{Kind: chi.URLParam(r, "kind"), Params: params})
}

// Query handles POST /api/v1/metrics/query.
func (h *MetricsHandler) Query(w http.ResponseWriter, r *http.Request) {
	token := GetAuthenticatedToken(r.Context())
	if token == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	h.serve(w, r, presenter.MetricRequest{Kind: body.Kind, Params: body.Params(token.Scope, h.now())})
}

// Schema handles GET /api/v1/metrics/schema.
func (h *MetricsHandler) Schema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.schema)
}

func (h *MetricsHandler) serve(w http.ResponseWriter, r *http.Request, req presenter.MetricRequest) {
	result, err := h.metrics.Call(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("kind", req.Kind).Msg("Metric query failed")
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
