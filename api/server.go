// Package api exposes stored forecasts and on-demand forecasting over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sartorproj/revforecast/forecast"
	"github.com/sartorproj/revforecast/pipeline"
	"github.com/sartorproj/revforecast/store"
	"github.com/sartorproj/revforecast/timeseries"
)

// MaxHorizon caps the horizon of on-demand forecasts.
const MaxHorizon = 50

// Server serves the forecast API.
type Server struct {
	store    store.Store
	runner   *pipeline.Runner
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// NewServer creates a server. gatherer backs /metrics; nil uses the default
// registry.
func NewServer(st store.Store, runner *pipeline.Runner, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{store: st, runner: runner, logger: logger, gatherer: gatherer}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", s.handleLive).Methods(http.MethodGet)
	router.HandleFunc("/health/live", s.handleLive).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", s.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/entities", s.handleEntities).Methods(http.MethodGet)
	router.HandleFunc("/series/{type}/{name:.+}", s.handleGetSeries).Methods(http.MethodGet)
	router.HandleFunc("/forecasts/{type}/{name:.+}", s.handleGetForecasts).Methods(http.MethodGet)
	router.HandleFunc("/forecasts/{type}/{name:.+}", s.handleRunForecast).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
}

type forecastResponse struct {
	*forecast.Result
	Degraded bool `json:"degraded"`
}

type forecastRowsResponse struct {
	EntityID  string              `json:"entity_id"`
	Forecasts []store.ForecastRow `json:"forecasts"`
}

type seriesSummary struct {
	Count  int     `json:"count"`
	First  int     `json:"first_period"`
	Last   int     `json:"last_period"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

type seriesResponse struct {
	EntityID     string                   `json:"entity_id"`
	Observations []timeseries.Observation `json:"observations"`
	Summary      seriesSummary            `json:"summary"`
}

func summarize(series *timeseries.Series) seriesSummary {
	return seriesSummary{
		Count:  series.Len(),
		First:  series.Observations[0].Period,
		Last:   series.LastPeriod(),
		Mean:   series.Mean(),
		Std:    series.Std(),
		Min:    series.Min(),
		Median: series.Median(),
		Max:    series.Max(),
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("store not ready", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityFromPath(w, r)
	if !ok {
		return
	}

	series, err := s.store.ReadSeries(r.Context(), entity)
	if err != nil {
		s.writeError(w, r, err, entity.ID())
		return
	}
	s.writeJSON(w, http.StatusOK, seriesResponse{
		EntityID:     entity.ID(),
		Observations: series.Observations,
		Summary:      summarize(series),
	})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.store.ListEntities(r.Context())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if entities == nil {
		entities = []store.Entity{}
	}
	s.writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleGetForecasts(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityFromPath(w, r)
	if !ok {
		return
	}

	rows, err := s.store.ReadForecasts(r.Context(), entity)
	if err != nil {
		s.writeError(w, r, err, entity.ID())
		return
	}
	if len(rows) == 0 {
		s.writeError(w, r, store.ErrNotFound, entity.ID())
		return
	}
	s.writeJSON(w, http.StatusOK, forecastRowsResponse{EntityID: entity.ID(), Forecasts: rows})
}

func (s *Server) handleRunForecast(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.entityFromPath(w, r)
	if !ok {
		return
	}

	horizon := s.runner.Horizon()
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h > MaxHorizon {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:     "BAD_REQUEST",
				Message:  "horizon must be an integer no greater than " + strconv.Itoa(MaxHorizon),
				EntityID: entity.ID(),
			})
			return
		}
		horizon = h
	}

	result, err := s.runner.ForecastEntity(r.Context(), entity, horizon)
	if err != nil {
		s.writeError(w, r, err, entity.ID())
		return
	}
	s.writeJSON(w, http.StatusOK, forecastResponse{Result: result, Degraded: result.Degraded()})
}

func (s *Server) entityFromPath(w http.ResponseWriter, r *http.Request) (store.Entity, bool) {
	vars := mux.Vars(r)
	entity := store.Entity{Type: vars["type"], Name: vars["name"]}
	if err := entity.Validate(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:     "BAD_REQUEST",
			Message:  err.Error(),
			EntityID: entity.ID(),
		})
		return entity, false
	}
	return entity, true
}

// writeError maps domain errors to status codes: forecast errors use their
// code's status, unknown entities are 404, everything else is 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, entityID string) {
	var ferr *forecast.Error
	switch {
	case errors.As(err, &ferr):
		s.writeJSON(w, ferr.Code.HTTPStatus(), errorResponse{
			Code:     string(ferr.Code),
			Message:  ferr.Message,
			EntityID: ferr.EntityID,
		})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{
			Code:     "NOT_FOUND",
			Message:  "entity not found",
			EntityID: entityID,
		})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:     "INTERNAL",
			Message:  "internal error",
			EntityID: entityID,
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
