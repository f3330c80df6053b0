package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/richard-senior/football-analyzer/internal/logger"
	"github.com/richard-senior/football-analyzer/pkg/analyzer"
	"github.com/richard-senior/football-analyzer/pkg/league"
	"github.com/richard-senior/football-analyzer/pkg/poisson"
	"github.com/richard-senior/football-analyzer/pkg/store"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	// maxBodyBytes bounds request bodies
	maxBodyBytes = 1 << 16
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	analyzer *analyzer.Analyzer
	leagues  *league.Table
	engine   *poisson.Engine
	// history may be nil when no database is configured
	history  *store.History
}

// NewHandler creates a new handler
func NewHandler(a *analyzer.Analyzer, history *store.History) *Handler {
	engine := a.Engine
	if engine == nil {
		engine = poisson.NewEngine(poisson.DefaultMaxGoals)
	}
	return &Handler{analyzer: a, leagues: a.Leagues, engine: engine, history: history}
}

// NewRouter mounts the handlers with logging, recovery, a request timeout and CORS
func NewRouter(h *Handler, allowedOrigins []string, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/predict", h.Predict)
		r.Post("/analyze", h.Analyze)
		r.Get("/predictions", h.ListPredictions)
		r.Get("/predictions/{id}", h.GetPrediction)
	})
	return r
}

// requestLogger logs each request through the package logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info(fmt.Sprintf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond)))
	})
}

// Serve runs the API on addr until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, addr string, handler http.Handler, writeTimeout time.Duration) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "football-analyzer",
		"history": h.history != nil,
	})
}

// PredictRequest gives either the expected goals directly, or the four
// per match averages of the teams together with their league
type PredictRequest struct {
	LambdaHome   *float64 `json:"lambda_home"`
	LambdaAway   *float64 `json:"lambda_away"`
	HomeScored   *float64 `json:"home_scored"`
	HomeConceded *float64 `json:"home_conceded"`
	AwayScored   *float64 `json:"away_scored"`
	AwayConceded *float64 `json:"away_conceded"`
	League       string   `json:"league"`
}

// PredictResponse is the model output for a pair of rates
type PredictResponse struct {
	Baseline *poisson.LeagueBaseline  `json:"baseline,omitempty"`
	Rates    poisson.ExpectedGoalRates `json:"rates"`
	Summary  *poisson.Summary          `json:"summary"`
	Decision poisson.Decision          `json:"decision"`
}

// rates resolves the request to expected goals
func (h *Handler) rates(req *PredictRequest) (poisson.ExpectedGoalRates, *poisson.LeagueBaseline, error) {
	if req.LambdaHome != nil || req.LambdaAway != nil {
		if req.LambdaHome == nil || req.LambdaAway == nil {
			return poisson.ExpectedGoalRates{}, nil, errors.New("lambda_home and lambda_away must be given together")
		}
		return poisson.ExpectedGoalRates{Home: *req.LambdaHome, Away: *req.LambdaAway}, nil, nil
	}
	if req.HomeScored == nil || req.HomeConceded == nil || req.AwayScored == nil || req.AwayConceded == nil {
		return poisson.ExpectedGoalRates{}, nil, errors.New("give lambda_home and lambda_away, or all four of home_scored, home_conceded, away_scored and away_conceded")
	}
	for _, v := range []float64{*req.HomeScored, *req.HomeConceded, *req.AwayScored, *req.AwayConceded} {
		if v < 0 {
			return poisson.ExpectedGoalRates{}, nil, errors.New("goal averages must not be negative")
		}
	}
	leagueName := req.League
	if leagueName == "" {
		leagueName = analyzer.DefaultLeague
	}
	b := h.leagues.Lookup(leagueName)
	return poisson.Calibrate(*req.HomeScored, *req.HomeConceded, *req.AwayScored, *req.AwayConceded, b), &b, nil
}

// Predict runs the model on posted rates or averages
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	rates, baseline, err := h.rates(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, summary, err := h.engine.Predict(rates.Home, rates.Away)
	var rateErr *poisson.InvalidRateError
	if errors.As(err, &rateErr) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, PredictResponse{
		Baseline: baseline,
		Rates:    rates,
		Summary:  summary,
		Decision: poisson.Decide(summary),
	})
}

// AnalyzeRequest names a fixture either as fields or as free text
type AnalyzeRequest struct {
	Home   string `json:"home"`
	Away   string `json:"away"`
	League string `json:"league"`
	Text   string `json:"text"`
}

// Analyze looks up team statistics and predicts the fixture
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var (
		a   *analyzer.Analysis
		err error
	)
	switch {
	case req.Text != "":
		a, err = h.analyzer.AnalyzeText(r.Context(), req.Text)
	case req.Home != "" && req.Away != "":
		a, err = h.analyzer.Analyze(r.Context(), req.Home, req.Away, req.League)
	default:
		respondError(w, http.StatusBadRequest, "give home and away, or text")
		return
	}

	if errors.Is(err, analyzer.ErrUnparseableRequest) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "analysis timed out")
		return
	}
	if err != nil {
		logger.Error("analysis failed:", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// ListPredictions returns the latest stored predictions
func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxLimit))
			return
		}
		limit = n
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*store.PredictionRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"predictions": records})
}

// GetPrediction returns one stored prediction
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}
	rec, err := h.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "prediction not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to write response:", err)
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
