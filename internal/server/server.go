package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"weatherdesk/internal/auth"
	"weatherdesk/internal/logger"
	"weatherdesk/internal/models"
	"weatherdesk/internal/ratelimit"
	"weatherdesk/internal/weather"
)

const (
	msgCityNotFound = "city not found"
	msgServerError  = "server error"
)

// WeatherRequest is the body of both weather routes
type WeatherRequest struct {
	Location string `json:"location" validate:"omitempty,max=100"`
}

// Ingester runs the weather flows on behalf of a user
type Ingester interface {
	Ingest(ctx context.Context, userID int64, location string) (*weather.Report, error)
	Backfill(ctx context.Context, userID int64, location string) ([]models.BackfillPoint, error)
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	weather    Ingester
	db         Pinger
	validate   *validator.Validate
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer creates a new HTTP server. Weather routes run behind
// authentication, body validation and then the rate limiter, so only
// well-formed requests use up quota.
func NewServer(svc Ingester, db Pinger, verifier *auth.Verifier, limiter *ratelimit.Limiter) *Server {
	s := &Server{
		weather:  svc,
		db:       db,
		validate: validator.New(),
		mux:      http.NewServeMux(),
	}

	protect := func(h http.HandlerFunc) http.Handler {
		return requireMethod(http.MethodPost, verifier.Middleware(s.decodeBody(limiter.Middleware(h))))
	}

	// Register routes
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.Handle("/weather", protect(s.handleWeather))
	s.mux.Handle("/weather/history", protect(s.handleWeatherHistory))

	return s
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.requestContext(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logger.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]string{
		"status": status,
		"time":   time.Now().UTC().String(),
	})
}

// handleWeather ingests current weather, history and forecast for a place
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	identity, req, ok := s.decode(w, r)
	if !ok {
		return
	}

	// a client disconnect must not abort the flow half way
	ctx := context.WithoutCancel(r.Context())
	report, err := s.weather.Ingest(ctx, identity.ID, req.Location)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleWeatherHistory reconstructs the last 24 hours from the provider
func (s *Server) handleWeatherHistory(w http.ResponseWriter, r *http.Request) {
	identity, req, ok := s.decode(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	points, err := s.weather.Backfill(ctx, identity.ID, req.Location)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, points)
}

type requestKey struct{}

// decodeBody parses and validates the weather request before it is counted
func (s *Server) decodeBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req WeatherRequest

		// an empty body asks for the default location
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "location must be at most 100 characters")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestKey{}, req)))
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*auth.Identity, WeatherRequest, bool) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, auth.ErrMissingToken.Error())
		return nil, WeatherRequest{}, false
	}

	req, _ := r.Context().Value(requestKey{}).(WeatherRequest)
	return identity, req, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, weather.ErrCityNotFound) {
		writeError(w, http.StatusNotFound, msgCityNotFound)
		return
	}

	logger.FromContext(r.Context()).Error("weather request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
