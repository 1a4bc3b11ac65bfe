package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"weatherdesk/internal/api"
	"weatherdesk/internal/commentary"
	"weatherdesk/internal/logger"
	"weatherdesk/internal/models"
	"weatherdesk/internal/security"
)

const (
	HistoryWindow  = 24 * time.Hour
	ForecastHours  = 24
	BackfillHours  = 24
	backfillPacing = time.Second

	generationMethod = "api"
	displayLayout    = "02.01.2006, 15:04:05"
	backfillLayout   = "15:04:05"
)

var (
	// ErrCityNotFound means the geocoder had no match for the requested place
	ErrCityNotFound = errors.New("city not found")
	// ErrMalformedForecast means the hourly series is too short to cover the next 24 hours
	ErrMalformedForecast = errors.New("hourly forecast has too few entries")
)

// Client is the subset of the OpenWeather client the service drives
type Client interface {
	Geocode(ctx context.Context, query string) (*models.GeocodeResult, *api.Call, error)
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*models.CurrentWeather, *api.Call, error)
	GetHourlyForecast(ctx context.Context, lat, lon float64) (*models.OneCall, *api.Call, error)
	GetHistorical(ctx context.Context, lat, lon float64, dt int64) (*models.TimeMachine, *api.Call, error)
}

// Store is the persistence the flow writes to
type Store interface {
	UpsertLocation(ctx context.Context, name string, lat, lon float64, country string) (int64, error)
	LogAPIRequest(ctx context.Context, entry *models.APIRequestLog) error
	StoreObservation(ctx context.Context, obs *models.Observation) error
	GetObservationHistory(ctx context.Context, locationID int64, since time.Time) ([]models.HistoryPoint, error)
	StoreForecastPoints(ctx context.Context, points []models.ForecastPoint) error
}

// Commentator narrates a forecast and never fails
type Commentator interface {
	Generate(ctx context.Context, city string, forecast []models.ForecastPoint) commentary.Result
}

// Report is the unified response of one ingestion
type Report struct {
	City       string                 `json:"city"`
	Temp       int                    `json:"temp"`
	Humidity   int                    `json:"humidity"`
	Wind       float64                `json:"wind"`
	WindDir    int                    `json:"windDir"`
	Pressure   int                    `json:"pressure"`
	Clouds     int                    `json:"clouds"`
	Time       string                 `json:"time"`
	Icon       string                 `json:"icon"`
	History    []models.HistoryPoint  `json:"history"`
	Forecast   []models.ForecastPoint `json:"forecast"`
	Commentary string                 `json:"commentary"`
	Timezone   int                    `json:"timezone"`
}

// Service runs the weather ingestion flow
type Service struct {
	client          Client
	store           Store
	commentator     Commentator
	defaultLocation string
	now             func() time.Time
	pacer           *rate.Limiter
}

type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPacer overrides the limiter spacing backfill calls
func WithPacer(l *rate.Limiter) Option {
	return func(s *Service) { s.pacer = l }
}

func NewService(client Client, store Store, commentator Commentator, defaultLocation string, opts ...Option) *Service {
	s := &Service{
		client:          client,
		store:           store,
		commentator:     commentator,
		defaultLocation: defaultLocation,
		now:             time.Now,
		// one timemachine call per second, shared by every backfill in the process
		pacer: rate.NewLimiter(rate.Every(backfillPacing), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest fetches, stores and reports current weather, history and forecast for a place
func (s *Service) Ingest(ctx context.Context, userID int64, location string) (*Report, error) {
	log := logger.FromContext(ctx)

	geo, locationID, err := s.resolve(ctx, location)
	if err != nil {
		return nil, err
	}

	current, call, err := s.client.GetCurrentWeather(ctx, geo.Lat, geo.Lon)
	if auditErr := s.audit(ctx, userID, locationID, call, nil); auditErr != nil {
		return nil, auditErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current weather: %w", err)
	}

	now := s.now().UTC()
	obs := &models.Observation{
		LocationID:      locationID,
		ObservationTime: now,
		Temperature:     KelvinToCelsius(current.Main.Temp),
		Clouds:          current.Clouds.All,
		Humidity:        current.Main.Humidity,
		Pressure:        current.Main.Pressure,
		WindSpeed:       current.Wind.Speed,
		WindDirection:   current.Wind.Deg,
		Description:     current.Description(),
		RawPayload:      callBody(call),
	}
	if err := s.store.StoreObservation(ctx, obs); err != nil {
		return nil, err
	}

	history, err := s.store.GetObservationHistory(ctx, locationID, now.Add(-HistoryWindow))
	if err != nil {
		return nil, err
	}

	forecast, err := s.forecast(ctx, userID, locationID, geo)
	if err != nil {
		return nil, err
	}

	city := current.Name
	if city == "" {
		city = geo.Name
	}
	comment := s.commentator.Generate(ctx, city, forecast)

	log.Info("weather ingested",
		zap.String("city", city),
		zap.Int64("location_id", locationID),
		zap.Int("history", len(history)),
		zap.Bool("commentary_degraded", comment.Degraded),
	)

	return &Report{
		City:       city,
		Temp:       obs.Temperature,
		Humidity:   obs.Humidity,
		Wind:       obs.WindSpeed,
		WindDir:    obs.WindDirection,
		Pressure:   obs.Pressure,
		Clouds:     obs.Clouds,
		Time:       LocalTime(now, current.Timezone).Format(displayLayout),
		Icon:       Icon(obs.Clouds),
		History:    history,
		Forecast:   forecast,
		Commentary: comment.String(),
		Timezone:   current.Timezone,
	}, nil
}

func (s *Service) forecast(ctx context.Context, userID, locationID int64, geo *models.GeocodeResult) ([]models.ForecastPoint, error) {
	oneCall, call, err := s.client.GetHourlyForecast(ctx, geo.Lat, geo.Lon)
	if auditErr := s.audit(ctx, userID, locationID, call, nil); auditErr != nil {
		return nil, auditErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hourly forecast: %w", err)
	}

	points, err := ForecastPoints(locationID, oneCall.Hourly)
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreForecastPoints(ctx, points); err != nil {
		return nil, err
	}
	return points, nil
}

// Backfill reconstructs the last 24 hours hour by hour from the timemachine endpoint
func (s *Service) Backfill(ctx context.Context, userID int64, location string) ([]models.BackfillPoint, error) {
	geo, locationID, err := s.resolve(ctx, location)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	points := []models.BackfillPoint{}
	offset, offsetKnown := 0, false

	for i := BackfillHours; i >= 0; i-- {
		if err := s.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("backfill interrupted: %w", err)
		}

		dt := now - int64(i)*3600
		tm, call, err := s.client.GetHistorical(ctx, geo.Lat, geo.Lon, dt)
		if auditErr := s.audit(ctx, userID, locationID, call, map[string]any{"dt": dt}); auditErr != nil {
			return nil, auditErr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch historical weather at %d: %w", dt, err)
		}
		if len(tm.Data) == 0 {
			continue
		}

		// the first answer fixes the offset for the whole series
		if !offsetKnown {
			offset, offsetKnown = tm.TimezoneOffset, true
		}

		h := tm.Data[0]
		points = append(points, models.BackfillPoint{
			Time:     LocalTime(time.Unix(dt, 0), offset).Format(backfillLayout),
			Temp:     KelvinToCelsius2(h.Temp),
			Humidity: h.Humidity,
			Wind:     h.WindSpeed,
			WindDir:  h.WindDeg,
			Pressure: h.Pressure,
			Clouds:   h.Clouds,
		})
	}

	logger.FromContext(ctx).Info("history backfilled",
		zap.String("city", geo.Name),
		zap.Int("points", len(points)),
	)
	return points, nil
}

// resolve sanitizes the place name, geocodes it and upserts the location
func (s *Service) resolve(ctx context.Context, location string) (*models.GeocodeResult, int64, error) {
	name := security.SanitizeString(location)
	if name == "" {
		name = s.defaultLocation
	}

	geo, _, err := s.client.Geocode(ctx, name)
	if err != nil {
		if errors.Is(err, api.ErrNoResults) {
			return nil, 0, ErrCityNotFound
		}
		return nil, 0, fmt.Errorf("failed to geocode %q: %w", name, err)
	}

	locationID, err := s.store.UpsertLocation(ctx, geo.Name, geo.Lat, geo.Lon, geo.Country)
	if err != nil {
		return nil, 0, err
	}

	return geo, locationID, nil
}

// audit records one outbound call; params defaults to the call's query parameters
func (s *Service) audit(ctx context.Context, userID, locationID int64, call *api.Call, params map[string]any) error {
	if call == nil {
		return nil
	}

	var raw []byte
	var err error
	if params != nil {
		raw, err = json.Marshal(params)
	} else {
		raw, err = json.Marshal(call.Params)
	}
	if err != nil {
		return fmt.Errorf("failed to encode request parameters: %w", err)
	}

	return s.store.LogAPIRequest(ctx, &models.APIRequestLog{
		UserID:         userID,
		LocationID:     locationID,
		RequestTime:    s.now().UTC(),
		Endpoint:       call.URL,
		Parameters:     raw,
		ResponseStatus: call.StatusCode,
		ResponseBody:   string(call.Body),
	})
}

func callBody(call *api.Call) []byte {
	if call == nil || !json.Valid(call.Body) {
		return nil
	}
	return call.Body
}
