package weather

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"weatherdesk/internal/api"
	"weatherdesk/internal/models"
)

type fakeClient struct {
	mu sync.Mutex

	places    map[string]models.GeocodeResult // keyed by lower-cased query
	current   *models.CurrentWeather
	currentEr error
	hourly    []models.HourlyForecast
	hourlyEr  error
	history   func(dt int64) *models.TimeMachine

	geocodeQueries []string
	currentCalls   int
	forecastCalls  int
	historyCalls   []int64
}

func (f *fakeClient) Geocode(_ context.Context, query string) (*models.GeocodeResult, *api.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geocodeQueries = append(f.geocodeQueries, query)

	call := &api.Call{URL: "geo/direct?q=" + query, StatusCode: 200}
	geo, ok := f.places[strings.ToLower(query)]
	if !ok {
		call.Body = []byte("[]")
		return nil, call, api.ErrNoResults
	}
	return &geo, call, nil
}

func (f *fakeClient) GetCurrentWeather(_ context.Context, lat, lon float64) (*models.CurrentWeather, *api.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentCalls++

	call := &api.Call{
		URL:        "data/2.5/weather?appid=REDACTED",
		Params:     map[string]string{"lat": "1", "lon": "2"},
		StatusCode: 200,
		Body:       []byte(`{"name":"fake"}`),
	}
	if f.currentEr != nil {
		call.StatusCode = 401
		call.Body = []byte(`{"cod":401,"message":"Invalid API key"}`)
		return nil, call, f.currentEr
	}
	cw := *f.current
	return &cw, call, nil
}

func (f *fakeClient) GetHourlyForecast(_ context.Context, lat, lon float64) (*models.OneCall, *api.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecastCalls++

	call := &api.Call{URL: "data/3.0/onecall?appid=REDACTED", StatusCode: 200, Body: []byte(`{}`)}
	if f.hourlyEr != nil {
		call.StatusCode = 500
		return nil, call, f.hourlyEr
	}
	return &models.OneCall{Lat: lat, Lon: lon, Hourly: f.hourly}, call, nil
}

func (f *fakeClient) GetHistorical(_ context.Context, lat, lon float64, dt int64) (*models.TimeMachine, *api.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls = append(f.historyCalls, dt)

	call := &api.Call{URL: "data/3.0/onecall/timemachine?appid=REDACTED", StatusCode: 200, Body: []byte(`{}`)}
	return f.history(dt), call, nil
}

// hourlySeries returns n hourly entries starting at the hour containing now
func hourlySeries(now time.Time, n int) []models.HourlyForecast {
	base := now.Truncate(time.Hour)
	series := make([]models.HourlyForecast, n)
	for i := range series {
		series[i] = models.HourlyForecast{
			Dt:        base.Add(time.Duration(i) * time.Hour).Unix(),
			Temp:      280.15 + float64(i)/10,
			Humidity:  60,
			Pressure:  1012,
			Clouds:    i * 4,
			WindSpeed: 3.1,
			WindDeg:   180,
		}
	}
	return series
}

type fakeStore struct {
	mu sync.Mutex

	locations    []models.Location
	logs         []models.APIRequestLog
	observations []models.Observation
	forecasts    []models.ForecastPoint
	historySince []time.Time

	observationErr error
}

func (s *fakeStore) UpsertLocation(_ context.Context, name string, lat, lon float64, country string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.locations {
		loc := &s.locations[i]
		if loc.Name != name {
			continue
		}
		if math.Abs(loc.Latitude-lat) > 0.0001 || math.Abs(loc.Longitude-lon) > 0.0001 || loc.Country != country {
			loc.Latitude, loc.Longitude, loc.Country = lat, lon, country
		}
		return loc.ID, nil
	}

	id := int64(len(s.locations) + 1)
	s.locations = append(s.locations, models.Location{ID: id, Name: name, Latitude: lat, Longitude: lon, Country: country})
	return id, nil
}

func (s *fakeStore) LogAPIRequest(_ context.Context, entry *models.APIRequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *fakeStore) StoreObservation(_ context.Context, obs *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observationErr != nil {
		return s.observationErr
	}
	obs.ID = int64(len(s.observations) + 1)
	s.observations = append(s.observations, *obs)
	return nil
}

func (s *fakeStore) GetObservationHistory(_ context.Context, locationID int64, since time.Time) ([]models.HistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historySince = append(s.historySince, since)

	var matched []models.Observation
	for _, o := range s.observations {
		if o.LocationID == locationID && !o.ObservationTime.Before(since) {
			matched = append(matched, o)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ObservationTime.Before(matched[j].ObservationTime)
	})

	points := []models.HistoryPoint{}
	for _, o := range matched {
		points = append(points, models.HistoryPoint{
			Time: o.ObservationTime, Temp: o.Temperature, Humidity: o.Humidity, Wind: o.WindSpeed,
			WindDir: o.WindDirection, Pressure: o.Pressure, Clouds: o.Clouds, Description: o.Description,
		})
	}
	return points, nil
}

func (s *fakeStore) StoreForecastPoints(_ context.Context, points []models.ForecastPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts = append(s.forecasts, points...)
	return nil
}
