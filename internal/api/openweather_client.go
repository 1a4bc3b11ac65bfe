package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"weatherdesk/internal/logger"
	"weatherdesk/internal/metrics"
	"weatherdesk/internal/models"
)

const (
	ProviderName = "openweathermap"

	defaultGeocodingURL = "https://api.openweathermap.org/geo/1.0"
	defaultDataURL      = "https://api.openweathermap.org/data"

	geocodeEndpoint     = "/direct"
	currentEndpoint     = "/2.5/weather"
	oneCallEndpoint     = "/3.0/onecall"
	timeMachineEndpoint = "/3.0/onecall/timemachine"

	defaultTimeout = 10 * time.Second
	userAgent      = "weatherdesk/1.0"
	redacted       = "REDACTED"
)

// ErrNoResults is returned when the geocoder has no match for the query
var ErrNoResults = errors.New("no geocoding results")

// OpenWeatherClient is a client for the OpenWeather geocoding, current weather and One Call APIs
type OpenWeatherClient struct {
	client       *resty.Client
	apiKey       string
	geocodingURL string
	dataURL      string
}

// OpenWeatherConfig configures endpoints and the HTTP timeout; empty values take defaults
type OpenWeatherConfig struct {
	APIKey       string
	GeocodingURL string
	DataURL      string
	Timeout      time.Duration
}

// Call describes one outbound HTTP exchange so callers can audit it.
// StatusCode is 0 when no response was received.
type Call struct {
	URL        string
	Params     map[string]string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// APIError represents a non-2xx answer from OpenWeather
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OpenWeather API error (status %d): %s", e.StatusCode, e.Message)
}

// NewOpenWeatherClient creates a new OpenWeather API client. Requests are never retried.
func NewOpenWeatherClient(cfg OpenWeatherConfig) *OpenWeatherClient {
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = defaultGeocodingURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = defaultDataURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)

	return &OpenWeatherClient{
		client:       client,
		apiKey:       cfg.APIKey,
		geocodingURL: strings.TrimRight(cfg.GeocodingURL, "/"),
		dataURL:      strings.TrimRight(cfg.DataURL, "/"),
	}
}

// BuildURL renders the request URL for auditing, with the API key redacted
func (c *OpenWeatherClient) BuildURL(base, endpoint string, params map[string]string) string {
	values := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, params[k])
	}
	values.Set("appid", redacted)
	return base + endpoint + "?" + values.Encode()
}

// Geocode resolves a free-text place name to its best match
func (c *OpenWeatherClient) Geocode(ctx context.Context, query string) (*models.GeocodeResult, *Call, error) {
	params := map[string]string{
		"q":     query,
		"limit": "1",
	}

	call, err := c.get(ctx, c.geocodingURL, geocodeEndpoint, "geocode", params)
	if err != nil {
		return nil, call, err
	}

	var results []models.GeocodeResult
	if err := json.Unmarshal(call.Body, &results); err != nil {
		return nil, call, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, call, ErrNoResults
	}

	return &results[0], call, nil
}

// GetCurrentWeather fetches instantaneous conditions (Kelvin) for the coordinates
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, lat, lon float64) (*models.CurrentWeather, *Call, error) {
	call, err := c.get(ctx, c.dataURL, currentEndpoint, "weather", coordParams(lat, lon))
	if err != nil {
		return nil, call, err
	}

	var weather models.CurrentWeather
	if err := json.Unmarshal(call.Body, &weather); err != nil {
		return nil, call, fmt.Errorf("failed to decode current weather response: %w", err)
	}
	if weather.Main.Temp <= 0 {
		return nil, call, fmt.Errorf("current weather response has no temperature")
	}

	return &weather, call, nil
}

// GetHourlyForecast fetches the One Call hourly series (Kelvin) for the coordinates
func (c *OpenWeatherClient) GetHourlyForecast(ctx context.Context, lat, lon float64) (*models.OneCall, *Call, error) {
	params := coordParams(lat, lon)
	params["exclude"] = "current,minutely,daily,alerts"

	call, err := c.get(ctx, c.dataURL, oneCallEndpoint, "onecall", params)
	if err != nil {
		return nil, call, err
	}

	var forecast models.OneCall
	if err := json.Unmarshal(call.Body, &forecast); err != nil {
		return nil, call, fmt.Errorf("failed to decode hourly forecast response: %w", err)
	}

	return &forecast, call, nil
}

// GetHistorical fetches the observed conditions at unix time dt
func (c *OpenWeatherClient) GetHistorical(ctx context.Context, lat, lon float64, dt int64) (*models.TimeMachine, *Call, error) {
	params := coordParams(lat, lon)
	params["dt"] = strconv.FormatInt(dt, 10)

	call, err := c.get(ctx, c.dataURL, timeMachineEndpoint, "timemachine", params)
	if err != nil {
		return nil, call, err
	}

	var tm models.TimeMachine
	if err := json.Unmarshal(call.Body, &tm); err != nil {
		return nil, call, fmt.Errorf("failed to decode timemachine response: %w", err)
	}

	return &tm, call, nil
}

func (c *OpenWeatherClient) get(ctx context.Context, base, endpoint, name string, params map[string]string) (*Call, error) {
	call := &Call{
		URL:    c.BuildURL(base, endpoint, params),
		Params: params,
	}

	if c.apiKey == "" {
		return call, fmt.Errorf("OpenWeather API key is not configured")
	}

	query := make(map[string]string, len(params)+1)
	for k, v := range params {
		query[k] = v
	}
	query["appid"] = c.apiKey

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(base + endpoint)
	call.Duration = time.Since(start)

	if resp != nil && resp.RawResponse != nil {
		call.StatusCode = resp.StatusCode()
		call.Body = resp.Body()
	}
	metrics.RecordUpstream(ProviderName, name, call.StatusCode, call.Duration)

	logger.FromContext(ctx).Debug("openweather call",
		zap.String("endpoint", name),
		zap.Int("status", call.StatusCode),
		zap.Duration("duration", call.Duration),
	)

	if err != nil {
		return call, fmt.Errorf("failed to call %s: %w", name, err)
	}
	if !resp.IsSuccess() {
		return call, parseOpenWeatherError(call)
	}

	return call, nil
}

func parseOpenWeatherError(call *Call) error {
	var apiError struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(call.Body, &apiError); err == nil && apiError.Message != "" {
		return &APIError{StatusCode: call.StatusCode, Message: apiError.Message}
	}
	return &APIError{
		StatusCode: call.StatusCode,
		Message:    fmt.Sprintf("request failed with status %d", call.StatusCode),
	}
}

func coordParams(lat, lon float64) map[string]string {
	return map[string]string{
		"lat": strconv.FormatFloat(lat, 'f', -1, 64),
		"lon": strconv.FormatFloat(lon, 'f', -1, 64),
	}
}
