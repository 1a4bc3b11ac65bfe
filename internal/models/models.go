package models

import (
	"encoding/json"
	"time"
)

// GeocodeResult is one entry of the OpenWeather direct geocoding response
type GeocodeResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
}

// CurrentWeather represents the OpenWeather 2.5 current weather response (standard units, Kelvin)
type CurrentWeather struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []WeatherCondition `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt       int64  `json:"dt"`
	Timezone int    `json:"timezone"` // shift in seconds from UTC
	Name     string `json:"name"`
}

type WeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Description returns the first condition description, or "" when none was sent
func (c *CurrentWeather) Description() string {
	if len(c.Weather) == 0 {
		return ""
	}
	return c.Weather[0].Description
}

// HourlyForecast is one element of the One Call 3.0 hourly series
type HourlyForecast struct {
	Dt        int64              `json:"dt"`
	Temp      float64            `json:"temp"`
	Pressure  int                `json:"pressure"`
	Humidity  int                `json:"humidity"`
	Clouds    int                `json:"clouds"`
	WindSpeed float64            `json:"wind_speed"`
	WindDeg   int                `json:"wind_deg"`
	Weather   []WeatherCondition `json:"weather"`
}

// OneCall represents the One Call 3.0 response, restricted to what the service reads
type OneCall struct {
	Lat            float64          `json:"lat"`
	Lon            float64          `json:"lon"`
	Timezone       string           `json:"timezone"`
	TimezoneOffset int              `json:"timezone_offset"`
	Hourly         []HourlyForecast `json:"hourly"`
}

// TimeMachine represents the One Call 3.0 timemachine response
type TimeMachine struct {
	Lat            float64          `json:"lat"`
	Lon            float64          `json:"lon"`
	Timezone       string           `json:"timezone"`
	TimezoneOffset int              `json:"timezone_offset"`
	Data           []HourlyForecast `json:"data"`
}

// Location represents a row of the locations table
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Country   string    `json:"country,omitempty"` // "" is stored as NULL
	UpdatedAt time.Time `json:"updated_at"`
}

// APIRequestLog is one audit row for an outbound call
type APIRequestLog struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	LocationID     int64           `json:"location_id"`
	RequestTime    time.Time       `json:"request_time"`
	Endpoint       string          `json:"endpoint"`
	Parameters     json.RawMessage `json:"parameters"`
	ResponseStatus int             `json:"response_status"`
	ResponseBody   string          `json:"response_body"`
}

// Observation represents a stored current-weather reading
type Observation struct {
	ID              int64     `json:"id"`
	LocationID      int64     `json:"location_id"`
	ObservationTime time.Time `json:"observation_time"`
	Temperature     int       `json:"temperature"` // whole degrees Celsius
	Clouds          int       `json:"clouds"`
	Humidity        int       `json:"humidity"`
	Pressure        int       `json:"pressure"`
	WindSpeed       float64   `json:"wind_speed"`
	WindDirection   int       `json:"wind_direction"`
	Description     string    `json:"description"`
	RawPayload      []byte    `json:"-"`
}

// HistoryPoint is the projection of an observation returned to clients
type HistoryPoint struct {
	Time        time.Time `json:"time"`
	Temp        int       `json:"temp"`
	Humidity    int       `json:"humidity"`
	Wind        float64   `json:"wind"`
	WindDir     int       `json:"windDir"`
	Pressure    int       `json:"pressure"`
	Clouds      int       `json:"clouds"`
	Description string    `json:"description"`
}

// ForecastPoint represents one forecasted hour
type ForecastPoint struct {
	LocationID       int64     `json:"-"`
	ForecastTime     time.Time `json:"time"`
	Temperature      float64   `json:"temp"` // Celsius, two decimals
	Humidity         int       `json:"humidity"`
	Pressure         int       `json:"pressure"`
	WindSpeed        float64   `json:"wind"`
	WindDirection    int       `json:"windDir"`
	Clouds           int       `json:"clouds"`
	GenerationMethod string    `json:"-"`
	ModelUsed        string    `json:"-"`
}

// BackfillPoint is one hour of reconstructed past weather
type BackfillPoint struct {
	Time     string  `json:"time"` // local wall clock at the location
	Temp     float64 `json:"temp"`
	Humidity int     `json:"humidity"`
	Wind     float64 `json:"wind"`
	WindDir  int     `json:"windDir"`
	Pressure int     `json:"pressure"`
	Clouds   int     `json:"clouds"`
}
