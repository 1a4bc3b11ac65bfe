package weather

import (
	"errors"
	"testing"
	"time"
)

func TestKelvinToCelsius(t *testing.T) {
	tests := []struct {
		k    float64
		want int
	}{
		{273.15, 0},
		{293.9, 21},
		{293.4, 20},
		{263.15, -10},
		{0, -273},
	}
	for _, tt := range tests {
		if got := KelvinToCelsius(tt.k); got != tt.want {
			t.Errorf("KelvinToCelsius(%v) = %v, want %v", tt.k, got, tt.want)
		}
	}
}

func TestKelvinToCelsius2(t *testing.T) {
	tests := []struct {
		k    float64
		want float64
	}{
		{273.15, 0},
		{285.678, 12.53},
		{270.0, -3.15},
	}
	for _, tt := range tests {
		if got := KelvinToCelsius2(tt.k); got != tt.want {
			t.Errorf("KelvinToCelsius2(%v) = %v, want %v", tt.k, got, tt.want)
		}
	}
}

func TestIcon(t *testing.T) {
	tests := []struct {
		clouds int
		want   string
	}{
		{0, "☀"},
		{19, "☀"},
		{20, "⛅"},
		{79, "⛅"},
		{80, "☁"},
		{100, "☁"},
	}
	for _, tt := range tests {
		if got := Icon(tt.clouds); got != tt.want {
			t.Errorf("Icon(%d) = %v, want %v", tt.clouds, got, tt.want)
		}
	}
}

func TestLocalTime(t *testing.T) {
	utc := time.Date(2024, 12, 31, 23, 15, 0, 0, time.UTC)

	tests := []struct {
		offset int
		want   string
	}{
		{0, "31.12.2024, 23:15:00"},
		{3600, "01.01.2025, 00:15:00"},
		{-18000, "31.12.2024, 18:15:00"},
		{19800, "01.01.2025, 04:45:00"},
	}
	for _, tt := range tests {
		if got := LocalTime(utc, tt.offset).Format(displayLayout); got != tt.want {
			t.Errorf("LocalTime(offset %d) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}

func TestForecastPoints(t *testing.T) {
	series := hourlySeries(fixedNow, 48)

	points, err := ForecastPoints(3, series)
	if err != nil {
		t.Fatalf("ForecastPoints() error = %v", err)
	}
	if len(points) != 24 {
		t.Fatalf("len(points) = %d, want 24", len(points))
	}
	if got := points[0].ForecastTime.Unix(); got != series[1].Dt {
		t.Errorf("first point = %d, want index 1 (%d)", got, series[1].Dt)
	}
	if got := points[23].ForecastTime.Unix(); got != series[24].Dt {
		t.Errorf("last point = %d, want index 24 (%d)", got, series[24].Dt)
	}
	if points[0].Temperature != 7.1 {
		t.Errorf("Temperature = %v, want 7.1", points[0].Temperature)
	}
}

func TestForecastPoints_TooShort(t *testing.T) {
	_, err := ForecastPoints(1, hourlySeries(fixedNow, 24))
	if !errors.Is(err, ErrMalformedForecast) {
		t.Errorf("ForecastPoints() error = %v, want ErrMalformedForecast", err)
	}
}
