package weather

import (
	"fmt"
	"math"
	"time"

	"weatherdesk/internal/api"
	"weatherdesk/internal/models"
)

const absoluteZero = 273.15

// KelvinToCelsius rounds to whole degrees, the precision observations are stored at
func KelvinToCelsius(k float64) int {
	return int(math.Round(k - absoluteZero))
}

// KelvinToCelsius2 keeps two decimals, used for forecast and backfill points
func KelvinToCelsius2(k float64) float64 {
	return math.Round((k-absoluteZero)*100) / 100
}

// Icon picks a sky symbol from cloud cover percentage
func Icon(clouds int) string {
	switch {
	case clouds < 20:
		return "☀"
	case clouds < 80:
		return "⛅"
	default:
		return "☁"
	}
}

// LocalTime shifts t by a UTC offset in seconds. The result carries the UTC
// location, so formatting it prints the wall clock at the place.
func LocalTime(t time.Time, offsetSeconds int) time.Time {
	return t.UTC().Add(time.Duration(offsetSeconds) * time.Second)
}

// ForecastPoints takes hours 1 through 24 of the series; index 0 is the current hour
func ForecastPoints(locationID int64, hourly []models.HourlyForecast) ([]models.ForecastPoint, error) {
	if len(hourly) < ForecastHours+1 {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrMalformedForecast, len(hourly), ForecastHours+1)
	}

	points := make([]models.ForecastPoint, 0, ForecastHours)
	for _, h := range hourly[1 : ForecastHours+1] {
		points = append(points, models.ForecastPoint{
			LocationID:       locationID,
			ForecastTime:     time.Unix(h.Dt, 0).UTC(),
			Temperature:      KelvinToCelsius2(h.Temp),
			Humidity:         h.Humidity,
			Pressure:         h.Pressure,
			WindSpeed:        h.WindSpeed,
			WindDirection:    h.WindDeg,
			Clouds:           h.Clouds,
			GenerationMethod: generationMethod,
			ModelUsed:        api.ProviderName,
		})
	}
	return points, nil
}
