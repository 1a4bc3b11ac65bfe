package commentary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"weatherdesk/internal/logger"
	"weatherdesk/internal/metrics"
	"weatherdesk/internal/models"
)

// Placeholder is shown whenever commentary could not be produced
const Placeholder = "Commentary is currently unavailable."

// Completer turns a prompt into model text. api.ClaudeClient satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is either generated text or a degraded outcome with the reason
type Result struct {
	Text     string
	Degraded bool
	Reason   string
}

// String returns the text to display; never empty
func (r Result) String() string {
	if r.Degraded || r.Text == "" {
		return Placeholder
	}
	return r.Text
}

func degraded(reason string) Result {
	return Result{Degraded: true, Reason: reason}
}

// Generator narrates a forecast. It never returns an error: every failure
// becomes a degraded Result.
type Generator struct {
	completer Completer
	breaker   *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the circuit around the completer
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 60 * time.Second}
}

// NewGenerator wraps completer in a circuit breaker. A nil completer means
// commentary is disabled and every call degrades.
func NewGenerator(completer Completer, settings BreakerSettings) *Generator {
	if settings.ConsecutiveFailures == 0 {
		settings = DefaultBreakerSettings()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "commentary",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Generator{completer: completer, breaker: breaker}
}

// Generate makes exactly one attempt to narrate the forecast for city
func (g *Generator) Generate(ctx context.Context, city string, forecast []models.ForecastPoint) Result {
	result := g.generate(ctx, city, forecast)

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
		logger.FromContext(ctx).Warn("commentary degraded",
			zap.String("city", city),
			zap.String("reason", result.Reason),
		)
	}
	metrics.CommentaryTotal.WithLabelValues(outcome).Inc()

	return result
}

func (g *Generator) generate(ctx context.Context, city string, forecast []models.ForecastPoint) Result {
	if g.completer == nil {
		return degraded("commentary disabled")
	}

	prompt, err := BuildPrompt(city, forecast)
	if err != nil {
		return degraded(err.Error())
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.completer.Complete(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return degraded("circuit open")
		}
		return degraded(err.Error())
	}

	text, _ := out.(string)
	if text == "" {
		return degraded("empty completion")
	}

	return Result{Text: text}
}

// BuildPrompt embeds the city and the serialized forecast points
func BuildPrompt(city string, forecast []models.ForecastPoint) (string, error) {
	data, err := json.Marshal(forecast)
	if err != nil {
		return "", fmt.Errorf("failed to serialize forecast: %w", err)
	}

	return fmt.Sprintf(
		"You are a friendly weather presenter. Here is the hourly forecast for the next 24 hours in %s "+
			"(temperatures in °C, wind in m/s, pressure in hPa, clouds in %%):\n%s\n\n"+
			"Write a short commentary (3-4 sentences) describing how the weather will change "+
			"and what people in %s should prepare for.",
		city, data, city,
	), nil
}
