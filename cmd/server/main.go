package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"weatherdesk/internal/api"
	"weatherdesk/internal/auth"
	"weatherdesk/internal/commentary"
	"weatherdesk/internal/config"
	"weatherdesk/internal/database"
	"weatherdesk/internal/logger"
	"weatherdesk/internal/ratelimit"
	"weatherdesk/internal/retention"
	"weatherdesk/internal/server"
	"weatherdesk/internal/weather"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Config file %s not found, using defaults", *configPath)
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	secrets := config.GetSecrets()
	if secrets.UsesDefaultJWTSecret() {
		zl.Warn("JWT_SECRET not set, using the development secret")
	}
	if secrets.OpenWeatherAPIKey == "" {
		zl.Warn("OPENWEATHER_API_KEY not set, weather requests will fail")
	}

	// Initialize database
	db, err := database.NewDB(config.GetDatabaseDSN())
	if err != nil {
		zl.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	zl.Info("✓ Database ready")

	redisCfg := config.GetRedisConfig()
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// the limiter fails open, so the service can still run
		zl.Warn("Redis unreachable, rate limiting disabled until it recovers", zap.Error(err))
	} else {
		zl.Info("✓ Redis ready", zap.String("addr", redisCfg.Addr))
	}
	cancel()

	weatherClient := api.NewOpenWeatherClient(api.OpenWeatherConfig{
		APIKey:       secrets.OpenWeatherAPIKey,
		GeocodingURL: cfg.Weather.GeocodingURL,
		DataURL:      cfg.Weather.DataURL,
		Timeout:      cfg.Weather.Timeout,
	})

	var completer commentary.Completer
	if cfg.Commentary.Enabled {
		claude, err := api.NewClaudeClient(api.ClaudeConfig{
			APIKey:      secrets.AnthropicAPIKey,
			Model:       cfg.Commentary.Model,
			MaxTokens:   cfg.Commentary.MaxTokens,
			Temperature: cfg.Commentary.Temperature,
		})
		if err != nil {
			zl.Warn("Commentary disabled", zap.Error(err))
		} else {
			completer = claude
		}
	}
	generator := commentary.NewGenerator(completer, commentary.DefaultBreakerSettings())

	svc := weather.NewService(weatherClient, db, generator, cfg.Server.DefaultLocation)

	limiter := ratelimit.New(ratelimit.NewRedisStore(rdb, redisCfg.KeyPrefix), ratelimit.Config{
		MaxRequests:    cfg.RateLimit.MaxRequests,
		Window:         cfg.RateLimit.Window,
		PrivilegedUser: cfg.RateLimit.PrivilegedUser,
	})

	janitor := retention.New(db, cfg.Retention.APIRequestTTL, cfg.Retention.Interval)
	if err := janitor.Start(); err != nil {
		zl.Fatal("Failed to start retention job", zap.Error(err))
	}
	defer janitor.Stop()

	httpServer := server.NewServer(svc, db, auth.NewVerifier(secrets.JWTSecret), limiter)

	go func() {
		zl.Info("Starting server", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctx); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
	}
}
