// cmd/lifecycle-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"freshtrack/internal/common/config"
	"freshtrack/internal/common/database"
	"freshtrack/internal/common/logger"
	"freshtrack/internal/common/mail"
	"freshtrack/internal/common/observability"
	"freshtrack/internal/engine"
	"freshtrack/internal/notify"
	"freshtrack/internal/policy"
	"freshtrack/internal/store/postgres"
	"freshtrack/internal/web"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lifecycle manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("lifecycle-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		return err
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores & policy cache ---
	stores := postgres.NewStores(pg.DB)

	policySource := policy.NewPostgresStore(pg.DB)
	if err := policy.Seed(ctx, policySource, cfg.Policy.SeedPath, cfg.Policy.SchemaPath, log); err != nil {
		zapLog.Fatal("policy seed failed", zap.Error(err))
	}
	policies := policy.NewCachedStore(
		policySource, redis.Client,
		time.Duration(cfg.Policy.CacheTTLSeconds)*time.Second, log,
	)

	// --- Notification transports ---
	var email mail.EmailSender
	switch cfg.Mail.Provider {
	case "ses":
		email, err = mail.NewSESSender(ctx, cfg.Mail)
		if err != nil {
			zapLog.Fatal("SES sender init failed", zap.Error(err))
		}
	default:
		email = mail.NewSMTPSender(cfg.Mail, log)
	}

	var sms mail.SMSSender
	if cfg.Mail.SNS.Enabled {
		sms, err = mail.NewSNSSender(ctx, cfg.Mail)
		if err != nil {
			zapLog.Fatal("SNS sender init failed", zap.Error(err))
		}
	} else {
		sms = noopSMS{log}
	}

	dispatcher := notify.NewDispatcher(
		stores.Notifications, stores.Customers, stores.Purchases, stores.Products,
		email, sms, log,
	)

	// --- Engine & scheduler ---
	service := engine.NewService(stores.Products, stores.Waste, policies, dispatcher, log)

	var scheduler *engine.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = engine.NewScheduler(service, config.GetDuration(cfg.Scheduler.IntervalSeconds), log, obs)
		scheduler.Start(ctx)
	} else {
		zapLog.Info("Scheduler disabled, sweeps run only via the API")
	}

	// --- HTTP API ---
	handlers := web.NewHandlers(
		service, stores.Products, stores.Customers, stores.Purchases,
		stores.Notifications, stores.Waste, policies, log,
	)
	api := web.NewServer(cfg.HTTP.Port, handlers, log)
	go func() {
		if err := api.Start(); err != nil {
			zapLog.Error("HTTP API server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.HTTP.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := api.Shutdown(); err != nil {
		zapLog.Error("Error shutting down HTTP API", zap.Error(err))
	}

	zapLog.Info("Lifecycle manager stopped gracefully")
}

// noopSMS stands in when SNS is disabled; SMS-channel notifications fail
// loudly instead of silently vanishing.
type noopSMS struct {
	log logger.Logger
}

func (n noopSMS) Send(ctx context.Context, phone, message string) error {
	n.log.Warn("SMS transport disabled, dropping message", map[string]interface{}{
		"phone": phone,
	})
	return fmt.Errorf("sms transport disabled")
}
