package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"coppia/internal/amqp"
	"coppia/internal/auth"
	"coppia/internal/config"
	apphttp "coppia/internal/http"
	"coppia/internal/log"
	"coppia/internal/middleware/ratelimit"
	"coppia/internal/services"
	"coppia/internal/storage"
)

func main() {
	// .env is for local development; absent in containers.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Event publishing is optional; without a broker the services just
	// skip it.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled, no AMQP_URL provided")
	}

	goals := services.NewGoalService(repo, amqpClient)
	goals.ReopenOnWithdrawal = cfg.ReopenOnWithdrawal

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
	})
	defer limiter.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		JWT:           auth.NewJWTManager(cfg.JWTSecret, cfg.JWTDuration),
		Authenticator: auth.NewPasswordAuthenticator(repo),
		Couples:       services.NewCoupleService(repo, amqpClient),
		Expenses:      services.NewExpenseService(repo, amqpClient),
		Goals:         goals,
		Reports:       services.NewReportService(repo),
		Limiter:       limiter,
		Logger:        logger.WithComponent(log.ComponentHTTP),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting coppia server", "port", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
