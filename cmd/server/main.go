package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infra"
	"stockledger/internal/router"
	"stockledger/internal/service"
	"stockledger/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// eventSink is what both publishers offer.
type eventSink interface {
	service.EventPublisher
	Close() error
}

// @title stockledger API
// @version 1.0
// @description Inventory ledger with transactional order fulfillment and cancellation.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := infra.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var events eventSink = infra.LogPublisher{}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		events = infra.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing domain events to kafka")
	}

	mailerCB := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "smtp"})
	r, services := router.New(cfg, router.Deps{DB: db, Redis: rdb, MailerCB: mailerCB, Publisher: events})

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	pool := worker.NewPool(rdb, map[string]worker.Processor{
		worker.JobTypeEmail: worker.NewEmailWorker(mailer, mailerCB),
	})
	pool.Start(ctx, cfg.WorkerPoolSize)

	if cfg.DriftAlertEmail != "" && !mailer.Configured() {
		log.Warn().Msg("DRIFT_ALERT_EMAIL set but SMTP_HOST is empty; alerts will be dead-lettered")
	}
	worker.StartDriftCron(ctx, worker.DriftCronConfig{
		Checker:    services.Projector,
		Alerts:     dispatcher,
		AlertEmail: cfg.DriftAlertEmail,
		Interval:   cfg.DriftCheckInterval,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("stockledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	pool.Wait()
	if err := events.Close(); err != nil {
		log.Warn().Err(err).Msg("event publisher close")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	log.Info().Msg("server exited")
}
