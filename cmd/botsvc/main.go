// Command botsvc runs the giveaway bot service: the platform webhook
// receiver, the participation workflow, the outbound delivery pipeline with
// its retry scheduler, and the internal admin API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telegive/bot-service/internal/clients"
	"github.com/telegive/bot-service/internal/config"
	httpapi "github.com/telegive/bot-service/internal/http"
	"github.com/telegive/bot-service/internal/observability"
	"github.com/telegive/bot-service/internal/repo"
	"github.com/telegive/bot-service/internal/services"
	"github.com/telegive/bot-service/internal/sysutil"
	"github.com/telegive/bot-service/internal/telegram"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Msg("starting bot-service")

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database schema")
	}

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Platform client and collaborator clients.
	sender := telegram.NewBotClient(cfg.BotAPIBase, cfg.BotToken, cfg.Delivery.SendTimeout)
	participants := clients.NewParticipantClient(cfg.Collaborators.ParticipantURL, cfg.Collaborators.Timeout)
	giveaways := clients.NewGiveawayClient(cfg.Collaborators.GiveawayURL, cfg.Collaborators.Timeout)
	memberships := clients.NewMembershipClient(cfg.Collaborators.ChannelURL, cfg.Collaborators.Timeout)

	// Services.
	workflow := services.NewWorkflowService(db, sender, participants, giveaways, memberships)
	workflow.StateTTL = cfg.Delivery.StateTTL
	workflow.MaxCaptchaAttempts = cfg.Delivery.CaptchaTries

	intake := services.NewIntakeService(db, workflow)

	delivery := services.NewDeliveryService(db, sender)
	delivery.RetryBatch = cfg.Delivery.RetryBatch

	broadcast := services.NewBroadcastService(delivery)
	broadcast.BatchSize = cfg.Delivery.BatchSize

	scheduler, err := services.NewRetryScheduler(delivery, db, cfg.Delivery.RetrySpec, cfg.Delivery.CleanupSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up retry scheduler")
	}
	scheduler.Start()

	// HTTP transport.
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Intake:    intake,
		Delivery:  delivery,
		Broadcast: broadcast,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
