package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/recruitflow/inbox-server-go/internal/config"
	"github.com/recruitflow/inbox-server-go/internal/database"
	"github.com/recruitflow/inbox-server-go/internal/handler"
	"github.com/recruitflow/inbox-server-go/internal/jobs"
	"github.com/recruitflow/inbox-server-go/internal/middleware"
	"github.com/recruitflow/inbox-server-go/internal/redis"
	"github.com/recruitflow/inbox-server-go/internal/repository"
	"github.com/recruitflow/inbox-server-go/internal/service"
	"github.com/recruitflow/inbox-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	channelRepo := repository.NewChannelRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	aiSessionRepo := repository.NewAiSessionRepository(db.DB)
	aiAuditLogRepo := repository.NewAiAuditLogRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	policy := cfg.SlaPolicy()

	channelService := service.NewChannelService(channelRepo)
	convService := service.NewConversationService(convRepo)
	ingestService := service.NewIngestService(messageRepo, convRepo, channelRepo, policy)
	assignmentService := service.NewAssignmentService(convRepo, policy)
	aiSessionService := service.NewAiSessionService(aiSessionRepo, aiAuditLogRepo, convRepo, ingestService)
	aiAuditService := service.NewAiAuditService(aiAuditLogRepo, aiSessionRepo)

	signatureMiddleware := middleware.NewWebhookSignatureMiddleware(cfg.WebhookSignatureSecret)
	agentAuthMiddleware := middleware.NewAuthMiddleware(cfg.APIToken, "agent")

	aiToken := cfg.AiAPIToken
	if aiToken == "" {
		aiToken = cfg.APIToken
	}
	aiAuthMiddleware := middleware.NewAuthMiddleware(aiToken, "ai")

	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	webhookHandler := handler.NewWebhookHandler(channelService, ingestService, broker)
	conversationsHandler := handler.NewConversationsHandler(
		convService, assignmentService, ingestService, channelService, broker,
	)
	aiHandler := handler.NewAiHandler(
		aiSessionService, aiAuditService, convService, ingestService, broker,
	)
	eventsHandler := handler.NewEventsHandler(broker, channelService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/webhook", func(r chi.Router) {
		r.Use(signatureMiddleware.Handler)
		r.Mount("/", webhookHandler.Routes())
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(agentAuthMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)
		r.Mount("/", conversationsHandler.Routes())
	})

	r.Route("/ai/v1", func(r chi.Router) {
		r.Use(aiAuthMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", aiHandler.Routes())
	})

	sweepJob := jobs.NewSweepJob(
		messageRepo, convRepo, broker, redisClient, cfg.OutboundTTL(), cfg.SweepInterval(),
	)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
