package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"VoiceAssistant/controllers"
	"VoiceAssistant/middleware"
	"VoiceAssistant/pkg/config"
	"VoiceAssistant/pkg/database"
	"VoiceAssistant/pkg/logging"
	"VoiceAssistant/pkg/queue"
	"VoiceAssistant/pkg/services"
	"VoiceAssistant/pkg/token"
	"VoiceAssistant/routes"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logging.New(os.Getenv("APP_ENV")).Error(context.Background(), "server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.AppEnv)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "starting "+cfg.AppName, cfg.Summary()...)
	if cfg.SecretKey == config.DefaultSecretKey {
		log.Warn(ctx, "using the default SECRET_KEY, set one before deploying")
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	issuer := token.NewIssuer(cfg.SecretKey, cfg.AccessTokenTTL())
	authSvc := services.NewAuthService(db, issuer, log)
	convSvc := services.NewConversationService(db, log)
	provider := services.NewOpenAIService(cfg, log)

	// outbox is optional; a nil interface keeps the recorder log-only
	var outbox services.Outbox
	workerDone := make(chan struct{})
	close(workerDone)
	if cfg.OutboxEnabled() {
		client, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		outbox = queue.NewOutbox(client, cfg.OutboxMaxRetry)

		worker, err := queue.NewAsynqServer(cfg.RedisURL, cfg.OutboxConcurrency, log)
		if err != nil {
			return err
		}
		queue.RegisterAppendTask(worker, convSvc, log)
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			if err := worker.Run(ctx); err != nil {
				log.Error(ctx, "outbox worker stopped", "error", err)
			}
		}()
		log.Info(ctx, "outbox worker started", "concurrency", cfg.OutboxConcurrency)
	}
	recorder := services.NewRecorder(convSvc, outbox, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(log), middleware.AccessLog(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", controllers.HeaderTranscription, controllers.HeaderResponseText, middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:          authSvc,
		Tokens:        authSvc,
		Conversations: convSvc,
		Voice: &controllers.VoiceHandlers{
			Provider:       provider,
			Recorder:       recorder,
			MaxUploadBytes: cfg.MaxUploadBytes(),
			Log:            log,
		},
		Limiter: middleware.NewRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitCapacity),
		Version: cfg.AppVersion,
		Log:     log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-workerDone
			return err
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-workerDone
	return nil
}
