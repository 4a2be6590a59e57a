package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/malkrite/yakiwi/internal/assistant"
	"github.com/malkrite/yakiwi/internal/broadcast"
	"github.com/malkrite/yakiwi/internal/config"
	"github.com/malkrite/yakiwi/internal/docs"
	"github.com/malkrite/yakiwi/internal/llm"
	"github.com/malkrite/yakiwi/internal/logger"
	"github.com/malkrite/yakiwi/internal/nostr"
	"github.com/malkrite/yakiwi/internal/session"
)

func main() {
	config.LoadConfig()

	log := logger.New(logger.FromConfig(config.AppConfig.LogLevel, config.AppConfig.LogFormat))

	log.Info("Setting Gin mode", slog.String("mode", config.AppConfig.GinMode))
	gin.SetMode(config.AppConfig.GinMode)

	// Signer capability: optional. Without it the service answers questions
	// but every publish fails with a precondition error.
	var signer nostr.Signer
	if config.AppConfig.NostrSecretKey != "" {
		localSigner, err := nostr.NewLocalSigner(config.AppConfig.NostrSecretKey)
		if err != nil {
			log.Error("Failed to initialize signer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		signer = localSigner
	} else {
		log.Warn("NOSTR_SECRET_KEY not set - publishing disabled")
	}

	// Initialize services
	generator := llm.NewClient(
		config.AppConfig.OpenAIBaseURL,
		config.AppConfig.OpenAIAPIKey,
		config.AppConfig.AssistantModel,
		config.AppConfig.ClassifierModel,
		config.AppConfig.GenerationTimeout,
		log,
	)

	router := assistant.NewRouter(generator, docs.APIDocumentation(), log)
	relayClient := nostr.NewRelayClient(log)
	broadcaster := broadcast.NewBroadcaster(relayClient, config.AppConfig.BroadcastTimeout, log)

	service := session.NewService(session.ServiceConfig{
		Router:        router,
		Signing:       nostr.NewGateway(signer),
		Broadcaster:   broadcaster,
		Summarizer:    generator,
		Documentation: docs.APIDocumentation(),
		Relays:        config.AppConfig.Relays,
		Bridge:        session.NewHostBridge(config.AppConfig.HostBridgeBuffer),
		Logger:        log,
	})
	defer service.Close()

	handler := session.NewHandler(service, log)

	// Initialize Gin router
	engine := gin.Default()

	// Add CORS middleware
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", config.AppConfig.CORSAllowedOrigins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"signer": signer != nil,
			"relays": len(config.AppConfig.Relays),
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: engine,
	}

	go func() {
		log.Info("Server starting",
			slog.String("port", config.AppConfig.Port),
			slog.Int("relays", len(config.AppConfig.Relays)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.AppConfig.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("Server exited")
}
