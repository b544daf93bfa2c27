package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	cfg := config.Load()

	log, err := logger.ForEnvironment(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.SetupTracing(context.Background(), cfg.TracingEndpoint, serviceName)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to connect to db", zap.Error(err))
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	log.Info("event publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)))

	events := telemetry.NewEventEmitter(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit_log.messaging", serviceName, cfg.Environment, log)

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatal("failed to build token verifier", zap.Error(err))
	}

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	registry := ws.NewRegistry(log)
	relay := ws.NewRelay(registry, conversationRepo, messageRepo, events, log)
	socketHandler := ws.NewSocketHandler(registry, relay, verifier, events, log)
	messageHandler := handlers.NewMessageHandler(relay, messageRepo, log)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", socketHandler.Handle)

	authMiddleware := middleware.AuthMiddleware(verifier)
	api := router.Group("/api", authMiddleware)
	api.GET("/conversations", messageHandler.ListConversations)
	api.GET("/messages/:user_id", messageHandler.GetMessages)
	api.POST("/messages/send/:user_id", messageHandler.SendMessage)
	api.PUT("/messages/read/:user_id", messageHandler.MarkRead)
	api.GET("/messages/unread/count", messageHandler.UnreadCount)

	handlers.RegisterDebugRoutes(router, registry, auditEmitter, cfg.DebugRoutes)

	log.Info("messaging service listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
