package main

import (
	"context"
	"net/http"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/bridge/bus"
	"github.com/imtaco/rtms-bridge/bridge/hub"
	"github.com/imtaco/rtms-bridge/bridge/rtms"
	"github.com/imtaco/rtms-bridge/bridge/session"
	"github.com/imtaco/rtms-bridge/bridge/translate"
	"github.com/imtaco/rtms-bridge/bridge/transport"
	"github.com/imtaco/rtms-bridge/bridge/webhook"
	"github.com/imtaco/rtms-bridge/internal/config"
	"github.com/imtaco/rtms-bridge/internal/httputil"
	"github.com/imtaco/rtms-bridge/internal/log"
	"github.com/imtaco/rtms-bridge/internal/otel"
	"github.com/imtaco/rtms-bridge/internal/redis"
	"github.com/imtaco/rtms-bridge/internal/scheduler"
	"github.com/imtaco/rtms-bridge/internal/workflow"
)

type WebhookConfig struct {
	SecretToken string `mapstructure:"secret_token"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Config struct {
	App       config.App                `mapstructure:"app"`
	Http      httputil.Config           `mapstructure:"http"`
	RateLimit transport.RateLimitConfig `mapstructure:"ratelimit"`
	Redis     redis.Config              `mapstructure:"redis"`
	Otel      otel.Config               `mapstructure:"otel"`
	RTMS      rtms.Config               `mapstructure:"rtms"`
	Translate translate.Config          `mapstructure:"translate"`
	Bus       bus.Config                `mapstructure:"bus"`
	Webhook   WebhookConfig             `mapstructure:"webhook"`
	Cors      CorsConfig                `mapstructure:"cors"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("webhook.secret_token", "")
		v.SetDefault("cors.allowed_origins", []string{"*"})

		config.Setup(v, "app")
		httputil.Setup(v, "http")
		transport.Setup(v, "ratelimit")
		redis.Setup(v, "redis")
		otel.Setup(v, "otel")
		rtms.Setup(v, "rtms")
		translate.Setup(v, "translate")
		bus.Setup(v, "bus")

		v.SetDefault("http.addr", "0.0.0.0:3000")
	})
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(config.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer logger.Sync()

	// global background context
	ctx := context.Background()

	otelShutdown, err := otel.Init(ctx, &config.Otel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OTEL provider", log.Error(err))
	}

	logger.Info("Starting RTMS bridge...")

	if config.Webhook.SecretToken == "" {
		logger.Warn("webhook.secret_token is empty, url validation will be refused")
	}

	registry := session.NewRegistry(logger.Module("Sessions"))
	uiHub := hub.NewHub(config.Cors.AllowedOrigins, logger.Module("Hub"))

	// Speech goes straight to the local hub unless the shared bus is on,
	// in which case every instance's hub is fed from the bus.
	var (
		sink        bridge.Broadcaster = uiHub
		redisClient *goredis.Client
		busSub      *bus.Subscriber
	)
	if config.Bus.Enabled {
		redisClient = redis.NewClient(&config.Redis)
		if err := redis.Ping(ctx, redisClient); err != nil {
			logger.Fatal("Failed to connect to Redis", log.Error(err))
		}

		publisher, err := bus.NewPublisher(redisClient, &config.Bus, logger.Module("BusPub"))
		if err != nil {
			logger.Fatal("Failed to create bus publisher", log.Error(err))
		}
		busSub, err = bus.NewSubscriber(redisClient, &config.Bus, uiHub, logger.Module("BusSub"))
		if err != nil {
			logger.Fatal("Failed to create bus subscriber", log.Error(err))
		}
		if err := busSub.Open(ctx); err != nil {
			logger.Fatal("Failed to open bus subscriber", log.Error(err))
		}
		sink = publisher
	}

	sched := scheduler.NewKeyedScheduler(logger.Module("Reconnect"))
	relay := rtms.NewRelay(&config.RTMS, registry, sink, sched, logger.Module("Relay"))
	dispatcher := webhook.NewDispatcher(config.Webhook.SecretToken, relay, logger.Module("Webhook"))

	translator, err := translate.NewService(&config.Translate, logger.Module("Translate"))
	if err != nil {
		logger.Fatal("Failed to create translation service", log.Error(err))
	}

	router := transport.NewRouter(
		dispatcher,
		uiHub,
		translator,
		bridge.NewStatsProvider(registry, uiHub),
		config.Cors.AllowedOrigins,
		&config.RateLimit,
		logger.Module("Router"),
	)
	server := httputil.NewServer(&config.Http, router.Handler())

	go func() {
		logger.Info("Starting HTTP server", log.String("addr", config.Http.Addr))
		if err := server.Listen(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", log.Error(err))
		}
	}()

	// Graceful shutdown
	cleanup := func(ctx context.Context) {
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown HTTP server", log.Error(err))
		}

		relay.Close()
		sched.Shutdown()

		if busSub != nil {
			busSub.Close()
		}
		uiHub.Close()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error("Error closing Redis client", log.Error(err))
			}
		}
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, config.App.ShutdownTimeout)
}
