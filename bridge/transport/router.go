package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/bridge/translate"
	"github.com/imtaco/rtms-bridge/bridge/webhook"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
	"github.com/imtaco/rtms-bridge/internal/validation"
)

const serviceName = "rtms-bridge"

// EventDispatcher handles decoded webhook events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev *webhook.Event) (*webhook.ChallengeResponse, error)
}

// SubscriberHandler upgrades UI subscribers.
type SubscriberHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

type Router struct {
	dispatcher  EventDispatcher
	subscribers SubscriberHandler
	translator  bridge.Translator
	stats       bridge.StatsProvider
	engine      *gin.Engine
	logger      *log.Logger
}

func NewRouter(
	dispatcher EventDispatcher,
	subscribers SubscriberHandler,
	translator bridge.Translator,
	stats bridge.StatsProvider,
	allowedOrigins []string,
	limits *RateLimitConfig,
	logger *log.Logger,
) *Router {
	if logger == nil {
		panic("logger is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	r := &Router{
		dispatcher:  dispatcher,
		subscribers: subscribers,
		translator:  translator,
		stats:       stats,
		engine:      engine,
		logger:      logger,
	}

	r.engine.Use(func(c *gin.Context) {
		r.logger.Debug("Incoming request",
			log.String("method", c.Request.Method),
			log.String("url", c.Request.URL.String()))
		c.Next()
	})

	r.setupRoutes(limits)
	return r
}

func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) setupRoutes(limits *RateLimitConfig) {
	r.engine.POST("/webhook", r.handleWebhook)
	r.engine.GET("/ws", r.handleSubscriber)
	r.engine.POST("/api/translate", rateLimit(limits), r.translate)
	r.engine.GET("/api/stats", r.getStats)
	r.engine.GET("/health", r.healthCheck)
}

func (r *Router) handleWebhook(c *gin.Context) {
	var ev webhook.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		r.logger.Warn("Malformed webhook body", log.Error(err))
		r.respondWebhook(c, http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	resp, err := r.dispatcher.Dispatch(c.Request.Context(), &ev)
	switch {
	case err == nil && resp != nil:
		r.respondWebhook(c, http.StatusOK, resp)
	case err == nil:
		r.respondWebhook(c, http.StatusOK, gin.H{})
	case errors.Is(err, webhook.ErrSecretUnset):
		r.logger.Error("Webhook secret is not configured", log.String("event", ev.Event))
		r.respondWebhook(c, http.StatusInternalServerError, gin.H{"error": "webhook secret not configured"})
	default:
		r.logger.Error("Failed to handle webhook",
			log.String("event", ev.Event),
			log.Error(err))
		r.respondWebhook(c, http.StatusInternalServerError, gin.H{"error": "failed to handle webhook"})
	}
}

func (r *Router) respondWebhook(c *gin.Context, status int, body any) {
	webhookResponses.Add(c.Request.Context(), 1,
		metric.WithAttributes(attribute.String("status", strconv.Itoa(status))))
	c.JSON(status, body)
}

func (r *Router) handleSubscriber(c *gin.Context) {
	r.subscribers.HandleWebSocket(c.Writer, c.Request)
}

func (r *Router) translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Text is required for translation",
			"details": validation.FormatValidationError(err),
		})
		return
	}

	lang := req.TargetLanguage
	if lang == "" {
		lang = translate.DefaultLanguage
	}

	translated, err := r.translator.Translate(c.Request.Context(), req.Text, lang)
	if err != nil {
		r.logger.Error("Failed to translate",
			log.String("targetLanguage", lang),
			log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to translate text",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, TranslateResponse{Translated: translated})
}

func (r *Router) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   r.stats.Stats(),
	})
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().Unix(),
	})
}
