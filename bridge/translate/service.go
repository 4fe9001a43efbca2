package translate

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
	"github.com/imtaco/rtms-bridge/internal/retry"
)

// Service translates with the upstream model when configured and falls
// back to the offline dictionary otherwise. It only fails when the caller
// context ends.
type Service struct {
	client  *chatClient
	retry   retry.Retry
	cache   *lru.Cache[string, string]
	sf      singleflight.Group
	limiter *rate.Limiter
	logger  *log.Logger
}

var _ bridge.Translator = (*Service)(nil)

func NewService(cfg *Config, logger *log.Logger) (*Service, error) {
	if logger == nil {
		panic("logger is required")
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, errors.Wrap(ErrUpstreamFailed, err, "create translation cache")
	}

	s := &Service{
		cache:  cache,
		retry:  retry.New(logger, cfg.RetryInitial, cfg.RetryMax, cfg.RetryMaxElapsed),
		logger: logger,
	}

	if cfg.APIKey == "" {
		logger.Warn("translation api key not set, using offline dictionary")
		return s, nil
	}

	s.client = newChatClient(cfg)
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	s.limiter = rate.NewLimiter(limit, max(cfg.RateBurst, 1))
	return s, nil
}

func cacheKey(text, lang string) string {
	return lang + "\x00" + text
}

func (s *Service) Translate(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	lang = normalizeLanguage(lang)

	if s.client == nil {
		translations.Add(ctx, 1, sourceAttr("fallback"))
		return Fallback(text, lang), nil
	}

	key := cacheKey(text, lang)
	if out, ok := s.cache.Get(key); ok {
		translations.Add(ctx, 1, sourceAttr("cache"))
		return out, nil
	}

	res, err, shared := s.sf.Do(key, func() (any, error) {
		return s.upstream(ctx, text, lang)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.logger.Warn("upstream translation failed, using fallback",
			log.String("lang", lang),
			log.Error(err))
		translations.Add(ctx, 1, sourceAttr("fallback"))
		return Fallback(text, lang), nil
	}

	if shared {
		translations.Add(ctx, 1, sourceAttr("shared"))
	} else {
		translations.Add(ctx, 1, sourceAttr("upstream"))
	}
	//nolint:forcetypeassert
	return res.(string), nil
}

func (s *Service) upstream(ctx context.Context, text, lang string) (string, error) {
	if !s.limiter.Allow() {
		return "", errors.New(ErrUpstreamFailed, "translation rate limited")
	}

	start := time.Now()
	var out string
	err := s.retry.Do(ctx, func() error {
		var err error
		out, err = s.client.complete(ctx, text, lang)
		return err
	})
	upstreamLatency.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		upstreamFailures.Add(ctx, 1)
		return "", err
	}

	s.cache.Add(cacheKey(text, lang), out)
	return out, nil
}

func sourceAttr(source string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("source", source))
}
