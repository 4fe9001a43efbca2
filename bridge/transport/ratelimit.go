package transport

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// limiterStore keeps one token bucket per client key. The least recently
// seen clients are forgotten once the store is full.
type limiterStore struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newLimiterStore(cfg *RateLimitConfig) *limiterStore {
	size := cfg.Clients
	if size <= 0 {
		size = 1
	}
	limiters, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		panic(err)
	}
	return &limiterStore{
		limiters: limiters,
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(s.limit, s.burst)
	s.limiters.Add(key, l)
	return l
}

// rateLimit rejects a client once its bucket is empty. A non-positive
// rate disables the check.
func rateLimit(cfg *RateLimitConfig) gin.HandlerFunc {
	if cfg == nil || cfg.RequestsPerSecond <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	store := newLimiterStore(cfg)
	return func(c *gin.Context) {
		if !store.get(c.ClientIP()).Allow() {
			rateLimited.Add(c.Request.Context(), 1)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
