package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/imtaco/rtms-bridge/internal/log"
)

type Retry interface {
	// Do runs op until it succeeds, returns a Permanent error, ctx ends or
	// maxElapsed passes. The last error is returned.
	Do(ctx context.Context, op func() error) error
}

func New(logger *log.Logger, initial, maxInterval, maxElapsed time.Duration) Retry {
	return &exponential{
		logger:      logger,
		initial:     initial,
		maxInterval: maxInterval,
		maxElapsed:  maxElapsed,
	}
}

func Permanent(err error) error {
	return backoff.Permanent(err)
}

type exponential struct {
	logger      *log.Logger
	initial     time.Duration
	maxInterval time.Duration
	maxElapsed  time.Duration
}

func (r *exponential) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsed
	return backoff.WithContext(b, ctx)
}

func (r *exponential) Do(ctx context.Context, op func() error) error {
	attempt := 0
	notify := func(err error, wait time.Duration) {
		r.logger.Debug("retrying",
			log.Int("attempt", attempt),
			log.Duration("wait", wait),
			log.Error(err))
	}
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, r.policy(ctx), notify)
}
