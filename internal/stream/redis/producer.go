package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

const payloadField = "payload"

const (
	ErrInvalidArgument errors.Code = "invalid_argument"
	ErrUnavailable     errors.Code = "unavailable"
)

type Producer interface {
	// Add appends one payload and returns the entry id.
	Add(ctx context.Context, payload []byte) (string, error)
}

type producerImpl struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *log.Logger
}

// NewProducer appends to stream. A positive maxLen caps the stream length
// on every append (approximate trimming).
func NewProducer(
	client *redis.Client,
	stream string,
	maxLen int64,
	logger *log.Logger,
) (Producer, error) {
	if client == nil {
		return nil, errors.New(ErrInvalidArgument, "redis client is required")
	}
	if stream == "" {
		return nil, errors.New(ErrInvalidArgument, "stream name is required")
	}
	if logger == nil {
		return nil, errors.New(ErrInvalidArgument, "logger is required")
	}

	return &producerImpl{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}, nil
}

func (sp *producerImpl) Add(ctx context.Context, payload []byte) (string, error) {
	args := &redis.XAddArgs{
		Stream: sp.stream,
		Values: map[string]any{payloadField: payload},
	}
	if sp.maxLen > 0 {
		args.MaxLen = sp.maxLen
		args.Approx = true
	}

	id, err := sp.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", errors.Wrap(ErrUnavailable, err, "failed to add message to stream")
	}

	sp.logger.Debug("Added message to stream",
		log.String("stream", sp.stream),
		log.String("id", id))

	return id, nil
}
