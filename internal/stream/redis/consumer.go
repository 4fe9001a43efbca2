package redis

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

const (
	defaultBlockTime = 5 * time.Second
	// entries this close to Open are still delivered
	openBacktime = 3 * time.Second
	readCount    = 10
)

// Consumer tails a stream without a consumer group, so every consumer
// sees every entry in stream order.
type Consumer interface {
	Open(ctx context.Context) error
	Close()
	Channel() <-chan *Message
}

type consumerImpl struct {
	client    *redis.Client
	openOnce  sync.Once
	cancel    context.CancelFunc
	chMsg     chan *Message
	stream    string
	blockTime time.Duration
	lastID    string
	clock     clockwork.Clock
	logger    *log.Logger
}

type Message struct {
	ID      string
	Payload []byte
}

func NewConsumer(
	client *redis.Client,
	stream string,
	blockTime time.Duration,
	logger *log.Logger,
) (Consumer, error) {
	if client == nil {
		return nil, errors.New(ErrInvalidArgument, "redis client is required")
	}
	if stream == "" {
		return nil, errors.New(ErrInvalidArgument, "stream name is required")
	}
	if logger == nil {
		return nil, errors.New(ErrInvalidArgument, "logger is required")
	}
	if blockTime == 0 {
		blockTime = defaultBlockTime
	}

	return &consumerImpl{
		client:    client,
		chMsg:     make(chan *Message, readCount),
		stream:    stream,
		blockTime: blockTime,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
	}, nil
}

func (sc *consumerImpl) Open(ctx context.Context) error {
	sc.openOnce.Do(func() {
		sc.lastID = startID(sc.clock, openBacktime)
		ctx, sc.cancel = context.WithCancel(ctx)
		go sc.consume(ctx)
	})
	return nil
}

func (sc *consumerImpl) Close() {
	if sc.cancel != nil {
		sc.cancel()
	}
}

func (sc *consumerImpl) Channel() <-chan *Message {
	return sc.chMsg
}

func (sc *consumerImpl) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := sc.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{sc.stream, sc.lastID},
		Count:   readCount,
		Block:   sc.blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(ErrUnavailable, err, "failed to read from stream")
	}
	if len(streams) == 0 {
		return nil, nil
	}

	msgs := streams[0].Messages
	if len(msgs) > 0 {
		sc.lastID = msgs[len(msgs)-1].ID
	}
	return msgs, nil
}

func (sc *consumerImpl) consume(ctx context.Context) {
	defer close(sc.chMsg)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0
	bo.Clock = sc.clock
	bo.Reset()

	for {
		if ctx.Err() != nil {
			return
		}

		xmsgs, err := sc.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			sc.logger.Error("Failed to read messages",
				log.String("stream", sc.stream),
				log.Duration("retry_in", wait),
				log.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-sc.clock.After(wait):
			}
			continue
		}
		bo.Reset()

		for _, xmsg := range xmsgs {
			msg := &Message{ID: xmsg.ID, Payload: payloadOf(xmsg.Values)}
			if msg.Payload == nil {
				sc.logger.Warn("Entry without payload",
					log.String("stream", sc.stream),
					log.String("id", xmsg.ID))
				continue
			}
			select {
			case <-ctx.Done():
				return
			case sc.chMsg <- msg:
			}
		}
	}
}

func payloadOf(values map[string]any) []byte {
	switch v := values[payloadField].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return nil
	}
}
