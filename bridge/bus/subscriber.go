package bus

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/imtaco/rtms-bridge/internal/log"
	stream "github.com/imtaco/rtms-bridge/internal/stream/redis"
)

// RawBroadcaster takes messages already encoded for UI subscribers.
type RawBroadcaster interface {
	BroadcastRaw(data []byte)
}

// Subscriber tails the shared stream and hands each entry to the local hub.
type Subscriber struct {
	consumer stream.Consumer
	sink     RawBroadcaster
	done     chan struct{}
	opened   atomic.Bool
	logger   *log.Logger
}

func NewSubscriber(client *redis.Client, cfg *Config, sink RawBroadcaster, logger *log.Logger) (*Subscriber, error) {
	if logger == nil {
		panic("logger is required")
	}
	consumer, err := stream.NewConsumer(client, cfg.Stream, 0, logger.Module("BusConsumer"))
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		consumer: consumer,
		sink:     sink,
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

func (s *Subscriber) Open(ctx context.Context) error {
	if !s.opened.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.consumer.Open(ctx); err != nil {
		return err
	}
	go s.run()
	return nil
}

func (s *Subscriber) run() {
	defer close(s.done)
	for msg := range s.consumer.Channel() {
		s.sink.BroadcastRaw(msg.Payload)
		delivered.Add(ctxBg, 1)
	}
	s.logger.Info("bus subscriber stopped")
}

// Close stops reading and waits for the delivery loop to exit.
func (s *Subscriber) Close() {
	s.consumer.Close()
	if s.opened.Load() {
		<-s.done
	}
}
