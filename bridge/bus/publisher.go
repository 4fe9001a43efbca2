package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/bridge/hub"
	"github.com/imtaco/rtms-bridge/internal/log"
	stream "github.com/imtaco/rtms-bridge/internal/stream/redis"
)

const publishTimeout = 3 * time.Second

// Publisher appends speech events to the shared stream instead of the
// local hub. Every instance's Subscriber delivers them to its own hub.
type Publisher struct {
	producer stream.Producer
	logger   *log.Logger
}

func NewPublisher(client *redis.Client, cfg *Config, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		panic("logger is required")
	}
	producer, err := stream.NewProducer(client, cfg.Stream, cfg.MaxLen, logger.Module("BusProducer"))
	if err != nil {
		return nil, err
	}
	return &Publisher{
		producer: producer,
		logger:   logger,
	}, nil
}

// Broadcast never reports failure; a lost event is logged and counted.
func (p *Publisher) Broadcast(ctx context.Context, ev bridge.SpeechEvent) {
	data, err := json.Marshal(hub.NewMessage(ev))
	if err != nil {
		p.logger.Error("marshal speech event", log.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if _, err := p.producer.Add(ctx, data); err != nil {
		publishFailure.Add(ctxBg, 1)
		p.logger.Error("publish speech event",
			log.String("speakerId", ev.SpeakerID),
			log.Error(err))
		return
	}
	published.Add(ctxBg, 1)
}
