package webhook

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/cryptoutil"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
	intotel "github.com/imtaco/rtms-bridge/internal/otel"
	"github.com/imtaco/rtms-bridge/internal/validation"
)

// Dispatcher routes platform webhooks to the session controller.
type Dispatcher struct {
	secret   string
	sessions bridge.SessionController
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *log.Logger
}

func NewDispatcher(secret string, sessions bridge.SessionController, logger *log.Logger) *Dispatcher {
	if logger == nil {
		panic("logger is required")
	}
	if secret == "" {
		logger.Warn("webhook secret token is empty, url validation will be refused")
	}
	return &Dispatcher{
		secret:   secret,
		sessions: sessions,
		validate: validation.New(),
		tracer:   otel.Tracer("bridge.webhook"),
		logger:   logger,
	}
}

// HandleChallenge answers the endpoint url validation. It refuses to sign
// with an empty secret.
func (d *Dispatcher) HandleChallenge(plainToken string) (*ChallengeResponse, error) {
	if d.secret == "" {
		return nil, errors.New(ErrSecretUnset, "webhook secret token is not configured")
	}
	return &ChallengeResponse{
		PlainToken:     plainToken,
		EncryptedToken: cryptoutil.HMACHex(d.secret, plainToken),
	}, nil
}

// HandleSessionStarted is idempotent per meeting.
func (d *Dispatcher) HandleSessionStarted(ctx context.Context, meetingID, streamID, signalingURL string) bool {
	started := d.sessions.Start(ctx, meetingID, streamID, signalingURL)
	if !started {
		d.logger.Info("rtms session already running",
			log.String("meetingId", meetingID))
	}
	return started
}

// HandleSessionStopped tolerates unknown meetings.
func (d *Dispatcher) HandleSessionStopped(meetingID string) bool {
	stopped := d.sessions.Stop(meetingID)
	if !stopped {
		d.logger.Debug("stop for unknown session", log.String("meetingId", meetingID))
	}
	return stopped
}

// Dispatch handles one webhook. A non-nil response must be returned to the
// caller as the body. Events with bad payloads, a challenge without
// plainToken included, are logged and acknowledged; the only error is a
// challenge that cannot be signed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) (resp *ChallengeResponse, err error) {
	ctx, span := intotel.StartSpan(ctx, d.tracer, "webhook.Dispatch",
		attribute.String("webhook.event", ev.Event))
	defer func() { intotel.EndSpan(span, err) }()

	webhooksReceived.Add(ctx, 1, eventAttr(ev.Event))

	switch ev.Event {
	case EventURLValidation:
		var p ChallengePayload
		if err := d.decode(ev.Payload, &p); err != nil {
			d.reject(ctx, span, ev.Event, err)
			return nil, nil
		}
		resp, err = d.HandleChallenge(p.PlainToken)
		if err != nil {
			d.logger.Error("refuse url validation", log.Error(err))
			return nil, err
		}
		d.logger.Info("responding to url validation")
		return resp, nil

	case EventRTMSStarted:
		var p StartedPayload
		if err := d.decode(ev.Payload, &p); err != nil {
			d.reject(ctx, span, ev.Event, err)
			return nil, nil
		}
		span.SetAttributes(attribute.String("meeting.id", p.MeetingUUID))
		d.logger.Info("rtms started",
			log.String("meetingId", p.MeetingUUID),
			log.String("streamId", p.StreamID))
		d.HandleSessionStarted(ctx, p.MeetingUUID, p.StreamID, p.ServerURLs)

	case EventRTMSStopped:
		var p StoppedPayload
		if err := d.decode(ev.Payload, &p); err != nil {
			d.reject(ctx, span, ev.Event, err)
			return nil, nil
		}
		span.SetAttributes(attribute.String("meeting.id", p.MeetingUUID))
		d.logger.Info("rtms stopped", log.String("meetingId", p.MeetingUUID))
		d.HandleSessionStopped(p.MeetingUUID)

	default:
		d.logger.Debug("ignore webhook event", log.String("event", ev.Event))
	}
	return nil, nil
}

func (d *Dispatcher) decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New(ErrInvalidPayload, "missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(ErrInvalidPayload, err, "decode payload")
	}
	if err := d.validate.Struct(v); err != nil {
		return errors.Wrap(ErrInvalidPayload, err, "validate payload")
	}
	return nil
}

func (d *Dispatcher) reject(ctx context.Context, span trace.Span, event string, err error) {
	span.RecordError(err)
	webhooksRejected.Add(ctx, 1, eventAttr(event))
	d.logger.Warn("drop webhook with invalid payload",
		log.String("event", event),
		log.Error(err))
}
