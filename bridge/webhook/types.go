package webhook

import (
	"encoding/json"

	"github.com/imtaco/rtms-bridge/internal/errors"
)

const (
	EventURLValidation = "endpoint.url_validation"
	EventRTMSStarted   = "meeting.rtms_started"
	EventRTMSStopped   = "meeting.rtms_stopped"
)

const (
	ErrSecretUnset    errors.Code = "secret_unset"
	ErrInvalidPayload errors.Code = "invalid_payload"
)

// Event is the envelope of every inbound webhook.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	EventTS int64           `json:"event_ts,omitempty"`
}

type ChallengePayload struct {
	PlainToken string `json:"plainToken" validate:"required"`
}

type ChallengeResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

type StartedPayload struct {
	MeetingUUID string `json:"meeting_uuid" validate:"required,meetingid"`
	StreamID    string `json:"rtms_stream_id" validate:"required"`
	ServerURLs  string `json:"server_urls" validate:"required,wsurl"`
}

type StoppedPayload struct {
	MeetingUUID string `json:"meeting_uuid" validate:"required,meetingid"`
	StreamID    string `json:"rtms_stream_id"`
}
