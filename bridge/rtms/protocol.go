package rtms

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/errors"
)

// MsgType is the numeric msg_type tag carried by every RTMS frame.
type MsgType int

const (
	MsgHello         MsgType = 1
	MsgHelloAck      MsgType = 2
	MsgMediaHello    MsgType = 3
	MsgMediaHelloAck MsgType = 4
	MsgStartStream   MsgType = 7
	MsgKeepAliveReq  MsgType = 12
	MsgKeepAliveAck  MsgType = 13
	MsgSpeechContent MsgType = 17
)

func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgHelloAck:
		return "HELLO_ACK"
	case MsgMediaHello:
		return "MEDIA_HELLO"
	case MsgMediaHelloAck:
		return "MEDIA_HELLO_ACK"
	case MsgStartStream:
		return "START_STREAM"
	case MsgKeepAliveReq:
		return "KEEPALIVE_REQ"
	case MsgKeepAliveAck:
		return "KEEPALIVE_ACK"
	case MsgSpeechContent:
		return "SPEECH_CONTENT"
	default:
		return "MSG_" + strconv.Itoa(int(t))
	}
}

const (
	ProtocolVersion = 1
	// MediaTypeAudioAll selects the single stream type this relay consumes.
	MediaTypeAudioAll = 8
	StatusOK          = 0
)

const (
	ErrMalformedFrame  errors.Code = "malformed_frame"
	ErrHandshakeFailed errors.Code = "handshake_failed"
)

type HelloRequest struct {
	MsgType         MsgType `json:"msg_type"`
	ProtocolVersion int     `json:"protocol_version"`
	MeetingUUID     string  `json:"meeting_uuid"`
	StreamID        string  `json:"rtms_stream_id"`
	Sequence        int64   `json:"sequence"`
	Signature       string  `json:"signature"`
}

type MediaHelloRequest struct {
	MsgType           MsgType `json:"msg_type"`
	ProtocolVersion   int     `json:"protocol_version"`
	MeetingUUID       string  `json:"meeting_uuid"`
	StreamID          string  `json:"rtms_stream_id"`
	Signature         string  `json:"signature"`
	MediaType         int     `json:"media_type"`
	PayloadEncryption bool    `json:"payload_encryption"`
	AllParticipants   bool    `json:"all_participants"`
}

type StartStreamRequest struct {
	MsgType  MsgType `json:"msg_type"`
	StreamID string  `json:"rtms_stream_id"`
}

// KeepAlive carries the peer's timestamp through untouched, whatever its
// JSON type.
type KeepAlive struct {
	MsgType   MsgType         `json:"msg_type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type MediaServer struct {
	ServerURLs struct {
		All string `json:"all"`
	} `json:"server_urls"`
}

// HelloAck is the reply to either HELLO.
type HelloAck struct {
	StatusCode  int          `json:"status_code"`
	Reason      flexString   `json:"reason"`
	MediaServer *MediaServer `json:"media_server"`
}

func (a *HelloAck) mediaURL() string {
	if a.MediaServer == nil {
		return ""
	}
	return a.MediaServer.ServerURLs.All
}

// SpeechContent is the payload of a SPEECH_CONTENT frame.
type SpeechContent struct {
	UserID    flexString `json:"user_id"`
	UserName  flexString `json:"user_name"`
	Data      flexString `json:"data"`
	Timestamp flexInt64  `json:"timestamp"`
}

// speechFrame accepts the fields nested under content or at top level.
type speechFrame struct {
	Content *SpeechContent `json:"content"`
	SpeechContent
}

// frame is one inbound JSON message. Only msg_type is decoded up front;
// the rest is decoded on demand by the handler for that type.
type frame struct {
	MsgType MsgType
	raw     []byte
}

func decodeFrame(data []byte) (*frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New(ErrMalformedFrame, "not a json object")
	}
	var head struct {
		MsgType MsgType `json:"msg_type"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, err, "decode frame")
	}
	if head.MsgType == 0 {
		return nil, errors.New(ErrMalformedFrame, "missing msg_type")
	}
	return &frame{MsgType: head.MsgType, raw: trimmed}, nil
}

// keepAliveTimestamp returns the raw timestamp value, nil when absent.
func (f *frame) keepAliveTimestamp() json.RawMessage {
	var v struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	// the object is already known to be valid json
	_ = json.Unmarshal(f.raw, &v)
	if bytes.Equal(v.Timestamp, []byte("null")) {
		return nil
	}
	return v.Timestamp
}

func (f *frame) helloAck() (*HelloAck, error) {
	var ack HelloAck
	if err := json.Unmarshal(f.raw, &ack); err != nil {
		return nil, errors.Wrap(ErrMalformedFrame, err, "decode hello ack")
	}
	return &ack, nil
}

// speechEvent decodes a SPEECH_CONTENT frame. ok is false when the text is blank.
func (f *frame) speechEvent(now time.Time) (bridge.SpeechEvent, bool, error) {
	var sf speechFrame
	if err := json.Unmarshal(f.raw, &sf); err != nil {
		return bridge.SpeechEvent{}, false, errors.Wrap(ErrMalformedFrame, err, "decode speech")
	}
	c := sf.SpeechContent
	if sf.Content != nil {
		c = *sf.Content
	}

	if strings.TrimSpace(string(c.Data)) == "" {
		return bridge.SpeechEvent{}, false, nil
	}

	ev := bridge.SpeechEvent{
		SpeakerID:       string(c.UserID),
		SpeakerName:     string(c.UserName),
		Text:            string(c.Data),
		TimestampMicros: int64(c.Timestamp),
	}
	if ev.SpeakerID == "" {
		ev.SpeakerID = bridge.UnknownSpeakerID
	}
	if ev.SpeakerName == "" {
		ev.SpeakerName = bridge.UnknownSpeakerName
	}
	if ev.TimestampMicros == 0 {
		ev.TimestampMicros = now.UnixMicro()
	}
	return ev, true, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// flexInt64 accepts an integer, a float (truncated) or a numeric string.
// Anything else decodes to zero.
type flexInt64 int64

func (n *flexInt64) UnmarshalJSON(b []byte) error {
	*n = 0
	text := strings.Trim(string(b), `"`)
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*n = flexInt64(v)
		return nil
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) &&
		v < math.MaxInt64 && v > math.MinInt64 {
		*n = flexInt64(v)
	}
	return nil
}
