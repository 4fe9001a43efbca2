package bridge

//go:generate mockgen -destination=mocks/mock_bridge.go -package=mocks github.com/imtaco/rtms-bridge/bridge SessionController,Broadcaster,Translator,StatsProvider

import (
	"context"
	"time"
)

const (
	UnknownSpeakerID   = "unknown"
	UnknownSpeakerName = "Unknown Speaker"
)

// SpeechEvent is one decoded speech-content frame from a media link.
type SpeechEvent struct {
	SpeakerID       string
	SpeakerName     string
	Text            string
	TimestampMicros int64
}

func (e SpeechEvent) Time() time.Time {
	return time.UnixMicro(e.TimestampMicros)
}

// Link is an owned RTMS websocket link (signaling or media).
type Link interface {
	// Send writes one JSON frame on the link.
	Send(ctx context.Context, msg any) error
	Close() error
}

// Session is a point-in-time view of a registered meeting session.
type Session struct {
	MeetingID    string
	StreamID     string
	SignalingURL string
	Signaling    Link
	Media        Link
}

// SessionRegistry maps a meeting id to its live links.
type SessionRegistry interface {
	Create(meetingID, streamID, signalingURL string) bool
	Get(meetingID string) (Session, bool)
	Exists(meetingID string) bool
	AttachSignaling(meetingID string, link Link) bool
	AttachMedia(meetingID string, link Link) bool
	DetachSignaling(meetingID string, link Link) bool
	DetachMedia(meetingID string, link Link) bool
	Signaling(meetingID string) (Link, bool)
	Remove(meetingID string) bool
	MeetingIDs() []string
	Len() int
}

// SessionController starts and stops relay sessions. Implemented by the RTMS relay.
type SessionController interface {
	Start(ctx context.Context, meetingID, streamID, signalingURL string) bool
	Stop(meetingID string) bool
}

// Broadcaster fans speech events out to UI subscribers.
// Broadcast never fails from the caller's point of view.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev SpeechEvent)
}

// Translator renders text into a target language code.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// StatsProvider reports live counters.
type StatsProvider interface {
	Stats() Stats
}

// Stats is reported by the stats endpoint.
type Stats struct {
	Sessions    int      `json:"sessions"`
	MeetingIDs  []string `json:"meetingIds"`
	Subscribers int      `json:"subscribers"`
}
