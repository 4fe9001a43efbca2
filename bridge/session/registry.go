package session

import (
	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/log"
	isync "github.com/imtaco/rtms-bridge/internal/sync"
)

type meetingSession struct {
	meetingID    string
	streamID     string
	signalingURL string
	signaling    bridge.Link
	media        bridge.Link
}

func (s *meetingSession) snapshot() bridge.Session {
	return bridge.Session{
		MeetingID:    s.meetingID,
		StreamID:     s.streamID,
		SignalingURL: s.signalingURL,
		Signaling:    s.signaling,
		Media:        s.media,
	}
}

// Registry owns every live meeting session and its links.
// Safe for concurrent use from link lifecycle callbacks.
type Registry struct {
	sessions *isync.Map[string, *meetingSession]
	logger   *log.Logger
}

var _ bridge.SessionRegistry = (*Registry)(nil)

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		panic("logger is required")
	}
	return &Registry{
		sessions: isync.NewMap[string, *meetingSession](),
		logger:   logger,
	}
}

// Create registers a new session. It returns false when one already exists.
func (r *Registry) Create(meetingID, streamID, signalingURL string) bool {
	_, loaded := r.sessions.LoadOrStore(meetingID, &meetingSession{
		meetingID:    meetingID,
		streamID:     streamID,
		signalingURL: signalingURL,
	})
	if loaded {
		r.logger.Debug("session already registered", log.String("meetingId", meetingID))
		return false
	}
	sessionsActive.Add(ctxBg, 1)
	r.logger.Info("session registered",
		log.String("meetingId", meetingID),
		log.String("streamId", streamID))
	return true
}

func (r *Registry) Get(meetingID string) (bridge.Session, bool) {
	var (
		snap bridge.Session
		ok   bool
	)
	r.sessions.WithLock(func(view isync.View[string, *meetingSession]) {
		var s *meetingSession
		if s, ok = view.Get(meetingID); ok {
			snap = s.snapshot()
		}
	})
	return snap, ok
}

func (r *Registry) Exists(meetingID string) bool {
	_, ok := r.sessions.Load(meetingID)
	return ok
}

// AttachSignaling sets the signaling link. It returns false when the session
// is gone, in which case the caller owns the link and must close it.
func (r *Registry) AttachSignaling(meetingID string, link bridge.Link) bool {
	attached := false
	r.sessions.WithLock(func(view isync.View[string, *meetingSession]) {
		s, ok := view.Get(meetingID)
		if !ok {
			return
		}
		s.signaling = link
		attached = true
	})
	return attached
}

// AttachMedia sets the media link. It is refused while no signaling link is
// attached or when the session is gone.
func (r *Registry) AttachMedia(meetingID string, link bridge.Link) bool {
	attached := false
	r.sessions.WithLock(func(view isync.View[string, *meetingSession]) {
		s, ok := view.Get(meetingID)
		if !ok || s.signaling == nil {
			return
		}
		s.media = link
		attached = true
	})
	return attached
}

// DetachSignaling clears the signaling link if it is still the given one.
func (r *Registry) DetachSignaling(meetingID string, link bridge.Link) bool {
	detached := false
	r.sessions.WithLock(func(view isync.View[string, *meetingSession]) {
		s, ok := view.Get(meetingID)
		if !ok || s.signaling != link {
			return
		}
		s.signaling = nil
		detached = true
	})
	return detached
}

// DetachMedia clears the media link if it is still the given one.
func (r *Registry) DetachMedia(meetingID string, link bridge.Link) bool {
	detached := false
	r.sessions.WithLock(func(view isync.View[string, *meetingSession]) {
		s, ok := view.Get(meetingID)
		if !ok || s.media != link {
			return
		}
		s.media = nil
		detached = true
	})
	return detached
}

func (r *Registry) Signaling(meetingID string) (bridge.Link, bool) {
	var link bridge.Link
	r.sessions.WithLock(func(view isync.View[string, *meetingSession]) {
		if s, ok := view.Get(meetingID); ok {
			link = s.signaling
		}
	})
	return link, link != nil
}

// Remove discards the session and closes its links. Links are closed after
// the session has left the map so their close callbacks see it gone.
func (r *Registry) Remove(meetingID string) bool {
	s, ok := r.sessions.LoadAndDelete(meetingID)
	if !ok {
		return false
	}
	sessionsActive.Add(ctxBg, -1)

	for _, link := range []bridge.Link{s.media, s.signaling} {
		if link == nil {
			continue
		}
		if err := link.Close(); err != nil {
			r.logger.Debug("link close error",
				log.String("meetingId", meetingID),
				log.Error(err))
		}
	}
	r.logger.Info("session removed", log.String("meetingId", meetingID))
	return true
}

func (r *Registry) MeetingIDs() []string {
	return r.sessions.Keys()
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}
