package rtms

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/log"
	"github.com/imtaco/rtms-bridge/internal/scheduler"
	isync "github.com/imtaco/rtms-bridge/internal/sync"
)

// Relay owns the signaling and media links of every registered session.
// Sessions live in the registry; the relay only tracks the link objects it
// started (including ones still dialing) and their reconnect state.
type Relay struct {
	cfg         *Config
	registry    bridge.SessionRegistry
	sink        bridge.Broadcaster
	scheduler   *scheduler.KeyedScheduler
	sigDialer   Dialer
	mediaDialer Dialer
	clock       clockwork.Clock

	links    *isync.Map[string, *link]
	backoffs *isync.Map[string, backoff.BackOff]

	ctx    context.Context
	cancel context.CancelFunc

	linkLoggers map[LinkKind]*log.Logger
	logger      *log.Logger
}

var _ bridge.SessionController = (*Relay)(nil)

func NewRelay(
	cfg *Config,
	registry bridge.SessionRegistry,
	sink bridge.Broadcaster,
	sched *scheduler.KeyedScheduler,
	logger *log.Logger,
) *Relay {
	return newRelay(
		cfg,
		registry,
		sink,
		sched,
		newDialer(cfg.DialTimeout, cfg.ReadLimit, false),
		newDialer(cfg.DialTimeout, cfg.ReadLimit, cfg.MediaInsecureTLS),
		clockwork.NewRealClock(),
		logger,
	)
}

func newRelay(
	cfg *Config,
	registry bridge.SessionRegistry,
	sink bridge.Broadcaster,
	sched *scheduler.KeyedScheduler,
	sigDialer Dialer,
	mediaDialer Dialer,
	clock clockwork.Clock,
	logger *log.Logger,
) *Relay {
	if logger == nil {
		panic("logger is required")
	}
	if cfg.ClientSecret == "" {
		logger.Warn("client secret is empty, handshakes will be rejected upstream")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		cfg:         cfg,
		registry:    registry,
		sink:        sink,
		scheduler:   sched,
		sigDialer:   sigDialer,
		mediaDialer: mediaDialer,
		clock:       clock,
		links:       isync.NewMap[string, *link](),
		backoffs:    isync.NewMap[string, backoff.BackOff](),
		ctx:         ctx,
		cancel:      cancel,
		linkLoggers: map[LinkKind]*log.Logger{
			KindSignaling: logger.Module("Signaling"),
			KindMedia:     logger.Module("Media"),
		},
		logger: logger,
	}
}

// Start registers the session and connects its signaling link.
// A second start for a registered meeting is ignored.
func (r *Relay) Start(_ context.Context, meetingID, streamID, signalingURL string) bool {
	if r.ctx.Err() != nil {
		return false
	}
	if !r.registry.Create(meetingID, streamID, signalingURL) {
		r.logger.Info("session already active, ignoring start",
			log.String("meetingId", meetingID))
		return false
	}
	r.connectSignaling(meetingID)
	return true
}

// Stop cancels pending reconnects and tears the session down.
// Unknown meetings are a no-op.
func (r *Relay) Stop(meetingID string) bool {
	for _, kind := range []LinkKind{KindSignaling, KindMedia} {
		key := linkKey(meetingID, kind)
		r.scheduler.Cancel(key)
		r.backoffs.Delete(key)
	}

	removed := r.registry.Remove(meetingID)

	// links still dialing are not attached yet
	for _, kind := range []LinkKind{KindSignaling, KindMedia} {
		if l, ok := r.links.LoadAndDelete(linkKey(meetingID, kind)); ok {
			_ = l.Close()
		}
	}
	return removed
}

// Close stops every session. The relay cannot be restarted.
func (r *Relay) Close() {
	r.cancel()
	r.scheduler.Clear()
	for _, meetingID := range r.registry.MeetingIDs() {
		r.Stop(meetingID)
	}
}

func (r *Relay) connectSignaling(meetingID string) {
	sess, ok := r.registry.Get(meetingID)
	if !ok {
		return
	}
	l := r.newLink(KindSignaling, sess.MeetingID, sess.StreamID, sess.SignalingURL, r.sigDialer)
	if l == nil {
		return
	}
	newSignalingLink(l).start()
}

func (r *Relay) connectMedia(meetingID, mediaURL string) {
	sess, ok := r.registry.Get(meetingID)
	if !ok {
		return
	}
	l := r.newLink(KindMedia, sess.MeetingID, sess.StreamID, mediaURL, r.mediaDialer)
	if l == nil {
		return
	}
	newMediaLink(l).start()
}

// newLink returns nil when a link of that kind is already running for the meeting.
func (r *Relay) newLink(kind LinkKind, meetingID, streamID, url string, dialer Dialer) *link {
	l := newLink(
		r.ctx,
		kind,
		meetingID,
		streamID,
		url,
		r,
		dialer,
		r.clock,
		r.cfg.Credentials,
		r.cfg.WriteTimeout,
		r.linkLoggers[kind].With(log.String("meetingId", meetingID)),
	)
	if cur, loaded := r.links.LoadOrStore(l.key(), l); loaded {
		r.logger.Debug("link already running",
			log.String("meetingId", meetingID),
			log.String("kind", string(kind)),
			log.String("state", cur.State().String()))
		l.cancel()
		return nil
	}
	return l
}

func (r *Relay) linkOpened(l *link) bool {
	var attached bool
	switch l.kind {
	case KindSignaling:
		attached = r.registry.AttachSignaling(l.meetingID, l)
	case KindMedia:
		attached = r.registry.AttachMedia(l.meetingID, l)
	}
	if !attached {
		r.links.CompareAndDelete(l.key(), l)
	}
	return attached
}

func (r *Relay) linkReady(l *link, mediaURL string) {
	if bo, ok := r.backoffs.Load(l.key()); ok {
		bo.Reset()
	}

	switch l.kind {
	case KindSignaling:
		sess, ok := r.registry.Get(l.meetingID)
		if !ok {
			return
		}
		if sess.Media != nil {
			r.logger.Debug("media link already attached",
				log.String("meetingId", l.meetingID))
			return
		}
		// a fresh media address supersedes a pending retry to the old one
		r.scheduler.Cancel(linkKey(l.meetingID, KindMedia))
		r.connectMedia(l.meetingID, mediaURL)

	case KindMedia:
		sig, ok := r.registry.Signaling(l.meetingID)
		if !ok {
			r.logger.Warn("no signaling link to request stream start",
				log.String("meetingId", l.meetingID))
			return
		}
		req := &StartStreamRequest{MsgType: MsgStartStream, StreamID: l.streamID}
		if err := sig.Send(l.ctx, req); err != nil {
			r.logger.Warn("stream start request failed",
				log.String("meetingId", l.meetingID),
				log.Error(err))
			return
		}
		r.logger.Info("stream start requested",
			log.String("meetingId", l.meetingID),
			log.String("streamId", l.streamID))
	}
}

func (r *Relay) speech(l *link, ev bridge.SpeechEvent) {
	speechEvents.Add(l.ctx, 1)
	r.sink.Broadcast(l.ctx, ev)
}

func (r *Relay) linkClosed(l *link, err error) {
	r.links.CompareAndDelete(l.key(), l)

	switch l.kind {
	case KindSignaling:
		r.registry.DetachSignaling(l.meetingID, l)
	case KindMedia:
		r.registry.DetachMedia(l.meetingID, l)
	}

	if r.ctx.Err() != nil {
		return
	}
	key := l.key()
	if !r.registry.Exists(l.meetingID) {
		r.backoffs.Delete(key)
		r.logger.Debug("session gone, not reconnecting",
			log.String("meetingId", l.meetingID),
			log.String("kind", string(l.kind)))
		return
	}

	bo, _ := r.backoffs.LoadOrStore(key, r.cfg.Reconnect.newBackOff(r.clock))
	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		r.abandon(l)
		return
	}

	reconnectsScheduled.Add(r.ctx, 1, kindAttr(l.kind))
	r.logger.Info("reconnect scheduled",
		log.String("meetingId", l.meetingID),
		log.String("kind", string(l.kind)),
		log.Duration("delay", delay),
		log.Error(err))

	meetingID, url := l.meetingID, l.url
	switch l.kind {
	case KindSignaling:
		r.scheduler.Schedule(key, delay, func() {
			r.reconnect(meetingID, func() { r.connectSignaling(meetingID) })
		})
	case KindMedia:
		r.scheduler.Schedule(key, delay, func() {
			r.reconnect(meetingID, func() { r.connectMedia(meetingID, url) })
		})
	}

	// Stop may have run since the check above
	if !r.registry.Exists(meetingID) {
		r.scheduler.Cancel(key)
		r.backoffs.Delete(key)
	}
}

// reconnect is a no-op once the session is gone, so a timer that fires
// after teardown never resurrects it.
func (r *Relay) reconnect(meetingID string, connect func()) {
	if r.ctx.Err() != nil || !r.registry.Exists(meetingID) {
		return
	}
	connect()
}

func (r *Relay) abandon(l *link) {
	reconnectsAbandoned.Add(r.ctx, 1, kindAttr(l.kind))
	r.backoffs.Delete(l.key())

	_, sigRunning := r.links.Load(linkKey(l.meetingID, KindSignaling))
	if l.kind == KindMedia && sigRunning {
		r.logger.Warn("media link gave up reconnecting",
			log.String("meetingId", l.meetingID))
		return
	}
	r.logger.Warn("reconnect attempts exhausted, removing session",
		log.String("meetingId", l.meetingID),
		log.String("kind", string(l.kind)))
	r.Stop(l.meetingID)
}
