package rtms

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

const (
	ErrLinkNotOpen errors.Code = "link_not_open"
)

type LinkState int32

const (
	StateConnecting LinkState = iota
	StateHandshaking
	StateReady
	StateClosing
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type LinkKind string

const (
	KindSignaling LinkKind = "signaling"
	KindMedia     LinkKind = "media"
)

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventError
	eventClose
)

// event is the single input of a link state machine.
type event struct {
	kind    eventKind
	msgType websocket.MessageType
	data    []byte
	err     error
}

// Conn is the subset of *websocket.Conn a link needs.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
	CloseNow() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	opts      *websocket.DialOptions
	timeout   time.Duration
	readLimit int64
}

func newDialer(timeout time.Duration, readLimit int64, insecureTLS bool) *wsDialer {
	opts := &websocket.DialOptions{}
	if insecureTLS {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				//nolint:gosec
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	return &wsDialer{
		opts:      opts,
		timeout:   timeout,
		readLimit: readLimit,
	}
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	//nolint:bodyclose
	conn, _, err := websocket.Dial(ctx, url, d.opts)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(d.readLimit)
	return conn, nil
}

// linkOwner receives lifecycle callbacks from links. Implemented by Relay.
type linkOwner interface {
	// linkOpened attaches the link to its session; false means the session
	// is gone and the link closes without reconnecting.
	linkOpened(l *link) bool
	linkReady(l *link, mediaURL string)
	speech(l *link, ev bridge.SpeechEvent)
	linkClosed(l *link, err error)
}

// protocol is the per-kind half of a link state machine.
type protocol interface {
	hello(ctx context.Context) error
	onFrame(ctx context.Context, f *frame) error
	// onUnparsed handles frames that are not structured messages.
	onUnparsed(msgType websocket.MessageType, data []byte, err error)
}

// link drives one websocket through dial, handshake and read loop, feeding
// every lifecycle step into handle.
type link struct {
	kind      LinkKind
	meetingID string
	streamID  string
	url       string

	proto  protocol
	owner  linkOwner
	dialer Dialer
	clock  clockwork.Clock
	creds  Credentials

	writeTimeout time.Duration

	state   atomic.Int32
	opened  atomic.Bool
	connMu  sync.Mutex
	conn    Conn
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *log.Logger
}

func newLink(
	parent context.Context,
	kind LinkKind,
	meetingID, streamID, url string,
	owner linkOwner,
	dialer Dialer,
	clock clockwork.Clock,
	creds Credentials,
	writeTimeout time.Duration,
	logger *log.Logger,
) *link {
	ctx, cancel := context.WithCancel(parent)
	l := &link{
		kind:         kind,
		meetingID:    meetingID,
		streamID:     streamID,
		url:          url,
		owner:        owner,
		dialer:       dialer,
		clock:        clock,
		creds:        creds,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		logger:       logger,
	}
	l.state.Store(int32(StateConnecting))
	return l
}

func (l *link) State() LinkState {
	return LinkState(l.state.Load())
}

func (l *link) setState(s LinkState) {
	prev := LinkState(l.state.Swap(int32(s)))
	if prev != s {
		l.logger.Debug("link state",
			log.String("from", prev.String()),
			log.String("to", s.String()))
	}
}

func (l *link) key() string {
	return linkKey(l.meetingID, l.kind)
}

func (l *link) start() {
	go l.run()
}

func (l *link) run() {
	defer close(l.done)
	defer l.cancel()

	connectAttempts.Add(l.ctx, 1, kindAttr(l.kind))
	conn, err := l.dialer.Dial(l.ctx, l.url)
	if err != nil {
		l.handle(event{kind: eventClose, err: err})
		return
	}
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	// Close may have raced the dial
	if l.State() == StateClosing {
		_ = conn.CloseNow()
		l.handle(event{kind: eventClose, err: context.Canceled})
		return
	}

	l.handle(event{kind: eventOpen})
	for {
		typ, data, err := conn.Read(l.ctx)
		if err != nil {
			l.handle(event{kind: eventClose, err: err})
			return
		}
		l.handle(event{kind: eventMessage, msgType: typ, data: data})
	}
}

// handle is the single entry point of the state machine. It is only called
// from the run goroutine, so transitions for one link never interleave.
func (l *link) handle(ev event) {
	switch ev.kind {
	case eventOpen:
		l.onOpen()
	case eventMessage:
		l.onMessage(ev.msgType, ev.data)
	case eventError:
		l.onError(ev.err)
	case eventClose:
		l.onClose(ev.err)
	}
}

func (l *link) onOpen() {
	if l.State() != StateConnecting {
		return
	}
	if !l.owner.linkOpened(l) {
		l.logger.Info("session refused link, dropping it")
		l.setState(StateClosed)
		l.closeConn(websocket.StatusNormalClosure, "session stopped")
		return
	}

	l.opened.Store(true)
	linksActive.Add(l.ctx, 1, kindAttr(l.kind))
	l.logger.Info("link open", log.String("url", l.url))
	l.setState(StateHandshaking)
	if err := l.proto.hello(l.ctx); err != nil {
		l.handle(event{kind: eventError, err: err})
	}
}

func (l *link) onMessage(msgType websocket.MessageType, data []byte) {
	if msgType != websocket.MessageText {
		l.proto.onUnparsed(msgType, data, nil)
		return
	}
	f, err := decodeFrame(data)
	if err != nil {
		l.proto.onUnparsed(msgType, data, err)
		return
	}

	// liveness is time critical, answer before anything else
	if f.MsgType == MsgKeepAliveReq {
		l.replyKeepAlive(f.keepAliveTimestamp())
		return
	}

	if err := l.proto.onFrame(l.ctx, f); err != nil {
		l.handle(event{kind: eventError, err: err})
	}
}

func (l *link) onError(err error) {
	st := l.State()
	if st == StateClosing || st == StateClosed {
		return
	}
	if errors.Is(err, ErrHandshakeFailed) {
		handshakeFailures.Add(l.ctx, 1, kindAttr(l.kind))
	}
	l.logger.Warn("link error, closing", log.Error(err))
	l.setState(StateClosing)
	l.closeConn(websocket.StatusPolicyViolation, "link error")
}

func (l *link) onClose(err error) {
	prev := LinkState(l.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return
	}
	if l.opened.Load() {
		linksActive.Add(context.Background(), -1, kindAttr(l.kind))
	}
	l.logger.Info("link closed",
		log.String("state", prev.String()),
		log.Error(err))
	l.owner.linkClosed(l, err)
}

func (l *link) replyKeepAlive(ts json.RawMessage) {
	if err := l.send(l.ctx, &KeepAlive{MsgType: MsgKeepAliveAck, Timestamp: ts}); err != nil {
		l.logger.Warn("keep-alive reply failed", log.Error(err))
		return
	}
	keepAlivesAnswered.Add(l.ctx, 1, kindAttr(l.kind))
	l.logger.Debug("keep-alive answered", log.String("timestamp", string(ts)))
}

// Send writes a JSON frame. Safe for concurrent use.
func (l *link) Send(ctx context.Context, msg any) error {
	return l.send(ctx, msg)
}

func (l *link) send(ctx context.Context, msg any) error {
	if st := l.State(); st == StateClosing || st == StateClosed {
		return errors.Newf(ErrLinkNotOpen, "%s link is %s", l.kind, st)
	}

	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		return errors.Newf(ErrLinkNotOpen, "%s link not connected", l.kind)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Close stops the link without triggering reconnect on its own; the owner
// decides that from session presence.
func (l *link) Close() error {
	for {
		st := l.State()
		if st == StateClosing || st == StateClosed {
			return nil
		}
		if l.state.CompareAndSwap(int32(st), int32(StateClosing)) {
			break
		}
	}

	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		// still dialing
		l.cancel()
		return nil
	}

	go func() {
		defer l.cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "session stopped")
	}()
	return nil
}

func (l *link) closeConn(code websocket.StatusCode, reason string) {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		return
	}
	go func() {
		_ = conn.Close(code, reason)
	}()
}

// Done is closed once the run goroutine exits.
func (l *link) Done() <-chan struct{} {
	return l.done
}

func linkKey(meetingID string, kind LinkKind) string {
	return meetingID + "/" + string(kind)
}
