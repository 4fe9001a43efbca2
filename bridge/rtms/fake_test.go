package rtms

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/imtaco/rtms-bridge/bridge"
)

const waitTimeout = 2 * time.Second

type fakeMsg struct {
	typ  websocket.MessageType
	data []byte
}

// fakeConn plays the RTMS server side of one link.
type fakeConn struct {
	url    string
	in     chan fakeMsg
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{
		url:    url,
		in:     make(chan fakeMsg, 32),
		out:    make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case m := <-c.in:
		return m.typ, m.data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	c.out <- append([]byte(nil), p...)
	return nil
}

func (c *fakeConn) Close(_ websocket.StatusCode, _ string) error {
	return c.CloseNow()
}

func (c *fakeConn) CloseNow() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// push sends a JSON frame from the server.
func (c *fakeConn) push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	c.in <- fakeMsg{typ: websocket.MessageText, data: data}
}

func (c *fakeConn) pushRaw(typ websocket.MessageType, data []byte) {
	c.in <- fakeMsg{typ: typ, data: data}
}

// wireMsg covers every field a link writes.
type wireMsg struct {
	MsgType           MsgType         `json:"msg_type"`
	ProtocolVersion   int             `json:"protocol_version"`
	MeetingUUID       string          `json:"meeting_uuid"`
	StreamID          string          `json:"rtms_stream_id"`
	Sequence          int64           `json:"sequence"`
	Signature         string          `json:"signature"`
	MediaType         int             `json:"media_type"`
	PayloadEncryption bool            `json:"payload_encryption"`
	AllParticipants   bool            `json:"all_participants"`
	Timestamp         json.RawMessage `json:"timestamp"`
}

func (c *fakeConn) expect(t *testing.T) wireMsg {
	t.Helper()
	select {
	case data := <-c.out:
		var m wireMsg
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(waitTimeout):
		require.FailNow(t, "no frame written", c.url)
		return wireMsg{}
	}
}

func (c *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.out:
		require.FailNow(t, "unexpected frame", string(data))
	case <-time.After(100 * time.Millisecond):
	}
}

// serverClose drops the connection from the server side.
func (c *fakeConn) serverClose() {
	_ = c.CloseNow()
}

func (c *fakeConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(waitTimeout):
		require.FailNow(t, "connection not closed", c.url)
	}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands every dialed connection to the test.
type fakeDialer struct {
	mu    sync.Mutex
	gate  chan struct{}
	err   error
	conns chan *fakeConn
	dials chan string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		conns: make(chan *fakeConn, 16),
		dials: make(chan string, 16),
	}
}

// hold blocks dials until release is called or the dial ctx ends.
func (d *fakeDialer) hold() {
	d.mu.Lock()
	d.gate = make(chan struct{})
	d.mu.Unlock()
}

func (d *fakeDialer) release() {
	d.mu.Lock()
	close(d.gate)
	d.gate = nil
	d.mu.Unlock()
}

func (d *fakeDialer) failWith(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	gate, err := d.gate, d.err
	d.mu.Unlock()

	d.dials <- url
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	conn := newFakeConn(url)
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		// consume the attempt that produced c, unless nextDial already did
		select {
		case <-d.dials:
		default:
		}
		return c
	case <-time.After(waitTimeout):
		require.FailNow(t, "no dial")
		return nil
	}
}

func (d *fakeDialer) nextDial(t *testing.T) string {
	t.Helper()
	select {
	case url := <-d.dials:
		return url
	case <-time.After(waitTimeout):
		require.FailNow(t, "no dial attempt")
		return ""
	}
}

func (d *fakeDialer) expectNoDial(t *testing.T) {
	t.Helper()
	select {
	case url := <-d.dials:
		require.FailNow(t, "unexpected dial", url)
	case <-time.After(100 * time.Millisecond):
	}
}

// recordingSink collects broadcast speech events in arrival order.
type recordingSink struct {
	events chan bridge.SpeechEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan bridge.SpeechEvent, 32)}
}

func (s *recordingSink) Broadcast(_ context.Context, ev bridge.SpeechEvent) {
	s.events <- ev
}

func (s *recordingSink) next(t *testing.T) bridge.SpeechEvent {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(waitTimeout):
		require.FailNow(t, "no speech event")
		return bridge.SpeechEvent{}
	}
}

func (s *recordingSink) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case ev := <-s.events:
		require.FailNow(t, "unexpected speech event", ev.Text)
	case <-time.After(100 * time.Millisecond):
	}
}
