package rtms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/imtaco/rtms-bridge/bridge/session"
	"github.com/imtaco/rtms-bridge/internal/cryptoutil"
	"github.com/imtaco/rtms-bridge/internal/log"
	"github.com/imtaco/rtms-bridge/internal/scheduler"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain blocks until the client goes away.
func drain(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func TestRelayEndToEnd(t *testing.T) {
	hellos := make(chan HelloRequest, 1)
	mediaHellos := make(chan MediaHelloRequest, 1)
	starts := make(chan StartStreamRequest, 1)

	mediaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		var hello MediaHelloRequest
		if err := wsjson.Read(ctx, conn, &hello); err != nil {
			return
		}
		mediaHellos <- hello
		_ = wsjson.Write(ctx, conn, map[string]any{"msg_type": MsgMediaHelloAck, "status_code": 0})
		// raw audio is skipped
		_ = conn.Write(ctx, websocket.MessageBinary, []byte{0xde, 0xad})
		_ = wsjson.Write(ctx, conn, map[string]any{
			"msg_type": MsgSpeechContent,
			"content": map[string]any{
				"user_id":   "u1",
				"user_name": "Ana",
				"data":      "hola",
				"timestamp": 1700000000000000,
			},
		})
		drain(ctx, conn)
	}))
	t.Cleanup(mediaSrv.Close)

	sigSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		var hello HelloRequest
		if err := wsjson.Read(ctx, conn, &hello); err != nil {
			return
		}
		hellos <- hello
		_ = wsjson.Write(ctx, conn, map[string]any{"msg_type": MsgKeepAliveReq, "timestamp": 99})
		var ack KeepAlive
		if err := wsjson.Read(ctx, conn, &ack); err != nil || ack.MsgType != MsgKeepAliveAck || string(ack.Timestamp) != "99" {
			return
		}
		_ = wsjson.Write(ctx, conn, map[string]any{
			"msg_type":     MsgHelloAck,
			"status_code":  0,
			"media_server": map[string]any{"server_urls": map[string]any{"all": wsURL(mediaSrv)}},
		})
		var start StartStreamRequest
		if err := wsjson.Read(ctx, conn, &start); err != nil {
			return
		}
		starts <- start
		drain(ctx, conn)
	}))
	t.Cleanup(sigSrv.Close)

	logger := log.NewNop()
	sched := scheduler.NewKeyedScheduler(logger)
	t.Cleanup(sched.Shutdown)

	cfg := &Config{
		Credentials:  Credentials{ClientID: "client", ClientSecret: "secret"},
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
		ReadLimit:    1 << 20,
		Reconnect:    ReconnectConfig{Delay: 5 * time.Second},
	}
	registry := session.NewRegistry(logger)
	sink := newRecordingSink()
	relay := NewRelay(cfg, registry, sink, sched, logger)
	t.Cleanup(relay.Close)

	require.True(t, relay.Start(context.Background(), "m1", "s1", wsURL(sigSrv)))

	select {
	case hello := <-hellos:
		require.Equal(t, "m1", hello.MeetingUUID)
		require.Equal(t, "s1", hello.StreamID)
		require.Equal(t, cryptoutil.Sign("client", "m1", "s1", "secret"), hello.Signature)
	case <-time.After(waitTimeout):
		require.FailNow(t, "no signaling hello")
	}

	select {
	case hello := <-mediaHellos:
		require.Equal(t, MediaTypeAudioAll, hello.MediaType)
	case <-time.After(waitTimeout):
		require.FailNow(t, "no media hello")
	}

	select {
	case start := <-starts:
		require.Equal(t, MsgStartStream, start.MsgType)
		require.Equal(t, "s1", start.StreamID)
	case <-time.After(waitTimeout):
		require.FailNow(t, "no start stream")
	}

	ev := sink.next(t)
	require.Equal(t, "u1", ev.SpeakerID)
	require.Equal(t, "Ana", ev.SpeakerName)
	require.Equal(t, "hola", ev.Text)
	require.Equal(t, int64(1700000000000000), ev.TimestampMicros)
	sink.expectNothing(t)

	require.True(t, relay.Stop("m1"))
	require.False(t, registry.Exists("m1"))
}
