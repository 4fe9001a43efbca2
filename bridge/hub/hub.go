package hub

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/imtaco/rtms-bridge/bridge"
	"github.com/imtaco/rtms-bridge/internal/log"
	isync "github.com/imtaco/rtms-bridge/internal/sync"
)

const MessageTypeSpeech = "speech"

// Message is what every UI subscriber receives.
type Message struct {
	Type string        `json:"type"`
	Data SpeechPayload `json:"data"`
}

type SpeechPayload struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

func NewMessage(ev bridge.SpeechEvent) Message {
	return Message{
		Type: MessageTypeSpeech,
		Data: SpeechPayload{
			UserID:    ev.SpeakerID,
			UserName:  ev.SpeakerName,
			Data:      ev.Text,
			Timestamp: ev.TimestampMicros,
		},
	}
}

// Hub fans speech events out to every connected UI socket.
type Hub struct {
	subs           *isync.Map[string, *subscriber]
	allowedOrigins []string

	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger
}

var _ bridge.Broadcaster = (*Hub)(nil)

func NewHub(allowedOrigins []string, logger *log.Logger) *Hub {
	if logger == nil {
		panic("logger is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		subs:           isync.NewMap[string, *subscriber](),
		allowedOrigins: allowedOrigins,
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger,
	}
}

// HandleWebSocket upgrades a UI connection and holds it until it closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err))
		return
	}

	sub := h.subscribe(conn)
	h.logger.Info("ui subscriber connected",
		log.String("id", sub.id),
		log.String("remote_addr", r.RemoteAddr),
		log.Int("subscribers", h.Count()))

	sub.wait()
}

// Subscribe registers an accepted socket and returns its id.
func (h *Hub) Subscribe(conn *websocket.Conn) string {
	return h.subscribe(conn).id
}

func (h *Hub) subscribe(conn *websocket.Conn) *subscriber {
	id := uuid.NewString()
	sub := newSubscriber(h.ctx, id, conn, h.remove, h.logger.With(log.String("subscriber", id)))
	h.subs.Store(id, sub)
	subscribersActive.Add(ctxBg, 1)
	sub.open()
	return sub
}

// Unsubscribe closes and forgets a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	if sub, ok := h.subs.Load(id); ok {
		sub.close(nil)
	}
}

func (h *Hub) remove(id string) {
	if _, ok := h.subs.LoadAndDelete(id); ok {
		subscribersActive.Add(ctxBg, -1)
		h.logger.Info("ui subscriber disconnected",
			log.String("id", id),
			log.Int("subscribers", h.Count()))
	}
}

func (h *Hub) Count() int {
	return h.subs.Len()
}

// Broadcast queues the event on every subscriber. It never fails; a
// subscriber that cannot keep up is dropped on its own.
func (h *Hub) Broadcast(_ context.Context, ev bridge.SpeechEvent) {
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		h.logger.Error("marshal speech event", log.Error(err))
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw queues an already encoded message.
func (h *Hub) BroadcastRaw(data []byte) {
	for _, sub := range h.subs.Values() {
		if err := sub.enqueue(data); err != nil {
			h.logger.Debug("skip subscriber",
				log.String("id", sub.id),
				log.Error(err))
		}
	}
	broadcasts.Add(ctxBg, 1)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.cancel()
	for _, sub := range h.subs.Values() {
		sub.close(nil)
	}
}
