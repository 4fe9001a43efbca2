package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

const (
	ErrBufferFull errors.Code = "buffer_full"
)

const (
	pingInterval = 10 * time.Second
	pingTimeout  = 3 * time.Second
	writeTimeout = 3 * time.Second
	bufMessages  = 64
)

// subscriber owns one UI socket. Writes go through a buffered channel
// drained by a single pump goroutine so a slow browser never blocks
// the broadcaster.
type subscriber struct {
	id    string
	conn  *websocket.Conn
	chBuf chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	onClose   func(id string)
	logger    *log.Logger
}

func newSubscriber(
	parent context.Context,
	id string,
	conn *websocket.Conn,
	onClose func(id string),
	logger *log.Logger,
) *subscriber {
	// no inbound protocol; CloseRead also notices the peer going away
	ctx, cancel := context.WithCancel(conn.CloseRead(parent))
	return &subscriber{
		id:      id,
		conn:    conn,
		chBuf:   make(chan []byte, bufMessages),
		ctx:     ctx,
		cancel:  cancel,
		onClose: onClose,
		logger:  logger,
	}
}

func (s *subscriber) open() {
	go func() {
		err := s.writePump(s.ctx)
		s.close(err)
	}()
}

// enqueue never blocks. A full buffer drops the subscriber.
func (s *subscriber) enqueue(data []byte) error {
	select {
	case <-s.ctx.Done():
		return net.ErrClosed
	default:
	}

	select {
	case s.chBuf <- data:
		return nil
	default:
		s.close(ErrBufferFull)
		return ErrBufferFull
	}
}

func (s *subscriber) close(err error) {
	s.closeOnce.Do(func() {
		closed := false
		code := websocket.StatusNormalClosure

		switch {
		case err == nil, errors.Is(err, context.Canceled):
			s.logger.Debug("subscriber closed")
		case websocket.CloseStatus(err) != -1:
			s.logger.Debug("subscriber went away", log.Any("code", websocket.CloseStatus(err)))
			closed = true
		case errors.Is(err, net.ErrClosed):
			closed = true
		case errors.Is(err, ErrBufferFull):
			s.logger.Warn("subscriber too slow, dropping")
			code = websocket.StatusPolicyViolation
			subscribersDropped.Add(ctxBg, 1)
		default:
			s.logger.Info("subscriber write failed", log.Error(err))
			code = websocket.StatusInternalError
		}

		if closed {
			_ = s.conn.CloseNow()
		} else {
			go func() { _ = s.conn.Close(code, "bye") }()
		}
		s.cancel()
		if s.onClose != nil {
			s.onClose(s.id)
		}
	})
}

func (s *subscriber) wait() {
	<-s.ctx.Done()
}

func (s *subscriber) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.ping(ctx); err != nil {
				return err
			}
		case data := <-s.chBuf:
			if err := s.write(ctx, data); err != nil {
				return err
			}
		}
	}
}

func (s *subscriber) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return err
	}
	messagesSent.Add(ctx, 1)
	return nil
}

func (s *subscriber) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.conn.Ping(ctx)
}
