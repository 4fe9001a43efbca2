package rtms

import (
	"context"

	"github.com/coder/websocket"

	"github.com/imtaco/rtms-bridge/internal/cryptoutil"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

// SignalingLink negotiates the meeting session and obtains the media
// server address.
type SignalingLink struct {
	*link
}

func newSignalingLink(l *link) *SignalingLink {
	s := &SignalingLink{link: l}
	l.proto = s
	return s
}

func (s *SignalingLink) hello(ctx context.Context) error {
	seq, err := cryptoutil.RandomSequence()
	if err != nil {
		return err
	}
	req := &HelloRequest{
		MsgType:         MsgHello,
		ProtocolVersion: ProtocolVersion,
		MeetingUUID:     s.meetingID,
		StreamID:        s.streamID,
		Sequence:        seq,
		Signature:       cryptoutil.Sign(s.creds.ClientID, s.meetingID, s.streamID, s.creds.ClientSecret),
	}
	if err := s.send(ctx, req); err != nil {
		return errors.Wrap(ErrHandshakeFailed, err, "send signaling hello")
	}
	s.logger.Debug("signaling hello sent", log.Int64("sequence", seq))
	return nil
}

func (s *SignalingLink) onFrame(_ context.Context, f *frame) error {
	switch f.MsgType {
	case MsgHelloAck:
		if s.State() != StateHandshaking {
			s.logger.Debug("ignore hello ack outside handshake")
			return nil
		}
		ack, err := f.helloAck()
		if err != nil {
			return errors.Wrap(ErrHandshakeFailed, err, "signaling hello ack")
		}
		if ack.StatusCode != StatusOK {
			return errors.Newf(ErrHandshakeFailed,
				"signaling handshake rejected: status %d %s", ack.StatusCode, ack.Reason)
		}
		mediaURL := ack.mediaURL()
		if mediaURL == "" {
			return errors.New(ErrHandshakeFailed, "signaling handshake without media server url")
		}
		s.setState(StateReady)
		s.logger.Info("signaling handshake complete", log.String("mediaUrl", mediaURL))
		s.owner.linkReady(s.link, mediaURL)
	default:
		s.logger.Debug("ignore signaling message", log.String("type", f.MsgType.String()))
	}
	return nil
}

func (s *SignalingLink) onUnparsed(msgType websocket.MessageType, data []byte, err error) {
	malformedFrames.Add(s.ctx, 1, kindAttr(s.kind))
	s.logger.Warn("drop malformed signaling frame",
		log.String("type", msgType.String()),
		log.Int("size", len(data)),
		log.Error(err))
}
