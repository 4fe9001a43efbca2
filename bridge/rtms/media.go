package rtms

import (
	"context"

	"github.com/coder/websocket"

	"github.com/imtaco/rtms-bridge/internal/cryptoutil"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

// MediaLink carries keep-alives and speech content for one meeting.
type MediaLink struct {
	*link
}

func newMediaLink(l *link) *MediaLink {
	m := &MediaLink{link: l}
	l.proto = m
	return m
}

func (m *MediaLink) hello(ctx context.Context) error {
	req := &MediaHelloRequest{
		MsgType:           MsgMediaHello,
		ProtocolVersion:   ProtocolVersion,
		MeetingUUID:       m.meetingID,
		StreamID:          m.streamID,
		Signature:         cryptoutil.Sign(m.creds.ClientID, m.meetingID, m.streamID, m.creds.ClientSecret),
		MediaType:         MediaTypeAudioAll,
		PayloadEncryption: false,
		AllParticipants:   true,
	}
	if err := m.send(ctx, req); err != nil {
		return errors.Wrap(ErrHandshakeFailed, err, "send media hello")
	}
	return nil
}

func (m *MediaLink) onFrame(_ context.Context, f *frame) error {
	switch f.MsgType {
	case MsgMediaHelloAck:
		if m.State() != StateHandshaking {
			m.logger.Debug("ignore media hello ack outside handshake")
			return nil
		}
		ack, err := f.helloAck()
		if err != nil {
			return errors.Wrap(ErrHandshakeFailed, err, "media hello ack")
		}
		if ack.StatusCode != StatusOK {
			return errors.Newf(ErrHandshakeFailed,
				"media handshake rejected: status %d %s", ack.StatusCode, ack.Reason)
		}
		m.setState(StateReady)
		m.logger.Info("media handshake complete")
		m.owner.linkReady(m.link, "")
	case MsgSpeechContent:
		ev, ok, err := f.speechEvent(m.clock.Now())
		if err != nil {
			malformedFrames.Add(m.ctx, 1, kindAttr(m.kind))
			m.logger.Warn("drop undecodable speech frame", log.Error(err))
			return nil
		}
		if !ok {
			blankSpeechDropped.Add(m.ctx, 1)
			return nil
		}
		m.owner.speech(m.link, ev)
	default:
		m.logger.Debug("ignore media message", log.String("type", f.MsgType.String()))
	}
	return nil
}

// Anything that is not a structured message is raw audio, which this relay
// does not decode.
func (m *MediaLink) onUnparsed(msgType websocket.MessageType, data []byte, _ error) {
	rawFrames.Add(m.ctx, 1)
	m.logger.Debug("skip raw audio frame",
		log.String("type", msgType.String()),
		log.Int("size", len(data)))
}
