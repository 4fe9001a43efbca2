package webhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
	gomock "go.uber.org/mock/gomock"

	"github.com/imtaco/rtms-bridge/bridge/mocks"
	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/log"
)

type DispatcherTestSuite struct {
	suite.Suite
	ctx        context.Context
	ctrl       *gomock.Controller
	sessions   *mocks.MockSessionController
	dispatcher *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func (s *DispatcherTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.sessions = mocks.NewMockSessionController(s.ctrl)
	s.dispatcher = NewDispatcher("secret", s.sessions, log.NewNop())
}

func event(name string, payload any) *Event {
	raw, _ := json.Marshal(payload)
	return &Event{Event: name, Payload: raw}
}

func (s *DispatcherTestSuite) TestChallenge() {
	resp, err := s.dispatcher.HandleChallenge("abc")
	s.Require().NoError(err)
	s.Equal("abc", resp.PlainToken)
	// HMAC-SHA256("secret", "abc")
	s.Equal("9946dad4e00e913fc8be8e5d3f7e110a4a9e832f83fb09c345285d78638d8a0e", resp.EncryptedToken)
}

func (s *DispatcherTestSuite) TestChallengeWithoutSecretFailsClosed() {
	d := NewDispatcher("", s.sessions, log.NewNop())

	resp, err := d.HandleChallenge("abc")
	s.Nil(resp)
	s.True(errors.Is(err, ErrSecretUnset))

	resp, err = d.Dispatch(s.ctx, event(EventURLValidation, map[string]string{"plainToken": "abc"}))
	s.Nil(resp)
	s.True(errors.Is(err, ErrSecretUnset))
}

func (s *DispatcherTestSuite) TestDispatchChallenge() {
	resp, err := s.dispatcher.Dispatch(s.ctx, event(EventURLValidation, map[string]string{"plainToken": "abc"}))
	s.Require().NoError(err)
	s.Equal("abc", resp.PlainToken)
	s.NotEmpty(resp.EncryptedToken)
}

func (s *DispatcherTestSuite) TestDispatchChallengeWithoutToken() {
	resp, err := s.dispatcher.Dispatch(s.ctx, event(EventURLValidation, map[string]string{}))
	s.Nil(resp)
	s.NoError(err)

	resp, err = s.dispatcher.Dispatch(s.ctx, &Event{Event: EventURLValidation})
	s.Nil(resp)
	s.NoError(err)
}

func (s *DispatcherTestSuite) TestDispatchStarted() {
	s.sessions.EXPECT().Start(gomock.Any(), "m1", "s1", "wss://sig").Return(true)

	resp, err := s.dispatcher.Dispatch(s.ctx, event(EventRTMSStarted, map[string]string{
		"meeting_uuid":   "m1",
		"rtms_stream_id": "s1",
		"server_urls":    "wss://sig",
	}))
	s.NoError(err)
	s.Nil(resp)
}

func (s *DispatcherTestSuite) TestDispatchStartedTwice() {
	gomock.InOrder(
		s.sessions.EXPECT().Start(gomock.Any(), "m1", "s1", "wss://sig").Return(true),
		s.sessions.EXPECT().Start(gomock.Any(), "m1", "s1", "wss://sig").Return(false),
	)

	s.True(s.dispatcher.HandleSessionStarted(s.ctx, "m1", "s1", "wss://sig"))
	s.False(s.dispatcher.HandleSessionStarted(s.ctx, "m1", "s1", "wss://sig"))
}

func (s *DispatcherTestSuite) TestDispatchStartedInvalidPayloadIsAcknowledged() {
	// no Start expected
	for _, payload := range []map[string]string{
		{"rtms_stream_id": "s1", "server_urls": "wss://sig"},
		{"meeting_uuid": "m1", "server_urls": "wss://sig"},
		{"meeting_uuid": "m1", "rtms_stream_id": "s1", "server_urls": "https://sig"},
	} {
		resp, err := s.dispatcher.Dispatch(s.ctx, event(EventRTMSStarted, payload))
		s.NoError(err)
		s.Nil(resp)
	}

	resp, err := s.dispatcher.Dispatch(s.ctx, &Event{Event: EventRTMSStarted})
	s.NoError(err)
	s.Nil(resp)
}

func (s *DispatcherTestSuite) TestDispatchStopped() {
	s.sessions.EXPECT().Stop("m1").Return(true)

	resp, err := s.dispatcher.Dispatch(s.ctx, event(EventRTMSStopped, map[string]string{"meeting_uuid": "m1"}))
	s.NoError(err)
	s.Nil(resp)
}

func (s *DispatcherTestSuite) TestStopUnknownMeeting() {
	s.sessions.EXPECT().Stop("ghost").Return(false)
	s.False(s.dispatcher.HandleSessionStopped("ghost"))
}

func (s *DispatcherTestSuite) TestDispatchIgnoresOtherEvents() {
	resp, err := s.dispatcher.Dispatch(s.ctx, event("meeting.started", map[string]string{"meeting_uuid": "m1"}))
	s.NoError(err)
	s.Nil(resp)

	resp, err = s.dispatcher.Dispatch(s.ctx, &Event{})
	s.NoError(err)
	s.Nil(resp)
}
