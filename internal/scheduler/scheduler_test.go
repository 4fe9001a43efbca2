package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/imtaco/rtms-bridge/internal/log"
)

type SchedulerTestSuite struct {
	suite.Suite
	clock     *clockwork.FakeClock
	scheduler *KeyedScheduler
	mu        sync.Mutex
	triggered map[string]int
	fired     chan string
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) SetupTest() {
	s.clock = clockwork.NewFakeClock()
	s.scheduler = NewKeyedSchedulerWithClock(log.NewNop(), s.clock)
	s.triggered = make(map[string]int)
	s.fired = make(chan string, 32)
}

func (s *SchedulerTestSuite) TearDownTest() {
	s.scheduler.Shutdown()
}

func (s *SchedulerTestSuite) callback(key string) func() {
	return func() {
		s.mu.Lock()
		s.triggered[key]++
		s.mu.Unlock()
		s.fired <- key
	}
}

func (s *SchedulerTestSuite) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered[key]
}

func (s *SchedulerTestSuite) waitFired() string {
	select {
	case key := <-s.fired:
		return key
	case <-time.After(2 * time.Second):
		s.FailNow("callback did not fire")
		return ""
	}
}

func (s *SchedulerTestSuite) assertNothingFired() {
	select {
	case key := <-s.fired:
		s.Failf("unexpected fire", "key %s fired", key)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *SchedulerTestSuite) TestBasic() {
	s.scheduler.Schedule("key1", 50*time.Millisecond, s.callback("key1"))
	s.scheduler.Schedule("key2", 100*time.Millisecond, s.callback("key2"))
	s.True(s.scheduler.Pending("key1"))

	s.clock.Advance(50 * time.Millisecond)
	s.Equal("key1", s.waitFired())

	s.clock.Advance(50 * time.Millisecond)
	s.Equal("key2", s.waitFired())

	s.Equal(1, s.count("key1"))
	s.Equal(1, s.count("key2"))
	s.False(s.scheduler.Pending("key1"))
}

func (s *SchedulerTestSuite) TestCancelBeforeDue() {
	s.scheduler.Schedule("key1", 100*time.Millisecond, s.callback("key1"))
	s.scheduler.Cancel("key1")
	s.False(s.scheduler.Pending("key1"))

	s.clock.Advance(time.Second)
	s.assertNothingFired()
	s.Equal(0, s.count("key1"))
}

func (s *SchedulerTestSuite) TestCancelKeepsOthers() {
	nowPlus100ms := s.clock.Now().Add(100 * time.Millisecond)
	nowPlus200ms := s.clock.Now().Add(200 * time.Millisecond)

	// drive the heap directly, without the loop goroutine
	ks := &KeyedScheduler{
		items:  make(map[string]*item),
		heap:   make(priorityQueue, 0),
		timer:  s.clock.NewTimer(time.Hour),
		clock:  s.clock,
		logger: log.NewNop(),
	}
	ks.doSchedule(&item{key: "key1", ts: nowPlus100ms, fn: func() {}})
	ks.doSchedule(&item{key: "key2", ts: nowPlus200ms, fn: func() {}})
	s.Equal(2, len(ks.items))
	s.Equal(nowPlus100ms, ks.timerTS)

	ks.doCancel("key1")
	s.Equal(1, len(ks.heap))
	s.Equal(nowPlus200ms, ks.timerTS)
	_, ok := ks.items["key2"]
	s.True(ok)
}

func (s *SchedulerTestSuite) TestClear() {
	s.scheduler.Schedule("key1", 100*time.Millisecond, s.callback("key1"))
	s.scheduler.Schedule("key2", 100*time.Millisecond, s.callback("key2"))
	s.scheduler.Clear()

	s.False(s.scheduler.Pending("key1"))
	s.False(s.scheduler.Pending("key2"))
	s.clock.Advance(time.Second)
	s.assertNothingFired()
}

func (s *SchedulerTestSuite) TestEarlierDeadlineWins() {
	s.scheduler.Schedule("key1", 100*time.Millisecond, s.callback("key1"))
	s.scheduler.Schedule("key1", 50*time.Millisecond, s.callback("key1"))
	s.Require().True(s.scheduler.Pending("key1"))

	s.clock.Advance(50 * time.Millisecond)
	s.Equal("key1", s.waitFired())

	s.clock.Advance(time.Second)
	s.assertNothingFired()
	s.Equal(1, s.count("key1"))
}

func (s *SchedulerTestSuite) TestLaterDeadlineIgnored() {
	s.scheduler.Schedule("key1", 100*time.Millisecond, s.callback("key1"))
	s.scheduler.Schedule("key1", 200*time.Millisecond, s.callback("key1"))
	s.Require().True(s.scheduler.Pending("key1"))

	s.clock.Advance(100 * time.Millisecond)
	s.Equal("key1", s.waitFired())

	s.clock.Advance(time.Second)
	s.assertNothingFired()
}

func (s *SchedulerTestSuite) TestScheduleAfterFireStartsAfresh() {
	s.scheduler.Schedule("key1", 100*time.Millisecond, s.callback("key1"))
	s.Require().True(s.scheduler.Pending("key1"))
	s.clock.Advance(100 * time.Millisecond)
	s.Equal("key1", s.waitFired())
	s.Require().Eventually(func() bool { return !s.scheduler.Pending("key1") },
		time.Second, 5*time.Millisecond)

	s.scheduler.Schedule("key1", 200*time.Millisecond, s.callback("key1"))
	s.Require().True(s.scheduler.Pending("key1"))
	s.clock.Advance(200 * time.Millisecond)
	s.Equal("key1", s.waitFired())
	s.Equal(2, s.count("key1"))
}

func (s *SchedulerTestSuite) TestRescheduleFromCallback() {
	var once sync.Once
	var again func()
	again = func() {
		s.fired <- "tick"
		once.Do(func() {
			s.scheduler.Schedule("tick", 10*time.Millisecond, again)
		})
	}
	s.scheduler.Schedule("tick", 10*time.Millisecond, again)

	s.clock.Advance(10 * time.Millisecond)
	s.Equal("tick", s.waitFired())

	s.Eventually(func() bool { return s.scheduler.Pending("tick") }, time.Second, 5*time.Millisecond)
	s.clock.Advance(10 * time.Millisecond)
	s.Equal("tick", s.waitFired())
}

func (s *SchedulerTestSuite) TestConcurrentKeys() {
	expected := 10
	for i := range expected {
		key := fmt.Sprintf("key%d", i)
		s.scheduler.Schedule(key, 50*time.Millisecond, s.callback(key))
	}
	s.Eventually(func() bool { return s.scheduler.Pending("key9") }, time.Second, 5*time.Millisecond)

	s.clock.Advance(50 * time.Millisecond)

	seen := map[string]bool{}
	for range expected {
		seen[s.waitFired()] = true
	}
	s.Len(seen, expected)
}

func (s *SchedulerTestSuite) TestPanickingCallbackDoesNotStopLoop() {
	s.scheduler.Schedule("boom", 10*time.Millisecond, func() { panic("boom") })
	s.scheduler.Schedule("ok", 20*time.Millisecond, s.callback("ok"))

	s.clock.Advance(20 * time.Millisecond)
	s.Equal("ok", s.waitFired())
}

func (s *SchedulerTestSuite) TestScheduleAfterShutdownDoesNotBlock() {
	s.scheduler.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			s.scheduler.Schedule("late", time.Millisecond, func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Fail("Schedule blocked after shutdown")
	}
	s.False(s.scheduler.Pending("late"))
}
