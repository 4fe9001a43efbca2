package bridge

// SubscriberCounter is satisfied by the broadcast hub.
type SubscriberCounter interface {
	Count() int
}

type stats struct {
	registry    SessionRegistry
	subscribers SubscriberCounter
}

func NewStatsProvider(registry SessionRegistry, subscribers SubscriberCounter) StatsProvider {
	return &stats{
		registry:    registry,
		subscribers: subscribers,
	}
}

func (s *stats) Stats() Stats {
	ids := s.registry.MeetingIDs()
	if ids == nil {
		ids = []string{}
	}
	return Stats{
		Sessions:    len(ids),
		MeetingIDs:  ids,
		Subscribers: s.subscribers.Count(),
	}
}
