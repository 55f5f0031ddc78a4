package relay

import "github.com/cml-fleet/worker-engine/domain/event"

// Subscriber is one registered event consumer: a bounded queue plus an
// optional filter on worker id and event type. Both filters default to
// "accept everything" when nil, mirroring the original subscription's
// nil-means-unfiltered semantics.
type Subscriber struct {
	ID        string
	Queue     chan event.Envelope
	WorkerIDs map[string]struct{}
	Types     map[event.Type]struct{}
}

// NewSubscriber builds a Subscriber with a queue of the given capacity.
// A nil workerIDs/types set means "no filter on this dimension."
func NewSubscriber(id string, capacity int, workerIDs map[string]struct{}, types map[event.Type]struct{}) *Subscriber {
	return &Subscriber{
		ID:        id,
		Queue:     make(chan event.Envelope, capacity),
		WorkerIDs: workerIDs,
		Types:     types,
	}
}

// Matches reports whether env passes this subscriber's filters.
func (s *Subscriber) Matches(env event.Envelope) bool {
	if s.Types != nil {
		if _, ok := s.Types[env.Type]; !ok {
			return false
		}
	}
	if s.WorkerIDs != nil {
		workerID, _ := env.Data["worker_id"].(string)
		if workerID == "" {
			return false
		}
		if _, ok := s.WorkerIDs[workerID]; !ok {
			return false
		}
	}
	return true
}
