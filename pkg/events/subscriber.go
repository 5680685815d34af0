package events

import (
	"log/slog"
	"sync"

	"github.com/dope-context/dope/pkg/models"
)

// subscriber owns one bounded delivery queue and one worker goroutine. A
// slow handler backs up only its own queue; under overflow the oldest
// lowest-priority event is evicted to admit a higher-priority arrival, and
// a lower-or-equal-priority arrival is dropped instead.
type subscriber struct {
	name    string
	pattern string
	handler Handler

	mu       sync.Mutex
	queue    []models.Event
	capacity int
	drops    int64
	stopped  bool

	wake chan struct{}
	done chan struct{}

	logger *slog.Logger
}

func newSubscriber(name, pattern string, handler Handler, capacity int, logger *slog.Logger) *subscriber {
	return &subscriber{
		name:     name,
		pattern:  pattern,
		handler:  handler,
		capacity: capacity,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (s *subscriber) enqueue(event models.Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.capacity {
		victim := s.lowestPriorityIndexLocked()
		if victim < 0 || s.queue[victim].Priority.DropRank() >= event.Priority.DropRank() {
			// Nothing in the queue outranks the arrival downward; the
			// arrival itself is the drop.
			s.drops++
			s.mu.Unlock()
			s.logger.Warn("Subscriber queue full, dropping event",
				"subscriber", s.name, "event_type", event.EventType, "priority", event.Priority)
			return
		}
		dropped := s.queue[victim]
		s.queue = append(s.queue[:victim], s.queue[victim+1:]...)
		s.drops++
		s.logger.Warn("Subscriber queue full, evicting event",
			"subscriber", s.name, "evicted_type", dropped.EventType, "evicted_priority", dropped.Priority)
	}
	s.queue = append(s.queue, event)
	// Signal under the lock so stop's close of wake cannot race the send.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

// lowestPriorityIndexLocked returns the index of the oldest event holding
// the lowest priority in the queue, or -1 when empty.
func (s *subscriber) lowestPriorityIndexLocked() int {
	idx := -1
	for i, e := range s.queue {
		if idx < 0 || e.Priority.DropRank() < s.queue[idx].Priority.DropRank() {
			idx = i
		}
	}
	return idx
}

func (s *subscriber) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			if _, ok := <-s.wake; !ok {
				return
			}
			continue
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handler(event)
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.wake)
	s.mu.Unlock()
	<-s.done
}

func (s *subscriber) dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}
