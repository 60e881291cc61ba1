// Package events implements the kernel's observability fan-out: every
// subsystem emits domain.KernelEvent values through one Sink, and
// StreamEvents subscribers each get their own buffered channel.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
)

const subscriberBuffer = 256

// Sink implements domain.EventSinkIface with non-blocking fan-out: when a
// subscriber's buffer is full, the new event is dropped for that subscriber,
// so a slow StreamEvents client never backpressures the emitting
// subsystem, a log-and-move-on posture around event channels rather than
// a synchronous broadcast.
type Sink struct {
	mu   sync.RWMutex
	subs map[string]chan domain.KernelEvent
}

func NewSink() *Sink {
	return &Sink{subs: make(map[string]chan domain.KernelEvent)}
}

func (s *Sink) Emit(evt domain.KernelEvent) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = domain.NowMicros(time.Now())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			logrus.Debugf("event subscriber %s is slow, dropping %s", id, evt.Kind)
		}
	}
}

// Subscribe registers a new fan-out channel and returns a cancel func that
// unregisters it (the channel is neither closed nor drained); callers
// (StreamEvents handlers) defer cancel().
func (s *Sink) Subscribe() (<-chan domain.KernelEvent, func()) {
	id := uuid.NewString()
	ch := make(chan domain.KernelEvent, subscriberBuffer)

	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

var _ domain.EventSinkIface = (*Sink)(nil)
