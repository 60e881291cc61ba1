package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
)

func TestSubscribeReceivesEmittedEvent(t *testing.T) {
	s := NewSink()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Emit(domain.KernelEvent{Kind: "process.created", Pid: domain.PID(1)})

	select {
	case evt := <-ch:
		assert.Equal(t, "process.created", evt.Kind)
		assert.Equal(t, domain.PID(1), evt.Pid)
		assert.NotEmpty(t, evt.ID, "emit stamps an id when the caller leaves it blank")
		assert.NotZero(t, evt.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestEmitWithNoSubscribersDoesNotBlock(t *testing.T) {
	s := NewSink()
	done := make(chan struct{})
	go func() {
		s.Emit(domain.KernelEvent{Kind: "noop"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked with zero subscribers")
	}
}

func TestCancelUnregistersSubscriber(t *testing.T) {
	s := NewSink()
	_, cancel := s.Subscribe()

	s.mu.RLock()
	before := len(s.subs)
	s.mu.RUnlock()
	require.Equal(t, 1, before)

	cancel()

	s.mu.RLock()
	after := len(s.subs)
	s.mu.RUnlock()
	assert.Equal(t, 0, after)
}

func TestSlowSubscriberDropsRatherThanBlocksEmitter(t *testing.T) {
	s := NewSink()
	ch, cancel := s.Subscribe()
	defer cancel()

	// fill the subscriber's buffer without draining it, then emit one more;
	// Emit must return promptly rather than block on the full channel.
	for i := 0; i < subscriberBuffer; i++ {
		s.Emit(domain.KernelEvent{Kind: "fill"})
	}

	done := make(chan struct{})
	go func() {
		s.Emit(domain.KernelEvent{Kind: "overflow"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full subscriber channel instead of dropping")
	}

	// drain one to prove the channel is still usable afterward.
	select {
	case <-ch:
	default:
		t.Fatal("expected at least one buffered event")
	}
}

func TestMultipleSubscribersEachGetTheEvent(t *testing.T) {
	s := NewSink()
	ch1, cancel1 := s.Subscribe()
	defer cancel1()
	ch2, cancel2 := s.Subscribe()
	defer cancel2()

	s.Emit(domain.KernelEvent{Kind: "broadcast"})

	for _, ch := range []<-chan domain.KernelEvent{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, "broadcast", evt.Kind)
		case <-time.After(time.Second):
			t.Fatal("a subscriber missed the broadcast event")
		}
	}
}
