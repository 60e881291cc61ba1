package process

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SchedulerTask drives Scheduler.Schedule() on a ticker, retuning its
// interval live whenever SetTimeQuantum changes the scheduler's quantum,
// so the background ticker observes dynamic quantum changes without a
// restart.
type SchedulerTask struct {
	sched *Scheduler

	mu       sync.Mutex
	interval time.Duration
	retune   chan time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSchedulerTask(sched *Scheduler, interval time.Duration) *SchedulerTask {
	t := &SchedulerTask{
		sched:    sched,
		interval: interval,
		retune:   make(chan time.Duration, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	sched.SetRetuneHook(t.Retune)
	return t
}

// Retune is called after Scheduler.SetTimeQuantum to push the new interval
// to the running ticker loop.
func (t *SchedulerTask) Retune(d time.Duration) {
	select {
	case t.retune <- d:
	default:
		// a pending retune is about to apply; the newer value wins below
		select {
		case <-t.retune:
		default:
		}
		t.retune <- d
	}
}

func (t *SchedulerTask) Run() {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case d := <-t.retune:
			ticker.Stop()
			ticker = time.NewTicker(d)
		case <-ticker.C:
			if pid, ok := t.sched.Schedule(); ok {
				logrus.Tracef("scheduler tick selected pid=%d", pid)
			}
		}
	}
}

func (t *SchedulerTask) Stop() {
	close(t.stop)
	<-t.done
}
