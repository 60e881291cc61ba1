package process

import (
	"sync"
	"time"

	"github.com/synthkernel/kerneld/domain"
)

// taskEntry is the scheduler-owned record of one runnable PID.
type taskEntry struct {
	pid                domain.PID
	priority           int
	vruntimeUs         int64
	lastScheduled      time.Time
	hasLastScheduled   bool
	timeSliceRemaining time.Duration
	cpuTimeUs          int64
}

// Scheduler implements domain.SchedulerIface with three interchangeable
// policies: round-robin FIFO, strict priority with oldest-vruntime
// tie-break, and a CFS-flavored fair policy keyed on accumulated vruntime
// weighted by priority band. A single `runnable` slice backs
// all three: RoundRobin treats it as a FIFO, Priority/Fair scan it, a
// deliberate linear-scan tradeoff over a tree at the expected
// runnable-process scale.
type Scheduler struct {
	mu      sync.Mutex
	policy  domain.SchedPolicy
	quantum time.Duration

	tasks    map[domain.PID]*taskEntry
	runnable []domain.PID

	current    domain.PID
	hasCurrent bool

	totalScheduled  uint64
	contextSwitches uint64
	preemptions     uint64

	onQuantumChange func(time.Duration)
}

func NewScheduler(policy domain.SchedPolicy, quantum time.Duration) *Scheduler {
	return &Scheduler{
		policy:  policy,
		quantum: quantum,
		tasks:   make(map[domain.PID]*taskEntry),
	}
}

// SetRetuneHook registers the callback SetTimeQuantum invokes after updating
// the quantum, so whatever drives the periodic Schedule() tick (a
// SchedulerTask) can retune live rather than only applying the new quantum to
// processes scheduled from here on.
func (s *Scheduler) SetRetuneHook(hook func(time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onQuantumChange = hook
}

func (s *Scheduler) Add(pid domain.PID, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[pid]; exists {
		return
	}
	s.tasks[pid] = &taskEntry{pid: pid, priority: priority, timeSliceRemaining: s.quantum}
	s.runnable = append(s.runnable, pid)
}

func (s *Scheduler) Remove(pid domain.PID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, pid)
	s.removeFromRunnableLocked(pid)
	if s.hasCurrent && s.current == pid {
		s.hasCurrent = false
	}
}

func (s *Scheduler) removeFromRunnableLocked(pid domain.PID) {
	for i, p := range s.runnable {
		if p == pid {
			s.runnable = append(s.runnable[:i], s.runnable[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) SetPriority(pid domain.PID, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[pid]; ok {
		t.priority = priority
	}
}

// SetPolicy switches the active policy, draining the current slot and the
// runnable set and re-enqueuing every entry under the new discipline
//. len() and the set of pids are preserved.
func (s *Scheduler) SetPolicy(policy domain.SchedPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if policy == s.policy {
		return
	}
	if s.hasCurrent {
		s.runnable = append(s.runnable, s.current)
		s.hasCurrent = false
	}
	s.policy = policy
	for _, t := range s.tasks {
		t.vruntimeUs = 0
	}
}

// SetTimeQuantum updates the slice length new tasks (and the next
// reschedule of existing ones) receive, and retunes the driving ticker
// live via onQuantumChange if one was registered, rather than only taking
// effect on the next process add.
func (s *Scheduler) SetTimeQuantum(d time.Duration) {
	s.mu.Lock()
	s.quantum = d
	hook := s.onQuantumChange
	s.mu.Unlock()

	if hook != nil {
		hook(d)
	}
}

// Schedule implements five-step algorithm: account elapsed
// time for whoever is current, preempt if their slice is exhausted, and
// otherwise keep them running untouched. Only an actual preemption (or the
// very first schedule with nothing yet current) reaches the "select a new
// PID" branch.
func (s *Scheduler) Schedule() (domain.PID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if s.hasCurrent {
		e := s.tasks[s.current]
		if e != nil {
			elapsed := now.Sub(e.lastScheduled)
			e.cpuTimeUs += elapsed.Microseconds()
			if s.policy == domain.Fair {
				weight := domain.Band(e.priority).Weight()
				e.vruntimeUs += elapsed.Microseconds() * 100 / int64(weight)
			}

			if elapsed < e.timeSliceRemaining {
				return s.current, true
			}

			// Preempt: reset the quantum, requeue, count it.
			e.timeSliceRemaining = s.quantum
			s.runnable = append(s.runnable, s.current)
			s.hasCurrent = false
			s.preemptions++
			s.contextSwitches++
		} else {
			s.hasCurrent = false
		}
	}

	if len(s.runnable) == 0 {
		return 0, false
	}

	var chosen domain.PID
	switch s.policy {
	case domain.Priority:
		chosen = s.pickHighestPriorityLocked()
	case domain.Fair:
		chosen = s.pickFairestLocked()
	default: // RoundRobin
		chosen = s.pickRoundRobinLocked()
	}

	e := s.tasks[chosen]
	e.lastScheduled = now
	e.hasLastScheduled = true
	e.timeSliceRemaining = s.quantum

	s.current = chosen
	s.hasCurrent = true
	s.totalScheduled++

	return chosen, true
}

// pickRoundRobinLocked pops the front of the FIFO.
func (s *Scheduler) pickRoundRobinLocked() domain.PID {
	pid := s.runnable[0]
	s.runnable = s.runnable[1:]
	return pid
}

// pickHighestPriorityLocked scans for max priority, tie-breaking toward the
// entry with the smaller (older) accumulated vruntime.
func (s *Scheduler) pickHighestPriorityLocked() domain.PID {
	bestIdx := 0
	best := s.tasks[s.runnable[0]]
	for i, pid := range s.runnable[1:] {
		t := s.tasks[pid]
		if t.priority > best.priority || (t.priority == best.priority && t.vruntimeUs < best.vruntimeUs) {
			best = t
			bestIdx = i + 1
		}
	}
	pid := s.runnable[bestIdx]
	s.runnable = append(s.runnable[:bestIdx], s.runnable[bestIdx+1:]...)
	return pid
}

// pickFairestLocked scans for the minimum vruntime across the runnable set.
func (s *Scheduler) pickFairestLocked() domain.PID {
	bestIdx := 0
	best := s.tasks[s.runnable[0]]
	for i, pid := range s.runnable[1:] {
		t := s.tasks[pid]
		if t.vruntimeUs < best.vruntimeUs {
			best = t
			bestIdx = i + 1
		}
	}
	pid := s.runnable[bestIdx]
	s.runnable = append(s.runnable[:bestIdx], s.runnable[bestIdx+1:]...)
	return pid
}

// YieldProcess returns the current entry to its queue with a full quantum
// restored and immediately re-schedules.
func (s *Scheduler) YieldProcess() {
	s.mu.Lock()
	if s.hasCurrent {
		e := s.tasks[s.current]
		if e != nil {
			now := time.Now()
			elapsed := now.Sub(e.lastScheduled)
			e.cpuTimeUs += elapsed.Microseconds()
			if s.policy == domain.Fair {
				weight := domain.Band(e.priority).Weight()
				e.vruntimeUs += elapsed.Microseconds() * 100 / int64(weight)
			}
			e.timeSliceRemaining = s.quantum
			s.runnable = append(s.runnable, s.current)
		}
		s.hasCurrent = false
		s.contextSwitches++
	}
	s.mu.Unlock()

	s.Schedule()
}

func (s *Scheduler) Stats() domain.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SchedulerStats{
		TotalScheduled:  s.totalScheduled,
		ContextSwitches: s.contextSwitches,
		Preemptions:     s.preemptions,
		ActiveProcesses: len(s.tasks),
		Policy:          s.policy,
		QuantumMicros:   s.quantum.Microseconds(),
	}
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// BoostStep and LowerStep implement the scheduler-integrated priority
// adjustment for boost_process_priority/lower_process_priority: the
// scheduler owns the step size so a future policy can scale it by band
// without call sites changing. Priority is clamped to the 0..=10 range
// a process record allows.
func (s *Scheduler) BoostStep(priority int) int {
	next := priority + 1
	if next > 10 {
		next = 10
	}
	return next
}

func (s *Scheduler) LowerStep(priority int) int {
	next := priority - 1
	if next < 0 {
		next = 0
	}
	return next
}

var _ domain.SchedulerIface = (*Scheduler)(nil)
