// Package signal implements the synthetic signal subsystem: per-process
// pending queues, blocked masks, and handler dispositions.
package signal

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

const (
	SIGHUP  domain.Signal = 1
	SIGINT  domain.Signal = 2
	SIGQUIT domain.Signal = 3
	SIGKILL domain.Signal = 9
	SIGSEGV domain.Signal = 11
	SIGTERM domain.Signal = 15
	SIGCONT domain.Signal = 18
	SIGSTOP domain.Signal = 19

	rtMin = 34
	rtMax = 64

	maxPending = 128

	// maxHandlersPerProcess bounds RegisterHandler.
	maxHandlersPerProcess = 64
)

func isRealtime(sig domain.Signal) bool { return sig >= rtMin && sig <= rtMax }

// fatal signals default to terminate default-action
// table; everything not listed in one of the other buckets also defaults to
// terminate ("others → terminate").
var stopSignals = map[domain.Signal]bool{
	SIGTSTP: true, SIGTTIN: true, SIGTTOU: true,
}

var ignoreSignals = map[domain.Signal]bool{
	SIGUSR1: true, SIGUSR2: true, SIGCHLD: true, SIGWINCH: true,
}

const (
	SIGTSTP  domain.Signal = 20
	SIGTTIN  domain.Signal = 21
	SIGTTOU  domain.Signal = 22
	SIGUSR1  domain.Signal = 10
	SIGUSR2  domain.Signal = 12
	SIGCHLD  domain.Signal = 17
	SIGWINCH domain.Signal = 28
)

// defaultOutcome resolves sig's default disposition when no handler is
// registered.
func defaultOutcome(sig domain.Signal) domain.SignalOutcome {
	switch {
	case sig == SIGSTOP || stopSignals[sig]:
		return domain.SigStopped
	case sig == SIGCONT:
		return domain.SigContinued
	case ignoreSignals[sig]:
		return domain.SigIgnored
	default:
		return domain.SigTerminated
	}
}

// pendingItem is one queued signal; real-time signals outrank standard ones,
// and within a band delivery is FIFO.
type pendingItem struct {
	sig domain.Signal
	seq uint64
}

type pendingHeap []pendingItem

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	ri, rj := isRealtime(h[i].sig), isRealtime(h[j].sig)
	if ri != rj {
		return ri
	}
	return h[i].seq < h[j].seq
}
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x interface{}) { *h = append(*h, x.(pendingItem)) }
func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type procSignals struct {
	mu      sync.Mutex
	pending pendingHeap
	seq     uint64
	blocked map[domain.Signal]bool
	actions map[domain.Signal]domain.SignalAction
	alive   bool
}

// Manager implements domain.SignalManagerIface.
type Manager struct {
	mu    sync.RWMutex
	procs map[domain.PID]*procSignals
	sink  domain.EventSinkIface
}

func NewManager(sink domain.EventSinkIface) *Manager {
	return &Manager{procs: make(map[domain.PID]*procSignals), sink: sink}
}

func (m *Manager) InitializeProcess(pid domain.PID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.procs[pid]; exists {
		return kerrors.Validation("signal state already initialized for pid %d", pid)
	}
	m.procs[pid] = &procSignals{
		blocked: make(map[domain.Signal]bool),
		actions: make(map[domain.Signal]domain.SignalAction),
		alive:   true,
	}
	return nil
}

func (m *Manager) CleanupProcess(pid domain.PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, pid)
}

func (m *Manager) get(pid domain.PID) (*procSignals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.procs[pid]
	if !ok {
		return nil, kerrors.NotFound("no signal state for pid %d", pid)
	}
	return p, nil
}

// Send enqueues sig for target. SIGKILL and SIGSTOP bypass the queue
// entirely and are never blockable, matching POSIX's uncatchable pair: Send
// emits a signal.terminated or signal.stopped event and returns
// SigTerminated or SigStopped, and does not itself terminate or stop the
// target process. Every other
// signal is only ever resolved against the handler map later, by
// DeliverPending — Send's job is solely to validate, check the mask, and
// enqueue.
func (m *Manager) Send(sender, target domain.PID, sig domain.Signal) (domain.SignalOutcome, error) {
	if sig < 1 {
		return domain.SigIgnored, kerrors.Validation("invalid signal number %d", sig)
	}

	p, err := m.get(target)
	if err != nil {
		return domain.SigIgnored, err
	}

	if sig == SIGKILL {
		m.emit(target, "signal.terminated", "SIGKILL")
		return domain.SigTerminated, nil
	}
	if sig == SIGSTOP {
		m.emit(target, "signal.stopped", "SIGSTOP")
		return domain.SigStopped, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.blocked[sig] {
		return domain.SigIgnored, kerrors.SignalBlocked("signal %d is blocked for pid %d", sig, target)
	}
	if p.pending.Len() >= maxPending {
		return domain.SigIgnored, kerrors.Capacity("pending signal queue full for pid %d", target)
	}

	p.seq++
	heap.Push(&p.pending, pendingItem{sig: sig, seq: p.seq})
	logrus.Debugf("signal queued: %s -> %s sig=%d", formatter.Pid{Value: uint32(sender)}, formatter.Pid{Value: uint32(target)}, sig)
	return domain.SigIgnored, nil
}

func (m *Manager) Broadcast(sender domain.PID, sig domain.Signal) int {
	m.mu.RLock()
	targets := make([]domain.PID, 0, len(m.procs))
	for pid := range m.procs {
		targets = append(targets, pid)
	}
	m.mu.RUnlock()

	count := 0
	for _, pid := range targets {
		if pid == sender {
			continue
		}
		if _, err := m.Send(sender, pid, sig); err == nil {
			count++
		}
	}
	return count
}

// DeliverPending drains the heap in priority order; each signal not
// presently blocked is resolved against the current handler map (falling
// back to its default action) and the resulting outcome is logged; no
// handler runs and no process state changes here. Still-blocked signals are requeued rather than
// dropped, so a later unblock can still observe them.
func (m *Manager) DeliverPending(pid domain.PID) (int, error) {
	p, err := m.get(pid)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delivered := 0
	var requeue pendingHeap
	for p.pending.Len() > 0 {
		item := heap.Pop(&p.pending).(pendingItem)
		if p.blocked[item.sig] {
			requeue = append(requeue, item)
			continue
		}

		outcome := m.resolveLocked(p, item.sig)
		delivered++
		logrus.Debugf("signal delivered: %s sig=%d outcome=%d", formatter.Pid{Value: uint32(pid)}, item.sig, outcome)
	}
	for _, item := range requeue {
		heap.Push(&p.pending, item)
	}
	return delivered, nil
}

// resolveLocked computes the outcome DeliverPending reports for one signal;
// callers hold p.mu.
func (m *Manager) resolveLocked(p *procSignals, sig domain.Signal) domain.SignalOutcome {
	switch p.actions[sig] {
	case domain.ActionIgnore:
		return domain.SigIgnored
	case domain.ActionHandle:
		return domain.SigHandlerInvoked
	default:
		return defaultOutcome(sig)
	}
}

func (m *Manager) RegisterHandler(pid domain.PID, sig domain.Signal, action domain.SignalAction) error {
	if sig == SIGKILL || sig == SIGSTOP {
		return kerrors.Permission("signal %d cannot be caught or ignored", sig)
	}
	p, err := m.get(pid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.actions[sig]; !exists && len(p.actions) >= maxHandlersPerProcess {
		return kerrors.Capacity("handler limit exceeded for pid %d", pid)
	}
	p.actions[sig] = action
	return nil
}

func (m *Manager) BlockSignal(pid domain.PID, sig domain.Signal) error {
	if sig == SIGKILL || sig == SIGSTOP {
		return kerrors.Permission("signal %d cannot be blocked", sig)
	}
	p, err := m.get(pid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked[sig] = true
	return nil
}

func (m *Manager) UnblockSignal(pid domain.PID, sig domain.Signal) error {
	p, err := m.get(pid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blocked, sig)
	return nil
}

func (m *Manager) SetMask(pid domain.PID, sigs []domain.Signal) error {
	p, err := m.get(pid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked = make(map[domain.Signal]bool, len(sigs))
	for _, s := range sigs {
		if s == SIGKILL || s == SIGSTOP {
			continue
		}
		p.blocked[s] = true
	}
	return nil
}

func (m *Manager) GetBlocked(pid domain.PID) []domain.Signal {
	p, err := m.get(pid)
	if err != nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Signal, 0, len(p.blocked))
	for s := range p.blocked {
		out = append(out, s)
	}
	return out
}

func (m *Manager) PendingCount(pid domain.PID) int {
	p, err := m.get(pid)
	if err != nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Len()
}

func (m *Manager) emit(pid domain.PID, kind, message string) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(domain.KernelEvent{Kind: kind, Pid: pid, Message: message})
}

var _ domain.SignalManagerIface = (*Manager)(nil)
