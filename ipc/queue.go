package ipc

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/idpool"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

// priorityItem is one entry in the priority-queue's max-heap, ordered by
// (priority desc, sequence asc) so that higher priority wins and ties break
// FIFO.
type priorityItem struct {
	msg domain.Message
	seq uint64
}

type priorityHeap []priorityItem

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].msg.Priority != h[j].msg.Priority {
		return h[i].msg.Priority > h[j].msg.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x interface{}) { *h = append(*h, x.(priorityItem)) }
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type subscriber struct {
	mu     sync.Mutex
	pid    domain.PID
	msgs   []domain.Message
	closed bool
}

type queueObj struct {
	mu       sync.Mutex
	id       uint64
	kind     domain.QueueKind
	owner    domain.PID
	capacity int
	closed   bool
	seq      uint64

	fifo []domain.Message
	pq   priorityHeap

	subs map[domain.PID]*subscriber
}

// QueueManager implements domain.QueueManagerIface, a
// uniform facade over the three queue kinds.
type QueueManager struct {
	mu     sync.RWMutex
	queues map[uint64]*queueObj
	ids    *idpool.Pool
	wait   *WaitQueue[uint64]
	subWait *WaitQueue[string]

	mem domain.MemoryManagerIface

	perPid    map[domain.PID]int
	maxPerPid int

	maxMsgBytes    uint64
	maxTotalBytes  uint64
	totalMu        sync.Mutex
	totalBytesUsed uint64
}

func NewQueueManager(mem domain.MemoryManagerIface, maxPerPid int, maxMsgBytes, maxTotalBytes uint64) *QueueManager {
	return &QueueManager{
		queues:        make(map[uint64]*queueObj),
		ids:           idpool.New(1),
		wait:          NewWaitQueue[uint64](),
		subWait:       NewWaitQueue[string](),
		mem:           mem,
		perPid:        make(map[domain.PID]int),
		maxPerPid:     maxPerPid,
		maxMsgBytes:   maxMsgBytes,
		maxTotalBytes: maxTotalBytes,
	}
}

func (qm *QueueManager) Create(kind domain.QueueKind, owner domain.PID, capacity int) (uint64, error) {
	qm.mu.Lock()
	if qm.perPid[owner] >= qm.maxPerPid {
		qm.mu.Unlock()
		return 0, kerrors.Permission("queue limit exceeded for process %d", owner)
	}
	if capacity <= 0 {
		capacity = 1024
	}

	id := qm.ids.Acquire()
	q := &queueObj{id: id, kind: kind, owner: owner, capacity: capacity}
	if kind == domain.QueuePubSub {
		q.subs = make(map[domain.PID]*subscriber)
	}
	qm.queues[id] = q
	qm.perPid[owner]++
	qm.mu.Unlock()

	logrus.Debugf("queue created: %s kind=%d owner=%d cap=%d",
		formatter.ObjectID{Kind: "queue", ID: id}, kind, owner, capacity)

	return id, nil
}

func (qm *QueueManager) get(id uint64) (*queueObj, error) {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	q, ok := qm.queues[id]
	if !ok {
		return nil, kerrors.NotFound("queue %d not found", id)
	}
	return q, nil
}

func (qm *QueueManager) reserveBytes(n uint64) bool {
	qm.totalMu.Lock()
	defer qm.totalMu.Unlock()
	if qm.totalBytesUsed+n > qm.maxTotalBytes {
		return false
	}
	qm.totalBytesUsed += n
	return true
}

func (qm *QueueManager) releaseBytes(n uint64) {
	qm.totalMu.Lock()
	defer qm.totalMu.Unlock()
	if qm.totalBytesUsed >= n {
		qm.totalBytesUsed -= n
	} else {
		qm.totalBytesUsed = 0
	}
}

func (qm *QueueManager) Send(id uint64, from domain.PID, priority uint8, payload []byte) error {
	if uint64(len(payload)) > qm.maxMsgBytes {
		return kerrors.Validation("message of %d bytes exceeds max message size %d", len(payload), qm.maxMsgBytes)
	}
	q, err := qm.get(id)
	if err != nil {
		return err
	}

	if !qm.reserveBytes(uint64(len(payload))) {
		return kerrors.Capacity("global queue memory cap exceeded")
	}

	addr, err := qm.mem.Allocate(uint64(maxInt(len(payload), 1)), from)
	if err != nil {
		qm.releaseBytes(uint64(len(payload)))
		return err
	}
	if len(payload) > 0 {
		if err := qm.mem.WriteBytes(addr, payload); err != nil {
			qm.releaseBytes(uint64(len(payload)))
			_ = qm.mem.Deallocate(addr)
			return err
		}
	}

	msg := domain.Message{
		ID:          uuid.NewString(),
		FromPid:     from,
		Priority:    priority,
		Timestamp:   domain.NowMicros(time.Now()),
		PayloadAddr: addr,
		PayloadLen:  uint64(len(payload)),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		qm.releaseBytes(uint64(len(payload)))
		_ = qm.mem.Deallocate(addr)
		return kerrors.NotFound("queue %d is closed", id)
	}

	switch q.kind {
	case domain.QueueFifo:
		if len(q.fifo) >= q.capacity {
			q.mu.Unlock()
			qm.releaseBytes(uint64(len(payload)))
			_ = qm.mem.Deallocate(addr)
			return kerrors.Capacity("queue %d is full", id)
		}
		q.fifo = append(q.fifo, msg)
		q.mu.Unlock()
		qm.wait.NotifyOne(id)

	case domain.QueuePriority:
		if q.pq.Len() >= q.capacity {
			q.mu.Unlock()
			qm.releaseBytes(uint64(len(payload)))
			_ = qm.mem.Deallocate(addr)
			return kerrors.Capacity("queue %d is full", id)
		}
		q.seq++
		heap.Push(&q.pq, priorityItem{msg: msg, seq: q.seq})
		q.mu.Unlock()
		qm.wait.NotifyOne(id)

	case domain.QueuePubSub:
		var woken []domain.PID
		for pid, sub := range q.subs {
			sub.mu.Lock()
			if sub.closed {
				sub.mu.Unlock()
				delete(q.subs, pid)
				continue
			}
			// Each subscriber frees its payload through ReadMessageData, so
			// every subscriber after the first gets its own copy.
			subMsg := msg
			if len(woken) > 0 {
				if !qm.reserveBytes(uint64(len(payload))) {
					sub.mu.Unlock()
					continue
				}
				copyAddr, err := qm.mem.Allocate(uint64(maxInt(len(payload), 1)), from)
				if err != nil {
					qm.releaseBytes(uint64(len(payload)))
					sub.mu.Unlock()
					continue
				}
				_ = qm.mem.WriteBytes(copyAddr, payload)
				subMsg.PayloadAddr = copyAddr
			}
			sub.msgs = append(sub.msgs, subMsg)
			sub.mu.Unlock()
			woken = append(woken, pid)
		}
		q.mu.Unlock()
		for _, pid := range woken {
			qm.subWait.NotifyOne(subKey(id, pid))
		}

	default:
		q.mu.Unlock()
		return kerrors.Validation("unknown queue type")
	}

	return nil
}

func (qm *QueueManager) Receive(id uint64, pid domain.PID) (domain.Message, error) {
	q, err := qm.get(id)
	if err != nil {
		return domain.Message{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.kind {
	case domain.QueueFifo:
		if len(q.fifo) == 0 {
			if q.closed {
				return domain.Message{}, kerrors.NotFound("queue %d is closed", id)
			}
			return domain.Message{}, kerrors.ErrWouldBlock
		}
		msg := q.fifo[0]
		q.fifo = q.fifo[1:]
		return msg, nil

	case domain.QueuePriority:
		if q.pq.Len() == 0 {
			if q.closed {
				return domain.Message{}, kerrors.NotFound("queue %d is closed", id)
			}
			return domain.Message{}, kerrors.ErrWouldBlock
		}
		item := heap.Pop(&q.pq).(priorityItem)
		return item.msg, nil

	case domain.QueuePubSub:
		sub, ok := q.subs[pid]
		if !ok {
			return domain.Message{}, kerrors.NotFound("pid %d is not subscribed to queue %d", pid, id)
		}
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if len(sub.msgs) == 0 {
			if sub.closed || q.closed {
				return domain.Message{}, kerrors.NotFound("queue %d is closed", id)
			}
			return domain.Message{}, kerrors.ErrWouldBlock
		}
		msg := sub.msgs[0]
		sub.msgs = sub.msgs[1:]
		return msg, nil

	default:
		return domain.Message{}, kerrors.Validation("unknown queue type")
	}
}

// ReadMessageData obtains the payload bytes and frees them, the second half
// of the canonical two-step receive.
func (qm *QueueManager) ReadMessageData(msg domain.Message) ([]byte, error) {
	data, err := qm.mem.ReadBytes(msg.PayloadAddr, msg.PayloadLen)
	if err != nil {
		return nil, err
	}
	if err := qm.mem.Deallocate(msg.PayloadAddr); err != nil {
		return nil, err
	}
	qm.releaseBytes(msg.PayloadLen)
	return data, nil
}

// Poll awaits the queue's notifier and retries Receive until a message
// arrives or the queue closes.
func (qm *QueueManager) Poll(id uint64, pid domain.PID, timeoutMs *int64) (domain.Message, error) {
	q, err := qm.get(id)
	if err != nil {
		return domain.Message{}, err
	}

	var deadline <-chan time.Time
	if timeoutMs != nil {
		timer := time.NewTimer(time.Duration(*timeoutMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	key := id
	isSub := q.kind == domain.QueuePubSub

	for {
		msg, err := qm.Receive(id, pid)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, kerrors.ErrWouldBlock) {
			return domain.Message{}, err
		}

		var ch <-chan struct{}
		if isSub {
			ch = qm.subWait.Register(subKey(id, pid))
		} else {
			ch = qm.wait.Register(key)
		}

		select {
		case <-ch:
			continue
		case <-deadline:
			return domain.Message{}, &kerrors.TimeoutError{Label: "queue poll", MillisAge: *timeoutMs}
		}
	}
}

func (qm *QueueManager) Subscribe(id uint64, pid domain.PID) error {
	q, err := qm.get(id)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.kind != domain.QueuePubSub {
		return kerrors.Validation("queue %d is not a pub-sub queue", id)
	}
	if q.closed {
		return kerrors.NotFound("queue %d is closed", id)
	}
	q.subs[pid] = &subscriber{pid: pid}
	return nil
}

func (qm *QueueManager) Close(id uint64, pid domain.PID) error {
	q, err := qm.get(id)
	if err != nil {
		return err
	}
	q.mu.Lock()
	if q.owner != pid {
		q.mu.Unlock()
		return kerrors.Permission("only the owner may close queue %d", id)
	}
	q.closed = true
	var subPids []domain.PID
	for p, sub := range q.subs {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
		subPids = append(subPids, p)
	}
	q.mu.Unlock()

	qm.wait.NotifyAll(id)
	for _, p := range subPids {
		qm.subWait.NotifyAll(subKey(id, p))
	}
	return nil
}

func (qm *QueueManager) Destroy(id uint64, pid domain.PID) error {
	q, err := qm.get(id)
	if err != nil {
		return err
	}
	q.mu.Lock()
	if q.owner != pid {
		q.mu.Unlock()
		return kerrors.Permission("only the owner may destroy queue %d", id)
	}

	var pending []domain.Message
	switch q.kind {
	case domain.QueueFifo:
		pending = q.fifo
	case domain.QueuePriority:
		for q.pq.Len() > 0 {
			pending = append(pending, heap.Pop(&q.pq).(priorityItem).msg)
		}
	case domain.QueuePubSub:
		for _, sub := range q.subs {
			sub.mu.Lock()
			pending = append(pending, sub.msgs...)
			sub.mu.Unlock()
		}
	}
	q.mu.Unlock()

	for _, msg := range pending {
		_ = qm.mem.Deallocate(msg.PayloadAddr)
		qm.releaseBytes(msg.PayloadLen)
	}

	qm.mu.Lock()
	delete(qm.queues, id)
	qm.perPid[pid]--
	if qm.perPid[pid] <= 0 {
		delete(qm.perPid, pid)
	}
	qm.mu.Unlock()

	qm.ids.Release(id)
	qm.wait.Forget(id)

	return nil
}

// DropAll destroys every queue pid owns and removes pid's subscription from
// every pub-sub queue it does not own, for terminate_process cleanup.
func (qm *QueueManager) DropAll(pid domain.PID) {
	qm.mu.RLock()
	var owned []uint64
	var subscribed []uint64
	for id, q := range qm.queues {
		q.mu.Lock()
		if q.owner == pid {
			owned = append(owned, id)
		} else if q.subs != nil {
			if _, ok := q.subs[pid]; ok {
				subscribed = append(subscribed, id)
			}
		}
		q.mu.Unlock()
	}
	qm.mu.RUnlock()

	for _, id := range subscribed {
		if q, err := qm.get(id); err == nil {
			q.mu.Lock()
			if sub, ok := q.subs[pid]; ok {
				sub.mu.Lock()
				sub.closed = true
				sub.mu.Unlock()
				delete(q.subs, pid)
			}
			q.mu.Unlock()
		}
	}
	for _, id := range owned {
		_ = qm.Destroy(id, pid)
	}
}

func subKey(id uint64, pid domain.PID) string {
	return fmt.Sprintf("%d:%d", id, pid)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Count reports how many queues pid owns, the figure the sandbox's
// resource-limit gate compares against ResourceLimits.MaxQueues before a new
// queue is created.
func (qm *QueueManager) Count(pid domain.PID) int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.perPid[pid]
}

var _ domain.QueueManagerIface = (*QueueManager)(nil)
