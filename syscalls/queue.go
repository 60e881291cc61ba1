package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

const maxQueuePayload = 1 << 20 // 1 MiB per message

// QueueCreate implements `queue.create`.
type QueueCreate struct {
	Kind     domain.QueueKind
	Capacity int
}

func (o *QueueCreate) Resource() string      { return "ipc" }
func (o *QueueCreate) Action() string        { return "write" }
func (o *QueueCreate) LimitResource() string { return "queues" }
func (o *QueueCreate) Validate() error {
	if o.Capacity <= 0 {
		return &validationErr{msg: "capacity must be positive"}
	}
	return nil
}

func (o *QueueCreate) Dispatch(ctx *Context) domain.Result {
	id, err := ctx.Ipc.Queues().Create(o.Kind, ctx.Pid, o.Capacity)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Id uint64 `json:"id"`
	}{Id: id})
}

// QueueSend implements `queue.send`.
type QueueSend struct {
	Id       uint64
	Priority uint8
	Payload  []byte
}

func (o *QueueSend) Resource() string { return "ipc" }
func (o *QueueSend) Action() string   { return "write" }
func (o *QueueSend) Validate() error {
	if len(o.Payload) == 0 || len(o.Payload) > maxQueuePayload {
		return &validationErr{msg: "queue payload size out of range"}
	}
	return nil
}

func (o *QueueSend) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Queues().Send(o.Id, ctx.Pid, o.Priority, o.Payload); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// QueueReceive implements `queue.receive`, the two-step canonical receive:
// the envelope comes back first, then QueueReadPayload fetches the bytes.
type QueueReceive struct{ Id uint64 }

func (o *QueueReceive) Resource() string { return "ipc" }
func (o *QueueReceive) Action() string   { return "read" }
func (o *QueueReceive) Validate() error  { return nil }

func (o *QueueReceive) Dispatch(ctx *Context) domain.Result {
	return ctx.Retrier.ExecuteWithRetry(func() (domain.Result, error) {
		msg, err := ctx.Ipc.Queues().Receive(o.Id, ctx.Pid)
		if err != nil {
			return domain.Result{}, err
		}
		return jsonSuccess(msg), nil
	}, IsWouldBlock, ctx.BlockingTimeout, "queue.receive")
}

// QueueReadPayload implements `queue.read_payload`.
type QueueReadPayload struct{ Msg domain.Message }

func (o *QueueReadPayload) Resource() string { return "ipc" }
func (o *QueueReadPayload) Action() string   { return "read" }
func (o *QueueReadPayload) Validate() error  { return nil }

func (o *QueueReadPayload) Dispatch(ctx *Context) domain.Result {
	data, err := ctx.Ipc.Queues().ReadMessageData(o.Msg)
	if err != nil {
		return resultFromError(err)
	}
	return domain.Success(data)
}

// QueuePoll implements `queue.poll`.
type QueuePoll struct {
	Id        uint64
	TimeoutMs *int64
}

func (o *QueuePoll) Resource() string { return "ipc" }
func (o *QueuePoll) Action() string   { return "read" }
func (o *QueuePoll) Validate() error {
	if o.TimeoutMs != nil && *o.TimeoutMs < 0 {
		return &validationErr{msg: "negative timeout"}
	}
	return nil
}

func (o *QueuePoll) Dispatch(ctx *Context) domain.Result {
	msg, err := ctx.Ipc.Queues().Poll(o.Id, ctx.Pid, o.TimeoutMs)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(msg)
}

// QueueSubscribe implements `queue.subscribe` (pub-sub queues only).
type QueueSubscribe struct{ Id uint64 }

func (o *QueueSubscribe) Resource() string { return "ipc" }
func (o *QueueSubscribe) Action() string   { return "write" }
func (o *QueueSubscribe) Validate() error  { return nil }

func (o *QueueSubscribe) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Queues().Subscribe(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// QueueClose implements `queue.close`.
type QueueClose struct{ Id uint64 }

func (o *QueueClose) Resource() string { return "ipc" }
func (o *QueueClose) Action() string   { return "write" }
func (o *QueueClose) Validate() error  { return nil }

func (o *QueueClose) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Queues().Close(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// QueueDestroy implements `queue.destroy`.
type QueueDestroy struct{ Id uint64 }

func (o *QueueDestroy) Resource() string { return "ipc" }
func (o *QueueDestroy) Action() string   { return "write" }
func (o *QueueDestroy) Validate() error  { return nil }

func (o *QueueDestroy) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Queues().Destroy(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}
