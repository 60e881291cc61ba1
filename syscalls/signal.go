package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

// SignalSend implements `signal.send`.
type SignalSend struct {
	Target domain.PID
	Sig    domain.Signal
}

func (o *SignalSend) Resource() string { return "signal" }
func (o *SignalSend) Action() string   { return "write" }
func (o *SignalSend) Validate() error {
	if o.Sig < 1 {
		return &validationErr{msg: "invalid signal number"}
	}
	return nil
}

func (o *SignalSend) Dispatch(ctx *Context) domain.Result {
	outcome, err := ctx.Signal.Send(ctx.Pid, o.Target, o.Sig)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Outcome domain.SignalOutcome `json:"outcome"`
	}{Outcome: outcome})
}

// SignalBroadcast implements `signal.broadcast`.
type SignalBroadcast struct{ Sig domain.Signal }

func (o *SignalBroadcast) Resource() string { return "signal" }
func (o *SignalBroadcast) Action() string   { return "write" }
func (o *SignalBroadcast) Validate() error {
	if o.Sig < 1 {
		return &validationErr{msg: "invalid signal number"}
	}
	return nil
}

func (o *SignalBroadcast) Dispatch(ctx *Context) domain.Result {
	count := ctx.Signal.Broadcast(ctx.Pid, o.Sig)
	return jsonSuccess(struct {
		Delivered int `json:"delivered"`
	}{Delivered: count})
}

// SignalDeliverPending implements `signal.deliver_pending`.
type SignalDeliverPending struct{}

func (o *SignalDeliverPending) Resource() string { return "signal" }
func (o *SignalDeliverPending) Action() string   { return "write" }
func (o *SignalDeliverPending) Validate() error  { return nil }

func (o *SignalDeliverPending) Dispatch(ctx *Context) domain.Result {
	n, err := ctx.Signal.DeliverPending(ctx.Pid)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Delivered int `json:"delivered"`
	}{Delivered: n})
}

// SignalRegisterHandler implements `signal.register_handler`.
type SignalRegisterHandler struct {
	Sig    domain.Signal
	Action domain.SignalAction
}

func (o *SignalRegisterHandler) Resource() string { return "signal" }
func (o *SignalRegisterHandler) Action() string   { return "write" }
func (o *SignalRegisterHandler) Validate() error {
	if o.Sig < 1 {
		return &validationErr{msg: "invalid signal number"}
	}
	return nil
}

func (o *SignalRegisterHandler) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Signal.RegisterHandler(ctx.Pid, o.Sig, o.Action); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// SignalBlock implements `signal.block`.
type SignalBlock struct{ Sig domain.Signal }

func (o *SignalBlock) Resource() string { return "signal" }
func (o *SignalBlock) Action() string   { return "write" }
func (o *SignalBlock) Validate() error {
	if o.Sig < 1 {
		return &validationErr{msg: "invalid signal number"}
	}
	return nil
}

func (o *SignalBlock) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Signal.BlockSignal(ctx.Pid, o.Sig); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// SignalUnblock implements `signal.unblock`.
type SignalUnblock struct{ Sig domain.Signal }

func (o *SignalUnblock) Resource() string { return "signal" }
func (o *SignalUnblock) Action() string   { return "write" }
func (o *SignalUnblock) Validate() error  { return nil }

func (o *SignalUnblock) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Signal.UnblockSignal(ctx.Pid, o.Sig); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// SignalSetMask implements `signal.set_mask`.
type SignalSetMask struct{ Sigs []domain.Signal }

func (o *SignalSetMask) Resource() string { return "signal" }
func (o *SignalSetMask) Action() string   { return "write" }
func (o *SignalSetMask) Validate() error  { return nil }

func (o *SignalSetMask) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Signal.SetMask(ctx.Pid, o.Sigs); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// SignalGetBlocked implements `signal.get_blocked`.
type SignalGetBlocked struct{}

func (o *SignalGetBlocked) Resource() string { return "signal" }
func (o *SignalGetBlocked) Action() string   { return "read" }
func (o *SignalGetBlocked) Validate() error  { return nil }

func (o *SignalGetBlocked) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(ctx.Signal.GetBlocked(ctx.Pid))
}
