package syscalls

import (
	"time"

	"github.com/synthkernel/kerneld/domain"
)

// SchedulerSetPolicy implements `scheduler.set_policy`.
type SchedulerSetPolicy struct{ Policy domain.SchedPolicy }

func (o *SchedulerSetPolicy) Resource() string { return "process" }
func (o *SchedulerSetPolicy) Action() string   { return "write" }
func (o *SchedulerSetPolicy) Validate() error  { return nil }

func (o *SchedulerSetPolicy) Dispatch(ctx *Context) domain.Result {
	ctx.Process.Scheduler().SetPolicy(o.Policy)
	return domain.Success(nil)
}

// SchedulerSetQuantum implements `scheduler.set_quantum`.
type SchedulerSetQuantum struct{ Micros int64 }

func (o *SchedulerSetQuantum) Resource() string { return "process" }
func (o *SchedulerSetQuantum) Action() string   { return "write" }
func (o *SchedulerSetQuantum) Validate() error {
	if o.Micros <= 0 {
		return &validationErr{msg: "quantum must be positive"}
	}
	return nil
}

func (o *SchedulerSetQuantum) Dispatch(ctx *Context) domain.Result {
	ctx.Process.Scheduler().SetTimeQuantum(time.Duration(o.Micros) * time.Microsecond)
	return domain.Success(nil)
}

// SchedulerYield implements `scheduler.yield`.
type SchedulerYield struct{}

func (o *SchedulerYield) Resource() string { return "process" }
func (o *SchedulerYield) Action() string   { return "write" }
func (o *SchedulerYield) Validate() error  { return nil }

func (o *SchedulerYield) Dispatch(ctx *Context) domain.Result {
	ctx.Process.Scheduler().YieldProcess()
	return domain.Success(nil)
}

// SchedulerStats implements `scheduler.stats`.
type SchedulerStats struct{}

func (o *SchedulerStats) Resource() string { return "process" }
func (o *SchedulerStats) Action() string   { return "read" }
func (o *SchedulerStats) Validate() error  { return nil }

func (o *SchedulerStats) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(ctx.Process.Scheduler().Stats())
}
