package syscalls

import (
	"time"

	"github.com/synthkernel/kerneld/domain"
)

// SysinfoOverview implements `sysinfo.overview`, a read-only snapshot
// combining the memory and scheduler stats the daemon exposes through its
// own status endpoint.
type SysinfoOverview struct{}

func (o *SysinfoOverview) Resource() string { return "sysinfo" }
func (o *SysinfoOverview) Action() string   { return "read" }
func (o *SysinfoOverview) Validate() error  { return nil }

func (o *SysinfoOverview) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(struct {
		Memory          domain.MemoryStats    `json:"memory"`
		Scheduler       domain.SchedulerStats `json:"scheduler"`
		ProcessCount    int                   `json:"process_count"`
	}{
		Memory:       ctx.Memory.Stats(),
		Scheduler:    ctx.Process.Scheduler().Stats(),
		ProcessCount: len(ctx.Process.ListProcesses()),
	})
}

// TimeNow implements `time.now`.
type TimeNow struct{}

func (o *TimeNow) Resource() string { return "sysinfo" }
func (o *TimeNow) Action() string   { return "read" }
func (o *TimeNow) Validate() error  { return nil }

func (o *TimeNow) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(struct {
		NowMicros int64 `json:"now_micros"`
	}{NowMicros: domain.NowMicros(time.Now())})
}
