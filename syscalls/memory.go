package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

const maxAllocSize = 256 << 20 // 256 MiB, per-request ceiling

// MemoryAllocate implements `memory.allocate`.
type MemoryAllocate struct{ Size uint64 }

func (o *MemoryAllocate) Resource() string { return "memory" }
func (o *MemoryAllocate) Action() string   { return "write" }
func (o *MemoryAllocate) Validate() error {
	if o.Size == 0 || o.Size > maxAllocSize {
		return &validationErr{msg: "allocation size out of range"}
	}
	return nil
}

func (o *MemoryAllocate) Dispatch(ctx *Context) domain.Result {
	addr, err := ctx.Memory.Allocate(o.Size, ctx.Pid)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Address uint64 `json:"address"`
	}{Address: addr})
}

// MemoryDeallocate implements `memory.deallocate`.
type MemoryDeallocate struct{ Address uint64 }

func (o *MemoryDeallocate) Resource() string { return "memory" }
func (o *MemoryDeallocate) Action() string   { return "write" }
func (o *MemoryDeallocate) Validate() error  { return nil }

func (o *MemoryDeallocate) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Memory.Deallocate(o.Address); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// MemoryRead implements `memory.read`.
type MemoryRead struct {
	Address uint64
	Size    uint64
}

func (o *MemoryRead) Resource() string { return "memory" }
func (o *MemoryRead) Action() string   { return "read" }
func (o *MemoryRead) Validate() error {
	if o.Size == 0 || o.Size > maxAllocSize {
		return &validationErr{msg: "read size out of range"}
	}
	return nil
}

func (o *MemoryRead) Dispatch(ctx *Context) domain.Result {
	data, err := ctx.Memory.ReadBytes(o.Address, o.Size)
	if err != nil {
		return resultFromError(err)
	}
	return domain.Success(data)
}

// MemoryWrite implements `memory.write`.
type MemoryWrite struct {
	Address uint64
	Data    []byte
}

func (o *MemoryWrite) Resource() string { return "memory" }
func (o *MemoryWrite) Action() string   { return "write" }
func (o *MemoryWrite) Validate() error {
	if len(o.Data) == 0 || uint64(len(o.Data)) > maxAllocSize {
		return &validationErr{msg: "write size out of range"}
	}
	return nil
}

func (o *MemoryWrite) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Memory.WriteBytes(o.Address, o.Data); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// MemoryInfo implements `memory.info`.
type MemoryInfo struct{ Address uint64 }

func (o *MemoryInfo) Resource() string { return "memory" }
func (o *MemoryInfo) Action() string   { return "read" }
func (o *MemoryInfo) Validate() error  { return nil }

func (o *MemoryInfo) Dispatch(ctx *Context) domain.Result {
	info, ok := ctx.Memory.Info(o.Address)
	if !ok {
		return domain.ErrorResult("no such allocation: %d", o.Address)
	}
	return jsonSuccess(info)
}

// MemoryStats implements `memory.stats`.
type MemoryStats struct{}

func (o *MemoryStats) Resource() string { return "memory" }
func (o *MemoryStats) Action() string   { return "read" }
func (o *MemoryStats) Validate() error  { return nil }

func (o *MemoryStats) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(ctx.Memory.Stats())
}

// MemoryProcessUsage implements `memory.process_usage`.
type MemoryProcessUsage struct{ Target domain.PID }

func (o *MemoryProcessUsage) Resource() string { return "memory" }
func (o *MemoryProcessUsage) Action() string   { return "read" }
func (o *MemoryProcessUsage) Validate() error  { return nil }

func (o *MemoryProcessUsage) Dispatch(ctx *Context) domain.Result {
	return jsonSuccess(ctx.Memory.ProcessMemory(o.Target))
}
