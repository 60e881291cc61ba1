package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

// MmapMap implements `mmap.map`: it attaches a shared-memory segment and
// hands back a synthetic address in the calling process's memory view,
// allocated through the memory manager so the mapping participates in the
// same pressure accounting as a regular allocation.
type MmapMap struct {
	Id       uint64
	ReadOnly bool
}

func (o *MmapMap) Resource() string { return "ipc" }
func (o *MmapMap) Action() string   { return "write" }
func (o *MmapMap) Validate() error  { return nil }

func (o *MmapMap) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Shm().Attach(o.Id, ctx.Pid, o.ReadOnly); err != nil {
		return resultFromError(err)
	}
	info, ok := ctx.Ipc.Shm().Info(o.Id)
	if !ok {
		return domain.ErrorResult("no such segment: %d", o.Id)
	}
	addr, err := ctx.Memory.Allocate(info.Size, ctx.Pid)
	if err != nil {
		_ = ctx.Ipc.Shm().Detach(o.Id, ctx.Pid)
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Address uint64 `json:"address"`
	}{Address: addr})
}

// MmapUnmap implements `mmap.unmap`.
type MmapUnmap struct {
	Id      uint64
	Address uint64
}

func (o *MmapUnmap) Resource() string { return "ipc" }
func (o *MmapUnmap) Action() string   { return "write" }
func (o *MmapUnmap) Validate() error  { return nil }

func (o *MmapUnmap) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Shm().Detach(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	if err := ctx.Memory.Deallocate(o.Address); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}
