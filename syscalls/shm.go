package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

const maxShmSize = 64 << 20 // 64 MiB, 

// ShmCreate implements `shm.create`.
type ShmCreate struct{ Size uint64 }

func (o *ShmCreate) Resource() string      { return "ipc" }
func (o *ShmCreate) Action() string        { return "write" }
func (o *ShmCreate) LimitResource() string { return "shm" }
func (o *ShmCreate) Validate() error {
	if o.Size == 0 || o.Size > maxShmSize {
		return &validationErr{msg: "shm size out of range"}
	}
	return nil
}

func (o *ShmCreate) Dispatch(ctx *Context) domain.Result {
	id, err := ctx.Ipc.Shm().Create(o.Size, ctx.Pid)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Id uint64 `json:"id"`
	}{Id: id})
}

// ShmAttach implements `shm.attach`.
type ShmAttach struct {
	Id       uint64
	ReadOnly bool
}

func (o *ShmAttach) Resource() string { return "ipc" }
func (o *ShmAttach) Action() string   { return "write" }
func (o *ShmAttach) Validate() error  { return nil }

func (o *ShmAttach) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Shm().Attach(o.Id, ctx.Pid, o.ReadOnly); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ShmDetach implements `shm.detach`.
type ShmDetach struct{ Id uint64 }

func (o *ShmDetach) Resource() string { return "ipc" }
func (o *ShmDetach) Action() string   { return "write" }
func (o *ShmDetach) Validate() error  { return nil }

func (o *ShmDetach) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Shm().Detach(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ShmRead implements `shm.read`.
type ShmRead struct {
	Id             uint64
	Offset, Size   uint64
}

func (o *ShmRead) Resource() string { return "ipc" }
func (o *ShmRead) Action() string   { return "read" }
func (o *ShmRead) Validate() error {
	if o.Size == 0 || o.Size > maxShmSize {
		return &validationErr{msg: "shm read size out of range"}
	}
	return nil
}

func (o *ShmRead) Dispatch(ctx *Context) domain.Result {
	data, err := ctx.Ipc.Shm().Read(o.Id, ctx.Pid, o.Offset, o.Size)
	if err != nil {
		return resultFromError(err)
	}
	return domain.Success(data)
}

// ShmWrite implements `shm.write`.
type ShmWrite struct {
	Id     uint64
	Offset uint64
	Data   []byte
}

func (o *ShmWrite) Resource() string { return "ipc" }
func (o *ShmWrite) Action() string   { return "write" }
func (o *ShmWrite) Validate() error {
	if len(o.Data) == 0 || uint64(len(o.Data)) > maxShmSize {
		return &validationErr{msg: "shm write size out of range"}
	}
	return nil
}

func (o *ShmWrite) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Shm().Write(o.Id, ctx.Pid, o.Offset, o.Data); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ShmDestroy implements `shm.destroy`.
type ShmDestroy struct{ Id uint64 }

func (o *ShmDestroy) Resource() string { return "ipc" }
func (o *ShmDestroy) Action() string   { return "write" }
func (o *ShmDestroy) Validate() error  { return nil }

func (o *ShmDestroy) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Shm().Destroy(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// ShmInfo implements `shm.info`.
type ShmInfo struct{ Id uint64 }

func (o *ShmInfo) Resource() string { return "ipc" }
func (o *ShmInfo) Action() string   { return "read" }
func (o *ShmInfo) Validate() error  { return nil }

func (o *ShmInfo) Dispatch(ctx *Context) domain.Result {
	info, ok := ctx.Ipc.Shm().Info(o.Id)
	if !ok {
		return domain.ErrorResult("no such segment: %d", o.Id)
	}
	return jsonSuccess(info)
}
