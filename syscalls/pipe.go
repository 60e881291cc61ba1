package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

const maxPipeRW = 4 << 20 // 4 MiB per call

// PipeCreate implements `pipe.create`.
type PipeCreate struct {
	Reader, Writer domain.PID
	Capacity       int
}

func (o *PipeCreate) Resource() string      { return "ipc" }
func (o *PipeCreate) Action() string        { return "write" }
func (o *PipeCreate) LimitResource() string { return "pipes" }
func (o *PipeCreate) Validate() error {
	if o.Capacity <= 0 {
		return &validationErr{msg: "capacity must be positive"}
	}
	return nil
}

func (o *PipeCreate) Dispatch(ctx *Context) domain.Result {
	id, err := ctx.Ipc.Pipes().Create(o.Reader, o.Writer, o.Capacity)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Id uint64 `json:"id"`
	}{Id: id})
}

// PipeWrite implements `pipe.write`.
type PipeWrite struct {
	Id   uint64
	Data []byte
}

func (o *PipeWrite) Resource() string { return "ipc" }
func (o *PipeWrite) Action() string   { return "write" }
func (o *PipeWrite) Validate() error {
	if len(o.Data) == 0 || len(o.Data) > maxPipeRW {
		return &validationErr{msg: "pipe write size out of range"}
	}
	return nil
}

func (o *PipeWrite) IOSize() int { return len(o.Data) }

func (o *PipeWrite) Dispatch(ctx *Context) domain.Result {
	return ctx.Retrier.ExecuteWithRetry(func() (domain.Result, error) {
		n, err := ctx.Ipc.Pipes().Write(o.Id, ctx.Pid, o.Data)
		if err != nil {
			return domain.Result{}, err
		}
		return jsonSuccess(struct {
			Written int `json:"written"`
		}{Written: n}), nil
	}, IsWouldBlock, ctx.BlockingTimeout, "pipe.write")
}

// PipeRead implements `pipe.read`.
type PipeRead struct {
	Id   uint64
	Size int
}

func (o *PipeRead) Resource() string { return "ipc" }
func (o *PipeRead) Action() string   { return "read" }
func (o *PipeRead) Validate() error {
	if o.Size <= 0 || o.Size > maxPipeRW {
		return &validationErr{msg: "pipe read size out of range"}
	}
	return nil
}

func (o *PipeRead) IOSize() int { return o.Size }

func (o *PipeRead) Dispatch(ctx *Context) domain.Result {
	return ctx.Retrier.ExecuteWithRetry(func() (domain.Result, error) {
		data, err := ctx.Ipc.Pipes().Read(o.Id, ctx.Pid, o.Size)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.Success(data), nil
	}, IsWouldBlock, ctx.BlockingTimeout, "pipe.read")
}

// PipeClose implements `pipe.close`.
type PipeClose struct{ Id uint64 }

func (o *PipeClose) Resource() string { return "ipc" }
func (o *PipeClose) Action() string   { return "write" }
func (o *PipeClose) Validate() error  { return nil }

func (o *PipeClose) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Pipes().Close(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// PipeDestroy implements `pipe.destroy`.
type PipeDestroy struct{ Id uint64 }

func (o *PipeDestroy) Resource() string { return "ipc" }
func (o *PipeDestroy) Action() string   { return "write" }
func (o *PipeDestroy) Validate() error  { return nil }

func (o *PipeDestroy) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Ipc.Pipes().Destroy(o.Id, ctx.Pid); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// PipeInfo implements `pipe.info`.
type PipeInfo struct{ Id uint64 }

func (o *PipeInfo) Resource() string { return "ipc" }
func (o *PipeInfo) Action() string   { return "read" }
func (o *PipeInfo) Validate() error  { return nil }

func (o *PipeInfo) Dispatch(ctx *Context) domain.Result {
	info, ok := ctx.Ipc.Pipes().Info(o.Id)
	if !ok {
		return domain.ErrorResult("no such pipe: %d", o.Id)
	}
	return jsonSuccess(info)
}
