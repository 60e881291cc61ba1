package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

// FdDup implements `fd.dup`.
type FdDup struct{ Fd int }

func (o *FdDup) Resource() string      { return "fd" }
func (o *FdDup) Action() string        { return "write" }
func (o *FdDup) Validate() error       { return nil }
func (o *FdDup) LimitResource() string { return "fds" }

func (o *FdDup) Dispatch(ctx *Context) domain.Result {
	newFd, err := ctx.Fds.Dup(ctx.Pid, o.Fd)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Fd int `json:"fd"`
	}{Fd: newFd})
}

// FdDup2 implements `fd.dup2`.
type FdDup2 struct{ OldFd, NewFd int }

func (o *FdDup2) Resource() string { return "fd" }
func (o *FdDup2) Action() string   { return "write" }
func (o *FdDup2) Validate() error  { return nil }

func (o *FdDup2) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Fds.Dup2(ctx.Pid, o.OldFd, o.NewFd); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// FdClose implements `fd.close`.
type FdClose struct{ Fd int }

func (o *FdClose) Resource() string { return "fd" }
func (o *FdClose) Action() string   { return "write" }
func (o *FdClose) Validate() error  { return nil }

func (o *FdClose) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Fds.Close(ctx.Pid, o.Fd); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// FdRead implements `fd.read`, reading through whatever handle the fd table
// holds (host file, VFS file, or an in-memory buffer).
type FdRead struct {
	Fd   int
	Size int
}

func (o *FdRead) Resource() string { return "fd" }
func (o *FdRead) Action() string   { return "read" }
func (o *FdRead) Validate() error {
	if o.Size <= 0 || o.Size > maxPipeRW {
		return &validationErr{msg: "read size out of range"}
	}
	return nil
}

func (o *FdRead) Dispatch(ctx *Context) domain.Result {
	h, ok := ctx.Fds.Get(ctx.Pid, o.Fd)
	if !ok {
		return domain.ErrorResult("no such fd: %d", o.Fd)
	}
	buf := make([]byte, o.Size)
	n, err := h.Read(buf)
	if err != nil && n == 0 {
		return resultFromError(err)
	}
	return domain.Success(buf[:n])
}

// FdWrite implements `fd.write`.
type FdWrite struct {
	Fd   int
	Data []byte
}

func (o *FdWrite) Resource() string { return "fd" }
func (o *FdWrite) Action() string   { return "write" }
func (o *FdWrite) Validate() error {
	if len(o.Data) == 0 || len(o.Data) > maxPipeRW {
		return &validationErr{msg: "write size out of range"}
	}
	return nil
}

func (o *FdWrite) Dispatch(ctx *Context) domain.Result {
	h, ok := ctx.Fds.Get(ctx.Pid, o.Fd)
	if !ok {
		return domain.ErrorResult("no such fd: %d", o.Fd)
	}
	n, err := h.Write(o.Data)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Written int `json:"written"`
	}{Written: n})
}
