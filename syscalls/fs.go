package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/vfs"
)

// FsRead implements `fs.read`.
type FsRead struct {
	path string
}

func NewFsRead(path string) *FsRead { return &FsRead{path: path} }

func (o *FsRead) Resource() string { return "fs" }
func (o *FsRead) Action() string   { return "read" }
func (o *FsRead) Path() string     { return o.path }
func (o *FsRead) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

func (o *FsRead) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	data, err := ctx.Vfs.ReadFile(hasHostGrant(cfg), o.path)
	if err != nil {
		return resultFromError(err)
	}
	return domain.Success(data)
}

// FsWrite implements `fs.write`.
type FsWrite struct {
	path string
	data []byte
}

func NewFsWrite(path string, data []byte) *FsWrite { return &FsWrite{path: path, data: data} }

func (o *FsWrite) Resource() string { return "fs" }
func (o *FsWrite) Action() string   { return "write" }
func (o *FsWrite) Path() string     { return o.path }
func (o *FsWrite) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

// IOSize lets the adaptive dispatcher route large writes onto the batched
// path.
func (o *FsWrite) IOSize() int { return len(o.data) }

func (o *FsWrite) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	if err := ctx.Vfs.WriteFile(hasHostGrant(cfg), o.path, o.data, 0); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// FsDelete implements `fs.delete`.
type FsDelete struct{ path string }

func NewFsDelete(path string) *FsDelete { return &FsDelete{path: path} }

func (o *FsDelete) Resource() string { return "fs" }
func (o *FsDelete) Action() string   { return "delete" }
func (o *FsDelete) Path() string     { return o.path }
func (o *FsDelete) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

func (o *FsDelete) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	if err := ctx.Vfs.DeleteFile(hasHostGrant(cfg), o.path); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// FsMkdir implements `fs.mkdir`.
type FsMkdir struct{ path string }

func NewFsMkdir(path string) *FsMkdir { return &FsMkdir{path: path} }

func (o *FsMkdir) Resource() string { return "fs" }
func (o *FsMkdir) Action() string   { return "write" }
func (o *FsMkdir) Path() string     { return o.path }
func (o *FsMkdir) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

func (o *FsMkdir) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	if err := ctx.Vfs.Mkdir(hasHostGrant(cfg), o.path); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}

// FsListDir implements `fs.listdir`.
type FsListDir struct{ path string }

func NewFsListDir(path string) *FsListDir { return &FsListDir{path: path} }

func (o *FsListDir) Resource() string { return "fs" }
func (o *FsListDir) Action() string   { return "read" }
func (o *FsListDir) Path() string     { return o.path }
func (o *FsListDir) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

func (o *FsListDir) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	entries, err := ctx.Vfs.ListDir(hasHostGrant(cfg), o.path)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(entries)
}

// FsStat implements `fs.stat`.
type FsStat struct{ path string }

func NewFsStat(path string) *FsStat { return &FsStat{path: path} }

func (o *FsStat) Resource() string { return "fs" }
func (o *FsStat) Action() string   { return "read" }
func (o *FsStat) Path() string     { return o.path }
func (o *FsStat) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

func (o *FsStat) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	st, err := ctx.Vfs.Stat(hasHostGrant(cfg), o.path)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(st)
}

// FsOpen implements `fs.open`, handing the resulting handle to the fd table.
type FsOpen struct {
	path              string
	writable, create  bool
	truncate          bool
}

func NewFsOpen(path string, writable, create, truncate bool) *FsOpen {
	return &FsOpen{path: path, writable: writable, create: create, truncate: truncate}
}

func (o *FsOpen) Resource() string { return "fs" }
func (o *FsOpen) Action() string {
	if o.writable {
		return "write"
	}
	return "read"
}
func (o *FsOpen) Path() string          { return o.path }
func (o *FsOpen) LimitResource() string { return "fds" }
func (o *FsOpen) Validate() error {
	if o.path == "" || rejectsShellMetacharacters(o.path) {
		return errInvalidPath(o.path)
	}
	return nil
}

func (o *FsOpen) Dispatch(ctx *Context) domain.Result {
	cfg, _ := ctx.Sandbox.Get(ctx.Pid)
	f, err := ctx.Vfs.Open(hasHostGrant(cfg), o.path, o.writable, o.create, o.truncate)
	if err != nil {
		return resultFromError(err)
	}
	fd := ctx.Fds.Open(ctx.Pid, &vfs.FileAdapter{File: f})
	return jsonSuccess(struct {
		Fd int `json:"fd"`
	}{Fd: fd})
}

func hasHostGrant(cfg *domain.SandboxConfig) bool {
	return cfg != nil && len(cfg.AllowedPaths) > 0
}

func errInvalidPath(path string) error {
	return &validationErr{msg: "invalid path: " + path}
}

type validationErr struct{ msg string }

func (e *validationErr) Error() string { return e.msg }
