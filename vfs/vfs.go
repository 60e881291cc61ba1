// Package vfs implements mediated access to the host filesystem as an
// opaque byte store. Every sandboxed path routes through one of two
// backends: a host-backed afero.OsFs for processes with real path grants,
// or an in-memory afero.MemMapFs for sandboxes that were never given host
// access at all.
package vfs

import (
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/synthkernel/kerneld/internal/kerrors"
)

// Backend names a VFS's storage strategy.
type Backend int

const (
	BackendHost Backend = iota
	BackendMemory
)

// VFS wraps the two backends behind one afero.Fs-shaped facade. The
// filesystem syscalls (syscalls/fs.go) always go through this, never
// touching os.* directly, so a sandbox with no host grants can still be
// handed a working (if ephemeral) root.
type VFS struct {
	host   afero.Fs
	memory afero.Fs
}

func New() *VFS {
	return &VFS{
		host:   afero.NewOsFs(),
		memory: afero.NewMemMapFs(),
	}
}

// backendFor picks host or memory per path: paths under a sandbox's
// allowlist always resolve against the host, but a hasHostGrant=false
// caller (no allowed_paths at all) is routed to the in-memory backend so
// syscalls still behave sensibly rather than failing closed at the VFS
// layer (the sandbox ACL is what actually denies access; this only picks
// where bytes live once the ACL already allowed the call).
func (v *VFS) backendFor(hasHostGrant bool) afero.Fs {
	if hasHostGrant {
		return v.host
	}
	return v.memory
}

func (v *VFS) ReadFile(hasHostGrant bool, path string) ([]byte, error) {
	fs := v.backendFor(hasHostGrant)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.NotFound("no such file: %s", path)
		}
		return nil, kerrors.Internal("read %s: %v", path, err)
	}
	return data, nil
}

func (v *VFS) WriteFile(hasHostGrant bool, path string, data []byte, mode os.FileMode) error {
	fs := v.backendFor(hasHostGrant)
	if mode == 0 {
		mode = 0o644
	}
	if err := fs.MkdirAll(dirOf(path), 0o755); err != nil {
		return kerrors.Internal("mkdir for %s: %v", path, err)
	}
	if err := afero.WriteFile(fs, path, data, mode); err != nil {
		return kerrors.Internal("write %s: %v", path, err)
	}
	return nil
}

func (v *VFS) DeleteFile(hasHostGrant bool, path string) error {
	fs := v.backendFor(hasHostGrant)
	if err := fs.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return kerrors.NotFound("no such file: %s", path)
		}
		return kerrors.Internal("remove %s: %v", path, err)
	}
	return nil
}

func (v *VFS) Mkdir(hasHostGrant bool, path string) error {
	fs := v.backendFor(hasHostGrant)
	if err := fs.MkdirAll(path, 0o755); err != nil {
		return kerrors.Internal("mkdir %s: %v", path, err)
	}
	return nil
}

// DirEntry is the JSON-serialized shape ListDir's Success payload carries.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

func (v *VFS) ListDir(hasHostGrant bool, path string) ([]DirEntry, error) {
	fs := v.backendFor(hasHostGrant)
	infos, err := afero.ReadDir(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.NotFound("no such directory: %s", path)
		}
		return nil, kerrors.Internal("list %s: %v", path, err)
	}
	out := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		out = append(out, DirEntry{Name: info.Name(), IsDir: info.IsDir(), Size: info.Size()})
	}
	return out, nil
}

// Stat is the JSON shape a `fs.stat` syscall returns.
type Stat struct {
	Size    int64 `json:"size"`
	IsDir   bool  `json:"is_dir"`
	ModTime int64 `json:"mod_time_micros"`
}

func (v *VFS) Stat(hasHostGrant bool, path string) (Stat, error) {
	fs := v.backendFor(hasHostGrant)
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Stat{}, kerrors.NotFound("no such file: %s", path)
		}
		return Stat{}, kerrors.Internal("stat %s: %v", path, err)
	}
	return Stat{
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime().UnixMicro(),
	}, nil
}

// Open returns a domain.FileHandle-compatible ReadWriteSeekCloser for the
// fd table to hold. writable, create and truncate map onto os.O_RDWR,
// os.O_CREATE and os.O_TRUNC; with none set the file opens read-only.
func (v *VFS) Open(hasHostGrant bool, path string, writable, create, truncate bool) (afero.File, error) {
	fs := v.backendFor(hasHostGrant)
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	if create {
		flag |= os.O_CREATE
	}
	if truncate {
		flag |= os.O_TRUNC
	}
	f, err := fs.OpenFile(path, flag, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.NotFound("no such file: %s", path)
		}
		return nil, kerrors.Internal("open %s: %v", path, err)
	}
	return f, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// FileAdapter lets an afero.File satisfy domain.FileHandle (afero.File has
// extra methods the fd table's narrower interface doesn't need).
type FileAdapter struct {
	afero.File
}

var _ io.ReadWriteCloser = (*FileAdapter)(nil)

func (f *FileAdapter) Read(p []byte) (int, error)  { return f.File.Read(p) }
func (f *FileAdapter) Write(p []byte) (int, error) { return f.File.Write(p) }
func (f *FileAdapter) Close() error                { return f.File.Close() }
func (f *FileAdapter) Seek(offset int64, whence int) (int64, error) {
	return f.File.Seek(offset, whence)
}
