// Package formatter renders kernel identifiers consistently across log
// lines, one small wrapper type per id kind (formatter.Pid{value}). Each
// type implements fmt.Stringer so it can be passed directly to a logrus
// field or Printf verb.
package formatter

import "fmt"

// Pid renders a PID as "pid:<n>".
type Pid struct{ Value uint32 }

func (p Pid) String() string { return fmt.Sprintf("pid:%d", p.Value) }

// ObjectID renders an IPC object id with its kind, e.g. "pipe:7".
type ObjectID struct {
	Kind string
	ID   uint64
}

func (o ObjectID) String() string { return fmt.Sprintf("%s:%d", o.Kind, o.ID) }

// Addr renders a memory address in hex, matching how allocator logs
// typically print addresses.
type Addr struct{ Value uint64 }

func (a Addr) String() string { return fmt.Sprintf("0x%x", a.Value) }
