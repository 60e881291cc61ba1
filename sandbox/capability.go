package sandbox

import (
	"strings"

	"github.com/syndtr/gocapability/capability"

	"github.com/synthkernel/kerneld/domain"
)

// grants reports whether held subsumes requested: a held capability can
// cover a narrower request of the same kind (NetworkAccess("*") implies any
// BindPort, FilesystemWrite("/") implies any narrower path argument).
// This plays the same role as a POSIX isCapabilitySet predicate, but over a
// tagged-variant capability set instead of a bitmask.
func grants(held []domain.Capability, want domain.Capability) bool {
	for _, h := range held {
		if h.Kind == domain.CapNetworkAccess && h.Arg == "*" && want.Kind == domain.CapBindPort {
			return true
		}
		if h.Kind != want.Kind {
			continue
		}
		// An empty Arg is an unqualified grant of the kind, regardless of
		// what the check is asking for; it's how the Standard sandbox
		// template grants process/filesystem access without opting into
		// the "*" wildcard's broader wire-level meaning.
		if h.Arg == "*" || h.Arg == "" || h.Arg == want.Arg {
			return true
		}
		if h.Kind == domain.CapFilesystemRead || h.Kind == domain.CapFilesystemWrite {
			if strings.HasPrefix(want.Arg, h.Arg) {
				return true
			}
		}
	}
	return false
}

// hostCapabilitySet mirrors a sandbox's capability grants onto a real
// capability.Capabilities object. Nothing in this emulator actually execs
// under these capabilities; building the set is what exercises
// syndtr/gocapability — see DESIGN.md.
func hostCapabilitySet(caps []domain.Capability) (capability.Capabilities, error) {
	c, err := capability.NewPid2(0)
	if err != nil {
		return nil, err
	}
	c.Clear(capability.CAPS)
	for _, cap := range caps {
		if posix, ok := posixEquivalent(cap.Kind); ok {
			c.Set(capability.EFFECTIVE|capability.PERMITTED, posix)
		}
	}
	return c, nil
}

// posixEquivalent maps a synthetic capability kind onto the closest real
// Linux capability, purely for the hostCapabilitySet bookkeeping above; it
// has no bearing on what the synthetic sandbox actually permits.
func posixEquivalent(kind domain.Capability_Kind) (capability.Cap, bool) {
	switch kind {
	case domain.CapFilesystemRead, domain.CapFilesystemWrite:
		return capability.CAP_DAC_OVERRIDE, true
	case domain.CapProcessSpawn:
		return capability.CAP_SYS_ADMIN, true
	case domain.CapProcessKill:
		return capability.CAP_KILL, true
	case domain.CapNetworkAccess, domain.CapBindPort:
		return capability.CAP_NET_BIND_SERVICE, true
	case domain.CapSystemInfo:
		return capability.CAP_SYS_PTRACE, true
	case domain.CapIPC:
		return capability.CAP_IPC_OWNER, true
	case domain.CapSignal:
		return capability.CAP_KILL, true
	default:
		return 0, false
	}
}
