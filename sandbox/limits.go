package sandbox

import (
	"os"
	"path/filepath"

	"github.com/synthkernel/kerneld/domain"
)

// defaultLimits returns the per-level resource-limit template: privileged sandboxes get generous caps, minimal sandboxes get tight
// ones, standard sits in between.
func defaultLimits(level domain.SandboxLevel) domain.ResourceLimits {
	switch level {
	case domain.SandboxMinimal:
		return domain.ResourceLimits{
			MaxFDs: 16, MaxProcesses: 0, MaxSockets: 0,
			MaxMemoryBytes: 16 << 20, MaxCPUTimeMs: 1000, MaxConnections: 0,
			MaxPipes: 4, MaxQueues: 4, MaxShmSegments: 0,
		}
	case domain.SandboxPrivileged:
		return domain.ResourceLimits{
			MaxFDs: 4096, MaxProcesses: 512, MaxSockets: 1024,
			MaxMemoryBytes: 2 << 30, MaxCPUTimeMs: 0, MaxConnections: 1024,
			MaxPipes: 256, MaxQueues: 256, MaxShmSegments: 256,
		}
	default: // Standard
		return domain.ResourceLimits{
			MaxFDs: 256, MaxProcesses: 64, MaxSockets: 128,
			MaxMemoryBytes: 256 << 20, MaxCPUTimeMs: 60000, MaxConnections: 128,
			MaxPipes: 64, MaxQueues: 64, MaxShmSegments: 32,
		}
	}
}

// defaultCapabilities returns the per-level capability grant template.
func defaultCapabilities(level domain.SandboxLevel) []domain.Capability {
	switch level {
	case domain.SandboxMinimal:
		return nil
	case domain.SandboxPrivileged:
		return []domain.Capability{
			{Kind: domain.CapFilesystemRead, Arg: "*"},
			{Kind: domain.CapFilesystemWrite, Arg: "*"},
			{Kind: domain.CapProcessSpawn, Arg: "*"},
			{Kind: domain.CapProcessKill, Arg: "*"},
			{Kind: domain.CapNetworkAccess, Arg: "*"},
			{Kind: domain.CapBindPort, Arg: "*"},
			{Kind: domain.CapSystemInfo, Arg: "*"},
			{Kind: domain.CapIPC, Arg: "*"},
			{Kind: domain.CapSignal, Arg: "*"},
		}
	default: // Standard
		return []domain.Capability{
			{Kind: domain.CapFilesystemRead, Arg: ""},
			{Kind: domain.CapFilesystemWrite, Arg: ""},
			{Kind: domain.CapProcessSpawn, Arg: ""},
			{Kind: domain.CapIPC, Arg: "*"},
			{Kind: domain.CapSignal, Arg: "*"},
		}
	}
}

// canonicalizePath cleans path and, when the leaf does not exist on the host
// filesystem, walks up to the nearest existing parent so ACL prefix
// comparisons aren't fooled by a not-yet-created file under an otherwise
// allowed directory.
func canonicalizePath(path string) string {
	clean := filepath.Clean(path)
	for p := clean; p != "/" && p != "."; {
		if _, err := os.Stat(p); err == nil {
			resolved, err := filepath.EvalSymlinks(p)
			if err == nil {
				rest, _ := filepath.Rel(p, clean)
				if rest == "." {
					return resolved
				}
				return filepath.Join(resolved, rest)
			}
			return clean
		}
		p = filepath.Dir(p)
	}
	return clean
}

func resourceLimitValue(l domain.ResourceLimits, resource string) (int, bool) {
	switch resource {
	case "fds":
		return l.MaxFDs, true
	case "processes":
		return l.MaxProcesses, true
	case "sockets":
		return l.MaxSockets, true
	case "connections":
		return l.MaxConnections, true
	case "pipes":
		return l.MaxPipes, true
	case "queues":
		return l.MaxQueues, true
	case "shm":
		return l.MaxShmSegments, true
	default:
		return 0, false
	}
}
