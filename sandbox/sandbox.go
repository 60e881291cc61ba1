// Package sandbox implements the per-process capability and resource-limit
// policy engine: every syscall the executor dispatches passes
// through Check before it reaches a sub-manager.
package sandbox

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/formatter"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

type Manager struct {
	mu      sync.RWMutex
	configs map[domain.PID]*domain.SandboxConfig

	maxProcessesTotal int
	liveProcesses     int

	// spawnCounts is the per-sandbox spawn counter: spawnCounts[parent] is
	// how many live children parent has spawned via process.create, checked
	// against parent's own ResourceLimits.MaxProcesses. Keyed by the
	// spawning process's pid, not the child's; a parent of 0 means "spawned
	// directly by the daemon" and is exempt (only the global cap applies).
	spawnCounts map[domain.PID]int

	sink domain.EventSinkIface
}

func NewManager(maxProcessesTotal int, sink domain.EventSinkIface) *Manager {
	return &Manager{
		configs:           make(map[domain.PID]*domain.SandboxConfig),
		spawnCounts:       make(map[domain.PID]int),
		maxProcessesTotal: maxProcessesTotal,
		sink:              sink,
	}
}

func (m *Manager) Create(pid domain.PID, level domain.SandboxLevel) *domain.SandboxConfig {
	cfg := &domain.SandboxConfig{
		Pid:          pid,
		Capabilities: defaultCapabilities(level),
		Limits:       defaultLimits(level),
	}

	m.mu.Lock()
	m.configs[pid] = cfg
	m.mu.Unlock()

	logrus.Debugf("sandbox created: %s level=%d", formatter.Pid{Value: uint32(pid)}, level)
	return cfg
}

func (m *Manager) Remove(pid domain.PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, pid)
}

func (m *Manager) Get(pid domain.PID) (*domain.SandboxConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[pid]
	return cfg, ok
}

func (m *Manager) Update(pid domain.PID, caps []domain.Capability, allowed, blocked []string, limits *domain.ResourceLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[pid]
	if !ok {
		return kerrors.NotFound("no sandbox policy for process %d", pid)
	}
	if caps != nil {
		cfg.Capabilities = caps
	}
	if allowed != nil {
		cfg.AllowedPaths = allowed
	}
	if blocked != nil {
		cfg.BlockedPaths = blocked
	}
	if limits != nil {
		cfg.Limits = *limits
	}
	return nil
}

// Check is the generic entry point the syscall executor calls before
// dispatch: path-bearing requests go through CanAccessPath, everything else
// maps its resource/action pair onto a capability.
func (m *Manager) Check(req domain.PermissionRequest) (bool, string) {
	if req.Path != "" {
		return m.CanAccessPath(req.Pid, req.Path)
	}
	cap, ok := capabilityFor(req.Resource, req.Action)
	if !ok {
		return true, "" // no capability gate defined for this resource/action pair
	}
	if m.HasCapability(req.Pid, cap) {
		return true, ""
	}
	return false, "missing capability for " + req.Resource + "." + req.Action
}

func (m *Manager) CanAccessPath(pid domain.PID, path string) (bool, string) {
	cfg, ok := m.Get(pid)
	if !ok {
		return false, "no sandbox policy for process"
	}
	target := canonicalizePath(path)

	for _, b := range cfg.BlockedPaths {
		if strings.HasPrefix(target, canonicalizePath(b)) {
			return false, "path is blocked: " + path
		}
	}
	if len(cfg.AllowedPaths) == 0 {
		return false, "no paths allowed for process"
	}
	for _, a := range cfg.AllowedPaths {
		if strings.HasPrefix(target, canonicalizePath(a)) {
			return true, ""
		}
	}
	return false, "path not in allowed set: " + path
}

func (m *Manager) HasCapability(pid domain.PID, cap domain.Capability) bool {
	cfg, ok := m.Get(pid)
	if !ok {
		return false
	}
	return grants(cfg.Capabilities, cap)
}

func (m *Manager) CheckLimit(pid domain.PID, resource string, current int) (bool, string) {
	cfg, ok := m.Get(pid)
	if !ok {
		return false, "no sandbox policy for process"
	}
	limit, known := resourceLimitValue(cfg.Limits, resource)
	if !known {
		return true, ""
	}
	if current >= limit {
		return false, "resource limit exceeded: " + resource
	}
	return true, ""
}

// CanSpawnProcess is the read-only predicate process.create consults before
// allocating a pid: parent, the spawning process, must stay under both the
// daemon-wide process cap and its own sandbox's MaxProcesses. A parent of 0
// (spawned directly by the daemon, not by another sandboxed process) is
// exempt from the per-sandbox cap.
func (m *Manager) CanSpawnProcess(parent domain.PID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.liveProcesses >= m.maxProcessesTotal {
		return false
	}
	if parent == 0 {
		return true
	}
	cfg, ok := m.configs[parent]
	if !ok {
		return false
	}
	return m.spawnCounts[parent] < cfg.Limits.MaxProcesses
}

// RecordSpawn increments both the daemon-wide live-process count and
// parent's own per-sandbox spawn counter, failing if either cap is already
// met. parent is the spawning process's pid, 0 for daemon-spawned processes.
func (m *Manager) RecordSpawn(parent domain.PID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveProcesses >= m.maxProcessesTotal {
		return false
	}
	if parent != 0 {
		cfg, ok := m.configs[parent]
		if !ok || m.spawnCounts[parent] >= cfg.Limits.MaxProcesses {
			return false
		}
		m.spawnCounts[parent]++
	}
	m.liveProcesses++
	return true
}

// RecordTermination undoes the bookkeeping RecordSpawn did for parent: the
// terminating process's own parent, not the terminating process itself.
func (m *Manager) RecordTermination(parent domain.PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveProcesses > 0 {
		m.liveProcesses--
	}
	if parent == 0 {
		return
	}
	if m.spawnCounts[parent] > 0 {
		m.spawnCounts[parent]--
	}
	if m.spawnCounts[parent] == 0 {
		delete(m.spawnCounts, parent)
	}
}

func (m *Manager) Limits(pid domain.PID) (domain.ResourceLimits, bool) {
	cfg, ok := m.Get(pid)
	if !ok {
		return domain.ResourceLimits{}, false
	}
	return cfg.Limits, true
}

// capabilityFor maps a syscall's (resource, action) pair onto the
// capability that gates it. Resources not listed here have no capability
// gate and fall through to an allow in Check.
func capabilityFor(resource, action string) (domain.Capability, bool) {
	switch resource {
	case "fs":
		if action == "write" || action == "create" || action == "delete" {
			return domain.Capability{Kind: domain.CapFilesystemWrite, Arg: "*"}, true
		}
		return domain.Capability{Kind: domain.CapFilesystemRead, Arg: "*"}, true
	case "process":
		if action == "kill" {
			return domain.Capability{Kind: domain.CapProcessKill, Arg: "*"}, true
		}
		return domain.Capability{Kind: domain.CapProcessSpawn, Arg: "*"}, true
	case "network":
		if action == "bind" {
			return domain.Capability{Kind: domain.CapBindPort, Arg: "*"}, true
		}
		return domain.Capability{Kind: domain.CapNetworkAccess, Arg: "*"}, true
	case "sysinfo":
		return domain.Capability{Kind: domain.CapSystemInfo, Arg: "*"}, true
	case "ipc":
		return domain.Capability{Kind: domain.CapIPC, Arg: "*"}, true
	case "signal":
		return domain.Capability{Kind: domain.CapSignal, Arg: "*"}, true
	default:
		return domain.Capability{}, false
	}
}

var _ domain.SandboxManagerIface = (*Manager)(nil)
