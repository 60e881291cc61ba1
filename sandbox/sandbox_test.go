package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthkernel/kerneld/domain"
)

func TestMinimalSandboxDeniesCapabilityGatedCall(t *testing.T) {
	m := NewManager(100, nil)
	m.Create(domain.PID(1), domain.SandboxMinimal)

	ok, _ := m.Check(domain.PermissionRequest{Pid: domain.PID(1), Resource: "process", Action: "spawn"})
	assert.False(t, ok)

	require.NoError(t, m.Update(domain.PID(1), []domain.Capability{
		{Kind: domain.CapProcessSpawn, Arg: "*"},
	}, nil, nil, nil))

	ok, _ = m.Check(domain.PermissionRequest{Pid: domain.PID(1), Resource: "process", Action: "spawn"})
	assert.True(t, ok)
}

func TestPathACLAllowAndBlock(t *testing.T) {
	m := NewManager(100, nil)
	m.Create(domain.PID(1), domain.SandboxStandard)
	require.NoError(t, m.Update(domain.PID(1), nil, []string{"/tmp/test"}, []string{"/tmp/test/secret"}, nil))

	ok, _ := m.CanAccessPath(domain.PID(1), "/tmp/test/a")
	assert.True(t, ok)

	ok, _ = m.CanAccessPath(domain.PID(1), "/tmp/test/secret/data")
	assert.False(t, ok)

	ok, _ = m.CanAccessPath(domain.PID(1), "/etc/passwd")
	assert.False(t, ok)
}

func TestEmptyAllowlistDeniesAll(t *testing.T) {
	m := NewManager(100, nil)
	m.Create(domain.PID(1), domain.SandboxMinimal)

	ok, _ := m.CanAccessPath(domain.PID(1), "/tmp/anything")
	assert.False(t, ok)
}

func TestNetworkAccessAllowAllGrantsAnyBindPort(t *testing.T) {
	m := NewManager(100, nil)
	m.Create(domain.PID(1), domain.SandboxMinimal)
	require.NoError(t, m.Update(domain.PID(1), []domain.Capability{
		{Kind: domain.CapNetworkAccess, Arg: "*"},
	}, nil, nil, nil))

	assert.True(t, m.HasCapability(domain.PID(1), domain.Capability{Kind: domain.CapBindPort, Arg: "8080"}))
}

func TestResourceLimitExceeded(t *testing.T) {
	m := NewManager(100, nil)
	m.Create(domain.PID(1), domain.SandboxMinimal)

	ok, _ := m.CheckLimit(domain.PID(1), "fds", 16)
	assert.False(t, ok, "minimal sandbox caps fds at 16")

	ok, _ = m.CheckLimit(domain.PID(1), "fds", 0)
	assert.True(t, ok)
}

func TestSpawnCounterRespectsGlobalCap(t *testing.T) {
	m := NewManager(1, nil)
	assert.True(t, m.RecordSpawn(domain.PID(0)))
	assert.False(t, m.RecordSpawn(domain.PID(0)))

	m.RecordTermination(domain.PID(0))
	assert.True(t, m.RecordSpawn(domain.PID(0)))
}

func TestPrivilegedTemplateGrantsBroadCapabilities(t *testing.T) {
	m := NewManager(100, nil)
	cfg := m.Create(domain.PID(1), domain.SandboxPrivileged)
	assert.NotEmpty(t, cfg.Capabilities)

	for _, kind := range []domain.Capability_Kind{
		domain.CapFilesystemRead, domain.CapFilesystemWrite, domain.CapProcessSpawn,
		domain.CapProcessKill, domain.CapNetworkAccess, domain.CapIPC, domain.CapSignal,
	} {
		assert.True(t, m.HasCapability(domain.PID(1), domain.Capability{Kind: kind, Arg: "*"}), "expected privileged grant for %v", kind)
	}
}
