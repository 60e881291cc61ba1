package fdtable

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

// entryFor reaches past the public API to the raw sockEntry, the same way
// the table itself does internally; tests need the ephemeral address a
// "127.0.0.1:0" bind produced; there's no wire-facing getter for it.
func entryFor(t *testing.T, st *SocketTable, pid domain.PID, fd int) *sockEntry {
	t.Helper()
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, err := st.get(pid, fd)
	require.NoError(t, err)
	return e
}

func listenerAddr(t *testing.T, st *SocketTable, pid domain.PID, fd int) string {
	return entryFor(t, st, pid, fd).listener.Addr().String()
}

func udpAddr(t *testing.T, st *SocketTable, pid domain.PID, fd int) string {
	sa, err := unix.Getsockname(entryFor(t, st, pid, fd).udpFd)
	require.NoError(t, err)
	return sockaddrString(sa)
}

func retryUntil[T any](t *testing.T, fn func() (T, error)) T {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := fn()
		if err == nil {
			return v
		}
		if err != kerrors.ErrWouldBlock || time.Now().After(deadline) {
			require.NoError(t, err)
		}
	}
}

func TestBindTcpStartsAtReservedSocketBoundary(t *testing.T) {
	st := NewSocketTable()
	fd, err := st.Bind(domain.PID(1), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, firstSockFd, fd)

	kind, ok := st.Kind(domain.PID(1), fd)
	require.True(t, ok)
	assert.Equal(t, domain.SockTcpListener, kind)

	require.NoError(t, st.Close(domain.PID(1), fd))
}

func TestBindUnsupportedNetworkIsRejected(t *testing.T) {
	st := NewSocketTable()
	_, err := st.Bind(domain.PID(1), "unix", "/tmp/whatever")
	assert.Error(t, err)
}

func TestAcceptSendRecvRoundTripOverTcp(t *testing.T) {
	st := NewSocketTable()
	pid := domain.PID(1)

	listenFd, err := st.Bind(pid, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer st.Close(pid, listenFd)

	addr := listenerAddr(t, st, pid, listenFd)

	clientConn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer clientConn.Close()

	type acceptResult struct {
		fd     int
		remote string
	}
	res := retryUntil(t, func() (acceptResult, error) {
		fd, remote, err := st.Accept(pid, listenFd)
		return acceptResult{fd, remote}, err
	})
	assert.NotEmpty(t, res.remote)

	_, err = clientConn.Write([]byte("ping"))
	require.NoError(t, err)

	data := retryUntil(t, func() ([]byte, error) {
		return st.Recv(pid, res.fd, 4)
	})
	assert.Equal(t, "ping", string(data))
}

func TestAcceptOnNonListenerIsRejected(t *testing.T) {
	st := NewSocketTable()
	pid := domain.PID(1)
	udpFd, err := st.Bind(pid, "udp", "127.0.0.1:0")
	require.NoError(t, err)

	_, _, err = st.Accept(pid, udpFd)
	assert.Error(t, err)
}

func TestSendOnNonStreamIsRejected(t *testing.T) {
	st := NewSocketTable()
	pid := domain.PID(1)
	listenFd, err := st.Bind(pid, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	_, err = st.Send(pid, listenFd, []byte("x"))
	assert.Error(t, err)
}

func TestUdpSendToAndRecvFromRoundTrip(t *testing.T) {
	st := NewSocketTable()
	pid := domain.PID(1)

	serverFd, err := st.Bind(pid, "udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer st.Close(pid, serverFd)

	clientFd, err := st.Bind(pid, "udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer st.Close(pid, clientFd)

	serverAddr := udpAddr(t, st, pid, serverFd)

	n, err := st.SendTo(pid, clientFd, serverAddr, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	type recvResult struct {
		data []byte
		from string
	}
	res := retryUntil(t, func() (recvResult, error) {
		data, from, err := st.RecvFrom(pid, serverFd, 5)
		return recvResult{data, from}, err
	})
	assert.Equal(t, "hello", string(res.data))
}

func TestCloseUnknownSockfdReturnsNotFound(t *testing.T) {
	st := NewSocketTable()
	err := st.Close(domain.PID(1), 1000)
	assert.Error(t, err)
}

func TestCloseAllClosesEverySocketForPid(t *testing.T) {
	st := NewSocketTable()
	pid := domain.PID(1)

	fd1, err := st.Bind(pid, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fd2, err := st.Bind(pid, "udp", "127.0.0.1:0")
	require.NoError(t, err)

	assert.Equal(t, 2, st.Count(pid))
	st.CloseAll(pid)
	assert.Equal(t, 0, st.Count(pid))

	_, ok := st.Kind(pid, fd1)
	assert.False(t, ok)
	_, ok = st.Kind(pid, fd2)
	assert.False(t, ok)
}

func TestCountIsPerPid(t *testing.T) {
	st := NewSocketTable()
	_, err := st.Bind(domain.PID(1), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, err = st.Bind(domain.PID(2), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	assert.Equal(t, 1, st.Count(domain.PID(1)))
	assert.Equal(t, 1, st.Count(domain.PID(2)))
}
