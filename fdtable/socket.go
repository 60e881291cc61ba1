package fdtable

import (
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/internal/idpool"
	"github.com/synthkernel/kerneld/internal/kerrors"
)

const firstSockFd = 1000 // disjoint range from regular fds, easy to eyeball in logs

// sockEntry is a sum type over {TcpListener, TcpStream, UdpSocket}; exactly
// one of the three fields is non-nil depending on kind. TCP rides Go's
// net.Listener/net.Conn, the same accept-loop abstraction the gRPC server
// elsewhere in this daemon is built on; UDP goes through raw
// golang.org/x/sys/unix calls since a single socket/bind/sendto/recvfrom
// sequence has no accept-loop to abstract away.
type sockEntry struct {
	kind     domain.SocketKind
	listener net.Listener
	conn     net.Conn
	udpFd    int
}

type SocketTable struct {
	mu      sync.RWMutex
	perPid  map[domain.PID]map[int]*sockEntry
	idPools map[domain.PID]*idpool.Pool
}

func NewSocketTable() *SocketTable {
	return &SocketTable{
		perPid:  make(map[domain.PID]map[int]*sockEntry),
		idPools: make(map[domain.PID]*idpool.Pool),
	}
}

func (t *SocketTable) poolFor(pid domain.PID) *idpool.Pool {
	p, ok := t.idPools[pid]
	if !ok {
		p = idpool.New(firstSockFd)
		t.idPools[pid] = p
	}
	return p
}

func (t *SocketTable) register(pid domain.PID, e *sockEntry) int {
	fds, ok := t.perPid[pid]
	if !ok {
		fds = make(map[int]*sockEntry)
		t.perPid[pid] = fds
	}
	fd := int(t.poolFor(pid).Acquire())
	fds[fd] = e
	return fd
}

func (t *SocketTable) Bind(pid domain.PID, network, addr string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch network {
	case "tcp", "tcp4", "tcp6":
		ln, err := net.Listen(network, addr)
		if err != nil {
			return 0, kerrors.Validation("bind %s %s: %v", network, addr, err)
		}
		fd := t.register(pid, &sockEntry{kind: domain.SockTcpListener, listener: ln})
		return fd, nil
	case "udp", "udp4", "udp6":
		fd, err := bindUDP(addr)
		if err != nil {
			return 0, kerrors.Validation("bind %s %s: %v", network, addr, err)
		}
		sockfd := t.register(pid, &sockEntry{kind: domain.SockUdpSocket, udpFd: fd})
		return sockfd, nil
	default:
		return 0, kerrors.Validation("unsupported network %q", network)
	}
}

func (t *SocketTable) get(pid domain.PID, sockfd int) (*sockEntry, error) {
	fds, ok := t.perPid[pid]
	if !ok {
		return nil, kerrors.NotFound("pid %d has no open sockets", pid)
	}
	e, ok := fds[sockfd]
	if !ok {
		return nil, kerrors.NotFound("sockfd %d not open for pid %d", sockfd, pid)
	}
	return e, nil
}

// Accept polls with a short deadline rather than blocking indefinitely, so
// callers can fold this into the same would-block retry ladder as every
// other blocking operation.
func (t *SocketTable) Accept(pid domain.PID, sockfd int) (int, string, error) {
	t.mu.Lock()
	e, err := t.get(pid, sockfd)
	t.mu.Unlock()
	if err != nil {
		return 0, "", err
	}
	if e.kind != domain.SockTcpListener {
		return 0, "", kerrors.Validation("sockfd %d is not a listener", sockfd)
	}

	type tl interface {
		SetDeadline(time.Time) error
	}
	if dl, ok := e.listener.(tl); ok {
		_ = dl.SetDeadline(time.Now().Add(10 * time.Millisecond))
	}

	conn, err := e.listener.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, "", kerrors.ErrWouldBlock
		}
		return 0, "", kerrors.Internal("accept on sockfd %d: %v", sockfd, err)
	}

	t.mu.Lock()
	fd := t.register(pid, &sockEntry{kind: domain.SockTcpStream, conn: conn})
	t.mu.Unlock()

	return fd, conn.RemoteAddr().String(), nil
}

func (t *SocketTable) Send(pid domain.PID, sockfd int, data []byte) (int, error) {
	t.mu.RLock()
	e, err := t.get(pid, sockfd)
	t.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	if e.kind != domain.SockTcpStream || e.conn == nil {
		return 0, kerrors.Validation("sockfd %d is not a connected stream", sockfd)
	}
	n, err := e.conn.Write(data)
	if err != nil {
		return n, kerrors.Internal("send on sockfd %d: %v", sockfd, err)
	}
	return n, nil
}

func (t *SocketTable) Recv(pid domain.PID, sockfd int, size int) ([]byte, error) {
	t.mu.RLock()
	e, err := t.get(pid, sockfd)
	t.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if e.kind != domain.SockTcpStream || e.conn == nil {
		return nil, kerrors.Validation("sockfd %d is not a connected stream", sockfd)
	}

	_ = e.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	buf := make([]byte, size)
	n, err := e.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, kerrors.ErrWouldBlock
		}
		return nil, kerrors.Internal("recv on sockfd %d: %v", sockfd, err)
	}
	return buf[:n], nil
}

func (t *SocketTable) SendTo(pid domain.PID, sockfd int, addr string, data []byte) (int, error) {
	t.mu.RLock()
	e, err := t.get(pid, sockfd)
	t.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	if e.kind != domain.SockUdpSocket {
		return 0, kerrors.Validation("sockfd %d is not a udp socket", sockfd)
	}

	sa, err := resolveSockaddrInet4(addr)
	if err != nil {
		return 0, kerrors.Validation("resolve %s: %v", addr, err)
	}
	if err := unix.Sendto(e.udpFd, data, 0, sa); err != nil {
		return 0, kerrors.Internal("sendto on sockfd %d: %v", sockfd, err)
	}
	return len(data), nil
}

func (t *SocketTable) RecvFrom(pid domain.PID, sockfd int, size int) ([]byte, string, error) {
	t.mu.RLock()
	e, err := t.get(pid, sockfd)
	t.mu.RUnlock()
	if err != nil {
		return nil, "", err
	}
	if e.kind != domain.SockUdpSocket {
		return nil, "", kerrors.Validation("sockfd %d is not a udp socket", sockfd)
	}

	buf := make([]byte, size)
	n, from, err := unix.Recvfrom(e.udpFd, buf, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, "", kerrors.ErrWouldBlock
		}
		return nil, "", kerrors.Internal("recvfrom on sockfd %d: %v", sockfd, err)
	}
	return buf[:n], sockaddrString(from), nil
}

// bindUDP opens a non-blocking IPv4 UDP socket via raw unix syscalls and
// binds it to addr, so RecvFrom can surface kerrors.ErrWouldBlock instead of
// parking a goroutine the way a blocking syscall would.
func bindUDP(addr string) (int, error) {
	ua, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return 0, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return 0, err
	}
	sa := &unix.SockaddrInet4{Port: ua.Port}
	if ip4 := ua.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

func resolveSockaddrInet4(addr string) (*unix.SockaddrInet4, error) {
	ua, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: ua.Port}
	if ip4 := ua.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa, nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(s.Addr[:])
		return net.JoinHostPort(ip.String(), strconv.Itoa(s.Port))
	default:
		return ""
	}
}

func (t *SocketTable) Close(pid domain.PID, sockfd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fds, ok := t.perPid[pid]
	if !ok {
		return kerrors.NotFound("pid %d has no open sockets", pid)
	}
	e, ok := fds[sockfd]
	if !ok {
		return kerrors.NotFound("sockfd %d not open for pid %d", sockfd, pid)
	}
	delete(fds, sockfd)
	t.poolFor(pid).Release(uint64(sockfd))
	return closeEntry(e)
}

func closeEntry(e *sockEntry) error {
	switch e.kind {
	case domain.SockTcpListener:
		return e.listener.Close()
	case domain.SockTcpStream:
		return e.conn.Close()
	case domain.SockUdpSocket:
		return unix.Close(e.udpFd)
	}
	return nil
}

func (t *SocketTable) CloseAll(pid domain.PID) {
	t.mu.Lock()
	fds := t.perPid[pid]
	delete(t.perPid, pid)
	delete(t.idPools, pid)
	t.mu.Unlock()

	for _, e := range fds {
		_ = closeEntry(e)
	}
}

func (t *SocketTable) Count(pid domain.PID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.perPid[pid])
}

func (t *SocketTable) Kind(pid domain.PID, sockfd int) (domain.SocketKind, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, err := t.get(pid, sockfd)
	if err != nil {
		return 0, false
	}
	return e.kind, true
}

var _ domain.SocketTableIface = (*SocketTable)(nil)
