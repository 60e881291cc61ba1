package syscalls

import (
	"github.com/synthkernel/kerneld/domain"
)

const maxNetIO = 1 << 20 // 1 MiB per call

// NetworkBind implements `network.bind`.
type NetworkBind struct {
	Network string // "tcp", "udp"
	Addr    string
}

func (o *NetworkBind) Resource() string      { return "network" }
func (o *NetworkBind) Action() string        { return "bind" }
func (o *NetworkBind) LimitResource() string { return "sockets" }
func (o *NetworkBind) Validate() error {
	if o.Network == "" || o.Addr == "" || rejectsShellMetacharacters(o.Addr) {
		return &validationErr{msg: "invalid bind address"}
	}
	return nil
}

func (o *NetworkBind) Dispatch(ctx *Context) domain.Result {
	sockfd, err := ctx.Sockets.Bind(ctx.Pid, o.Network, o.Addr)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Sockfd int `json:"sockfd"`
	}{Sockfd: sockfd})
}

// NetworkAccept implements `network.accept`.
type NetworkAccept struct{ Sockfd int }

func (o *NetworkAccept) Resource() string      { return "network" }
func (o *NetworkAccept) Action() string        { return "read" }
func (o *NetworkAccept) Validate() error       { return nil }
func (o *NetworkAccept) LimitResource() string { return "sockets" }

func (o *NetworkAccept) Dispatch(ctx *Context) domain.Result {
	return ctx.Retrier.ExecuteWithRetry(func() (domain.Result, error) {
		fd, peer, err := ctx.Sockets.Accept(ctx.Pid, o.Sockfd)
		if err != nil {
			return domain.Result{}, err
		}
		return jsonSuccess(struct {
			Sockfd int    `json:"sockfd"`
			Peer   string `json:"peer"`
		}{Sockfd: fd, Peer: peer}), nil
	}, IsWouldBlock, ctx.BlockingTimeout, "network.accept")
}

// NetworkSend implements `network.send`.
type NetworkSend struct {
	Sockfd int
	Data   []byte
}

func (o *NetworkSend) Resource() string { return "network" }
func (o *NetworkSend) Action() string   { return "write" }
func (o *NetworkSend) Validate() error {
	if len(o.Data) == 0 || len(o.Data) > maxNetIO {
		return &validationErr{msg: "send size out of range"}
	}
	return nil
}

func (o *NetworkSend) IOSize() int { return len(o.Data) }

func (o *NetworkSend) Dispatch(ctx *Context) domain.Result {
	n, err := ctx.Sockets.Send(ctx.Pid, o.Sockfd, o.Data)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Sent int `json:"sent"`
	}{Sent: n})
}

// NetworkRecv implements `network.recv`.
type NetworkRecv struct {
	Sockfd int
	Size   int
}

func (o *NetworkRecv) Resource() string { return "network" }
func (o *NetworkRecv) Action() string   { return "read" }
func (o *NetworkRecv) Validate() error {
	if o.Size <= 0 || o.Size > maxNetIO {
		return &validationErr{msg: "recv size out of range"}
	}
	return nil
}

func (o *NetworkRecv) IOSize() int { return o.Size }

func (o *NetworkRecv) Dispatch(ctx *Context) domain.Result {
	return ctx.Retrier.ExecuteWithRetry(func() (domain.Result, error) {
		data, err := ctx.Sockets.Recv(ctx.Pid, o.Sockfd, o.Size)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.Success(data), nil
	}, IsWouldBlock, ctx.BlockingTimeout, "network.recv")
}

// NetworkSendTo implements `network.sendto` (UDP).
type NetworkSendTo struct {
	Sockfd int
	Addr   string
	Data   []byte
}

func (o *NetworkSendTo) Resource() string { return "network" }
func (o *NetworkSendTo) Action() string   { return "write" }
func (o *NetworkSendTo) Validate() error {
	if o.Addr == "" || len(o.Data) == 0 || len(o.Data) > maxNetIO {
		return &validationErr{msg: "invalid sendto arguments"}
	}
	return nil
}

func (o *NetworkSendTo) Dispatch(ctx *Context) domain.Result {
	n, err := ctx.Sockets.SendTo(ctx.Pid, o.Sockfd, o.Addr, o.Data)
	if err != nil {
		return resultFromError(err)
	}
	return jsonSuccess(struct {
		Sent int `json:"sent"`
	}{Sent: n})
}

// NetworkRecvFrom implements `network.recvfrom` (UDP).
type NetworkRecvFrom struct {
	Sockfd int
	Size   int
}

func (o *NetworkRecvFrom) Resource() string { return "network" }
func (o *NetworkRecvFrom) Action() string   { return "read" }
func (o *NetworkRecvFrom) Validate() error {
	if o.Size <= 0 || o.Size > maxNetIO {
		return &validationErr{msg: "recvfrom size out of range"}
	}
	return nil
}

func (o *NetworkRecvFrom) Dispatch(ctx *Context) domain.Result {
	return ctx.Retrier.ExecuteWithRetry(func() (domain.Result, error) {
		data, from, err := ctx.Sockets.RecvFrom(ctx.Pid, o.Sockfd, o.Size)
		if err != nil {
			return domain.Result{}, err
		}
		return jsonSuccess(struct {
			Data []byte `json:"data"`
			From string `json:"from"`
		}{Data: data, From: from}), nil
	}, IsWouldBlock, ctx.BlockingTimeout, "network.recvfrom")
}

// NetworkClose implements `network.close`.
type NetworkClose struct{ Sockfd int }

func (o *NetworkClose) Resource() string { return "network" }
func (o *NetworkClose) Action() string   { return "write" }
func (o *NetworkClose) Validate() error  { return nil }

func (o *NetworkClose) Dispatch(ctx *Context) domain.Result {
	if err := ctx.Sockets.Close(ctx.Pid, o.Sockfd); err != nil {
		return resultFromError(err)
	}
	return domain.Success(nil)
}
