// Command kerneld runs the synthetic kernel daemon: it wires every manager
// together and serves the gRPC boundary from a single-binary daemon entry
// point.
package main

import (
	"flag"
	"net"
	"os"
	osignal "os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/synthkernel/kerneld/domain"
	"github.com/synthkernel/kerneld/events"
	"github.com/synthkernel/kerneld/fdtable"
	"github.com/synthkernel/kerneld/internal/config"
	"github.com/synthkernel/kerneld/ipc"
	"github.com/synthkernel/kerneld/memory"
	"github.com/synthkernel/kerneld/process"
	"github.com/synthkernel/kerneld/rpc"
	"github.com/synthkernel/kerneld/rpc/codec"
	"github.com/synthkernel/kerneld/rpc/pb"
	"github.com/synthkernel/kerneld/sandbox"
	signalmgr "github.com/synthkernel/kerneld/signal"
	"github.com/synthkernel/kerneld/syscalls"
	"github.com/synthkernel/kerneld/vfs"
)

func main() {
	var (
		listenAddr = flag.String("listen", "", "RPC listen address (overrides config/env)")
		configPath = flag.String("config", "", "optional YAML config file")
		logLevel   = flag.String("log-level", "info", "logrus level: trace, debug, info, warn, error")
		profileCPU = flag.Bool("profile", false, "enable CPU profiling via pkg/profile for the process lifetime")
	)
	flag.Parse()

	if *profileCPU {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("invalid -log-level %q: %v", *logLevel, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Default()
	cfg, err = config.LoadFile(cfg, *configPath)
	if err != nil {
		logrus.Fatalf("load config %s: %v", *configPath, err)
	}
	cfg = config.ApplyEnv(cfg)
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	sink := events.NewSink()

	memMgr := memory.NewManager(cfg.TotalMemoryBytes, cfg.GCThreshold, sink)
	sandboxMgr := sandbox.NewManager(cfg.MaxProcessesTotal, sink)
	sigMgr := signalmgr.NewManager(sink)
	fds := fdtable.NewTable()
	socks := fdtable.NewSocketTable()
	vfsRoot := vfs.New()

	pipes := ipc.NewPipeManager(memMgr, cfg.DefaultPipeCapacity, cfg.MaxPipesPerProcess)
	shm := ipc.NewShmManager(memMgr)
	queues := ipc.NewQueueManager(memMgr, cfg.MaxQueuesPerProcess, cfg.MaxQueueMessageBytes, cfg.MaxQueueMemoryBytes)
	ipcMgr := ipc.NewManager(pipes, shm, queues)

	sched := process.NewScheduler(domain.Fair, cfg.DefaultQuantum)
	schedTask := process.NewSchedulerTask(sched, cfg.DefaultQuantum)

	procMgr := process.NewManager()
	procMgr.Setup(sched, memMgr, ipcMgr, sigMgr, fds, socks, sandboxMgr, sink)

	executor := syscalls.NewExecutor(procMgr, memMgr, ipcMgr, sigMgr, sandboxMgr, fds, socks, vfsRoot, sink, cfg.BlockingSyscallTimeout)
	rpcServer := rpc.NewServer(executor, procMgr, sandboxMgr, sink)

	go schedTask.Run()
	defer schedTask.Stop()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logrus.Fatalf("listen on %s: %v", cfg.ListenAddr, err)
	}

	codec.Register()

	// Keepalive/timeout posture comes from the daemon's own config knobs
	// instead of hardcoded constants.
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             cfg.KeepaliveTime / 2,
			PermitWithoutStream: true,
		}),
		grpc.ConnectionTimeout(cfg.RequestTimeout),
	)
	grpcServer.RegisterService(&pb.KernelServiceDesc, rpcServer)
	reflection.Register(grpcServer)

	go func() {
		logrus.Infof("kerneld listening on %s", cfg.ListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logrus.Fatalf("serve: %v", err)
		}
	}()

	waitForShutdown()
	logrus.Info("shutting down")
	grpcServer.GracefulStop()
}

func waitForShutdown() {
	ch := make(chan os.Signal, 1)
	osignal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
