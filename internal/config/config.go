// Package config centralizes the kernel daemon's environment inputs:
// memory cap, quantum, GC threshold, pressure thresholds, default pipe
// capacity, per-process caps, and the RPC listen address. Values are
// sourced from flags (see cmd/kerneld) with KERNELD_* environment overrides,
// and an optional YAML file merged in first — file defaults, then env,
// then explicit flags.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	TotalMemoryBytes uint64 `yaml:"total_memory_bytes"`
	GCThreshold      int    `yaml:"gc_threshold"`

	DefaultQuantum time.Duration `yaml:"default_quantum"`

	DefaultPipeCapacity int `yaml:"default_pipe_capacity"`
	MaxPipesPerProcess  int `yaml:"max_pipes_per_process"`
	MaxQueuesPerProcess int `yaml:"max_queues_per_process"`
	MaxFDsPerProcess    int `yaml:"max_fds_per_process"`
	MaxProcessesTotal   int `yaml:"max_processes_total"`
	MaxSocketsPerProcess int `yaml:"max_sockets_per_process"`

	MaxQueueMessageBytes uint64 `yaml:"max_queue_message_bytes"`
	MaxQueueMemoryBytes  uint64 `yaml:"max_queue_memory_bytes"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	KeepaliveTime   time.Duration `yaml:"keepalive_time"`
	KeepaliveTimeout time.Duration `yaml:"keepalive_timeout"`

	// BlockingSyscallTimeout bounds how long the timeout engine's retry
	// ladder spins/yields/sleeps on a would-block result (pipe/queue/socket
	// read-or-write) before the syscall surfaces as a timed-out error.
	BlockingSyscallTimeout time.Duration `yaml:"blocking_syscall_timeout"`
}

// Default returns the configuration baseline before file/env/flag overrides.
func Default() Config {
	return Config{
		ListenAddr:           ":9090",
		TotalMemoryBytes:     1 << 30, // 1 GiB
		GCThreshold:          1000,
		DefaultQuantum:       10 * time.Millisecond,
		DefaultPipeCapacity:  64 * 1024,
		MaxPipesPerProcess:   64,
		MaxQueuesPerProcess:  64,
		MaxFDsPerProcess:     256,
		MaxProcessesTotal:    4096,
		MaxSocketsPerProcess: 128,
		MaxQueueMessageBytes: 1 << 20,
		MaxQueueMemoryBytes:  256 << 20,
		RequestTimeout:       30 * time.Second,
		KeepaliveTime:        2 * time.Minute,
		KeepaliveTimeout:     20 * time.Second,
		BlockingSyscallTimeout: 2 * time.Second,
	}
}

// LoadFile merges a YAML config file over the given base, returning the base
// unchanged if path is empty.
func LoadFile(base Config, path string) (Config, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return base, err
	}
	return base, nil
}

// ApplyEnv overrides fields from KERNELD_* environment variables.
func ApplyEnv(c Config) Config {
	if v := os.Getenv("KERNELD_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v, ok := envUint(("KERNELD_TOTAL_MEMORY_BYTES")); ok {
		c.TotalMemoryBytes = v
	}
	if v, ok := envInt("KERNELD_GC_THRESHOLD"); ok {
		c.GCThreshold = v
	}
	if v, ok := envDuration("KERNELD_DEFAULT_QUANTUM"); ok {
		c.DefaultQuantum = v
	}
	if v, ok := envInt("KERNELD_DEFAULT_PIPE_CAPACITY"); ok {
		c.DefaultPipeCapacity = v
	}
	if v, ok := envInt("KERNELD_MAX_PIPES_PER_PROCESS"); ok {
		c.MaxPipesPerProcess = v
	}
	if v, ok := envInt("KERNELD_MAX_QUEUES_PER_PROCESS"); ok {
		c.MaxQueuesPerProcess = v
	}
	if v, ok := envInt("KERNELD_MAX_FDS_PER_PROCESS"); ok {
		c.MaxFDsPerProcess = v
	}
	if v, ok := envInt("KERNELD_MAX_PROCESSES_TOTAL"); ok {
		c.MaxProcessesTotal = v
	}
	if v, ok := envInt("KERNELD_MAX_SOCKETS_PER_PROCESS"); ok {
		c.MaxSocketsPerProcess = v
	}
	if v, ok := envUint("KERNELD_MAX_QUEUE_MESSAGE_BYTES"); ok {
		c.MaxQueueMessageBytes = v
	}
	if v, ok := envUint("KERNELD_MAX_QUEUE_MEMORY_BYTES"); ok {
		c.MaxQueueMemoryBytes = v
	}
	if v, ok := envDuration("KERNELD_REQUEST_TIMEOUT"); ok {
		c.RequestTimeout = v
	}
	if v, ok := envDuration("KERNELD_KEEPALIVE_TIME"); ok {
		c.KeepaliveTime = v
	}
	if v, ok := envDuration("KERNELD_KEEPALIVE_TIMEOUT"); ok {
		c.KeepaliveTimeout = v
	}
	if v, ok := envDuration("KERNELD_BLOCKING_SYSCALL_TIMEOUT"); ok {
		c.BlockingSyscallTimeout = v
	}
	return c
}

func envUint(key string) (uint64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
