package rpc

import (
	"encoding/json"

	"github.com/synthkernel/kerneld/internal/kerrors"
	"github.com/synthkernel/kerneld/syscalls"
)

// decodeFunc builds a concrete syscalls.Executable from ExecuteSyscallRequest.Args.
type decodeFunc func(args map[string]interface{}) (syscalls.Executable, error)

// remarshal decodes a loosely-typed args map into dst by round-tripping
// through JSON, a poor-man's substitute for mapstructure that avoids
// hand-writing a field-by-field decoder for every dispatchable operation.
func remarshal(args map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// opRegistry maps the wire operation name ("fs.read", "pipe.write", ...) to
// a decoder for its concrete syscalls type. Names mirror the resource
// prefixes syscalls.ClassifyOperationName already recognizes.
var opRegistry = map[string]decodeFunc{
	"process.create": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessCreate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.create_with_command": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessCreateWithCommand
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.terminate": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessTerminate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.get": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessGet
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.list": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.ProcessList{}, nil
	},
	"process.set_priority": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessSetPriority
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.boost_priority": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessBoostPriority
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.lower_priority": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessLowerPriority
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"process.wait": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ProcessWait
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"scheduler.set_policy": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SchedulerSetPolicy
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"scheduler.set_quantum": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SchedulerSetQuantum
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"scheduler.yield": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.SchedulerYield{}, nil
	},
	"scheduler.stats": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.SchedulerStats{}, nil
	},

	"memory.allocate": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MemoryAllocate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"memory.deallocate": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MemoryDeallocate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"memory.read": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MemoryRead
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"memory.write": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MemoryWrite
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"memory.info": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MemoryInfo
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"memory.stats": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.MemoryStats{}, nil
	},
	"memory.process_usage": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MemoryProcessUsage
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"pipe.create": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.PipeCreate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"pipe.write": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.PipeWrite
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"pipe.read": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.PipeRead
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"pipe.close": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.PipeClose
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"pipe.destroy": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.PipeDestroy
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"pipe.info": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.PipeInfo
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"shm.create": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmCreate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"shm.attach": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmAttach
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"shm.detach": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmDetach
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"shm.read": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmRead
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"shm.write": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmWrite
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"shm.destroy": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmDestroy
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"shm.info": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.ShmInfo
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"mmap.map": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MmapMap
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"mmap.unmap": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.MmapUnmap
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"queue.create": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueCreate
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.send": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueSend
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.receive": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueReceive
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.read_payload": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueReadPayload
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.poll": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueuePoll
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.subscribe": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueSubscribe
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.close": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueClose
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"queue.destroy": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.QueueDestroy
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"signal.send": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SignalSend
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"signal.broadcast": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SignalBroadcast
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"signal.deliver_pending": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.SignalDeliverPending{}, nil
	},
	"signal.register_handler": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SignalRegisterHandler
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"signal.block": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SignalBlock
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"signal.unblock": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SignalUnblock
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"signal.set_mask": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.SignalSetMask
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"signal.get_blocked": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.SignalGetBlocked{}, nil
	},

	"network.bind": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkBind
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"network.accept": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkAccept
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"network.send": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkSend
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"network.recv": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkRecv
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"network.sendto": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkSendTo
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"network.recvfrom": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkRecvFrom
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"network.close": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.NetworkClose
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"fd.dup": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.FdDup
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"fd.dup2": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.FdDup2
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"fd.close": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.FdClose
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"fd.read": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.FdRead
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},
	"fd.write": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v syscalls.FdWrite
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return &v, nil
	},

	"sysinfo.overview": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.SysinfoOverview{}, nil
	},
	"time.now": func(a map[string]interface{}) (syscalls.Executable, error) {
		return &syscalls.TimeNow{}, nil
	},

	// fs.* operations build through constructors since FsRead/FsWrite/... keep
	// their fields private (syscalls/fs.go).
	"fs.read": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct{ Path string }
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsRead(v.Path), nil
	},
	"fs.write": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct {
			Path string
			Data []byte
		}
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsWrite(v.Path, v.Data), nil
	},
	"fs.delete": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct{ Path string }
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsDelete(v.Path), nil
	},
	"fs.mkdir": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct{ Path string }
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsMkdir(v.Path), nil
	},
	"fs.listdir": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct{ Path string }
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsListDir(v.Path), nil
	},
	"fs.stat": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct{ Path string }
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsStat(v.Path), nil
	},
	"fs.open": func(a map[string]interface{}) (syscalls.Executable, error) {
		var v struct {
			Path             string
			Writable, Create bool
			Truncate         bool
		}
		if err := remarshal(a, &v); err != nil {
			return nil, err
		}
		return syscalls.NewFsOpen(v.Path, v.Writable, v.Create, v.Truncate), nil
	},
}

// decodeOp resolves op against opRegistry and decodes args into the
// matching syscalls.Executable.
func decodeOp(op string, args map[string]interface{}) (syscalls.Executable, error) {
	fn, ok := opRegistry[op]
	if !ok {
		return nil, kerrors.Validation("unknown operation %q", op)
	}
	return fn(args)
}
