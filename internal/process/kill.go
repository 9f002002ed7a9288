package process

import (
	"github.com/golibos/libos/internal/errutil"
	"github.com/golibos/libos/internal/process/signal"
)

// Kill enqueues signum into the sig-queue of every process matching
// filter, skipping zombies, per do_kill.rs's do_kill. srcPID/srcUID
// identify the sender for SI_USER-style introspection.
func Kill(table *Table, filter Filter, signum signal.Num, srcPID, srcUID uint32) error {
	if !signum.Valid() {
		return errutil.New(errutil.EINVAL, "kill: invalid signal number %d", signum)
	}

	targets, err := processesForFilter(table, filter)
	if err != nil {
		return err
	}

	pending := signal.Pending{Num: signum, Kind: signal.KindKill, SrcPID: srcPID, SrcUID: srcUID}
	for _, p := range targets {
		if p.Status() == StatusZombie {
			continue
		}
		p.SigQueue().Enqueue(pending)
		p.waitQueue.WakeAll()
	}
	return nil
}

// Tgkill enqueues signum into the sig-queue of exactly one thread, per
// do_kill.rs's do_tgkill: pid, if given, must match the thread's process.
func Tgkill(table *Table, pid *uint32, tid uint32, signum signal.Num, srcPID, srcUID uint32) error {
	if !signum.Valid() {
		return errutil.New(errutil.EINVAL, "tgkill: invalid signal number %d", signum)
	}
	thread, err := table.GetThread(tid)
	if err != nil {
		return err
	}
	if pid != nil && *pid != thread.Process().PID() {
		return errutil.New(errutil.EINVAL, "tgkill: pid/tid combination is not valid")
	}
	if thread.Status() == ThreadExited {
		return nil
	}
	thread.SigQueue().Enqueue(signal.Pending{Num: signum, Kind: signal.KindTkill, SrcPID: srcPID, SrcUID: srcUID})
	thread.process.waitQueue.WakeAll()
	return nil
}

func processesForFilter(table *Table, filter Filter) ([]*Process, error) {
	switch filter.Kind {
	case FilterAnyChild:
		return table.AllProcesses(), nil
	case FilterByPID:
		p, err := table.GetProcess(filter.PID)
		if err != nil {
			return nil, err
		}
		return []*Process{p}, nil
	case FilterByPGID:
		procs := table.ProcessGroup(filter.PGID)
		if len(procs) == 0 {
			return nil, errutil.New(errutil.EINVAL, "kill: invalid pgid %d", filter.PGID)
		}
		return procs, nil
	default:
		return nil, errutil.New(errutil.EINVAL, "kill: unknown filter kind")
	}
}
