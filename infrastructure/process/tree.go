package process

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// descendants returns every live descendant of pid, depth first.
func descendants(ctx context.Context, pid int) []*process.Process {
	root, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil
	}

	var out []*process.Process
	var walk func(p *process.Process)
	walk = func(p *process.Process) {
		children, err := p.ChildrenWithContext(ctx)
		if err != nil {
			return
		}
		for _, child := range children {
			out = append(out, child)
			walk(child)
		}
	}
	walk(root)
	return out
}

// killAll sends SIGKILL to every process still running and returns how
// many were signalled.
func killAll(ctx context.Context, procs []*process.Process) int {
	killed := 0
	for _, p := range procs {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			continue
		}
		if err := p.KillWithContext(ctx); err == nil {
			killed++
		}
	}
	return killed
}

// Alive reports whether a process with the given pid exists.
func Alive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}
