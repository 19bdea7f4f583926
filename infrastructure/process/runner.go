// Package process runs shell commands in their own process group, streams
// their output line by line, and tears the whole group down on
// cancellation.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
)

// ConsolePrefix opens the first chunk of each stream.
const ConsolePrefix = "```console\n"

const (
	defaultKillGrace    = 2 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// Config configures a Runner.
type Config struct {
	// BufferLines caps each stream's ring buffer.
	BufferLines int

	// MaxResponseSize bounds the packaged result. Each stream gets a third.
	MaxResponseSize int

	// KillGrace is how long a cancelled group has between SIGTERM and SIGKILL.
	KillGrace time.Duration

	// PollInterval is how often the cancellation signal is checked.
	PollInterval time.Duration

	// Env is appended to the inherited environment.
	Env []string
}

// Option configures a Runner.
type Option func(*Config)

// WithBufferLines sets the per-stream line cap.
func WithBufferLines(n int) Option {
	return func(c *Config) {
		c.BufferLines = n
	}
}

// WithMaxResponseSize sets the result size bound.
func WithMaxResponseSize(n int) Option {
	return func(c *Config) {
		c.MaxResponseSize = n
	}
}

// WithKillGrace sets the SIGTERM to SIGKILL delay.
func WithKillGrace(d time.Duration) Option {
	return func(c *Config) {
		c.KillGrace = d
	}
}

// WithPollInterval sets the cancellation poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithEnv adds KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) Option {
	return func(c *Config) {
		c.Env = append(c.Env, env...)
	}
}

// Runner spawns and supervises subprocesses. A Runner holds no per-run
// state and may be shared; every Run owns its own process and buffers.
type Runner struct {
	config Config
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	cfg := Config{
		BufferLines:     DefaultBufferLines,
		MaxResponseSize: tool.DefaultMaxResponseSize,
		KillGrace:       defaultKillGrace,
		PollInterval:    defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = tool.DefaultMaxResponseSize
	}
	return &Runner{config: cfg}
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Request describes one subprocess.
type Request struct {
	Name string
	Args []string
	Dir  string

	// Cancelled is polled while the process runs. A true result
	// terminates the process group.
	Cancelled func() bool

	// OnStart is called with the child pid once it is running.
	OnStart func(pid int)
}

func (req Request) String() string {
	return strings.TrimSpace(req.Name + " " + strings.Join(req.Args, " "))
}

// Result is the packaged outcome of a finished process.
type Result struct {
	ExitStatus int    `json:"exitStatus"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// Output encodes the result as a JSON tool output.
func (r Result) Output() (tool.Output, error) {
	return tool.JSONOutput(r)
}

// Run starts the process, relays each output line to sink and waits for it
// to exit. A nonzero exit status is a normal result. Spawn failures wrap
// tool.ErrExecution and cancellation wraps tool.ErrCancelled.
func (r *Runner) Run(ctx context.Context, req Request, sink tool.Sink) (Result, error) {
	if sink == nil {
		sink = tool.Discard
	}
	if req.Cancelled != nil && req.Cancelled() {
		return Result{}, fmt.Errorf("%w: %s", tool.ErrCancelled, req)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", tool.ErrCancelled, err)
	}

	chunks := make(chan Chunk, 64)
	stdout := newLineWriter(Stdout, chunks)
	stderr := newLineWriter(Stderr, chunks)

	cmd := exec.Command(req.Name, req.Args...)
	cmd.Dir = req.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.config.KillGrace + time.Second
	if len(r.config.Env) > 0 {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", tool.ErrExecution, req, err)
	}
	pid := cmd.Process.Pid

	logging.Debug().
		Add(logging.Component("process")).
		Add(logging.Command(req.String())).
		Add(logging.PID(pid)).
		Msg("process started")
	if req.OnStart != nil {
		req.OnStart(pid)
	}

	exited := make(chan struct{})
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		close(exited)
		stdout.flush()
		stderr.flush()
		close(chunks)
		waitErr <- err
	}()

	buffers := [2]*RingBuffer{NewRingBuffer(r.config.BufferLines), NewRingBuffer(r.config.BufferLines)}
	started := [2]bool{}

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	var (
		cancelled bool
		cause     error
		reaper    sync.WaitGroup
	)
	cancel := func(err error) {
		if cancelled {
			return
		}
		cancelled = true
		cause = err
		reaper.Add(1)
		go func() {
			defer reaper.Done()
			r.terminate(pid, exited)
		}()
	}

	done := ctx.Done()
	for chunks != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if cancelled {
				continue
			}
			buffers[chunk.Stream].Push(chunk.Text)
			text := chunk.Text + "\n"
			if !started[chunk.Stream] {
				started[chunk.Stream] = true
				text = ConsolePrefix + text
			}
			if err := sink.Write(text); err != nil {
				if errors.Is(err, tool.ErrCancelled) {
					cancel(err)
					continue
				}
				logging.Debug().
					Add(logging.Component("process")).
					Add(logging.ErrorField(err)).
					Msg("sink write failed")
			}
		case <-ticker.C:
			if !cancelled && req.Cancelled != nil && req.Cancelled() {
				cancel(tool.ErrCancelled)
			}
		case <-done:
			done = nil
			cancel(ctx.Err())
		}
	}

	err := <-waitErr
	reaper.Wait()
	if !cancelled {
		// Background children left in the group do not outlive the run.
		_ = killGroup(pid)
	}

	if cancelled {
		logging.Info().
			Add(logging.Component("process")).
			Add(logging.Command(req.String())).
			Add(logging.PID(pid)).
			Add(logging.Duration(time.Since(start))).
			Msg("process cancelled")
		if errors.Is(cause, tool.ErrCancelled) {
			return Result{}, fmt.Errorf("%w: %s", tool.ErrCancelled, req)
		}
		return Result{}, fmt.Errorf("%w: %s: %w", tool.ErrCancelled, req, cause)
	}

	exitStatus := 0
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("%w: %s: %v", tool.ErrExecution, req, err)
		}
		exitStatus = exitErr.ExitCode()
	}

	logging.Debug().
		Add(logging.Component("process")).
		Add(logging.Command(req.String())).
		Add(logging.ExitCode(exitStatus)).
		Add(logging.Duration(time.Since(start))).
		Msg("process exited")

	limit := r.config.MaxResponseSize / 3
	return Result{
		ExitStatus: exitStatus,
		Stdout:     TruncateJSON(buffers[Stdout].String(), limit),
		Stderr:     TruncateJSON(buffers[Stderr].String(), limit),
	}, nil
}

// terminate sends SIGTERM to the process group and escalates to SIGKILL
// once the grace period passes. Descendants that left the group are
// killed as well.
func (r *Runner) terminate(pid int, exited <-chan struct{}) {
	ctx := context.Background()
	procs := descendants(ctx, pid)

	if err := terminateGroup(pid); err != nil {
		logging.Warn().
			Add(logging.Component("process")).
			Add(logging.PID(pid)).
			Add(logging.ErrorField(err)).
			Msg("SIGTERM failed")
	}

	timer := time.NewTimer(r.config.KillGrace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		logging.Warn().
			Add(logging.Component("process")).
			Add(logging.PID(pid)).
			Add(logging.Duration(r.config.KillGrace)).
			Msg("process ignored SIGTERM, sending SIGKILL")
	}

	_ = killGroup(pid)
	if n := killAll(ctx, procs); n > 0 {
		logging.Warn().
			Add(logging.Component("process")).
			Add(logging.PID(pid)).
			Add(logging.Count(n)).
			Msg("killed escaped descendants")
	}
}
