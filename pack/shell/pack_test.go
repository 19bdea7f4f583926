//go:build unix

package shell_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/command"
	domainmw "github.com/felixgeelhaar/toolgate/domain/middleware"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/middleware"
	"github.com/felixgeelhaar/toolgate/infrastructure/process"
	"github.com/felixgeelhaar/toolgate/infrastructure/relay"
	"github.com/felixgeelhaar/toolgate/pack/shell"
)

func newTool(t *testing.T, input string, opts ...shell.Option) tool.Tool {
	t.Helper()
	opts = append([]shell.Option{shell.WithShell("/bin/sh"), shell.WithWorkingDir(t.TempDir())}, opts...)
	p, err := shell.New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	def, ok := p.GetTool(shell.ToolName)
	if !ok {
		t.Fatalf("%s not found in pack", shell.ToolName)
	}
	tl, err := def.New(json.RawMessage(input))
	if err != nil {
		t.Fatalf("New(%s) failed: %v", input, err)
	}
	return tl
}

func TestNew(t *testing.T) {
	p, err := shell.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := p.ToolNames(); len(got) != 1 || got[0] != shell.ToolName {
		t.Errorf("ToolNames() = %v, want [%s]", got, shell.ToolName)
	}
}

func TestNew_InvalidWorkingDir(t *testing.T) {
	if _, err := shell.New(shell.WithWorkingDir("/nonexistent/toolgate")); err == nil {
		t.Error("New() should reject a missing working directory")
	}
}

func TestExecuteBash_Validate(t *testing.T) {
	tl := newTool(t, `{"command": "   "}`)
	if err := tl.Validate(context.Background()); !errors.Is(err, tool.ErrValidation) {
		t.Errorf("Validate() error = %v, want ErrValidation", err)
	}

	p, _ := shell.New()
	def, _ := p.GetTool(shell.ToolName)
	if _, err := def.New(json.RawMessage(`{"command": 7}`)); !errors.Is(err, tool.ErrValidation) {
		t.Errorf("New() error = %v, want ErrValidation", err)
	}
}

func TestExecuteBash_RequiresAcceptance(t *testing.T) {
	tests := []struct {
		name        string
		command     string
		wantAccept  bool
		wantWarning string
	}{
		{"read only", "ls -la", false, ""},
		{"redirect into system file", "cat secret.txt > /etc/passwd", true, ""},
		{"privileged delete", "sudo rm -rf /", true, command.WarningDestructive},
		{"unknown command", "frobnicate", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, _ := json.Marshal(map[string]string{"command": tt.command})
			got := newTool(t, string(input)).RequiresAcceptance(context.Background())
			if got.RequiresAcceptance != tt.wantAccept {
				t.Errorf("RequiresAcceptance(%q) = %v, want %v", tt.command, got.RequiresAcceptance, tt.wantAccept)
			}
			if tt.wantWarning != "" && got.Warning != tt.wantWarning {
				t.Errorf("Warning = %q, want %q", got.Warning, tt.wantWarning)
			}
		})
	}
}

func TestExecuteBash_QueueDescription(t *testing.T) {
	tl := newTool(t, `{"command": "git status"}`)
	sink := &relay.BufferSink{}

	if err := tl.QueueDescription(sink); err != nil {
		t.Fatalf("QueueDescription() error = %v", err)
	}
	if !strings.Contains(sink.String(), "```shell\ngit status\n```") {
		t.Errorf("description = %q, want fenced command", sink.String())
	}
	if !sink.Ended() {
		t.Error("QueueDescription() should end the sink")
	}
}

func TestExecuteBash_Invoke(t *testing.T) {
	tl := newTool(t, `{"command": "echo hello; echo oops >&2; exit 3"}`)
	sink := &relay.BufferSink{}

	out, err := tl.Invoke(context.Background(), sink)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out.Kind != tool.OutputJSON {
		t.Errorf("Kind = %s, want json", out.Kind)
	}

	var res process.Result
	if err := json.Unmarshal([]byte(out.Content), &res); err != nil {
		t.Fatalf("output is not a process result: %v", err)
	}
	if res.ExitStatus != 3 {
		t.Errorf("ExitStatus = %d, want 3", res.ExitStatus)
	}
	if res.Stdout != "hello" || res.Stderr != "oops" {
		t.Errorf("Stdout, Stderr = %q, %q, want hello, oops", res.Stdout, res.Stderr)
	}
	if !strings.HasPrefix(sink.String(), process.ConsolePrefix) {
		t.Errorf("streamed output = %q, want console prefix", sink.String())
	}
}

func TestExecuteBash_CancelledBeforeCompletion(t *testing.T) {
	cancels := relay.NewCancellations()
	cancels.Cancel("trigger-1")

	ctx, cancel := cancels.WithContext(context.Background(), "trigger-1")
	defer cancel()

	tl := newTool(t, `{"command": "echo hello"}`)
	out, err := tl.Invoke(ctx, relay.New(&relay.BufferSink{}, cancels, "trigger-1"))
	if !errors.Is(err, tool.ErrCancelled) {
		t.Fatalf("Invoke() error = %v, want ErrCancelled", err)
	}
	if out.Content != "" {
		t.Errorf("cancelled output = %q, want empty", out.Content)
	}
}

func TestExecuteBash_CancelledWhileRunning(t *testing.T) {
	cancels := relay.NewCancellations()
	ctx, cancel := cancels.WithContext(context.Background(), "trigger-2")
	defer cancel()

	runner := process.NewRunner(process.WithKillGrace(200*time.Millisecond), process.WithPollInterval(10*time.Millisecond))
	tl := newTool(t, `{"command": "echo started; sleep 30"}`, shell.WithRunner(runner))

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancels.Cancel("trigger-2")
	}()

	start := time.Now()
	_, err := tl.Invoke(ctx, relay.New(&relay.BufferSink{}, cancels, "trigger-2"))
	if !errors.Is(err, tool.ErrCancelled) {
		t.Fatalf("Invoke() error = %v, want ErrCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Invoke() took %v after cancellation", elapsed)
	}
}

func TestExecuteBash_BinaryOutputStaysUnderSizeLimit(t *testing.T) {
	p, err := shell.New(shell.WithShell("/bin/sh"), shell.WithWorkingDir(t.TempDir()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	def, _ := p.GetTool(shell.ToolName)
	input := json.RawMessage(`{"command": "head -c 300000 /dev/zero"}`)
	tl, err := def.New(input)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", input, err)
	}
	if v := tl.RequiresAcceptance(context.Background()); v.RequiresAcceptance {
		t.Fatalf("RequiresAcceptance() = %+v, want read-only", v)
	}

	handler := middleware.SizeLimit()(domainmw.Invoke)
	out, err := handler(context.Background(), &domainmw.ExecutionContext{
		Use:        tool.Use{ID: "tu-zero", Name: shell.ToolName, Input: input},
		Definition: def,
		Tool:       tl,
	})
	if err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	if out.Len() > def.MaxResponseSize() {
		t.Errorf("Len() = %d, want <= %d", out.Len(), def.MaxResponseSize())
	}

	var res process.Result
	if err := json.Unmarshal([]byte(out.Content), &res); err != nil {
		t.Fatalf("output is not a process result: %v", err)
	}
	if !strings.HasSuffix(res.Stdout, process.TruncatedSuffix) {
		t.Errorf("Stdout does not end with %q", process.TruncatedSuffix)
	}
}
