package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/policy"
)

// PromptApprover asks a human on a terminal.
type PromptApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPromptApprover creates an approver that prompts on out and reads the
// answer from in.
func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: bufio.NewReader(in), out: out}
}

// Approve shows the pending tool use and waits for y or n. Anything but an
// explicit yes denies. A cancelled context denies without waiting.
func (p *PromptApprover) Approve(ctx context.Context, req policy.ApprovalRequest) (policy.ApprovalResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if req.Warning != "" {
		_, _ = fmt.Fprintf(p.out, "\n%s\n", req.Warning)
	}
	_, _ = fmt.Fprintf(p.out, "%s wants to run", req.ToolName)
	if req.RiskLevel != "" {
		_, _ = fmt.Fprintf(p.out, " (risk: %s)", req.RiskLevel)
	}
	_, _ = fmt.Fprintln(p.out)
	if req.Preview == "" && len(req.Input) > 0 {
		_, _ = fmt.Fprintf(p.out, "%s\n", req.Input)
	}
	_, _ = fmt.Fprint(p.out, "Allow? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		line, _ := p.in.ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	var line string
	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(p.out)
		return policy.ApprovalResponse{Reason: "interrupted", Timestamp: time.Now()}, ctx.Err()
	case line = <-answer:
	}

	if line == "y" || line == "yes" {
		return policy.ApprovalResponse{Approved: true, Approver: "terminal", Timestamp: time.Now()}, nil
	}
	return policy.ApprovalResponse{Approver: "terminal", Reason: "declined at prompt", Timestamp: time.Now()}, nil
}
