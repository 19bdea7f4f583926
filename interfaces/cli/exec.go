package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolgate/application"
	"github.com/felixgeelhaar/toolgate/domain/policy"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/process"
	"github.com/felixgeelhaar/toolgate/infrastructure/relay"
	"github.com/felixgeelhaar/toolgate/pack/shell"
)

// execOptions holds options for the exec command.
type execOptions struct {
	yes        bool
	jsonOutput bool
}

// newExecCmd creates the exec command.
func (a *App) newExecCmd() *cobra.Command {
	opts := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec <command>",
		Short: "Run a shell command through the acceptance gate",
		Long: `Run a shell command the way an agent's execute_bash call would.

Commands the classifier cannot prove read-only are shown first and wait for
a y/N answer. Output streams to the terminal as the command runs; Ctrl-C
cancels the command and its whole process group.

Examples:
  toolgate exec "go test ./..."
  toolgate exec --yes "make build"
  toolgate exec --json "git status --short"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exec(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Approve without prompting")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON instead of streaming")

	return cmd
}

// exec dispatches one execute_bash use.
func (a *App) exec(ctx context.Context, raw string, opts *execOptions) error {
	rtOpts := runtimeOptions{interactive: true}
	if opts.yes {
		rtOpts.approver = policy.NewAutoApprover("flag")
	}
	rt, err := a.newRuntime(ctx, rtOpts)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	input, err := json.Marshal(map[string]string{"command": raw})
	if err != nil {
		return err
	}

	trigger := uuid.NewString()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rt.dispatcher.Cancel(trigger)
		case <-done:
		}
	}()

	req := application.Request{
		Use:         tool.Use{ID: uuid.NewString(), Name: shell.ToolName, Input: input},
		TriggerID:   trigger,
		Description: relay.NewWriterSink(a.stderr),
	}
	if !opts.jsonOutput {
		req.Output = relay.NewWriterSink(a.stdout)
	}

	resp := rt.dispatcher.Dispatch(ctx, req)
	if err := responseError(resp); err != nil {
		return err
	}

	if opts.jsonOutput {
		_, _ = fmt.Fprintln(a.stdout, resp.Text())
		return nil
	}

	var result process.Result
	if err := json.Unmarshal([]byte(resp.Text()), &result); err != nil {
		return fmt.Errorf("unexpected execute_bash result: %w", err)
	}
	if result.ExitStatus != 0 {
		return &ExitError{Code: result.ExitStatus}
	}
	return nil
}

// ExitError carries a command's nonzero exit status out of the CLI.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
