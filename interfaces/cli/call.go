package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolgate/application"
	"github.com/felixgeelhaar/toolgate/domain/policy"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/relay"
)

// callOptions holds options for the call command.
type callOptions struct {
	yes        bool
	jsonOutput bool
}

// newCallCmd creates the call command.
func (a *App) newCallCmd() *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call <tool> [input]",
		Short: "Invoke any tool with a JSON input",
		Long: `Invoke a built-in or discovered tool with a JSON input, exactly as an
agent tool use would. The input defaults to {} and "-" reads it from stdin.

Examples:
  toolgate call fs_read '{"path":"go.mod"}'
  toolgate call list_directory '{"path":".","maxDepth":0}'
  toolgate call grep_search '{"query":"func main","includePattern":"*.go"}'
  echo '{"command":"append","path":"notes.md","newStr":"done"}' | toolgate call fs_write -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "{}"
			if len(args) == 2 {
				input = args[1]
			}
			return a.call(cmd.Context(), args[0], input, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Approve without prompting")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the full tool response as JSON")

	return cmd
}

// call dispatches one tool use.
func (a *App) call(ctx context.Context, name, input string, opts *callOptions) error {
	fromStdin := input == "-"
	if fromStdin {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		input = string(data)
	}
	if !json.Valid([]byte(input)) {
		return fmt.Errorf("%w: input is not valid JSON", tool.ErrValidation)
	}

	// stdin is spent on the input, so there is nothing left to prompt on.
	rtOpts := runtimeOptions{interactive: !fromStdin}
	if opts.yes {
		rtOpts.approver = policy.NewAutoApprover("flag")
	}
	rt, err := a.newRuntime(ctx, rtOpts)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	if !rt.registry.IsBuiltin(name) {
		rt.discover(ctx)
	}

	trigger := uuid.NewString()
	stop := context.AfterFunc(ctx, func() { rt.dispatcher.Cancel(trigger) })
	defer stop()

	resp := rt.dispatcher.Dispatch(ctx, application.Request{
		Use:         tool.Use{ID: uuid.NewString(), Name: name, Input: json.RawMessage(input)},
		TriggerID:   trigger,
		Description: relay.NewWriterSink(a.stderr),
	})

	if opts.jsonOutput {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.stdout, string(data))
		return responseError(resp)
	}

	if err := responseError(resp); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.stdout, resp.Text())
	return nil
}
