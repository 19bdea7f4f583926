package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/toolgate/infrastructure/config"
)

// classifyOptions holds options for the classify command.
type classifyOptions struct {
	explain    bool
	jsonOutput bool
}

// newClassifyCmd creates the classify command.
func (a *App) newClassifyCmd() *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify <command>",
		Short: "Show whether a shell command would need acceptance",
		Long: `Classify a shell command line without running it.

The verdict is "allow" when the command can run unattended, otherwise
"acceptance required" with the warning shown to the approver.

Examples:
  toolgate classify "ls -la"
  toolgate classify --explain "git status && rm -rf build"
  toolgate classify --json "cat /etc/passwd | grep root"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.classify(strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show the parsed segments and their categories")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the verdict as JSON")

	return cmd
}

type classifySegment struct {
	Command  string   `json:"command"`
	Args     []string `json:"args,omitempty"`
	Category string   `json:"category"`
}

type classifyResult struct {
	Command            string            `json:"command"`
	RequiresAcceptance bool              `json:"requiresAcceptance"`
	Warning            string            `json:"warning,omitempty"`
	Segments           []classifySegment `json:"segments,omitempty"`
	Operators          []string          `json:"operators,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// classify prints the verdict for raw.
func (a *App) classify(raw string, opts *classifyOptions) error {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return err
	}
	result, err := config.NewBuilder(cfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build configuration: %w", err)
	}

	analysis := result.Classifier.Analyze(raw)
	out := classifyResult{
		Command:            raw,
		RequiresAcceptance: analysis.Validation.RequiresAcceptance,
		Warning:            analysis.Validation.Warning,
	}
	if opts.explain || opts.jsonOutput {
		for i, seg := range analysis.Pipeline.Segments {
			out.Segments = append(out.Segments, classifySegment{
				Command:  seg.Name(),
				Args:     seg.Args(),
				Category: analysis.Categories[i].String(),
			})
		}
		out.Operators = analysis.Pipeline.Operators
		if analysis.Err != nil {
			out.Error = analysis.Err.Error()
		}
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	if out.RequiresAcceptance {
		_, _ = fmt.Fprintln(a.stdout, "acceptance required")
		if out.Warning != "" {
			_, _ = fmt.Fprintf(a.stdout, "  %s\n", out.Warning)
		}
	} else {
		_, _ = fmt.Fprintln(a.stdout, "allow")
	}

	if opts.explain {
		for _, seg := range out.Segments {
			_, _ = fmt.Fprintf(a.stdout, "  [%s] %s", seg.Category, seg.Command)
			if len(seg.Args) > 0 {
				_, _ = fmt.Fprintf(a.stdout, " %s", strings.Join(seg.Args, " "))
			}
			_, _ = fmt.Fprintln(a.stdout)
		}
		if len(out.Operators) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "  operators: %s\n", strings.Join(out.Operators, " "))
		}
		if out.Error != "" {
			_, _ = fmt.Fprintf(a.stdout, "  error: %s\n", out.Error)
		}
	}
	return nil
}
