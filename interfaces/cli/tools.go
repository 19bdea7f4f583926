package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// toolsOptions holds options for the tools command.
type toolsOptions struct {
	jsonOutput  bool
	builtinOnly bool
}

// newToolsCmd creates the tools command.
func (a *App) newToolsCmd() *cobra.Command {
	opts := &toolsOptions{}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the built-in and discovered tools",
		Long: `List every tool an agent can call: the built-in shell, filesystem and
search tools followed by the tools discovered from configured MCP servers.
A server that fails to answer is logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listTools(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.builtinOnly, "builtin", false, "Skip remote discovery")

	return cmd
}

type toolEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Risk        string          `json:"risk"`
	ReadOnly    bool            `json:"readOnly,omitempty"`
	Destructive bool            `json:"destructive,omitempty"`
	Remote      bool            `json:"remote,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

func (a *App) listTools(ctx context.Context, opts *toolsOptions) error {
	rt, err := a.newRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	if !opts.builtinOnly {
		rt.discover(ctx)
	}

	defs := rt.registry.List()
	entries := make([]toolEntry, 0, len(defs))
	for _, def := range defs {
		ann := def.Annotations()
		entries = append(entries, toolEntry{
			Name:        def.Name(),
			Description: def.Description(),
			Risk:        ann.RiskLevel.String(),
			ReadOnly:    ann.ReadOnly,
			Destructive: ann.Destructive,
			Remote:      ann.Remote,
			InputSchema: def.InputSchema().Raw(),
		})
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tRISK\tFLAGS\tDESCRIPTION")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Risk, flags(e), firstLine(e.Description))
	}
	return w.Flush()
}

func flags(e toolEntry) string {
	var out []string
	if e.ReadOnly {
		out = append(out, "read-only")
	}
	if e.Destructive {
		out = append(out, "destructive")
	}
	if e.Remote {
		out = append(out, "remote")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 72
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}
