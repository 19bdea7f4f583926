package cli

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/spf13/cobra"

	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
	"github.com/felixgeelhaar/toolgate/infrastructure/config"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	"github.com/felixgeelhaar/toolgate/infrastructure/mcp"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	httpAddr string
	watch    bool
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the gated tools as an MCP server",
		Long: `Serve every built-in and discovered tool to an MCP client over stdio,
or over HTTP with --http.

Calls pass through the same validation and acceptance gate as any other
invocation. stdin carries the protocol, so the "prompt" approval mode
cannot ask a human here and denies instead; use "auto" or "deny" in the
configuration.

With a configuration file, edits to mcp_servers are picked up while the
server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "Serve over HTTP on this address instead of stdio")
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "Reload MCP servers when the configuration file changes")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	rt, err := a.newRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	rs := &reloadableSources{current: rt.sources}
	rt.sources = rs
	defer rt.close(context.WithoutCancel(ctx))

	rt.discover(ctx)

	srv := mcp.NewServer(mcp.ServerConfig{
		Name:         "toolgate",
		Version:      Version,
		Description:  "Gated shell, filesystem and search tools",
		Instructions: "Tools that may change the system are held for approval before they run.",
		Tools:        rt.registry.List(),
		Handler:      mcp.HandlerFunc(rt.dispatcher.Handle),
	})
	srv.Use(mcp.Recover(), mcp.RequestID())

	if opts.watch && rt.configPath != "" {
		watcher, err := config.NewWatcher(rt.configPath, rt.config, func(old, updated *domainconfig.Config) {
			if !config.MCPServersChanged(old, updated) {
				return
			}
			sources, closer := config.NewBuilder(updated).Sources()
			rs.swap(closer)
			rt.discovery.SetSources(sources)
			result := rt.discovery.Refresh(ctx)
			added := srv.Add(rt.registry.Discovered()...)

			logging.Info().
				Add(logging.Component("cli")).
				Add(logging.Count(len(sources))).
				Add(logging.Int("added", len(result.Added))).
				Add(logging.Int("pruned", len(result.Pruned))).
				Add(logging.Int("exposed", added)).
				Msg("mcp servers reloaded")
		})
		if err != nil {
			return err
		}
		defer watcher.Close()

		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn().
					Add(logging.Component("cli")).
					Add(logging.ErrorField(err)).
					Msg("config watcher stopped")
			}
		}()
	}

	logging.Info().
		Add(logging.Component("cli")).
		Add(logging.Count(len(srv.Names()))).
		Add(logging.Str("transport", transport(opts.httpAddr))).
		Msg("serving tools")

	if opts.httpAddr != "" {
		err = srv.ServeHTTP(ctx, opts.httpAddr)
	} else {
		err = srv.ServeStdio(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func transport(httpAddr string) string {
	if httpAddr != "" {
		return "http " + httpAddr
	}
	return "stdio"
}

// reloadableSources owns the running MCP server clients and replaces them
// when the configuration changes.
type reloadableSources struct {
	mu      sync.Mutex
	current io.Closer
}

func (r *reloadableSources) swap(next io.Closer) {
	r.mu.Lock()
	old := r.current
	r.current = next
	r.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			logging.Warn().
				Add(logging.Component("cli")).
				Add(logging.ErrorField(err)).
				Msg("failed to stop replaced mcp servers")
		}
	}
}

func (r *reloadableSources) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
