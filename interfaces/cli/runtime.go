package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/toolgate/application"
	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/policy"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/config"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	"github.com/felixgeelhaar/toolgate/infrastructure/process"
	"github.com/felixgeelhaar/toolgate/infrastructure/relay"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/telemetry"
	"github.com/felixgeelhaar/toolgate/pack/filesystem"
	"github.com/felixgeelhaar/toolgate/pack/search"
	"github.com/felixgeelhaar/toolgate/pack/shell"
)

// runtime is everything a command needs to dispatch tool uses.
type runtime struct {
	config     *domainconfig.Config
	configPath string
	build      *config.BuildResult

	registry   *application.Registry
	dispatcher *application.Dispatcher
	discovery  *application.Discovery
	cancels    *relay.Cancellations
	audit      audit.Logger
	telemetry  *telemetry.Provider
	sources    io.Closer
}

// runtimeOptions select how a runtime is assembled.
type runtimeOptions struct {
	// approver overrides the configured approval mode.
	approver policy.Approver
	// interactive allows the prompt approver on stdin.
	interactive bool
}

// loadConfig resolves and loads the configuration, applying the
// persistent flag overrides.
func (a *App) loadConfig() (*domainconfig.Config, string, error) {
	dir, _ := os.Getwd()
	home, _ := os.UserHomeDir()

	cfg, path, err := config.NewLoader().LoadOrDefault(a.configPath, dir, home)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.workDir != "" {
		cfg.Workspace.Cwd = a.workDir
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	return cfg, path, nil
}

// newRuntime builds the registry, dispatcher and discovery service from
// configuration. Remote servers are not contacted until discovery runs.
func (a *App) newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, path, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	builder := config.NewBuilder(cfg)
	result, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build configuration: %w", err)
	}
	logCfg := result.Logging
	logCfg.Output = a.stderr
	logging.Init(logCfg)

	rt := &runtime{
		config:     cfg,
		configPath: path,
		build:      result,
		cancels:    relay.NewCancellations(),
	}

	rt.telemetry, err = telemetry.Setup(ctx, cfg.Telemetry,
		telemetry.WithServiceVersion(Version),
		telemetry.WithWriter(a.stderr),
		telemetry.WithGlobal(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	rt.audit, err = builder.OpenAudit()
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	packs, err := builtinPacks(cfg, result)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	rt.registry, err = application.NewRegistry(packs, application.WithRegistryAudit(rt.audit))
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	approver := opts.approver
	if approver == nil {
		var prompt policy.Approver
		if opts.interactive {
			prompt = NewPromptApprover(a.stdin, a.stderr)
		}
		approver = builder.Approver(prompt)
	}

	recorder := rt.telemetry.Metrics()
	rt.dispatcher, err = application.NewDispatcher(rt.registry,
		application.WithApprover(approver),
		application.WithPolicy(result.Policy),
		application.WithCancellations(rt.cancels),
		application.WithRecorder(recorder),
		application.WithAudit(rt.audit),
	)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	sources, closer := builder.Sources()
	rt.sources = closer
	rt.discovery = application.NewDiscovery(rt.registry, sources,
		application.WithDiscoveryRecorder(recorder),
		application.WithDiscoveryAudit(rt.audit),
		application.WithRemoteMaxResponseSize(cfg.Limits.MaxResponseSize),
	)
	return rt, nil
}

// builtinPacks creates the shell, filesystem and search packs.
func builtinPacks(cfg *domainconfig.Config, result *config.BuildResult) ([]*pack.Pack, error) {
	shellPack, err := shell.New(
		shell.WithClassifier(result.Classifier),
		shell.WithRunner(process.NewRunner(result.RunnerOptions...)),
		shell.WithShell(result.ShellPath),
		shell.WithWorkingDir(result.WorkingDir),
	)
	if err != nil {
		return nil, fmt.Errorf("shell pack: %w", err)
	}

	fsPack, err := filesystem.New(
		filesystem.WithSanitizer(result.Sanitizer),
		filesystem.WithWorkingDir(result.WorkingDir),
		filesystem.WithAutoApproveWrites(cfg.Policy.AutoApproveWrites),
		filesystem.WithListMaxResponseSize(cfg.Limits.ListDirectoryMaxResponseSize),
	)
	if err != nil {
		return nil, fmt.Errorf("filesystem pack: %w", err)
	}

	searchPack, err := search.New(
		search.WithSanitizer(result.Sanitizer),
		search.WithWorkingDir(result.WorkingDir),
		search.WithMaxMatches(cfg.Limits.MaxSearchMatches),
	)
	if err != nil {
		return nil, fmt.Errorf("search pack: %w", err)
	}

	return []*pack.Pack{shellPack, fsPack, searchPack}, nil
}

// hasSources reports whether any remote server is configured.
func (rt *runtime) hasSources() bool {
	for _, s := range rt.config.MCPServers {
		if !s.Disabled {
			return true
		}
	}
	return false
}

// discover runs remote discovery when servers are configured.
func (rt *runtime) discover(ctx context.Context) {
	if rt.hasSources() {
		rt.discovery.Refresh(ctx)
	}
}

// close releases remote servers, the audit store and telemetry.
func (rt *runtime) close(ctx context.Context) {
	var errs []error
	if rt.sources != nil {
		errs = append(errs, rt.sources.Close())
	}
	if rt.audit != nil {
		errs = append(errs, rt.audit.Close())
	}
	if rt.telemetry != nil {
		errs = append(errs, rt.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		logging.Warn().
			Add(logging.Component("cli")).
			Add(logging.ErrorField(err)).
			Msg("shutdown incomplete")
	}
}

// responseError turns an error Response into a command error.
func responseError(resp tool.Response) error {
	if !resp.IsError() {
		return nil
	}
	if resp.Err != nil {
		return resp.Err
	}
	return errors.New(resp.Text())
}
