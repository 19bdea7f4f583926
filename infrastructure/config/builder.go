package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
	"github.com/felixgeelhaar/toolgate/domain/policy"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	"github.com/felixgeelhaar/toolgate/infrastructure/mcp"
	"github.com/felixgeelhaar/toolgate/infrastructure/process"
	"github.com/felixgeelhaar/toolgate/infrastructure/resilience"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/classifier"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/pathsafe"
	"github.com/felixgeelhaar/toolgate/infrastructure/storage/badger"
	"github.com/felixgeelhaar/toolgate/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/toolgate/infrastructure/storage/redis"
	"github.com/felixgeelhaar/toolgate/infrastructure/storage/sqlite"
)

// Builder builds runtime components from configuration.
type Builder struct {
	config *domainconfig.Config
}

// NewBuilder creates a new configuration builder.
func NewBuilder(config *domainconfig.Config) *Builder {
	return &Builder{config: config}
}

// BuildResult contains the components derived from configuration.
type BuildResult struct {
	// WorkingDir is where commands run and relative paths resolve.
	WorkingDir string
	// Roots are the workspace roots with ~ expanded.
	Roots []string
	// Sanitizer resolves and confines user paths.
	Sanitizer *pathsafe.Sanitizer
	// Classifier judges execute_bash commands.
	Classifier *classifier.Classifier
	// Policy adjusts each tool's acceptance verdict.
	Policy policy.ApprovalPolicy
	// RunnerOptions configure the process runner.
	RunnerOptions []process.Option
	// ShellPath is the shell used by execute_bash.
	ShellPath string
	// Logging configures the logger.
	Logging logging.Config
	// Resilience guards remote calls.
	Resilience resilience.ExecutorConfig
}

// Build derives the local components. It does not start any process.
func (b *Builder) Build() (*BuildResult, error) {
	cfg := b.config
	result := &BuildResult{
		ShellPath:  cfg.Shell.Path,
		Policy:     b.buildPolicy(),
		Logging:    b.buildLogging(),
		Resilience: resilience.FromConfig(cfg.Resilience),
	}
	if result.ShellPath == "" {
		result.ShellPath = "bash"
	}

	expander := pathsafe.New()
	for _, root := range cfg.Workspace.Roots {
		expanded, err := expander.ExpandHome(root)
		if err != nil {
			return nil, fmt.Errorf("workspace root %s: %w", root, err)
		}
		result.Roots = append(result.Roots, expanded)
	}

	result.WorkingDir = cfg.Workspace.Cwd
	if result.WorkingDir == "" {
		if len(result.Roots) > 0 {
			result.WorkingDir = result.Roots[0]
		} else if wd, err := os.Getwd(); err == nil {
			result.WorkingDir = wd
		}
	} else if expanded, err := expander.ExpandHome(result.WorkingDir); err == nil {
		result.WorkingDir = expanded
	}

	if cfg.Policy.ConfinePaths {
		result.Sanitizer = pathsafe.New(pathsafe.WithRoots(result.Roots...))
	} else {
		result.Sanitizer = pathsafe.New()
	}

	classifierOpts := []classifier.Option{
		classifier.WithWorkingDir(result.WorkingDir),
	}
	if cfg.Policy.ConfinePaths {
		classifierOpts = append(classifierOpts, classifier.WithSanitizer(result.Sanitizer))
	}
	for _, name := range sortedKeys(cfg.Classifier.Categories) {
		category, ok := command.ParseCategory(cfg.Classifier.Categories[name])
		if !ok {
			return nil, fmt.Errorf("%w: classifier category %q for %s", domainconfig.ErrInvalidFormat, cfg.Classifier.Categories[name], name)
		}
		classifierOpts = append(classifierOpts, classifier.WithCategory(name, category))
	}
	result.Classifier = classifier.New(classifierOpts...)

	result.RunnerOptions = b.buildRunnerOptions()
	return result, nil
}

func (b *Builder) buildPolicy() policy.ApprovalPolicy {
	p := b.config.Policy
	ap := policy.ApprovalPolicy{
		RequireForDestructive: p.RequireForDestructive,
		RequireForTools:       append([]string(nil), p.RequireForTools...),
		ExemptTools:           append([]string(nil), p.ExemptTools...),
	}
	if p.AutoApproveWrites {
		ap.ExemptTools = append(ap.ExemptTools, "fs_write")
	}
	return ap
}

func (b *Builder) buildLogging() logging.Config {
	lc := logging.DefaultConfig()
	if b.config.Logging.Level != "" {
		lc.Level = b.config.Logging.Level
	}
	if b.config.Logging.Format != "" {
		lc.Format = b.config.Logging.Format
	}
	return lc
}

func (b *Builder) buildRunnerOptions() []process.Option {
	l := b.config.Limits
	var opts []process.Option
	if l.BufferLines > 0 {
		opts = append(opts, process.WithBufferLines(l.BufferLines))
	}
	if l.MaxResponseSize > 0 {
		opts = append(opts, process.WithMaxResponseSize(l.MaxResponseSize))
	}
	if l.KillGrace > 0 {
		opts = append(opts, process.WithKillGrace(l.KillGrace.Duration()))
	}
	if l.PollInterval > 0 {
		opts = append(opts, process.WithPollInterval(l.PollInterval.Duration()))
	}
	if len(b.config.Shell.Env) > 0 {
		env := make([]string, 0, len(b.config.Shell.Env))
		for _, k := range sortedKeys(b.config.Shell.Env) {
			env = append(env, k+"="+b.config.Shell.Env[k])
		}
		opts = append(opts, process.WithEnv(env...))
	}
	return opts
}

// Approver returns the approver for the configured mode. prompt is used
// for the prompt mode; a nil prompt falls back to denying.
func (b *Builder) Approver(prompt policy.Approver) policy.Approver {
	switch b.config.Policy.Approval {
	case domainconfig.ApprovalAuto:
		return policy.NewAutoApprover("config")
	case domainconfig.ApprovalDeny:
		return policy.NewDenyApprover("denied by configuration")
	default:
		if prompt == nil {
			return policy.NewDenyApprover("no interactive approver available")
		}
		return prompt
	}
}

// OpenAudit opens the configured audit logger. The caller closes it.
func (b *Builder) OpenAudit() (audit.Logger, error) {
	switch b.config.Audit.Driver {
	case "", domainconfig.AuditMemory:
		return audit.NewMemoryLogger(), nil
	case domainconfig.AuditSQLite:
		store, err := sqlite.NewAuditStore(sqlite.DefaultConfig(), b.sqliteOptions()...)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	case domainconfig.AuditBadger:
		store, err := badger.NewAuditStore(badger.DefaultConfig(), b.badgerOptions()...)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	case domainconfig.AuditPostgres:
		store, err := postgres.NewAuditStore(context.Background(), postgres.DefaultConfig(), b.postgresOptions()...)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	case domainconfig.AuditRedis:
		cfg, err := redis.ParseURL(b.config.Audit.DSN)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		store, err := redis.NewAuditStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: audit driver %s", domainconfig.ErrInvalidFormat, b.config.Audit.Driver)
	}
}

func (b *Builder) sqliteOptions() []sqlite.Option {
	a := b.config.Audit
	opts := []sqlite.Option{sqlite.WithDSN(a.DSN), sqlite.WithAutoMigrate()}
	if a.MaxOpenConns > 0 {
		opts = append(opts, sqlite.WithMaxOpenConns(a.MaxOpenConns))
	}
	if a.BusyTimeout > 0 {
		opts = append(opts, sqlite.WithBusyTimeout(int(a.BusyTimeout.Duration().Milliseconds())))
	}
	if a.JournalMode != "" {
		opts = append(opts, sqlite.WithJournalMode(strings.ToUpper(a.JournalMode)))
	}
	return opts
}

func (b *Builder) badgerOptions() []badger.Option {
	a := b.config.Audit
	opts := []badger.Option{badger.WithDir(a.DSN)}
	if a.GCInterval > 0 {
		opts = append(opts, badger.WithGCInterval(a.GCInterval.Duration()))
	}
	if a.GCDiscardRatio > 0 {
		opts = append(opts, badger.WithGCDiscardRatio(a.GCDiscardRatio))
	}
	return opts
}

func (b *Builder) postgresOptions() []postgres.ConfigOption {
	a := b.config.Audit
	opts := []postgres.ConfigOption{postgres.WithDSN(a.DSN)}
	if a.Schema != "" {
		opts = append(opts, postgres.WithSchema(a.Schema))
	}
	if a.MaxOpenConns > 0 {
		maxConns := int32(a.MaxOpenConns) // #nosec G115 -- validated non-negative
		minConns := min(postgres.DefaultConfig().MinConns, maxConns)
		opts = append(opts, postgres.WithPoolSize(minConns, maxConns))
	}
	return opts
}

// Sources returns one remote source per enabled MCP server, sorted by
// name, each guarded by the resilience settings. Servers are started
// lazily on first use. The returned closer stops them all.
func (b *Builder) Sources() ([]tool.RemoteSource, io.Closer) {
	execCfg := resilience.FromConfig(b.config.Resilience)

	var sources []tool.RemoteSource
	var clients closerList
	for _, name := range sortedKeys(b.config.MCPServers) {
		server := b.config.MCPServers[name]
		if server.Disabled {
			continue
		}

		timeout := server.Timeout.Duration()
		if timeout <= 0 {
			timeout = b.config.Resilience.Timeout.Duration()
		}

		opts := []mcp.ClientOption{
			mcp.WithSourceName(name),
			mcp.WithServerCommand(append([]string{server.Command}, server.Args...)...),
			mcp.WithServerEnv(server.Env),
		}
		if timeout > 0 {
			opts = append(opts, mcp.WithRequestTimeout(timeout))
		}
		client := mcp.NewClient(opts...)

		clients = append(clients, client)
		sources = append(sources, resilience.NewSource(client, execCfg))
	}
	return sources, clients
}

type closerList []io.Closer

func (c closerList) Close() error {
	var errs []error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
