// Package config provides the domain model for toolgate configuration.
package config

import "time"

// Config is the complete toolgate configuration.
type Config struct {
	// Workspace bounds where tools may read and write.
	Workspace WorkspaceConfig `json:"workspace" yaml:"workspace"`
	// Limits contains size and timing limits.
	Limits LimitsConfig `json:"limits" yaml:"limits"`
	// Policy contains acceptance-gate settings.
	Policy PolicyConfig `json:"policy" yaml:"policy"`
	// Classifier overrides the command risk table.
	Classifier ClassifierConfig `json:"classifier,omitempty" yaml:"classifier,omitempty"`
	// Shell configures execute_bash.
	Shell ShellConfig `json:"shell,omitempty" yaml:"shell,omitempty"`
	// Logging configures the logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	// Audit configures the audit trail.
	Audit AuditConfig `json:"audit" yaml:"audit"`
	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	// Resilience guards calls to remote tool servers.
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
	// MCPServers maps server names to launch settings.
	MCPServers map[string]MCPServerConfig `json:"mcp_servers,omitempty" yaml:"mcp_servers,omitempty"`
}

// WorkspaceConfig describes the open workspace.
type WorkspaceConfig struct {
	// Roots are the workspace folders. Paths outside them are confined
	// when policy.confine_paths is set.
	Roots []string `json:"roots,omitempty" yaml:"roots,omitempty"`
	// Cwd is the working directory for commands and relative paths.
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
}

// LimitsConfig contains output and process limits.
type LimitsConfig struct {
	// MaxResponseSize is the default output ceiling in bytes.
	MaxResponseSize int `json:"max_response_size,omitempty" yaml:"max_response_size,omitempty"`
	// ListDirectoryMaxResponseSize is the ceiling for list_directory.
	ListDirectoryMaxResponseSize int `json:"list_directory_max_response_size,omitempty" yaml:"list_directory_max_response_size,omitempty"`
	// BufferLines caps each process output ring buffer.
	BufferLines int `json:"buffer_lines,omitempty" yaml:"buffer_lines,omitempty"`
	// KillGrace is the delay between SIGTERM and SIGKILL.
	KillGrace Duration `json:"kill_grace,omitempty" yaml:"kill_grace,omitempty"`
	// PollInterval is how often running processes check for cancellation.
	PollInterval Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	// MaxSearchMatches caps grep_search results.
	MaxSearchMatches int `json:"max_search_matches,omitempty" yaml:"max_search_matches,omitempty"`
}

// PolicyConfig contains acceptance-gate settings.
type PolicyConfig struct {
	// Approval is how gated invocations are decided: prompt, auto or deny.
	Approval string `json:"approval,omitempty" yaml:"approval,omitempty"`
	// AutoApproveWrites lets fs_write run without acceptance.
	AutoApproveWrites bool `json:"auto_approve_writes,omitempty" yaml:"auto_approve_writes,omitempty"`
	// ConfinePaths requires acceptance for read-only commands that
	// reference paths outside the workspace roots.
	ConfinePaths bool `json:"confine_paths,omitempty" yaml:"confine_paths,omitempty"`
	// RequireForDestructive gates tools annotated as destructive.
	RequireForDestructive bool `json:"require_for_destructive,omitempty" yaml:"require_for_destructive,omitempty"`
	// RequireForTools lists tools that always require acceptance.
	RequireForTools []string `json:"require_for_tools,omitempty" yaml:"require_for_tools,omitempty"`
	// ExemptTools lists tools that never require acceptance.
	ExemptTools []string `json:"exempt_tools,omitempty" yaml:"exempt_tools,omitempty"`
}

// Approval modes.
const (
	ApprovalPrompt = "prompt"
	ApprovalAuto   = "auto"
	ApprovalDeny   = "deny"
)

// ClassifierConfig overrides command risk categories.
type ClassifierConfig struct {
	// Categories maps a command name to read_only, mutate or destructive.
	Categories map[string]string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// ShellConfig configures execute_bash.
type ShellConfig struct {
	// Path is the shell binary (default: bash).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Env are extra environment variables for commands.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is console or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Driver is memory, sqlite, badger, postgres or redis.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	// DSN locates the store: a sqlite file, a badger directory, a
	// postgres connection string or a redis:// URL.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// MaxOpenConns caps connections for the sqlite and postgres drivers.
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	// BusyTimeout is how long sqlite waits on a locked database.
	BusyTimeout Duration `json:"busy_timeout,omitempty" yaml:"busy_timeout,omitempty"`
	// JournalMode is the sqlite journal mode.
	JournalMode string `json:"journal_mode,omitempty" yaml:"journal_mode,omitempty"`
	// Schema is the postgres schema that holds the audit table.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// GCInterval is how often badger collects its value log.
	GCInterval Duration `json:"gc_interval,omitempty" yaml:"gc_interval,omitempty"`
	// GCDiscardRatio is the badger value-log discard ratio.
	GCDiscardRatio float64 `json:"gc_discard_ratio,omitempty" yaml:"gc_discard_ratio,omitempty"`
}

// Audit drivers.
const (
	AuditMemory   = "memory"
	AuditSQLite   = "sqlite"
	AuditBadger   = "badger"
	AuditPostgres = "postgres"
	AuditRedis    = "redis"
)

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// Enabled turns on the metrics and tracing middleware.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// ServiceName names the meter and tracer.
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	// Exporter is stdout, otlp or none.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP collector address.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Insecure disables TLS for the OTLP exporter.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRate is the trace sampling ratio (0.0-1.0).
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// Telemetry exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// ResilienceConfig contains resilience settings for remote calls.
type ResilienceConfig struct {
	// Timeout bounds each remote call.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Retry configures retry behavior.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configures circuit breaker behavior.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	// Bulkhead configures bulkhead behavior.
	Bulkhead BulkheadConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// Enabled enables retry.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// MaxAttempts is the maximum retry attempts.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	// Multiplier is the backoff multiplier.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Enabled enables circuit breaker.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Threshold is failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BulkheadConfig configures bulkhead behavior.
type BulkheadConfig struct {
	// Enabled enables bulkhead.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// MaxConcurrent is the maximum concurrent executions.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
}

// MCPServerConfig describes how to launch one remote tool server.
type MCPServerConfig struct {
	// Command is the executable to launch.
	Command string `json:"command" yaml:"command"`
	// Args are passed to Command.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Env is added to the server's environment.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	// Disabled skips the server during discovery.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	// Timeout bounds each request to the server.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Limits: LimitsConfig{
			MaxResponseSize:              800_000,
			ListDirectoryMaxResponseSize: 1_600_000,
			BufferLines:                  1024,
			KillGrace:                    Duration(2 * time.Second),
			PollInterval:                 Duration(100 * time.Millisecond),
			MaxSearchMatches:             500,
		},
		Policy: PolicyConfig{
			Approval:              ApprovalPrompt,
			RequireForDestructive: true,
		},
		Shell:   ShellConfig{Path: "bash"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Audit:   AuditConfig{Driver: AuditMemory},
		Telemetry: TelemetryConfig{
			ServiceName: "toolgate",
			Exporter:    ExporterNone,
			SampleRate:  1.0,
		},
		Resilience: ResilienceConfig{
			Timeout: Duration(30 * time.Second),
			Retry: RetryConfig{
				Enabled:      true,
				MaxAttempts:  3,
				InitialDelay: Duration(200 * time.Millisecond),
				Multiplier:   2,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:   true,
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
