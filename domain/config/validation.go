package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates toolgate configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateWorkspace(config)
	v.validateLimits(config)
	v.validatePolicy(config)
	v.validateClassifier(config)
	v.validateLogging(config)
	v.validateAudit(config)
	v.validateTelemetry(config)
	v.validateResilience(config)
	v.validateMCPServers(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateWorkspace(config *Config) {
	for i, root := range config.Workspace.Roots {
		path := fmt.Sprintf("workspace.roots[%d]", i)
		switch {
		case strings.TrimSpace(root) == "":
			v.addError(path, "root must not be empty")
		case !filepath.IsAbs(root) && !strings.HasPrefix(root, "~"):
			v.addError(path, fmt.Sprintf("root must be absolute: %s", root))
		}
	}
	if config.Policy.ConfinePaths && len(config.Workspace.Roots) == 0 {
		v.addError("workspace.roots", "at least one root is required when policy.confine_paths is set")
	}
}

func (v *Validator) validateLimits(config *Config) {
	l := config.Limits
	if l.MaxResponseSize < 0 {
		v.addError("limits.max_response_size", "max_response_size must be non-negative")
	}
	if l.ListDirectoryMaxResponseSize < 0 {
		v.addError("limits.list_directory_max_response_size", "list_directory_max_response_size must be non-negative")
	}
	if l.BufferLines < 0 {
		v.addError("limits.buffer_lines", "buffer_lines must be non-negative")
	}
	if l.KillGrace < 0 {
		v.addError("limits.kill_grace", "kill_grace must be non-negative")
	}
	if l.PollInterval < 0 {
		v.addError("limits.poll_interval", "poll_interval must be non-negative")
	}
	if l.MaxSearchMatches < 0 {
		v.addError("limits.max_search_matches", "max_search_matches must be non-negative")
	}
}

func (v *Validator) validatePolicy(config *Config) {
	switch config.Policy.Approval {
	case "", ApprovalPrompt, ApprovalAuto, ApprovalDeny:
	default:
		v.addError("policy.approval", fmt.Sprintf("invalid mode: %s", config.Policy.Approval))
	}
	for i, name := range config.Policy.RequireForTools {
		if name == "" {
			v.addError(fmt.Sprintf("policy.require_for_tools[%d]", i), "tool name is required")
		}
	}
	for i, name := range config.Policy.ExemptTools {
		if name == "" {
			v.addError(fmt.Sprintf("policy.exempt_tools[%d]", i), "tool name is required")
		}
	}
}

func (v *Validator) validateClassifier(config *Config) {
	names := make([]string, 0, len(config.Classifier.Categories))
	for name := range config.Classifier.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := fmt.Sprintf("classifier.categories.%s", name)
		if strings.TrimSpace(name) == "" {
			v.addError(path, "command name is required")
			continue
		}
		if _, ok := command.ParseCategory(config.Classifier.Categories[name]); !ok {
			v.addError(path, fmt.Sprintf("invalid category: %s", config.Classifier.Categories[name]))
		}
	}
}

func (v *Validator) validateLogging(config *Config) {
	switch strings.ToLower(config.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "", "console", "json":
	default:
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateAudit(config *Config) {
	switch config.Audit.Driver {
	case "", AuditMemory:
	case AuditSQLite, AuditBadger, AuditPostgres, AuditRedis:
		if config.Audit.DSN == "" {
			v.addError("audit.dsn", fmt.Sprintf("dsn is required for the %s driver", config.Audit.Driver))
		}
	default:
		v.addError("audit.driver", fmt.Sprintf("unknown driver: %s", config.Audit.Driver))
	}

	a := config.Audit
	if a.MaxOpenConns < 0 {
		v.addError("audit.max_open_conns", "must not be negative")
	}
	if a.BusyTimeout < 0 {
		v.addError("audit.busy_timeout", "must not be negative")
	}
	if a.GCInterval < 0 {
		v.addError("audit.gc_interval", "must not be negative")
	}
	if a.GCDiscardRatio < 0 || a.GCDiscardRatio >= 1 {
		v.addError("audit.gc_discard_ratio", "must be in [0, 1)")
	}
	switch strings.ToUpper(a.JournalMode) {
	case "", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		v.addError("audit.journal_mode", fmt.Sprintf("invalid journal mode: %s", a.JournalMode))
	}
}

func (v *Validator) validateTelemetry(config *Config) {
	t := config.Telemetry
	switch t.Exporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if t.Endpoint == "" {
			v.addError("telemetry.endpoint", "endpoint is required for the otlp exporter")
		}
	default:
		v.addError("telemetry.exporter", fmt.Sprintf("unknown exporter: %s", t.Exporter))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		v.addError("telemetry.sample_rate", "sample_rate must be between 0 and 1")
	}
}

func (v *Validator) validateResilience(config *Config) {
	if config.Resilience.Retry.Enabled {
		if config.Resilience.Retry.MaxAttempts <= 0 {
			v.addError("resilience.retry.max_attempts", "max_attempts must be positive when enabled")
		}
		if config.Resilience.Retry.Multiplier < 1 {
			v.addError("resilience.retry.multiplier", "multiplier must be >= 1")
		}
	}

	if config.Resilience.CircuitBreaker.Enabled {
		if config.Resilience.CircuitBreaker.Threshold <= 0 {
			v.addError("resilience.circuit_breaker.threshold", "threshold must be positive when enabled")
		}
	}

	if config.Resilience.Bulkhead.Enabled {
		if config.Resilience.Bulkhead.MaxConcurrent <= 0 {
			v.addError("resilience.bulkhead.max_concurrent", "max_concurrent must be positive when enabled")
		}
	}
}

func (v *Validator) validateMCPServers(config *Config) {
	names := make([]string, 0, len(config.MCPServers))
	for name := range config.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		server := config.MCPServers[name]
		path := fmt.Sprintf("mcp_servers.%s", name)
		if server.Disabled {
			continue
		}
		if server.Command == "" {
			v.addError(path+".command", "command is required")
		}
		if server.Timeout < 0 {
			v.addError(path+".timeout", "timeout must be non-negative")
		}
	}
}
