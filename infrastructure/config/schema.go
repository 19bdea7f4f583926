package config

import (
	"encoding/json"

	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	MinLength            *int                   `json:"minLength,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
}

// GenerateSchema generates a JSON Schema for the toolgate configuration file.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/felixgeelhaar/toolgate/toolgate-config.schema.json",
		Title:       "Toolgate Configuration",
		Description: "Configuration schema for the toolgate tool runtime",
		Type:        "object",
		Properties: map[string]*JSONSchema{
			"workspace":   generateWorkspaceSchema(),
			"limits":      generateLimitsSchema(),
			"policy":      generatePolicySchema(),
			"classifier":  generateClassifierSchema(),
			"shell":       generateShellSchema(),
			"logging":     generateLoggingSchema(),
			"audit":       generateAuditSchema(),
			"telemetry":   generateTelemetrySchema(),
			"resilience":  generateResilienceSchema(),
			"mcp_servers": generateMCPServersSchema(),
		},
	}
}

func generateWorkspaceSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Workspace folders and working directory",
		Properties: map[string]*JSONSchema{
			"roots": {
				Type:        "array",
				Description: "Workspace root folders; ~ is expanded",
				Items:       &JSONSchema{Type: "string", MinLength: intPtr(1)},
			},
			"cwd": {
				Type:        "string",
				Description: "Working directory for commands and relative paths",
			},
		},
	}
}

func generateLimitsSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Output and process limits",
		Properties: map[string]*JSONSchema{
			"max_response_size": {
				Type:        "integer",
				Description: "Default output ceiling in bytes",
				Minimum:     floatPtr(1),
				Default:     800000,
			},
			"list_directory_max_response_size": {
				Type:        "integer",
				Description: "Output ceiling for list_directory in bytes",
				Minimum:     floatPtr(1),
				Default:     1600000,
			},
			"buffer_lines": {
				Type:        "integer",
				Description: "Lines kept per process output stream",
				Minimum:     floatPtr(1),
				Default:     1024,
			},
			"kill_grace": durationSchema("Delay between SIGTERM and SIGKILL", "2s"),
			"poll_interval": durationSchema(
				"How often running commands check for cancellation", "100ms"),
			"max_search_matches": {
				Type:        "integer",
				Description: "Maximum grep_search matches",
				Minimum:     floatPtr(1),
				Default:     500,
			},
		},
	}
}

func generatePolicySchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Acceptance gate settings",
		Properties: map[string]*JSONSchema{
			"approval": {
				Type:        "string",
				Description: "How gated invocations are decided",
				Enum:        []string{domainconfig.ApprovalPrompt, domainconfig.ApprovalAuto, domainconfig.ApprovalDeny},
				Default:     domainconfig.ApprovalPrompt,
			},
			"auto_approve_writes": {
				Type:        "boolean",
				Description: "Let fs_write run without acceptance",
				Default:     false,
			},
			"confine_paths": {
				Type:        "boolean",
				Description: "Require acceptance for read-only commands that touch paths outside the workspace",
				Default:     false,
			},
			"require_for_destructive": {
				Type:        "boolean",
				Description: "Gate tools annotated as destructive",
				Default:     true,
			},
			"require_for_tools": {
				Type:        "array",
				Description: "Tools that always require acceptance",
				Items:       &JSONSchema{Type: "string"},
			},
			"exempt_tools": {
				Type:        "array",
				Description: "Tools that never require acceptance",
				Items:       &JSONSchema{Type: "string"},
			},
		},
	}
}

func generateClassifierSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Command risk category overrides",
		Properties: map[string]*JSONSchema{
			"categories": {
				Type:        "object",
				Description: "Command name to risk category",
				AdditionalProperties: &JSONSchema{
					Type: "string",
					Enum: []string{"read_only", "readonly", "read-only", "mutate", "high_risk", "highrisk", "destructive"},
				},
			},
		},
	}
}

func generateShellSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "execute_bash settings",
		Properties: map[string]*JSONSchema{
			"path": {
				Type:        "string",
				Description: "Shell binary",
				Default:     "bash",
			},
			"env": {
				Type:                 "object",
				Description:          "Extra environment variables for commands",
				AdditionalProperties: &JSONSchema{Type: "string"},
			},
		},
	}
}

func generateLoggingSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Logger settings",
		Properties: map[string]*JSONSchema{
			"level": {
				Type:    "string",
				Enum:    []string{"trace", "debug", "info", "warn", "error"},
				Default: "info",
			},
			"format": {
				Type:    "string",
				Enum:    []string{"console", "json"},
				Default: "console",
			},
		},
	}
}

func generateAuditSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Audit trail settings",
		Properties: map[string]*JSONSchema{
			"driver": {
				Type: "string",
				Enum: []string{
					domainconfig.AuditMemory,
					domainconfig.AuditSQLite,
					domainconfig.AuditBadger,
					domainconfig.AuditPostgres,
					domainconfig.AuditRedis,
				},
				Default: domainconfig.AuditMemory,
			},
			"dsn": {
				Type:        "string",
				Description: "SQLite file, Badger directory, PostgreSQL connection string or redis:// URL",
			},
			"max_open_conns": {
				Type:        "integer",
				Description: "Connection cap for the sqlite and postgres drivers",
				Minimum:     floatPtr(0),
			},
			"busy_timeout": durationSchema("How long sqlite waits on a locked database", "5s"),
			"journal_mode": {
				Type:    "string",
				Enum:    []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"},
				Default: "WAL",
			},
			"schema": {
				Type:        "string",
				Description: "PostgreSQL schema for the audit table",
				Default:     "public",
			},
			"gc_interval": durationSchema("How often badger collects its value log", "5m"),
			"gc_discard_ratio": {
				Type:        "number",
				Description: "Badger value-log discard ratio",
				Minimum:     floatPtr(0),
				Maximum:     floatPtr(1),
				Default:     0.5,
			},
		},
	}
}

func generateTelemetrySchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Metrics and tracing settings",
		Properties: map[string]*JSONSchema{
			"enabled": {
				Type:    "boolean",
				Default: false,
			},
			"service_name": {
				Type:    "string",
				Default: "toolgate",
			},
			"exporter": {
				Type:    "string",
				Enum:    []string{domainconfig.ExporterNone, domainconfig.ExporterStdout, domainconfig.ExporterOTLP},
				Default: domainconfig.ExporterNone,
			},
			"endpoint": {
				Type:        "string",
				Description: "OTLP collector address (host:port)",
			},
			"insecure": {
				Type:        "boolean",
				Description: "Disable TLS for the OTLP exporter",
			},
			"sample_rate": {
				Type:    "number",
				Minimum: floatPtr(0),
				Maximum: floatPtr(1),
				Default: 1.0,
			},
		},
	}
}

func generateResilienceSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Guards for calls to remote tool servers",
		Properties: map[string]*JSONSchema{
			"timeout": durationSchema("Timeout for each remote call", "30s"),
			"retry": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"enabled": {
						Type:    "boolean",
						Default: true,
					},
					"max_attempts": {
						Type:    "integer",
						Minimum: floatPtr(1),
						Default: 3,
					},
					"initial_delay": durationSchema("First retry delay", "200ms"),
					"multiplier": {
						Type:    "number",
						Minimum: floatPtr(1),
						Default: 2.0,
					},
				},
			},
			"circuit_breaker": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"enabled": {
						Type:    "boolean",
						Default: true,
					},
					"threshold": {
						Type:        "integer",
						Description: "Consecutive failures before the circuit opens",
						Minimum:     floatPtr(1),
						Default:     5,
					},
					"timeout": durationSchema("How long the circuit stays open", "30s"),
				},
			},
			"bulkhead": {
				Type: "object",
				Properties: map[string]*JSONSchema{
					"enabled": {
						Type:    "boolean",
						Default: false,
					},
					"max_concurrent": {
						Type:    "integer",
						Minimum: floatPtr(1),
						Default: 10,
					},
				},
			},
		},
	}
}

func generateMCPServersSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Remote tool servers keyed by name",
		AdditionalProperties: &JSONSchema{
			Type:     "object",
			Required: []string{"command"},
			Properties: map[string]*JSONSchema{
				"command": {
					Type:        "string",
					Description: "Executable to launch",
					MinLength:   intPtr(1),
				},
				"args": {
					Type:  "array",
					Items: &JSONSchema{Type: "string"},
				},
				"env": {
					Type:                 "object",
					AdditionalProperties: &JSONSchema{Type: "string"},
				},
				"disabled": {
					Type:    "boolean",
					Default: false,
				},
				"timeout": durationSchema("Timeout for each request to the server", ""),
			},
		},
	}
}

func durationSchema(description, def string) *JSONSchema {
	s := &JSONSchema{
		Type:        "string",
		Description: description,
		Format:      "duration",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
	}
	if def != "" {
		s.Default = def
	}
	return s
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

// SchemaJSON returns the JSON Schema as a JSON string.
func SchemaJSON() (string, error) {
	schema := GenerateSchema()
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
