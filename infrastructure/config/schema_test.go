package config

import (
	"encoding/json"
	"testing"

	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/validation"
)

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema()

	if schema.Schema != "https://json-schema.org/draft/2020-12/schema" {
		t.Errorf("Schema = %s, want draft/2020-12", schema.Schema)
	}
	if schema.Type != "object" {
		t.Errorf("Type = %s, want object", schema.Type)
	}

	expectedProps := []string{"workspace", "limits", "policy", "classifier", "shell", "logging", "audit", "telemetry", "resilience", "mcp_servers"}
	for _, prop := range expectedProps {
		if _, ok := schema.Properties[prop]; !ok {
			t.Errorf("missing property: %s", prop)
		}
	}
}

func TestGenerateSchema_PolicyApproval(t *testing.T) {
	approval := GenerateSchema().Properties["policy"].Properties["approval"]

	if len(approval.Enum) != 3 {
		t.Errorf("approval.Enum has %d values, want 3", len(approval.Enum))
	}
	if approval.Default != domainconfig.ApprovalPrompt {
		t.Errorf("approval.Default = %v, want prompt", approval.Default)
	}
}

func TestGenerateSchema_MCPServers(t *testing.T) {
	servers := GenerateSchema().Properties["mcp_servers"]

	if servers.AdditionalProperties == nil {
		t.Fatal("mcp_servers should describe its values")
	}
	if len(servers.AdditionalProperties.Required) != 1 || servers.AdditionalProperties.Required[0] != "command" {
		t.Errorf("Required = %v, want [command]", servers.AdditionalProperties.Required)
	}
}

func TestSchemaJSON(t *testing.T) {
	data, err := SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatalf("SchemaJSON() produced invalid JSON: %v", err)
	}
	if decoded["title"] != "Toolgate Configuration" {
		t.Errorf("title = %v, want Toolgate Configuration", decoded["title"])
	}
}

func TestSchema_ValidatesConfigs(t *testing.T) {
	data, err := SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON() error = %v", err)
	}
	schema, err := validation.Compile(tool.NewSchema(json.RawMessage(data)))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	def, err := json.Marshal(domainconfig.Default())
	if err != nil {
		t.Fatalf("failed to marshal default config: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"default", string(def), false},
		{"empty", `{}`, false},
		{"bad approval", `{"policy":{"approval":"sometimes"}}`, true},
		{"bad duration", `{"limits":{"kill_grace":"soon"}}`, true},
		{"server without command", `{"mcp_servers":{"github":{"args":["--stdio"]}}}`, true},
		{"sample rate above one", `{"telemetry":{"sample_rate":1.5}}`, true},
		{"category override", `{"classifier":{"categories":{"terraform":"destructive"}}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(json.RawMessage(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
