package config

import (
	"errors"
	"os"
	"strings"
	"testing"

	domainconfig "github.com/felixgeelhaar/toolgate/domain/config"
)

func TestEnvExpander_SimpleExpansion(t *testing.T) {
	t.Setenv("TOOLGATE_TEST_VAR", "hello")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bracket syntax",
			input: "${TOOLGATE_TEST_VAR}",
			want:  "hello",
		},
		{
			name:  "embedded in text",
			input: "prefix-${TOOLGATE_TEST_VAR}-suffix",
			want:  "prefix-hello-suffix",
		},
		{
			name:  "multiple variables",
			input: "${TOOLGATE_TEST_VAR} ${TOOLGATE_TEST_VAR}",
			want:  "hello hello",
		},
		{
			name:  "bare dollar left for the shell",
			input: "PATH=$PATH:/opt/bin",
			want:  "PATH=$PATH:/opt/bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv(tt.input)
			if got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnvExpander_DefaultValue(t *testing.T) {
	os.Unsetenv("TOOLGATE_UNSET_VAR")
	t.Setenv("TOOLGATE_SET_VAR", "set-value")
	t.Setenv("TOOLGATE_EMPTY_VAR", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "unset with default",
			input: "${TOOLGATE_UNSET_VAR:-default}",
			want:  "default",
		},
		{
			name:  "set with default",
			input: "${TOOLGATE_SET_VAR:-default}",
			want:  "set-value",
		},
		{
			name:  "empty uses default",
			input: "${TOOLGATE_EMPTY_VAR:-fallback}",
			want:  "fallback",
		},
		{
			name:  "empty string default",
			input: "${TOOLGATE_UNSET_VAR:-}",
			want:  "",
		},
		{
			name:  "default containing colons",
			input: "${TOOLGATE_UNSET_VAR:-http://localhost:8080}",
			want:  "http://localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv(tt.input)
			if got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnvExpander_RequiredVariable(t *testing.T) {
	os.Unsetenv("TOOLGATE_REQUIRED_VAR")

	input := "${TOOLGATE_REQUIRED_VAR:?token is required}"
	_, err := ExpandEnvStrict(input)
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Fatalf("ExpandEnvStrict() error = %v, want ErrMissingEnvVar", err)
	}
	if !strings.Contains(err.Error(), "token is required") {
		t.Errorf("error %q should carry the message", err)
	}

	// Non-strict expansion leaves the text untouched so the failure is visible.
	if got := ExpandEnv(input); got != input {
		t.Errorf("ExpandEnv(%q) = %q, want unchanged", input, got)
	}
}

func TestEnvExpander_StrictMode(t *testing.T) {
	os.Unsetenv("TOOLGATE_MISSING_VAR")

	_, err := ExpandEnvStrict("${TOOLGATE_MISSING_VAR}")
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Errorf("ExpandEnvStrict() error = %v, want ErrMissingEnvVar", err)
	}
}

func TestEnvExpander_NonStrictMode(t *testing.T) {
	os.Unsetenv("TOOLGATE_MISSING_VAR")

	if got := ExpandEnv("${TOOLGATE_MISSING_VAR}"); got != "" {
		t.Errorf("ExpandEnv() = %q, want empty string", got)
	}
}

func TestEnvExpander_CustomLookup(t *testing.T) {
	e := &envExpander{
		strict: true,
		lookup: func(name string) (string, bool) {
			if name == "HOME_DIR" {
				return "/home/dev", true
			}
			return "", false
		},
	}

	got, err := e.Expand("cwd: ${HOME_DIR}/src")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if got != "cwd: /home/dev/src" {
		t.Errorf("Expand() = %q, want %q", got, "cwd: /home/dev/src")
	}
}

func TestEnvExpander_NoExpansion(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "no variables",
			input: "plain text",
		},
		{
			name:  "literal dollar",
			input: "price: $100",
		},
		{
			name:  "invalid syntax",
			input: "${incomplete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv(tt.input)
			if got != tt.input {
				t.Errorf("ExpandEnv(%q) = %q, want %q (unchanged)", tt.input, got, tt.input)
			}
		})
	}
}

func TestEnvExpander_YAMLConfig(t *testing.T) {
	t.Setenv("TOOLGATE_GH_TOKEN", "ghp_example")

	input := `
mcp_servers:
  github:
    command: github-mcp
    env:
      GITHUB_TOKEN: ${TOOLGATE_GH_TOKEN}
`
	expected := `
mcp_servers:
  github:
    command: github-mcp
    env:
      GITHUB_TOKEN: ghp_example
`
	got := ExpandEnv(input)
	if got != expected {
		t.Errorf("ExpandEnv() =\n%s\nwant:\n%s", got, expected)
	}
}
