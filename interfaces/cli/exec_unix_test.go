//go:build unix

package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const shConfig = `
logging:
  level: error
shell:
  path: /bin/sh
`

func TestApp_ExecApproved(t *testing.T) {
	cfg := writeConfig(t, shConfig)

	out, _, err := run(t, "-c", cfg, "-C", t.TempDir(), "exec", "--yes", "echo hello-from-exec")
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if !strings.Contains(out, "hello-from-exec") {
		t.Errorf("exec output = %q, want streamed echo", out)
	}
}

func TestApp_ExecJSON(t *testing.T) {
	cfg := writeConfig(t, shConfig)

	out, _, err := run(t, "-c", cfg, "-C", t.TempDir(), "exec", "--json", "echo json-out")
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	var result struct {
		ExitStatus int    `json:"exitStatus"`
		Stdout     string `json:"stdout"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.ExitStatus != 0 || !strings.Contains(result.Stdout, "json-out") {
		t.Errorf("result = %+v, want exit 0 with json-out", result)
	}
}

func TestApp_ExecExitStatus(t *testing.T) {
	cfg := writeConfig(t, shConfig)

	_, _, err := run(t, "-c", cfg, "-C", t.TempDir(), "exec", "--yes", "exit 3")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %v, want ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
}

func TestApp_ExecDeclinedAtPrompt(t *testing.T) {
	cfg := writeConfig(t, shConfig)

	// stdin is empty, so the prompt reads EOF and declines.
	_, stderr, err := run(t, "-c", cfg, "-C", t.TempDir(), "exec", "touch should-not-exist")
	if err == nil {
		t.Fatal("expected declined exec to fail")
	}
	if !strings.Contains(stderr, "Allow? [y/N]") {
		t.Errorf("stderr missing prompt, got: %s", stderr)
	}
}
