package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()

	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
}

func TestProductionConfig(t *testing.T) {
	t.Parallel()

	config := ProductionConfig()

	if config.Format != "json" {
		t.Errorf("Format = %s, want json", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := newLogger(Config{Level: "debug", Format: "json", Output: buf})

	NewEvent(logger.Debug()).Add(ToolName("fs_read")).Msg("hello")

	if !bytes.Contains(buf.Bytes(), []byte(`"tool":"fs_read"`)) {
		t.Errorf("expected tool field in output: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Errorf("expected message in output: %s", buf.String())
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := newLogger(Config{Level: "warn", Format: "json", Output: buf})

	logger.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info event written at warn level: %s", buf.String())
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"tool", ToolName("execute_bash"), `"tool":"execute_bash"`},
		{"tool use id", ToolUseID("tu-1"), `"tool_use_id":"tu-1"`},
		{"trigger id", TriggerID("tr-1"), `"trigger_id":"tr-1"`},
		{"command", Command("ls -la"), `"command":"ls -la"`},
		{"exit code", ExitCode(2), `"exit_code":2`},
		{"pid", PID(42), `"pid":42`},
		{"source", Source("github"), `"source":"github"`},
		{"state", State("invoking"), `"state":"invoking"`},
		{"duration", Duration(100 * time.Millisecond), `"duration_ms":100`},
		{"count", Count(3), `"count":3`},
		{"approved", Approved(true), `"approved":true`},
		{"reason", Reason("operator"), `"reason":"operator"`},
		{"component", Component("classifier"), `"component":"classifier"`},
		{"operation", Operation("refresh"), `"operation":"refresh"`},
		{"custom", Str("key", "value"), `"key":"value"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")

			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	t.Run("with error", func(t *testing.T) {
		t.Parallel()

		logger, buf := testLogger()
		ErrorField(errors.New("test error"))(logger.Info()).Msg("test")

		if !bytes.Contains(buf.Bytes(), []byte(`"error":"test error"`)) {
			t.Errorf("expected error field in output: %s", buf.String())
		}
	})

	t.Run("with nil error", func(t *testing.T) {
		t.Parallel()

		logger, buf := testLogger()
		ErrorField(nil)(logger.Info()).Msg("test")

		if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
			t.Errorf("unexpected error field in output: %s", buf.String())
		}
	})
}

func TestLogEvent_Chaining(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	NewEvent(logger.Warn()).
		Add(ToolName("fs_write")).
		Add(Component("dispatcher")).
		Send()

	for _, want := range []string{`"tool":"fs_write"`, `"component":"dispatcher"`} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("expected %s in output: %s", want, buf.String())
		}
	}
}
