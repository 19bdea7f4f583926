package tool_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/toolgate/domain/tool"
)

func TestNewSuccessResponse(t *testing.T) {
	t.Parallel()

	out, err := tool.JSONOutput(map[string]int{"exitStatus": 0})
	if err != nil {
		t.Fatalf("JSONOutput() error = %v", err)
	}

	resp := tool.NewSuccessResponse("tu-1", out)
	if resp.IsError() {
		t.Error("IsError() = true, want false")
	}
	if resp.ToolUseID != "tu-1" {
		t.Errorf("ToolUseID = %v, want tu-1", resp.ToolUseID)
	}
	if len(resp.Content) != 1 || resp.Content[0].Type != "json" {
		t.Fatalf("Content = %+v", resp.Content)
	}
	if resp.Text() != `{"exitStatus":0}` {
		t.Errorf("Text() = %v", resp.Text())
	}
}

func TestNewErrorResponse(t *testing.T) {
	t.Parallel()

	resp := tool.NewErrorResponse("tu-2", tool.ErrUnknownTool)
	if !resp.IsError() {
		t.Error("IsError() = false, want true")
	}
	if !errors.Is(resp.Err, tool.ErrUnknownTool) {
		t.Errorf("Err = %v, want %v", resp.Err, tool.ErrUnknownTool)
	}
	if resp.Text() != tool.ErrUnknownTool.Error() {
		t.Errorf("Text() = %v", resp.Text())
	}
}

func TestResponse_WireShape(t *testing.T) {
	t.Parallel()

	resp := tool.NewSuccessResponse("tu-3", tool.TextOutput("ok"))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	want := `{"toolUseId":"tu-3","content":[{"type":"text","text":"ok"}],"status":"success"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestUse_Unmarshal(t *testing.T) {
	t.Parallel()

	var use tool.Use
	data := []byte(`{"toolUseId":"abc","name":"fs_read","input":{"path":"/tmp"}}`)
	if err := json.Unmarshal(data, &use); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if use.ID != "abc" || use.Name != "fs_read" || string(use.Input) != `{"path":"/tmp"}` {
		t.Errorf("Use = %+v", use)
	}
}

func TestOutput_Len(t *testing.T) {
	t.Parallel()

	if got := tool.TextOutput("héllo").Len(); got != 6 {
		t.Errorf("Len() = %v, want 6", got)
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	if err := tool.Discard.Write("x"); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if err := tool.Discard.End(); err != nil {
		t.Errorf("End() error = %v", err)
	}
}

func TestJSONOutput_LeavesHTMLUnescaped(t *testing.T) {
	t.Parallel()

	out, err := tool.JSONOutput(map[string]string{"stdout": "a < b && c > d"})
	if err != nil {
		t.Fatalf("JSONOutput() error = %v", err)
	}
	if want := `{"stdout":"a < b && c > d"}`; out.Content != want {
		t.Errorf("Content = %v, want %v", out.Content, want)
	}
}
