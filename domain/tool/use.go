package tool

import "encoding/json"

// Use is an agent's request to invoke a tool.
type Use struct {
	ID    string          `json:"toolUseId"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Status is the outcome carried by a Response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ContentBlock is one piece of response content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the tool result returned to the agent loop.
type Response struct {
	ToolUseID string         `json:"toolUseId"`
	Content   []ContentBlock `json:"content"`
	Status    Status         `json:"status"`

	// Err is the Go error behind an error response. It is not sent on the wire.
	Err error `json:"-"`
}

// NewSuccessResponse wraps an output for the request with the given id.
func NewSuccessResponse(id string, out Output) Response {
	kind := string(out.Kind)
	if kind == "" {
		kind = string(OutputText)
	}
	return Response{
		ToolUseID: id,
		Content:   []ContentBlock{{Type: kind, Text: out.Content}},
		Status:    StatusSuccess,
	}
}

// NewErrorResponse builds an error result that keeps the original request id,
// so the agent loop can report the failure and carry on.
func NewErrorResponse(id string, err error) Response {
	text := "unknown error"
	if err != nil {
		text = err.Error()
	}
	return Response{
		ToolUseID: id,
		Content:   []ContentBlock{{Type: string(OutputText), Text: text}},
		Status:    StatusError,
		Err:       err,
	}
}

// IsError returns true if the response reports a failure.
func (r Response) IsError() bool {
	return r.Status == StatusError
}

// Text returns the concatenated text of all content blocks.
func (r Response) Text() string {
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var out string
	for _, c := range r.Content {
		out += c.Text
	}
	return out
}
