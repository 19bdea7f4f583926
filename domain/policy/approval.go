package policy

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

// ApprovalRequest is what a human sees before a gated tool runs.
type ApprovalRequest struct {
	ToolUseID string          `json:"tool_use_id"`
	TriggerID string          `json:"trigger_id,omitempty"`
	ToolName  string          `json:"tool_name"`
	Input     json.RawMessage `json:"input"`
	Warning   string          `json:"warning,omitempty"`
	RiskLevel string          `json:"risk_level"`
	Preview   string          `json:"preview,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ApprovalResponse contains the result of an approval request.
type ApprovalResponse struct {
	Approved  bool      `json:"approved"`
	Approver  string    `json:"approver,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Approver decides whether a gated tool use may proceed.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
	return f(ctx, req)
}

// AutoApprover automatically approves all requests.
type AutoApprover struct {
	approverName string
}

// NewAutoApprover creates an approver that automatically approves all requests.
func NewAutoApprover(name string) *AutoApprover {
	return &AutoApprover{approverName: name}
}

// Approve automatically approves the request.
func (a *AutoApprover) Approve(_ context.Context, _ ApprovalRequest) (ApprovalResponse, error) {
	return ApprovalResponse{
		Approved:  true,
		Approver:  a.approverName,
		Reason:    "auto-approved",
		Timestamp: time.Now(),
	}, nil
}

// DenyApprover automatically denies all requests.
type DenyApprover struct {
	reason string
}

// NewDenyApprover creates an approver that automatically denies all requests.
func NewDenyApprover(reason string) *DenyApprover {
	return &DenyApprover{reason: reason}
}

// Approve automatically denies the request.
func (d *DenyApprover) Approve(_ context.Context, _ ApprovalRequest) (ApprovalResponse, error) {
	return ApprovalResponse{
		Approved:  false,
		Reason:    d.reason,
		Timestamp: time.Now(),
	}, nil
}

// ApprovalPolicy adjusts a tool's own acceptance verdict.
type ApprovalPolicy struct {
	// RequireForDestructive gates tools annotated as destructive even when
	// they report no need for acceptance.
	RequireForDestructive bool

	// RequireForTools lists tools that always require acceptance.
	RequireForTools []string

	// ExemptTools lists tools that never require acceptance.
	ExemptTools []string
}

// DefaultApprovalPolicy returns a policy gating destructive tools.
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{RequireForDestructive: true}
}

// Apply returns the verdict that governs a tool use. Exemptions win over
// explicit requirements, which win over the tool's own verdict.
func (p ApprovalPolicy) Apply(toolName string, annotations tool.Annotations, verdict command.Validation) command.Validation {
	if slices.Contains(p.ExemptTools, toolName) {
		return command.Allow()
	}
	if verdict.RequiresAcceptance {
		return verdict
	}
	if slices.Contains(p.RequireForTools, toolName) {
		return command.RequireAcceptance("")
	}
	if p.RequireForDestructive && annotations.Destructive {
		return command.RequireAcceptance(command.WarningDestructive)
	}
	if annotations.RequiresApproval {
		return command.RequireAcceptance("")
	}
	return verdict
}
