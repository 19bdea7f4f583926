// Package tool provides the domain model for agent tools: the contract every
// tool kind implements, the request and response wire shapes, and the
// registration entries held by the registry.
package tool

// RiskLevel indicates the potential impact of a tool execution.
type RiskLevel int

const (
	RiskNone     RiskLevel = iota // No risk - purely informational
	RiskLow                       // Low risk - reversible changes
	RiskMedium                    // Medium risk - may require cleanup
	RiskHigh                      // High risk - difficult to reverse
	RiskCritical                  // Critical risk - irreversible or destructive
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Annotations describe tool behavior for policy enforcement and listing.
type Annotations struct {
	// ReadOnly indicates the tool has no side effects.
	ReadOnly bool `json:"read_only"`

	// Destructive indicates the tool may cause irreversible changes.
	Destructive bool `json:"destructive"`

	// RiskLevel indicates the potential impact of execution.
	RiskLevel RiskLevel `json:"risk_level"`

	// RequiresApproval indicates human approval is always required,
	// regardless of what the tool computes per invocation.
	RequiresApproval bool `json:"requires_approval"`

	// Remote indicates the tool was discovered from a remote source.
	Remote bool `json:"remote,omitempty"`

	// Tags are arbitrary labels for categorization.
	Tags []string `json:"tags,omitempty"`
}

// DefaultAnnotations returns annotations with safe defaults.
func DefaultAnnotations() Annotations {
	return Annotations{
		RiskLevel: RiskLow,
	}
}

// ReadOnlyAnnotations returns annotations for a read-only tool.
func ReadOnlyAnnotations() Annotations {
	return Annotations{
		ReadOnly:  true,
		RiskLevel: RiskNone,
	}
}

// DestructiveAnnotations returns annotations for a destructive tool.
func DestructiveAnnotations() Annotations {
	return Annotations{
		Destructive:      true,
		RiskLevel:        RiskHigh,
		RequiresApproval: true,
	}
}

// ShouldRequireApproval returns true if the tool should require approval.
func (a Annotations) ShouldRequireApproval() bool {
	return a.RequiresApproval || a.Destructive || a.RiskLevel >= RiskHigh
}
