// Package command models shell command lines as seen by the safety classifier.
package command

// Category is the risk tier attached to a known command name.
type Category int

const (
	Unknown     Category = iota // Not in the table; always requires acceptance
	ReadOnly                    // Inspects state only
	Mutate                      // Changes system or network state
	Destructive                 // May cause irreversible loss
)

// HighRisk is the name some risk tables use for Mutate.
const HighRisk = Mutate

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case ReadOnly:
		return "read_only"
	case Mutate:
		return "mutate"
	case Destructive:
		return "destructive"
	default:
		return "unknown"
	}
}

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "read_only", "readonly", "read-only":
		return ReadOnly, true
	case "mutate", "high_risk", "highrisk":
		return Mutate, true
	case "destructive":
		return Destructive, true
	default:
		return Unknown, false
	}
}

// Severity orders categories for max-severity comparisons.
// Unknown ranks between ReadOnly and Mutate: it never allows execution
// but carries no warning.
func (c Category) Severity() int {
	switch c {
	case ReadOnly:
		return 0
	case Unknown:
		return 1
	case Mutate:
		return 2
	case Destructive:
		return 3
	default:
		return 1
	}
}
