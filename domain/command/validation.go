package command

// Warnings surfaced to the human-approval UI.
const (
	WarningDestructive      = "WARNING: Potentially destructive command detected."
	WarningMutate           = "WARNING: Command may mutate system state."
	WarningHighRisk         = "WARNING: Command contains command or process substitution."
	WarningOperator         = "WARNING: Shell control operator embedded in an argument."
	WarningRedirect         = "WARNING: Command redirects input or output."
	WarningOutsideWorkspace = "WARNING: Command references a path outside the workspace."
	WarningUnsafeArgument   = "WARNING: Command uses an argument that can execute or delete."
)

// Validation is the classifier's verdict on a command line.
type Validation struct {
	RequiresAcceptance bool   `json:"requiresAcceptance"`
	Warning            string `json:"warning,omitempty"`
}

// Allow returns a verdict that lets the command run without a human.
func Allow() Validation {
	return Validation{}
}

// RequireAcceptance returns a verdict that asks a human, with an optional warning.
func RequireAcceptance(warning string) Validation {
	return Validation{RequiresAcceptance: true, Warning: warning}
}
