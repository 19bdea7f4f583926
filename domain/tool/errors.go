package tool

import "errors"

// Domain errors for the tool system.
var (
	// ErrEmptyName indicates a tool was created with an empty name.
	ErrEmptyName = errors.New("tool name cannot be empty")

	// ErrNoConstructor indicates a tool definition has no constructor.
	ErrNoConstructor = errors.New("tool has no constructor")

	// ErrToolExists indicates a tool with the same name already exists.
	ErrToolExists = errors.New("tool already exists")

	// ErrReservedName indicates a discovered tool tried to take a built-in name.
	ErrReservedName = errors.New("tool name is reserved by a built-in tool")

	// ErrUnknownTool indicates the requested tool is in neither the
	// built-in nor the discovered table.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrValidation indicates malformed or missing parameters, or a
	// missing filesystem target. Raised before any side effect.
	ErrValidation = errors.New("tool input validation failed")

	// ErrClassification indicates the command classifier could not reach
	// a verdict. It is logged and downgraded to requiring acceptance.
	ErrClassification = errors.New("command classification failed")

	// ErrExecution indicates a subprocess could not be spawned or a tool
	// effect failed.
	ErrExecution = errors.New("tool execution failed")

	// ErrCancelled indicates the invocation's trigger was cancelled.
	ErrCancelled = errors.New("tool execution cancelled")

	// ErrSizeLimit indicates the tool output exceeded its response ceiling.
	ErrSizeLimit = errors.New("tool output exceeds maximum response size")

	// ErrApprovalDenied indicates a human declined the invocation.
	ErrApprovalDenied = errors.New("approval denied for tool execution")
)
