package pack

import "errors"

// ErrInvalidPack is returned when a pack is nil or carries a nil tool.
var ErrInvalidPack = errors.New("invalid pack")
