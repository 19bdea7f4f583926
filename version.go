// Package toolgate provides the version information for toolgate.
package toolgate

// Version is the current version of toolgate.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
