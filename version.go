package corekernel

import "fmt"

// Version constants.
const (
	Major = 0
	Minor = 1
	Patch = 0
)

// SemVer returns the module's semantic version string, e.g. "v0.1.0".
func SemVer() string {
	return fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
}

// Version returns the human-readable version string of corekernel.
func Version() string {
	return fmt.Sprintf("corekernel %d.%d.%d", Major, Minor, Patch)
}
