package corekernel

import (
	"testing"

	"golang.org/x/mod/semver"
)

func TestSemVerIsValid(t *testing.T) {
	v := SemVer()
	if !semver.IsValid(v) {
		t.Fatalf("SemVer() = %q is not a valid semantic version", v)
	}
}

func TestVersionString(t *testing.T) {
	if got, want := Version(), "corekernel 0.1.0"; got != want {
		t.Fatalf("Version() = %q, want %q", got, want)
	}
}
