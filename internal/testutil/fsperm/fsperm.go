// Package fsperm holds test assertions about on-disk permissions.
package fsperm

import (
	"os"
	"runtime"
	"testing"
)

// AssertOwnerOnly fails the test unless path is a regular file readable and
// writable by its owner only.
func AssertOwnerOnly(t testing.TB, path string) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		t.Fatalf("expected regular file: %s", path)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected perm 0600, got %04o for %s", perm, path)
	}
}
