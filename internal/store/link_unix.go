//go:build !windows

package store

import (
	"os"
	"path/filepath"

	"github.com/govm-project/govm/internal/govmerr"
)

// createActivationLink creates a relative symlink at linkPath pointing at
// target, the way govman's createSymlink does on Unix. The target is
// stored relative to linkPath's directory (per §9: "a relative-target
// symlink is used so the root can be relocated without rewriting the
// link") rather than as the absolute path the caller computes it from.
func createActivationLink(target, linkPath string) error {
	rel, err := filepath.Rel(filepath.Dir(linkPath), target)
	if err != nil {
		rel = target
	}
	if err := os.Symlink(rel, linkPath); err != nil {
		return govmerr.New(govmerr.IO, linkPath, err)
	}
	return nil
}

func readActivationLink(linkPath string) (string, error) {
	return os.Readlink(linkPath)
}

func removeActivationLink(linkPath string) error {
	return os.Remove(linkPath)
}

// commitActivation atomically replaces linkPath with the symlink staged at
// tmpLinkPath; renaming one symlink over another is a single filesystem
// operation on Unix, so no special-casing is needed here (contrast
// link_windows.go, where a junction's directory entry can't be replaced
// the same way).
func commitActivation(tmpLinkPath, linkPath string) error {
	if err := os.Rename(tmpLinkPath, linkPath); err != nil {
		return govmerr.New(govmerr.IO, linkPath, err)
	}
	return nil
}
