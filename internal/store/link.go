package store

import (
	"path/filepath"

	"github.com/google/uuid"
)

// activateUnlocked repoints the current link at version's directory using
// a build-then-rename sequence, per §4.5: create the new link under a
// temp name in the same directory, then rename it over the old link. On
// Unix the rename makes activation atomic even if the process is killed
// mid-way; on Windows commitActivation removes the old junction before the
// rename, so a kill between those two steps leaves no current link.
func (s *Store) activateUnlocked(version string) error {
	target := s.versionPath(version)
	tmp := s.currentPath() + ".tmp-" + uuid.NewString()

	if err := createActivationLink(target, tmp); err != nil {
		return err
	}
	if err := commitActivation(tmp, s.currentPath()); err != nil {
		_ = removeActivationLink(tmp)
		return err
	}

	s.Log.Info().Str("version", version).Msg("activated")
	return nil
}

// readActivation resolves the current link's target directory name.
func readActivation(linkPath string) (string, error) {
	target, err := readActivationLink(linkPath)
	if err != nil {
		return "", err
	}
	return filepath.Clean(target), nil
}
