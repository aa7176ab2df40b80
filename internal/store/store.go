// Package store implements the version store engine from §4: install,
// uninstall, use, list, and status. The mutating operations (install,
// uninstall, use) run under the root lock and commit via stage-then-rename
// so a crash mid-operation never leaves the store looking
// installed-but-broken; list and status read without taking the lock. Grounded on govman's
// internal/manager/manager.go (Install/Uninstall/Use/Current method
// shapes and the symlink-activation flow) and on goUpdater's
// download.go for dependency injection of the downloader/extractor.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/govm-project/govm/internal/archive"
	"github.com/govm-project/govm/internal/download"
	"github.com/govm-project/govm/internal/govmerr"
	"github.com/govm-project/govm/internal/lock"
	"github.com/govm-project/govm/internal/manifest"
	"github.com/govm-project/govm/internal/platform"
)

const (
	versionsDir = "versions"
	cacheDir    = "cache"
	currentLink = "current"
	trashPrefix = ".trash-"
)

// Store is the engine over one version root R. Its mutating methods
// (Install, Uninstall, Use) are serialized by the root lock across
// processes sharing the same Root; the read-only methods take no lock.
type Store struct {
	Root       string
	Manifest   *manifest.Client
	Downloader *download.Downloader
	Platform   platform.Descriptor
	Log        zerolog.Logger
}

// New builds a Store rooted at root, probing the running platform.
func New(root string, mc *manifest.Client, dl *download.Downloader, log zerolog.Logger) (*Store, error) {
	d, err := platform.Probe()
	if err != nil {
		return nil, err
	}
	s := &Store{Root: root, Manifest: mc, Downloader: dl, Platform: d, Log: log}
	for _, dir := range []string{s.versionsPath(), s.cachePath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, govmerr.New(govmerr.IO, dir, err)
		}
	}
	return s, nil
}

func (s *Store) versionsPath() string     { return filepath.Join(s.Root, versionsDir) }
func (s *Store) cachePath() string        { return filepath.Join(s.Root, cacheDir) }
func (s *Store) versionPath(v string) string { return filepath.Join(s.versionsPath(), v) }
func (s *Store) currentPath() string      { return filepath.Join(s.Root, currentLink) }

// InstallOptions controls Install's optional activation step and whether a
// pre-existing install is replaced.
type InstallOptions struct {
	// Force, per §4.5 step 2/7, lets Install replace an already-installed
	// version instead of failing with AlreadyInstalled: the existing
	// directory is moved aside to a trash path before the new one is
	// committed, and the trash is swept after the commit rename.
	Force    bool
	Activate bool
	Progress download.ProgressFunc

	// OnPhase, if set, is called as Install moves through its indeterminate
	// stages (no byte count to drive a progress bar against) so the CLI can
	// drive a spinner. It is never called for the download stage itself,
	// which reports through Progress instead.
	OnPhase func(phase string)
}

func (s *Store) reportPhase(opts InstallOptions, phase string) {
	if opts.OnPhase != nil {
		opts.OnPhase(phase)
	}
}

// Install resolves version (an exact version or "latest"), downloads and
// verifies its archive into R/cache, extracts it into a staged
// R/versions/.staging-<v>-<uuid> directory, and renames that into place as
// R/versions/<v>. Per §7, returns AlreadyInstalled if the version already
// has a committed directory and opts.Force is false.
func (s *Store) Install(ctx context.Context, version string, opts InstallOptions) error {
	unlock, err := lock.Open(s.Root).Acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	s.reportPhase(opts, "resolving version")
	resolved, err := s.resolveVersion(ctx, version)
	if err != nil {
		return err
	}

	alreadyInstalled := s.isInstalledUnlocked(resolved)
	if alreadyInstalled && !opts.Force {
		return govmerr.Newf(govmerr.Input, resolved, "%w: %s", govmerr.ErrAlreadyInstalled, resolved)
	}

	s.reportPhase(opts, "fetching manifest")
	fd, err := s.Manifest.Resolve(ctx, resolved, s.Platform)
	if err != nil {
		return err
	}

	archivePath, err := s.fetchArchive(ctx, fd, opts.Progress)
	if err != nil {
		return err
	}

	stagingDir := filepath.Join(s.versionsPath(), ".staging-"+resolved+"-"+uuid.NewString())
	defer os.RemoveAll(stagingDir)

	kind := archive.KindTarGz
	if s.Platform.ArchiveKind == platform.ArchiveZip {
		kind = archive.KindZip
	}
	s.reportPhase(opts, "extracting")
	if err := archive.Extract(kind, archivePath, stagingDir); err != nil {
		return err
	}
	if err := verifyLayout(stagingDir, s.Platform); err != nil {
		return err
	}

	finalDir := s.versionPath(resolved)

	// §4.5 step 7: force-replacing an existing install moves the current
	// directory aside first, so the commit rename below never has to
	// overwrite a live directory, and the old tree is reaped afterward.
	var trashDir string
	if alreadyInstalled && opts.Force {
		trashDir = filepath.Join(s.versionsPath(), trashPrefix+uuid.NewString())
		if err := os.Rename(finalDir, trashDir); err != nil {
			return govmerr.New(govmerr.IO, finalDir, err)
		}
	}

	if err := os.Rename(stagingDir, finalDir); err != nil {
		return govmerr.New(govmerr.IO, finalDir, err)
	}

	if trashDir != "" {
		if err := os.RemoveAll(trashDir); err != nil {
			s.Log.Warn().Err(err).Str("dir", trashDir).Msg("failed to clean up trash directory; it is left in place and is not removed by later operations")
		}
	}

	s.Log.Info().Str("version", resolved).Msg("installed")

	if opts.Activate {
		s.reportPhase(opts, "activating")
		if err := s.activateUnlocked(resolved); err != nil {
			return err
		}
	}
	return nil
}

// fetchArchive downloads fd into R/cache, reusing an existing verified
// copy when present (§4.3: "a previously cached archive whose sha256
// still matches is reused without a network request").
func (s *Store) fetchArchive(ctx context.Context, fd manifest.FileDescriptor, progress download.ProgressFunc) (string, error) {
	cached := filepath.Join(s.cachePath(), fd.Filename)
	if n, sum, err := hashIfExists(cached); err == nil && sum == fd.SHA256 && (fd.Size == 0 || n == fd.Size) {
		s.Log.Debug().Str("file", fd.Filename).Msg("using cached archive")
		return cached, nil
	}

	req := download.Request{
		URL:          fd.URL(s.Manifest.DownloadBase),
		ExpectedSHA:  fd.SHA256,
		ExpectedSize: fd.Size,
		DestDir:      s.cachePath(),
		DestName:     fd.Filename,
	}
	res, err := s.Downloader.Fetch(ctx, req, progress)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// Uninstall removes an installed version's directory. Per §4.5, returns
// ActiveVersion if version is the currently activated version and
// allowActive is false; if allowActive is true, R/current is removed first
// so the version can be safely reaped, leaving no active version.
func (s *Store) Uninstall(ctx context.Context, version string, allowActive bool) error {
	unlock, err := lock.Open(s.Root).Acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if !s.isInstalledUnlocked(version) {
		return govmerr.Newf(govmerr.Input, version, "%w: %s", govmerr.ErrVersionNotInstalled, version)
	}

	active, activeErr := s.currentUnlocked()
	isActive := activeErr == nil && active == version
	if isActive {
		if !allowActive {
			return govmerr.Newf(govmerr.Input, version, "%w: %s", govmerr.ErrActiveVersion, version)
		}
		if err := removeActivationLink(s.currentPath()); err != nil && !os.IsNotExist(err) {
			return govmerr.New(govmerr.IO, s.currentPath(), err)
		}
	}

	trashDir := filepath.Join(s.versionsPath(), trashPrefix+uuid.NewString())
	if err := os.Rename(s.versionPath(version), trashDir); err != nil {
		return govmerr.New(govmerr.IO, s.versionPath(version), err)
	}
	if err := os.RemoveAll(trashDir); err != nil {
		s.Log.Warn().Err(err).Str("dir", trashDir).Msg("failed to clean up trash directory; it is left in place and is not removed by later operations")
	}

	s.Log.Info().Str("version", version).Msg("uninstalled")
	return nil
}

// Use activates an installed version by repointing R/current, per §4.5's
// atomic activation: build the new link under a temp name, then rename it
// over the old one. On Unix that rename leaves no window without a current
// link; on Windows commitActivation removes the old junction just before
// the rename, so a brief window with no current link exists there.
func (s *Store) Use(ctx context.Context, version string) error {
	unlock, err := lock.Open(s.Root).Acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if !s.isInstalledUnlocked(version) {
		return govmerr.Newf(govmerr.Input, version, "%w: %s", govmerr.ErrVersionNotInstalled, version)
	}
	return s.activateUnlocked(version)
}

// Current returns the version the current link points at, or
// VersionNotInstalled-kind error if nothing is active.
func (s *Store) Current(ctx context.Context) (string, error) {
	return s.currentUnlocked()
}

func (s *Store) currentUnlocked() (string, error) {
	target, err := readActivation(s.currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", govmerr.Newf(govmerr.Input, "", "%w", govmerr.ErrVersionNotInstalled)
		}
		return "", govmerr.New(govmerr.IO, s.currentPath(), err)
	}
	return filepath.Base(target), nil
}

// ListInstalled returns installed versions sorted descending by semver.
func (s *Store) ListInstalled() ([]string, error) {
	entries, err := os.ReadDir(s.versionsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, govmerr.New(govmerr.IO, s.versionsPath(), err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), trashPrefix) || strings.Contains(e.Name(), ".staging-") {
			continue
		}
		versions = append(versions, e.Name())
	}

	sort.SliceStable(versions, func(i, j int) bool {
		vi, erri := semver.NewVersion(versions[i])
		vj, errj := semver.NewVersion(versions[j])
		if erri != nil || errj != nil {
			return versions[i] > versions[j]
		}
		return vi.GreaterThan(vj)
	})
	return versions, nil
}

// CacheEntry reports one cached archive's on-disk checksum status against
// the manifest's recorded value.
type CacheEntry struct {
	Filename string
	Valid    bool
}

// VerifyCache recomputes the sha256 of every file in R/cache and compares
// it against the upstream manifest's recorded checksum, per the
// "status --verify-cache" flag.
func (s *Store) VerifyCache(ctx context.Context) ([]CacheEntry, error) {
	entries, err := os.ReadDir(s.cachePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, govmerr.New(govmerr.IO, s.cachePath(), err)
	}

	manifestEntries, err := s.Manifest.Entries(ctx)
	if err != nil {
		return nil, err
	}
	knownSHA := make(map[string]string, len(manifestEntries)*2)
	for _, e := range manifestEntries {
		for _, f := range e.Files {
			knownSHA[f.Filename] = f.SHA256
		}
	}

	var results []CacheEntry
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".part") || strings.HasSuffix(e.Name(), ".part.map") {
			continue
		}
		_, sum, err := sha256File(filepath.Join(s.cachePath(), e.Name()))
		if err != nil {
			results = append(results, CacheEntry{Filename: e.Name(), Valid: false})
			continue
		}
		want, known := knownSHA[e.Name()]
		results = append(results, CacheEntry{Filename: e.Name(), Valid: known && want == sum})
	}
	return results, nil
}

// CurrentBinDir returns the bin/ directory of the active version, for the
// PATH hint "status" prints.
func (s *Store) CurrentBinDir() string {
	return filepath.Join(s.currentPath(), "bin")
}

func (s *Store) isInstalledUnlocked(version string) bool {
	info, err := os.Stat(s.versionPath(version))
	return err == nil && info.IsDir()
}

// IsInstalled reports whether version has a committed directory. Safe to
// call without holding the lock (read-only, tolerant of a concurrent
// writer since Go's rename is atomic on the same filesystem).
func (s *Store) IsInstalled(version string) bool { return s.isInstalledUnlocked(version) }

func (s *Store) resolveVersion(ctx context.Context, version string) (string, error) {
	if version != "latest" {
		return version, nil
	}
	versions, err := s.Manifest.ListAvailable(ctx, s.Platform)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if !strings.Contains(v, "beta") && !strings.Contains(v, "rc") {
			return v, nil
		}
	}
	return "", govmerr.Newf(govmerr.Input, version, "%w: latest", govmerr.ErrVersionNotFound)
}

// verifyLayout checks that the extracted tree has the shape §4.4
// expects: a bin/ directory containing the platform's go binary.
func verifyLayout(dir string, d platform.Descriptor) error {
	goBin := filepath.Join(dir, "bin", d.GoBinaryName())
	if _, err := os.Stat(goBin); err != nil {
		return govmerr.Newf(govmerr.Integrity, dir, "%w: missing %s", govmerr.ErrUnexpectedLayout, goBin)
	}
	return nil
}

func hashIfExists(path string) (int64, string, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, "", err
	}
	return sha256File(path)
}

func sha256File(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
