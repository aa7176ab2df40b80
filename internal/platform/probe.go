// Package platform detects the running OS/architecture and maps it onto
// the naming convention the official Go download manifest uses, the way
// cmd/buildlet/stage0 derives its osArch string and the teacher's update
// flow derives its release-asset name from runtime.GOOS/runtime.GOARCH.
package platform

import (
	"fmt"
	"runtime"

	"github.com/govm-project/govm/internal/govmerr"
)

// ArchiveKind is the archive format the upstream release uses for a given
// OS.
type ArchiveKind int

const (
	ArchiveZip ArchiveKind = iota
	ArchiveTarGz
)

func (k ArchiveKind) String() string {
	if k == ArchiveZip {
		return "zip"
	}
	return "tar.gz"
}

// Descriptor is the PlatformDescriptor value from the data model: computed
// once, immutable for the process lifetime.
type Descriptor struct {
	OS          string
	Arch        string
	ArchiveKind ArchiveKind
	ExeSuffix   string
}

// manifestOS/manifestArch are the tokens the official release manifest
// uses, which occasionally differ from runtime.GOOS/runtime.GOARCH.
var manifestOS = map[string]string{
	"windows": "windows",
	"linux":   "linux",
	"darwin":  "darwin",
	"freebsd": "freebsd",
}

var manifestArch = map[string]string{
	"amd64": "amd64",
	"arm64": "arm64",
	"386":   "386",
	"arm":   "armv6l",
}

// supported lists the OS/arch combinations the official distribution
// publishes archives for. This mirrors the matrix at go.dev/dl, not every
// value Go's runtime package can report.
var supported = map[string]map[string]bool{
	"windows": {"amd64": true, "arm64": true, "386": true},
	"linux":   {"amd64": true, "arm64": true, "386": true, "arm": true},
	"darwin":  {"amd64": true, "arm64": true},
	"freebsd": {"amd64": true, "386": true},
}

// Probe derives the PlatformDescriptor for the running process. It is a
// pure function of runtime.GOOS/runtime.GOARCH and has no side effects.
func Probe() (Descriptor, error) {
	return probeFor(runtime.GOOS, runtime.GOARCH)
}

func probeFor(goos, goarch string) (Descriptor, error) {
	archset, ok := supported[goos]
	if !ok || !archset[goarch] {
		return Descriptor{}, govmerr.Newf(govmerr.Input, fmt.Sprintf("%s/%s", goos, goarch),
			"%w: %s/%s", govmerr.ErrUnsupportedPlatform, goos, goarch)
	}

	mos, ok := manifestOS[goos]
	if !ok {
		return Descriptor{}, govmerr.Newf(govmerr.Input, goos, "%w: %s", govmerr.ErrUnsupportedPlatform, goos)
	}
	march, ok := manifestArch[goarch]
	if !ok {
		march = goarch
	}

	d := Descriptor{OS: mos, Arch: march}
	if goos == "windows" {
		d.ArchiveKind = ArchiveZip
		d.ExeSuffix = ".exe"
	} else {
		d.ArchiveKind = ArchiveTarGz
	}
	return d, nil
}

// AssetSuffix returns the "<os>-<arch>" token used in release filenames,
// e.g. "linux-amd64".
func (d Descriptor) AssetSuffix() string {
	return d.OS + "-" + d.Arch
}

// GoBinaryName returns the expected name of the go binary inside an
// extracted tree's bin/ directory, including the platform's exe suffix.
func (d Descriptor) GoBinaryName() string {
	return "go" + d.ExeSuffix
}

// GofmtBinaryName is the analogous name for gofmt.
func (d Descriptor) GofmtBinaryName() string {
	return "gofmt" + d.ExeSuffix
}
