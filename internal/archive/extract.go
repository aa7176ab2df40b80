// Package archive extracts a verified Go distribution archive (zip or
// tar.gz) into a destination directory, guarding against path traversal
// and preserving Unix file modes. Grounded on the teacher's
// extractFromTarGz/extractFromZip (internal/cli/update.go), generalized
// from "find one named binary" to "extract every entry under the
// canonical go/ root," and on the teacher's gzip import being swapped for
// klauspost/compress/gzip for faster decompression on large archives.
package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/govm-project/govm/internal/govmerr"
)

// rootPrefix is the canonical top-level directory every official Go
// release archive uses, per §4.4: "archives are rooted at a single top
// -level go/ directory; the extractor strips this prefix."
const rootPrefix = "go/"

// Extract unpacks src (a zip or tar.gz file, chosen by kind) into destDir,
// stripping the archive's go/ root so destDir itself becomes the version
// root (destDir/bin/go, destDir/src/..., etc). destDir must not already
// exist; Extract creates it.
func Extract(kind Kind, src, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return govmerr.New(govmerr.IO, destDir, err)
	}

	f, err := os.Open(src)
	if err != nil {
		return govmerr.New(govmerr.IO, src, err)
	}
	defer f.Close()

	var matched int
	switch kind {
	case KindZip:
		matched, err = extractZip(f, destDir)
	case KindTarGz:
		matched, err = extractTarGz(f, destDir)
	default:
		return govmerr.Newf(govmerr.Input, src, "unknown archive kind")
	}
	if err != nil {
		return err
	}

	// §4.4: an archive with no entries under the canonical go/ root is not
	// a Go distribution archive at all, regardless of what verifyLayout
	// finds in the (now empty) destDir afterward.
	if matched == 0 {
		return govmerr.Newf(govmerr.Integrity, src, "%w: no entries rooted at %s", govmerr.ErrUnexpectedLayout, rootPrefix)
	}
	return nil
}

// Kind mirrors platform.ArchiveKind without importing it, keeping this
// package usable standalone and in tests with synthetic archives.
type Kind int

const (
	KindZip Kind = iota
	KindTarGz
)

// extractTarGz returns the number of entries it found rooted at go/.
func extractTarGz(r io.Reader, destDir string) (int, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return 0, govmerr.New(govmerr.Integrity, destDir, err)
	}
	defer gzr.Close()

	matched := 0
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return matched, govmerr.New(govmerr.Integrity, destDir, err)
		}

		rel, ok := stripRoot(header.Name)
		if !ok {
			continue // entries outside go/ (rare, but tolerated rather than failing the whole extract)
		}
		matched++
		target, err := safeJoin(destDir, rel)
		if err != nil {
			return matched, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)|0o700); err != nil {
				return matched, govmerr.New(govmerr.IO, target, err)
			}
		case tar.TypeReg:
			if err := writeRegularFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return matched, err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destDir, target, header.Linkname); err != nil {
				return matched, err
			}
		default:
			// skip device nodes, fifos, etc - never present in official archives
		}
	}
	return matched, nil
}

// extractZip returns the number of entries it found rooted at go/.
func extractZip(f *os.File, destDir string) (int, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, govmerr.New(govmerr.IO, destDir, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return 0, govmerr.New(govmerr.Integrity, destDir, err)
	}

	matched := 0
	for _, file := range zr.File {
		rel, ok := stripRoot(file.Name)
		if !ok {
			continue
		}
		matched++
		target, err := safeJoin(destDir, rel)
		if err != nil {
			return matched, err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return matched, govmerr.New(govmerr.IO, target, err)
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return matched, govmerr.New(govmerr.Integrity, target, err)
		}
		err = writeRegularFile(target, rc, file.Mode())
		rc.Close()
		if err != nil {
			return matched, err
		}
	}
	return matched, nil
}

// stripRoot removes the archive's go/ prefix, reporting whether name was
// actually rooted there.
func stripRoot(name string) (string, bool) {
	name = filepath.ToSlash(name)
	if name == "go" || name == "go/" {
		return "", false
	}
	if !strings.HasPrefix(name, rootPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, rootPrefix), true
}

// safeJoin resolves rel against destDir and rejects any entry that would
// escape destDir, per §4.4's path-traversal guard and §7's PathTraversal
// error kind.
func safeJoin(destDir, rel string) (string, error) {
	target := filepath.Join(destDir, rel)
	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return "", govmerr.New(govmerr.IO, destDir, err)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", govmerr.New(govmerr.IO, target, err)
	}
	if targetAbs != destAbs && !strings.HasPrefix(targetAbs, destAbs+string(filepath.Separator)) {
		return "", govmerr.Newf(govmerr.Integrity, rel, "%w: %s", govmerr.ErrPathTraversal, rel)
	}
	return target, nil
}

func writeRegularFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return govmerr.New(govmerr.IO, target, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return govmerr.New(govmerr.IO, target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return govmerr.New(govmerr.IO, target, err)
	}
	return nil
}

// writeSymlink creates a symlink, rejecting any link target that would
// resolve outside destDir.
func writeSymlink(destDir, target, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}
	if _, err := safeJoin(destDir, mustRel(destDir, resolved)); err != nil {
		return err
	}

	_ = os.Remove(target)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return govmerr.New(govmerr.IO, target, err)
	}
	if err := os.Symlink(linkname, target); err != nil {
		return govmerr.New(govmerr.IO, target, err)
	}
	return nil
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}
