package archive

import (
	"archive/tar"
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-project/govm/internal/govmerr"
)

func writeTarGz(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.tar.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return path
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestExtractTarGzStripsRoot(t *testing.T) {
	src := writeTarGz(t, map[string]string{
		"go/bin/go":      "binary",
		"go/src/main.go": "package main",
	})

	destDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Extract(KindTarGz, src, destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "bin", "go"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestExtractZipStripsRoot(t *testing.T) {
	src := writeZip(t, map[string]string{
		"go/bin/go.exe": "binary",
	})

	destDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Extract(KindZip, src, destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "bin", "go.exe"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	src := writeTarGz(t, map[string]string{
		"go/../../etc/passwd": "malicious",
	})

	destDir := filepath.Join(t.TempDir(), "out")
	err := Extract(KindTarGz, src, destDir)
	require.Error(t, err)
	assert.True(t, govmerr.Is(err, govmerr.Integrity))
}

func TestExtractRejectsUnrootedArchive(t *testing.T) {
	src := writeTarGz(t, map[string]string{
		"README.md":    "not a go distribution archive",
		"bin/somebin":  "binary",
	})

	destDir := filepath.Join(t.TempDir(), "out")
	err := Extract(KindTarGz, src, destDir)
	require.Error(t, err)
	assert.True(t, govmerr.Is(err, govmerr.Integrity))
	assert.ErrorIs(t, err, govmerr.ErrUnexpectedLayout)
}

func TestExtractZipRejectsUnrootedArchive(t *testing.T) {
	src := writeZip(t, map[string]string{
		"bin/go.exe": "binary",
	})

	destDir := filepath.Join(t.TempDir(), "out")
	err := Extract(KindZip, src, destDir)
	require.Error(t, err)
	assert.True(t, govmerr.Is(err, govmerr.Integrity))
	assert.ErrorIs(t, err, govmerr.ErrUnexpectedLayout)
}

func TestExtractIgnoresEntriesOutsideRoot(t *testing.T) {
	src := writeTarGz(t, map[string]string{
		"README.md": "not under go/",
		"go/bin/go":  "binary",
	})

	destDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Extract(KindTarGz, src, destDir))

	_, err := os.Stat(filepath.Join(destDir, "README.md"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(destDir, "bin", "go"))
	assert.NoError(t, err)
}
