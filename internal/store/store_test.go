package store

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-project/govm/internal/download"
	"github.com/govm-project/govm/internal/govmerr"
	"github.com/govm-project/govm/internal/manifest"
	"github.com/govm-project/govm/internal/platform"
)

// buildFakeGoArchive builds a minimal archive in whatever format the
// running platform actually expects (tar.gz everywhere except Windows,
// which uses zip), so the fixture matches what Store.Install will try to
// extract.
func buildFakeGoArchive(t *testing.T, exeSuffix string) ([]byte, string) {
	t.Helper()

	binName := "go/bin/go" + exeSuffix
	binContent := []byte("#!/bin/sh\necho fake go\n")

	var buf bytes.Buffer
	if runtime.GOOS == "windows" {
		zw := zip.NewWriter(&buf)
		w, err := zw.Create(binName)
		require.NoError(t, err)
		_, err = w.Write(binContent)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	} else {
		gw := gzip.NewWriter(&buf)
		tw := tar.NewWriter(gw)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: binName, Mode: 0o755, Size: int64(len(binContent))}))
		_, err := tw.Write(binContent)
		require.NoError(t, err)
		require.NoError(t, tw.Close())
		require.NoError(t, gw.Close())
	}

	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:])
}

func newTestStore(t *testing.T, archiveBytes []byte, sha string) (*Store, *httptest.Server) {
	t.Helper()

	d, err := platform.Probe()
	require.NoError(t, err)

	filename := fmt.Sprintf("go1.22.3.%s-%s.tar.gz", d.OS, d.Arch)
	if d.ArchiveKind == platform.ArchiveZip {
		filename = fmt.Sprintf("go1.22.3.%s-%s.zip", d.OS, d.Arch)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/dl.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"version":"go1.22.3","stable":true,"files":[
			{"filename":%q,"os":%q,"arch":%q,"kind":"archive","size":%d,"sha256":%q}
		]}]`, filename, d.OS, d.Arch, len(archiveBytes), sha)
	})
	mux.HandleFunc("/"+filename, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprint(len(archiveBytes)))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(archiveBytes)
	})
	srv := httptest.NewServer(mux)

	mc := manifest.NewClient(zerolog.Nop())
	mc.Endpoint = srv.URL + "/dl.json"
	mc.DownloadBase = srv.URL

	dl := download.New(zerolog.Nop())
	dl.Config.MinChunkBytes = 1 << 30 // force single-stream fetch for this tiny fixture

	root := t.TempDir()
	st, err := New(root, mc, dl, zerolog.Nop())
	require.NoError(t, err)

	return st, srv
}

func TestInstallUseUninstallLifecycle(t *testing.T) {
	exeSuffix := ""
	if runtime.GOOS == "windows" {
		exeSuffix = ".exe"
	}
	archiveBytes, sha := buildFakeGoArchive(t, exeSuffix)
	st, srv := newTestStore(t, archiveBytes, sha)
	defer srv.Close()

	ctx := context.Background()

	err := st.Install(ctx, "1.22.3", InstallOptions{Activate: true})
	require.NoError(t, err)
	assert.True(t, st.IsInstalled("1.22.3"))

	current, err := st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.22.3", current)

	err = st.Install(ctx, "1.22.3", InstallOptions{})
	assert.True(t, govmerr.Is(err, govmerr.Input))

	err = st.Uninstall(ctx, "1.22.3", false)
	assert.True(t, govmerr.Is(err, govmerr.Input)) // active version cannot be removed

	list, err := st.ListInstalled()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.22.3"}, list)

	require.NoError(t, st.Uninstall(ctx, "1.22.3", true)) // allow_active removes it and R/current

	list, err = st.ListInstalled()
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = st.Current(ctx)
	assert.True(t, govmerr.Is(err, govmerr.Input))
}

func TestInstallForceReplacesExisting(t *testing.T) {
	exeSuffix := ""
	if runtime.GOOS == "windows" {
		exeSuffix = ".exe"
	}
	archiveBytes, sha := buildFakeGoArchive(t, exeSuffix)
	st, srv := newTestStore(t, archiveBytes, sha)
	defer srv.Close()

	ctx := context.Background()

	require.NoError(t, st.Install(ctx, "1.22.3", InstallOptions{Activate: true}))

	err := st.Install(ctx, "1.22.3", InstallOptions{})
	assert.True(t, govmerr.Is(err, govmerr.Input))

	require.NoError(t, st.Install(ctx, "1.22.3", InstallOptions{Force: true, Activate: true}))
	assert.True(t, st.IsInstalled("1.22.3"))

	current, err := st.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.22.3", current)
}

func TestUninstallUnknownVersion(t *testing.T) {
	archiveBytes, sha := buildFakeGoArchive(t, "")
	st, srv := newTestStore(t, archiveBytes, sha)
	defer srv.Close()

	err := st.Uninstall(context.Background(), "9.9.9", false)
	assert.True(t, govmerr.Is(err, govmerr.Input))
}

func TestVerifyCacheReportsStatus(t *testing.T) {
	archiveBytes, sha := buildFakeGoArchive(t, "")
	st, srv := newTestStore(t, archiveBytes, sha)
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, st.Install(ctx, "1.22.3", InstallOptions{}))

	entries, err := st.VerifyCache(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Valid)

	// Corrupt the cached file and verify it's flagged invalid.
	cacheFiles, err := os.ReadDir(st.cachePath())
	require.NoError(t, err)
	require.Len(t, cacheFiles, 1)
	corruptPath := filepath.Join(st.cachePath(), cacheFiles[0].Name())
	require.NoError(t, os.WriteFile(corruptPath, []byte("corrupted"), 0o644))

	entries, err = st.VerifyCache(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Valid)
}
