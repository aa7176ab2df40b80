package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-project/govm/internal/govmerr"
)

func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Write(payload)
			return
		}

		var start, end int
		_, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)
		require.NoError(t, err)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[start : end+1])
	}))
}

func noRangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write(payload)
	}))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestFetchChunkedReassemblesPayload(t *testing.T) {
	payload := []byte(strings.Repeat("govm-chunk-test-payload-", 1<<14)) // well above MinChunkBytes
	srv := rangeServer(t, payload)
	defer srv.Close()

	dl := New(zerolog.Nop())
	dl.HTTP = srv.Client()
	dl.Config.MinChunkBytes = 1024

	dir := t.TempDir()
	var lastDone int64
	res, err := dl.Fetch(context.Background(), Request{
		URL:         srv.URL,
		ExpectedSHA: sha256Hex(payload),
		DestDir:     dir,
		DestName:    "archive.bin",
	}, func(done, total int64, _ time.Duration) { lastDone = done })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lastDone, int64(0))

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, filepath.Join(dir, "archive.bin"), res.Path)
}

func TestFetchSingleStreamWhenRangesUnsupported(t *testing.T) {
	payload := []byte("small payload, no range support")
	srv := noRangeServer(t, payload)
	defer srv.Close()

	dl := New(zerolog.Nop())
	dl.HTTP = srv.Client()

	dir := t.TempDir()
	res, err := dl.Fetch(context.Background(), Request{
		URL:         srv.URL,
		ExpectedSHA: sha256Hex(payload),
		DestDir:     dir,
		DestName:    "small.bin",
	}, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchChecksumMismatch(t *testing.T) {
	payload := []byte("some bytes")
	srv := noRangeServer(t, payload)
	defer srv.Close()

	dl := New(zerolog.Nop())
	dl.HTTP = srv.Client()

	dir := t.TempDir()
	_, err := dl.Fetch(context.Background(), Request{
		URL:         srv.URL,
		ExpectedSHA: "0000000000000000000000000000000000000000000000000000000000000000",
		DestDir:     dir,
		DestName:    "bad.bin",
	}, nil)

	require.Error(t, err)
	assert.True(t, govmerr.Is(err, govmerr.Integrity))

	// A definitive checksum mismatch purges the partial file and its
	// sidecar rather than leaving them for a resume (§4.3 step 6).
	_, statErr := os.Stat(filepath.Join(dir, "bad.bin.part"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "bad.bin.part.map"))
	assert.True(t, os.IsNotExist(statErr))
}

// TestFetchResumesFromChunkMap reproduces P5: a chunked download that is
// cancelled mid-flight leaves a ".part" file and chunk-map sidecar behind,
// and a second Fetch against the same request completes by re-fetching
// only the chunks the sidecar doesn't already have marked done.
func TestFetchResumesFromChunkMap(t *testing.T) {
	payload := []byte(strings.Repeat("govm-resume-test-payload-", 1<<12))

	var rangeRequests []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			return
		}
		rh := r.Header.Get("Range")
		mu.Lock()
		rangeRequests = append(rangeRequests, rh)
		mu.Unlock()

		var start, end int
		_, err := fmt.Sscanf(rh, "bytes=%d-%d", &start, &end)
		require.NoError(t, err)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[start : end+1])
	}))
	defer srv.Close()

	dl := New(zerolog.Nop())
	dl.HTTP = srv.Client()
	dl.Config.MinChunkBytes = 1024
	dl.Config.Chunks = 4

	dir := t.TempDir()
	req := Request{
		URL:         srv.URL,
		ExpectedSHA: sha256Hex(payload),
		DestDir:     dir,
		DestName:    "resume.bin",
	}

	// Simulate a prior attempt that fetched chunk 0 and was then cancelled
	// (or failed) before the rest completed: pre-populate the part file
	// and mark chunk 0 done in the sidecar.
	size := int64(len(payload))
	chunks := planChunks(size, dl.Config.Chunks)
	partPath := filepath.Join(dir, "resume.bin.part")
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	_, err = f.WriteAt(payload[chunks[0].start:chunks[0].end+1], chunks[0].start)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cm := loadChunkMap(partPath+".map", size, len(chunks))
	cm.markDone(0)

	res, err := dl.Fetch(context.Background(), req, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// The already-done chunk must not have been re-requested.
	mu.Lock()
	defer mu.Unlock()
	want := fmt.Sprintf("bytes=%d-%d", chunks[0].start, chunks[0].end)
	for _, rh := range rangeRequests {
		assert.NotEqual(t, want, rh, "chunk 0 should have been skipped as already done")
	}
	assert.Len(t, rangeRequests, len(chunks)-1)
}

func TestPlanChunksCoversWholeRange(t *testing.T) {
	chunks := planChunks(1000, 3)
	require.Len(t, chunks, 3)
	assert.Equal(t, int64(0), chunks[0].start)
	assert.Equal(t, int64(999), chunks[len(chunks)-1].end)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].end+1, chunks[i].start)
	}
}
