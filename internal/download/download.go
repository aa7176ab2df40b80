// Package download implements the chunked, resumable archive fetch from
// §4.3: a HEAD probe for size/range support, N-way parallel ranged GETs
// written into a staging file, streaming SHA-256 verification, and an
// atomic commit into the cache. Grounded on the teacher's
// downloadAndExtractBinary (internal/cli/update.go) for the overall
// stage-then-rename shape, and on goUpdater's internal/download/download.go
// for the retry/backoff plumbing around a single HTTP client.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/govm-project/govm/internal/govmerr"
)

// ProgressFunc reports bytes_done/bytes_total/elapsed at most at the rate
// the caller chooses to sample it; the downloader itself throttles calls
// to roughly 10Hz per §4.3 step 8.
type ProgressFunc func(done, total int64, elapsed time.Duration)

// Request describes one archive to fetch.
type Request struct {
	URL          string
	ExpectedSHA  string // hex-encoded sha256, empty skips verification (tests only)
	ExpectedSize int64  // 0 means unknown; falls back to HEAD result
	DestDir      string // final directory the verified archive is renamed into
	DestName     string // final filename within DestDir
}

// Config tunes chunking and retry behavior; the zero value is invalid, use
// DefaultConfig().
type Config struct {
	Chunks        int
	MinChunkBytes int64
	MaxRetries    uint64
	BaseDelay     time.Duration
	Factor        float64
	Jitter        float64
}

// DefaultConfig matches §4.3's defaults: split into 4 ranges when the
// server supports them and the file is large enough to be worth
// splitting, retry each chunk independently with exponential backoff.
func DefaultConfig() Config {
	return Config{
		Chunks:        4,
		MinChunkBytes: 8 << 20, // below this, a single stream is not worth the overhead
		MaxRetries:    3,
		BaseDelay:     500 * time.Millisecond,
		Factor:        2,
		Jitter:        0.25,
	}
}

// Downloader fetches archives per Config, using an injected *http.Client so
// tests can point it at an httptest.Server.
type Downloader struct {
	HTTP   *http.Client
	Config Config
	Log    zerolog.Logger
}

func New(log zerolog.Logger) *Downloader {
	return &Downloader{
		HTTP:   http.DefaultClient,
		Config: DefaultConfig(),
		Log:    log,
	}
}

// Result reports the final location and verified size of a fetched
// archive.
type Result struct {
	Path string
	Size int64
}

// Fetch downloads req.URL into "<DestDir>/<DestName>.part", verifies its
// size and (if set) its sha256, and renames it atomically into place as
// req.DestName. The staging path and its chunk-map sidecar are deterministic
// (not random) so that a cancelled chunked download can be resumed by a
// later Fetch call against the same request, per §4.3 steps 4 and 7: on
// cancellation or exhausted retries the partial file and sidecar are left
// in place; only a checksum/size mismatch purges them, since that failure
// is definitive rather than resumable.
func (d *Downloader) Fetch(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, govmerr.New(govmerr.Cancelled, req.URL, err)
	}

	if err := os.MkdirAll(req.DestDir, 0o755); err != nil {
		return Result{}, govmerr.New(govmerr.IO, req.DestDir, err)
	}

	probe, err := d.probe(ctx, req.URL)
	if err != nil {
		return Result{}, err
	}
	size := probe.size
	if size == 0 {
		size = req.ExpectedSize
	}

	stagePath := filepath.Join(req.DestDir, req.DestName+".part")
	mapPath := stagePath + ".map"

	var fetchErr error
	if probe.acceptRanges && size >= d.Config.MinChunkBytes && d.Config.Chunks > 1 {
		fetchErr = d.fetchChunked(ctx, req.URL, stagePath, mapPath, size, progress)
	} else {
		fetchErr = d.fetchSingleStream(ctx, req.URL, stagePath, size, progress)
	}
	if fetchErr != nil {
		if ctx.Err() != nil {
			return Result{}, govmerr.New(govmerr.Cancelled, req.URL, ctx.Err())
		}
		return Result{}, fetchErr
	}

	actualSize, sum, err := hashFile(stagePath)
	if err != nil {
		return Result{}, govmerr.New(govmerr.IO, stagePath, err)
	}
	if size > 0 && actualSize != size {
		os.Remove(stagePath)
		os.Remove(mapPath)
		return Result{}, govmerr.Newf(govmerr.Integrity, req.URL,
			"%w: expected %d bytes, got %d", govmerr.ErrChecksumMismatch, size, actualSize)
	}
	if req.ExpectedSHA != "" && sum != req.ExpectedSHA {
		os.Remove(stagePath)
		os.Remove(mapPath)
		return Result{}, govmerr.Newf(govmerr.Integrity, req.URL,
			"%w: expected %s, got %s", govmerr.ErrChecksumMismatch, req.ExpectedSHA, sum)
	}

	finalPath := filepath.Join(req.DestDir, req.DestName)
	if err := os.Rename(stagePath, finalPath); err != nil {
		return Result{}, govmerr.New(govmerr.IO, finalPath, err)
	}
	os.Remove(mapPath)

	return Result{Path: finalPath, Size: actualSize}, nil
}

type probeResult struct {
	size         int64
	acceptRanges bool
}

func (d *Downloader) probe(ctx context.Context, url string) (probeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return probeResult{}, govmerr.New(govmerr.Input, url, err)
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return probeResult{}, govmerr.New(govmerr.Transport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := govmerr.HTTPStatusFatal
		if resp.StatusCode >= 500 {
			kind = govmerr.Transport
		}
		return probeResult{}, govmerr.Newf(kind, url, "HEAD returned status %d", resp.StatusCode)
	}

	return probeResult{
		size:         resp.ContentLength,
		acceptRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// fetchChunked splits [0,size) into d.Config.Chunks byte ranges and fetches
// them concurrently via errgroup, each chunk independently retried with
// backoff. Chunks already marked done in the sidecar at mapPath (from a
// prior cancelled attempt against the same stagePath) are skipped.
func (d *Downloader) fetchChunked(ctx context.Context, url, stagePath, mapPath string, size int64, progress ProgressFunc) error {
	f, err := os.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return govmerr.New(govmerr.IO, stagePath, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		return govmerr.New(govmerr.IO, stagePath, err)
	}

	chunks := planChunks(size, d.Config.Chunks)
	cm := loadChunkMap(mapPath, size, len(chunks))
	prog := newThrottledProgress(size, progress)

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		if cm.isDone(i) {
			prog.add(c.end - c.start + 1)
			continue
		}
		g.Go(func() error {
			if err := d.fetchRange(gctx, url, f, c, prog); err != nil {
				return err
			}
			cm.markDone(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	prog.finish()
	cm.remove()
	return nil
}

type byteRange struct{ start, end int64 } // inclusive

func planChunks(size int64, n int) []byteRange {
	if n < 1 {
		n = 1
	}
	chunkSize := size / int64(n)
	if chunkSize == 0 {
		return []byteRange{{0, size - 1}}
	}
	ranges := make([]byteRange, 0, n)
	start := int64(0)
	for i := 0; i < n; i++ {
		end := start + chunkSize - 1
		if i == n-1 {
			end = size - 1
		}
		ranges = append(ranges, byteRange{start, end})
		start = end + 1
	}
	return ranges
}

func (d *Downloader) fetchRange(ctx context.Context, url string, f *os.File, r byteRange, prog *throttledProgress) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(govmerr.New(govmerr.Input, url, err))
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.start, r.end))

		resp, err := d.HTTP.Do(req)
		if err != nil {
			return govmerr.New(govmerr.Transport, url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusPartialContent {
			// §4.3 step 5: every 4xx is fatal except 408 and 429, which are
			// retried; 429 additionally honours any Retry-After before the
			// retry.
			switch resp.StatusCode {
			case http.StatusTooManyRequests:
				if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 {
					select {
					case <-ctx.Done():
						return backoff.Permanent(govmerr.New(govmerr.Cancelled, url, ctx.Err()))
					case <-time.After(wait):
					}
				}
				return govmerr.Newf(govmerr.Transport, url, "range request returned status %d", resp.StatusCode)
			case http.StatusRequestTimeout:
				return govmerr.Newf(govmerr.Transport, url, "range request returned status %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(govmerr.Newf(govmerr.HTTPStatusFatal, url,
					"range request returned status %d", resp.StatusCode))
			}
			return govmerr.Newf(govmerr.Transport, url, "range request returned status %d", resp.StatusCode)
		}

		w := io.NewOffsetWriter(f, r.start)
		n, err := io.Copy(w, countingReader{resp.Body, prog})
		if err != nil {
			return govmerr.New(govmerr.Transport, url, err)
		}
		if want := r.end - r.start + 1; n != want {
			return govmerr.Newf(govmerr.Transport, url, "short chunk read: got %d of %d bytes", n, want)
		}
		return nil
	}

	return backoff.Retry(op, d.backoffPolicy(ctx))
}

// fetchSingleStream is used when the server doesn't advertise Range support
// or the file is too small to split, falling back to cavaliergopher/grab
// for its own resumable-download bookkeeping.
func (d *Downloader) fetchSingleStream(ctx context.Context, url, stagePath string, size int64, progress ProgressFunc) error {
	dir, name := filepath.Split(stagePath)
	gc := grab.NewClient()
	gc.HTTPClient = d.HTTP

	gr, err := grab.NewRequest(dir, url)
	if err != nil {
		return govmerr.New(govmerr.Input, url, err)
	}
	gr = gr.WithContext(ctx)
	gr.Filename = filepath.Join(dir, name)

	op := func() error {
		resp := gc.Do(gr)
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
	loop:
		for {
			select {
			case <-t.C:
				if progress != nil {
					progress(resp.BytesComplete(), resp.Size(), resp.Duration())
				}
			case <-resp.Done:
				break loop
			}
		}
		if err := resp.Err(); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(govmerr.New(govmerr.Cancelled, url, ctx.Err()))
			}
			return govmerr.New(govmerr.Transport, url, err)
		}
		return nil
	}

	if err := backoff.Retry(op, d.backoffPolicy(ctx)); err != nil {
		return err
	}
	if progress != nil {
		progress(size, size, 0)
	}
	return nil
}

func (d *Downloader) backoffPolicy(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.Config.BaseDelay
	eb.Multiplier = d.Config.Factor
	eb.RandomizationFactor = d.Config.Jitter
	return backoff.WithContext(backoff.WithMaxRetries(eb, d.Config.MaxRetries), ctx)
}

// retryAfter parses a Retry-After header value, which per RFC 9110 is
// either a number of seconds or an HTTP-date. An unparsable or empty value
// yields zero, meaning "retry with the normal backoff delay only."
func retryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func hashFile(path string) (int64, string, error) {
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

// countingReader feeds bytes read through to a throttledProgress tracker.
type countingReader struct {
	r    io.Reader
	prog *throttledProgress
}

func (c countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.prog.add(int64(n))
	}
	return n, err
}
