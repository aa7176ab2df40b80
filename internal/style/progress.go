package style

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
)

// DownloadProgress renders a determinate byte-counted progress bar for a
// single archive download. It satisfies the download.ProgressFunc shape
// directly so it can be passed straight into the downloader.
type DownloadProgress struct {
	bar *pb.ProgressBar
}

// NewDownloadProgress creates a progress bar bound to total bytes. When
// total is zero (size unknown) the bar renders as a spinner instead of a
// percentage.
func NewDownloadProgress(w io.Writer, total int64) *DownloadProgress {
	tmpl := `{{string . "prefix"}}{{bar . }} {{percent . }} {{speed . }}`
	bar := pb.ProgressBarTemplate(tmpl).New(int(total))
	bar.SetWriter(w)
	bar.Set(pb.Bytes, true)
	bar.Set("prefix", "downloading  ")
	return &DownloadProgress{bar: bar}
}

// Update reports bytes_done/bytes_total/elapsed, matching §4.3 step 8's
// progress callback contract.
func (p *DownloadProgress) Update(done, total int64, _ time.Duration) {
	if total > 0 && int64(p.bar.Total()) != total {
		p.bar.SetTotal(total)
	}
	p.bar.SetCurrent(done)
}

func (p *DownloadProgress) Start() { p.bar.Start() }
func (p *DownloadProgress) Finish() {
	p.bar.Finish()
}

// FormatRate renders a bytes-per-second figure the way CLI summaries do.
func FormatRate(bytesDone int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-"
	}
	rate := float64(bytesDone) / elapsed.Seconds()
	return fmt.Sprintf("%s/s", humanize.Bytes(uint64(rate)))
}

// FormatBytes renders a byte count the way listings/status summaries do.
func FormatBytes(n int64) string {
	return humanize.Bytes(uint64(n))
}
