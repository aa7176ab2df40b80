package style

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner is the narrow interface the CLI drives indeterminate progress
// through (manifest fetch, archive extraction) — small enough that tests
// can swap in a line-oriented stand-in instead of a terminal spinner.
type Spinner interface {
	SetSuffix(suffix string)
	SetFinalMSG(finalMSG string)
	Start()
	Stop()
}

// LineSpinner is a Spinner implementation for testing and non-TTY output
// that prints each update on its own line instead of redrawing in place.
type LineSpinner struct {
	ID       string
	mu       sync.Mutex
	Suffix   string
	FinalMSG string
	Writer   io.Writer
	active   bool
}

func NewLineSpinner(id string, w io.Writer) *LineSpinner {
	return &LineSpinner{ID: id, Writer: w}
}

func (s *LineSpinner) SetSuffix(suffix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if suffix == s.Suffix {
		return
	}
	s.Suffix = suffix
	if s.active {
		fmt.Fprintf(s.Writer, "[%s] %s\n", s.ID, suffix)
	}
}

func (s *LineSpinner) SetFinalMSG(finalMSG string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinalMSG = finalMSG
}

func (s *LineSpinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	fmt.Fprintf(s.Writer, "[%s] %s\n", s.ID, s.Suffix)
}

func (s *LineSpinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	fmt.Fprintf(s.Writer, "[%s done] %s\n", s.ID, s.FinalMSG)
}

// TerminalSpinner wraps briandowns/spinner for real TTY output.
type TerminalSpinner struct {
	spinner *spinner.Spinner
}

func NewTerminalSpinner(cs []string, d time.Duration, options ...spinner.Option) *TerminalSpinner {
	return &TerminalSpinner{spinner: spinner.New(cs, d, options...)}
}

func (s *TerminalSpinner) SetSuffix(suffix string)   { s.spinner.Suffix = suffix }
func (s *TerminalSpinner) SetFinalMSG(finalMSG string) { s.spinner.FinalMSG = finalMSG }
func (s *TerminalSpinner) Start()                    { s.spinner.Start() }
func (s *TerminalSpinner) Stop()                     { s.spinner.Stop() }

// SpinnerManager hands out Spinners, switching to LineSpinner under
// GOVM_TEST=true so tests get deterministic, line-buffered output instead
// of an in-place terminal redraw.
type SpinnerManager struct {
	mu      sync.Mutex
	writer  io.Writer
	counter int
}

func NewSpinnerManager(w io.Writer) *SpinnerManager {
	return &SpinnerManager{writer: w}
}

func (m *SpinnerManager) Start() Spinner {
	m.mu.Lock()
	defer func() {
		m.counter++
		m.mu.Unlock()
	}()

	if os.Getenv("GOVM_TEST") == "true" {
		return NewLineSpinner(fmt.Sprintf("spinner-%d", m.counter), m.writer)
	}

	return NewTerminalSpinner(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(m.writer))
}
