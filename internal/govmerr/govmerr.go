// Package govmerr implements the closed error taxonomy from the engine's
// error handling design: every failure the engine returns carries one of a
// fixed set of Kinds, so callers discriminate on the kind instead of
// matching error message strings.
package govmerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure. The zero value is never returned by
// the engine; it exists only so a missing Kind is easy to spot in tests.
type Kind int

const (
	_ Kind = iota
	// Input errors are reported to the user and are never retried:
	// VersionNotFound, UnsupportedPlatform, VersionNotInstalled,
	// AlreadyInstalled, ActiveVersion.
	Input
	// Transport errors are retried inside the downloader up to its policy
	// bound and surface only after the retries are exhausted.
	Transport
	// HTTPStatusFatal covers 4xx responses (other than 408/429), which
	// surface immediately without a retry.
	HTTPStatusFatal
	// Integrity errors (checksum mismatch, corrupt archive, path
	// traversal, unexpected layout) are never retried automatically; any
	// cached archive backing them is invalidated.
	Integrity
	// Concurrency errors (the root lock is held elsewhere) are retried
	// with bounded backoff for a short grace period, then surface.
	Concurrency
	// IO covers any other filesystem failure: permission, no space,
	// cross-device rename.
	IO
	// Cancelled means the caller's context was cancelled mid-operation.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Transport:
		return "transport"
	case HTTPStatusFatal:
		return "http_status"
	case Integrity:
		return "integrity"
	case Concurrency:
		return "concurrency"
	case IO:
		return "io"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the engine's one error shape. Subject names the offending
// version, URL, or path so the CLI can print "naming the kind and the
// offending subject" per the error handling design, without the caller
// needing to parse the message.
type Error struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind wrapping cause, naming subject.
func New(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: cause}
}

// Newf constructs an Error from a formatted message instead of a wrapped
// cause, for cases with no underlying error value (e.g. a validation
// failure detected locally).
func Newf(kind Kind, subject, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Is reports whether the first *Error in err's chain has the given Kind.
// Kinds of further *Error values wrapped beneath it are not inspected.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or false if err isn't a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinel errors named directly in §7/§8, used with errors.Is.
var (
	ErrVersionNotFound     = errors.New("version not found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrVersionNotInstalled = errors.New("version not installed")
	ErrAlreadyInstalled    = errors.New("version already installed")
	ErrActiveVersion       = errors.New("version is active")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrArchiveCorrupt      = errors.New("archive corrupt")
	ErrPathTraversal       = errors.New("path traversal attempt")
	ErrUnexpectedLayout    = errors.New("unexpected archive layout")
	ErrLockHeld            = errors.New("lock held")
	ErrCancelled           = errors.New("operation cancelled")
)
