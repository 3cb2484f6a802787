package media

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies why a download attempt failed.
type FailureKind int

const (
	// FailUnknown is an unclassified error, logged with full context.
	FailUnknown FailureKind = iota
	// FailNotFound means the search returned no usable candidates.
	FailNotFound
	// FailTimeout means a network or extraction deadline expired.
	FailTimeout
	// FailBlocked is an explicit upstream rejection (429, captcha, login
	// wall). Retrying wastes quota; only a credential refresh helps.
	FailBlocked
	// FailInvalidMedia means the fetched file failed sanity checks.
	FailInvalidMedia
	// FailStorage is a cache I/O error. It never escapes the cache layer.
	FailStorage
)

func (k FailureKind) String() string {
	switch k {
	case FailNotFound:
		return "not found"
	case FailTimeout:
		return "timeout"
	case FailBlocked:
		return "blocked"
	case FailInvalidMedia:
		return "invalid media"
	case FailStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Failure is the typed error carried through the download path.
type Failure struct {
	Kind   FailureKind
	Source Source
	Msg    string
	Err    error
}

func (f *Failure) Error() string {
	msg := f.Msg
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Source != "" {
		return fmt.Sprintf("%s: %s: %s", f.Source, f.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", f.Kind, msg)
}

func (f *Failure) Unwrap() error { return f.Err }

// Failf builds a classified failure.
func Failf(kind FailureKind, src Source, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Source: src, Msg: fmt.Sprintf(format, args...)}
}

// WrapFailure classifies an underlying error.
func WrapFailure(kind FailureKind, src Source, err error) *Failure {
	return &Failure{Kind: kind, Source: src, Err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailUnknown
}

// Retryable reports whether another attempt against the same source can
// succeed. Blocked sources must not be retried in the same request.
func Retryable(err error) bool {
	switch KindOf(err) {
	case FailBlocked, FailNotFound, FailInvalidMedia:
		return false
	default:
		return true
	}
}

// blockedMarkers are the upstream strings that signal an explicit block
// rather than a transient failure.
var blockedMarkers = []string{
	"429",
	"too many requests",
	"captcha",
	"blocked",
	"sign in to confirm",
	"login required",
}

// LooksBlocked reports whether raw upstream error text carries a block signal.
func LooksBlocked(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
