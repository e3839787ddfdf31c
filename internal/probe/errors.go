package probe

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by a probe matches exactly one of
// these with errors.Is.
var (
	ErrResolution         = errors.New("dns resolution failed")
	ErrConnect            = errors.New("connection failed")
	ErrHandshake          = errors.New("tls handshake failed")
	ErrCertificateMissing = errors.New("certificate not found")
)

// Error is a failed probe attempt against Host.
type Error struct {
	Kind error
	Host string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Host, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Host, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, host string, err error) *Error {
	return &Error{Kind: kind, Host: host, Err: err}
}

// KindOf returns the failure kind of err, or nil when err did not come from
// a probe.
func KindOf(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return nil
}

// KindName returns a short stable label for the failure kind of err.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrResolution:
		return "dns"
	case ErrConnect:
		return "connect"
	case ErrHandshake:
		return "handshake"
	case ErrCertificateMissing:
		return "certificate_missing"
	default:
		return "other"
	}
}
