// Package bridgeerr gives the tool surface a small, switchable error
// taxonomy instead of opaque fmt.Errorf chains, so a failure can be
// translated into the right hint without string-matching messages.
package bridgeerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the tool-response envelope.
type Kind string

const (
	KindConfig      Kind = "config_error"
	KindUnreachable Kind = "browser_unreachable"
	KindNotFound    Kind = "target_not_found"
	KindSessionLost Kind = "session_lost"
	KindEval        Kind = "evaluation_exception"
	KindBadRequest  Kind = "bad_request"
	KindQuota       Kind = "quota_exceeded"
	// KindResourceNotFound is spec §7's NotFound: an unknown annotation or
	// managed-process id, distinct from KindNotFound (TargetNotFound, a
	// browser page target that never resolved).
	KindResourceNotFound Kind = "not_found"
	KindIO          Kind = "io_error"
)

// Error wraps an underlying cause with a Kind the caller can switch on.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindIO for unrecognized
// errors (transient socket/child-process failures per spec §7).
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindIO
}
