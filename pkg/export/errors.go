package export

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies where in the pipeline a failure happened. The kind, not the
// underlying error text, drives the retry decision and the metrics label.
type Kind string

const (
	KindDecode      Kind = "decode"
	KindFetch       Kind = "fetch"
	KindRender      Kind = "render"
	KindStore       Kind = "store"
	KindNotify      Kind = "notify"
	KindStatusWrite Kind = "status_write"
	KindTimeout     Kind = "timeout"
)

// Error is a classified pipeline failure. Transient errors are eligible for
// bounded retry; permanent ones go straight to a terminal FAILED status.
type Error struct {
	Kind      Kind
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("%s error (%s): %v", e.Kind, class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transient(kind Kind, err error) error {
	return &Error{Kind: kind, Transient: true, Err: err}
}

func Permanent(kind Kind, err error) error {
	return &Error{Kind: kind, Transient: false, Err: err}
}

// IsTransient reports whether err should be retried. Unclassified errors are
// treated as transient so an unexpected infrastructure failure gets the
// benefit of the bounded retry rather than failing a request outright.
func IsTransient(err error) bool {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Transient
	}
	return true
}

// KindOf extracts the classification of err, defaulting to the supplied kind
// for errors the leaves returned unwrapped.
func KindOf(err error, fallback Kind) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return fallback
}

// classify wraps a raw leaf error, preserving an existing classification and
// converting context expiry into a timeout.
func classify(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Permanent(KindTimeout, err)
	}
	return Transient(kind, err)
}
