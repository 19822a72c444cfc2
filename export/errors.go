package export

import (
	"errors"
	"fmt"

	"github.com/ByLCY/folio/printdoc"
)

var (
	// ErrBusy is returned when a trigger fires while its previous export is
	// still running. The second invocation is dropped.
	ErrBusy = errors.New("export: already in progress")
	// ErrDetached is returned for a capture root that is no longer attached.
	ErrDetached = errors.New("export: capture target is detached")
	// ErrHidden is returned for a capture root that is not displayed.
	ErrHidden = errors.New("export: capture target is hidden")
	// ErrZeroHeight is returned for a capture root with no height.
	ErrZeroHeight = errors.New("export: capture target has zero height")
	// ErrZeroWidth is returned for a capture root with no width.
	ErrZeroWidth = errors.New("export: capture target has zero width")
	// ErrMarkerOutside is returned when a break marker is not inside the root.
	ErrMarkerOutside = errors.New("export: break marker is outside the capture target")
	// ErrNoTarget is returned when a request has no capture root.
	ErrNoTarget = errors.New("export: no capture target")
	// ErrPopupBlocked is the print failure when no print context can be opened.
	ErrPopupBlocked = printdoc.ErrPopupBlocked
)

// Kind classifies a failed export.
type Kind string

const (
	KindCapture       Kind = "capture"
	KindSerialization Kind = "serialization"
	KindPopupBlocked  Kind = "popup_blocked"
)

// Error is a classified export failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CaptureError wraps a failure to capture or rasterize the target.
func CaptureError(op string, err error) *Error {
	return &Error{Kind: KindCapture, Op: op, Err: err}
}

// SerializationError wraps a failure to encode or save the output file.
func SerializationError(op string, err error) *Error {
	return &Error{Kind: KindSerialization, Op: op, Err: err}
}

// PopupBlockedError wraps a print context that could not be opened.
func PopupBlockedError(op string, err error) *Error {
	return &Error{Kind: KindPopupBlocked, Op: op, Err: err}
}

// Classify returns err as an *Error, wrapping it with fallback when it is not
// already classified. Popup failures are recognised anywhere in the chain.
func Classify(op string, err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrPopupBlocked) {
		return PopupBlockedError(op, err)
	}
	return &Error{Kind: fallback, Op: op, Err: err}
}
