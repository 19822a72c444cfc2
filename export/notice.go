package export

import (
	"context"
	"errors"
	"sync"

	"github.com/ByLCY/folio/logger"
)

// Level of a user-facing notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is the single user-visible message produced by one export run.
type Notice struct {
	ExportID string `json:"exportId"`
	Level    Level  `json:"level"`
	Kind     Kind   `json:"kind,omitempty"`
	Op       string `json:"op"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	Location string `json:"location,omitempty"`
	Err      error  `json:"-"`
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices to the context logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notice) {
	log := logger.FromContext(ctx).WithComponent("notice")
	if n.Level == LevelError {
		log.Warnw(n.Title, "kind", n.Kind, "op", n.Op, "message", n.Message)
		return
	}
	log.Infow(n.Title, "op", n.Op, "filename", n.Filename, "location", n.Location)
}

// Recorder keeps every notice, for tests and the HTTP layer.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func failureNotice(id string, e *Error) Notice {
	n := Notice{ExportID: id, Level: LevelError, Kind: e.Kind, Op: e.Op, Err: e}
	switch e.Kind {
	case KindPopupBlocked:
		n.Title = "Print window blocked"
		n.Message = "The print window could not be opened. Allow pop-ups for this site and try again."
	case KindSerialization:
		n.Title = "Export failed"
		n.Message = "The file could not be written: " + rootCause(e.Err).Error()
	default:
		n.Title = "Capture failed"
		n.Message = "The report could not be captured: " + rootCause(e.Err).Error()
	}
	return n
}

func successNotice(id, op, filename, location string) Notice {
	return Notice{
		ExportID: id,
		Level:    LevelSuccess,
		Op:       op,
		Title:    "Export ready",
		Message:  filename + " was saved.",
		Filename: filename,
		Location: location,
	}
}

// rootCause returns the innermost sentinel-bearing error for display.
func rootCause(err error) error {
	for _, s := range []error{ErrDetached, ErrHidden, ErrZeroHeight, ErrZeroWidth, ErrMarkerOutside, ErrNoTarget} {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}
