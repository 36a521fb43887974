package downloader

import (
	"context"
	"errors"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloadcfg"
)

var (
	// ErrNotFound is returned when the downloader has no running job for a handle.
	ErrNotFound = errors.New("downloader job not found")
	// ErrUnexpectedExit marks a backend process that ended without an explicit success signal.
	ErrUnexpectedExit = errors.New("backend exited unexpectedly")
	// ErrNotPausable is returned when pause or resume is requested for a kind that forbids it.
	ErrNotPausable = errors.New("operation kind cannot be paused")
	// ErrAlreadyRunning is returned when Start is called twice for the same handle.
	ErrAlreadyRunning = errors.New("job already running")
)

// Job identifies one long-running backend operation.
type Job struct {
	HandleID string
	TitleID  string
	Kind     data.OperationKind
	Options  downloadcfg.StartOptions
}

// Downloader drives external installer operations. Implementations report
// asynchronously through a Reporter and must emit exactly one terminal event
// (Succeeded, Failed or Cancelled) per started job.
type Downloader interface {
	Start(ctx context.Context, job *Job) error
	Pause(ctx context.Context, job *Job) error
	Resume(ctx context.Context, job *Job) error
	Cancel(ctx context.Context, job *Job) error
}
