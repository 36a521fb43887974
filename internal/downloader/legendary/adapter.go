package legendarydl

import (
	"log/slog"
	"sync"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloader"
	"github.com/tinoosan/gamedock/internal/legendary"
)

// Adapter implements the Downloader interface on top of the legendary CLI.
// Each job is one CLI process; pausing stops the process and resuming starts
// it again, relying on legendary's own resume file.
type Adapter struct {
	cl  *legendary.Client
	rep downloader.Reporter

	mu   sync.Mutex
	jobs map[string]*run
	log  *slog.Logger
}

// run tracks the process currently serving a job.
type run struct {
	job  downloader.Job
	proc *legendary.Process
	// paused is the desired state; interrupted marks a process stopped by Pause
	// that has not been reaped yet. spawning is set while a process starts.
	paused      bool
	interrupted bool
	stopping    bool
	spawning    bool
}

// NewAdapter creates a new Adapter using the provided client and reporter.
func NewAdapter(cl *legendary.Client, rep downloader.Reporter) *Adapter {
	return &Adapter{cl: cl, rep: rep, jobs: make(map[string]*run), log: slog.Default()}
}

var _ downloader.Downloader = (*Adapter)(nil)

// SetLogger allows wiring a shared application logger into the adapter.
func (a *Adapter) SetLogger(l *slog.Logger) {
	if l != nil {
		a.log = l
	}
}

// completionMarkers are the lines legendary prints once an operation has
// really finished. A zero exit without one of them is a failure.
var completionMarkers = map[data.OperationKind][]string{
	data.KindInstall: {"Finished installation process", "is already installed"},
	data.KindUpdate:  {"Finished installation process", "is already up to date", "No updates available"},
	data.KindRepair:  {"Finished installation process", "Verification finished successfully"},
	data.KindMove:    {"Finished! Game has been moved", "Finished moving"},
}

// args builds the CLI invocation for a job.
func args(job downloader.Job) []string {
	o := job.Options
	switch job.Kind {
	case data.KindUpdate:
		return []string{"update", job.TitleID, "-y"}
	case data.KindRepair:
		return []string{"repair", job.TitleID, "-y"}
	case data.KindMove:
		return []string{"move", job.TitleID, o.Destination, "-y"}
	}
	out := []string{"install", job.TitleID, "-y"}
	if o.BaseDir != "" {
		out = append(out, "--base-path", o.BaseDir)
	}
	if len(o.Tags) == 0 {
		return append(out, "--skip-sdl")
	}
	for _, t := range o.Tags {
		out = append(out, "--install-tag", t)
	}
	return out
}
