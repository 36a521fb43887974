package legendarydl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tinoosan/gamedock/internal/downloader"
	"github.com/tinoosan/gamedock/internal/legendary"
)

var (
	progressRe   = regexp.MustCompile(`Progress: (\d+(?:\.\d+)?)%`)
	downloadedRe = regexp.MustCompile(`Downloaded: (\d+(?:\.\d+)?) MiB`)
)

// watch consumes one process's output and decides what its exit means.
func (a *Adapter) watch(r *run, proc *legendary.Process) {
	lg := a.log.With("operation_id", uuid.NewString(), "handle", r.job.HandleID, "title", r.job.TitleID, "kind", r.job.Kind)

	var (
		finished bool
		lastErr  string
		prog     downloader.Progress
	)
	for line := range proc.Lines() {
		if p, ok := parseProgress(line, prog); ok {
			prog = p
			pc := p
			a.report(downloader.Event{HandleID: r.job.HandleID, TitleID: r.job.TitleID, Type: downloader.EventProgress, Progress: &pc})
		}
		if isCompletion(r, line) {
			finished = true
		}
		if msg, ok := legendary.ErrorMessage(line); ok {
			lastErr = msg
		}
	}
	code, werr := proc.Wait()

	a.mu.Lock()
	if r.proc != proc {
		a.mu.Unlock()
		return
	}
	r.proc = nil
	ev := downloader.Event{HandleID: r.job.HandleID, TitleID: r.job.TitleID}
	switch {
	case finished && code == 0:
		ev.Type = downloader.EventSucceeded
	case r.stopping:
		ev.Type = downloader.EventCancelled
	case r.interrupted:
		r.interrupted = false
		if r.paused {
			a.mu.Unlock()
			lg.Info("backend paused", "exit", code)
			a.report(downloader.Event{HandleID: r.job.HandleID, TitleID: r.job.TitleID, Type: downloader.EventPaused})
			return
		}
		a.mu.Unlock()
		lg.Info("resuming after pause")
		if err := a.restart(context.Background(), r); err != nil {
			lg.Error("restart after pause", "err", err)
			a.fail(r, err.Error())
		}
		return
	case code != 0:
		ev.Type = downloader.EventFailed
		ev.Reason = lastErr
		if ev.Reason == "" {
			ev.Reason = fmt.Sprintf("exit status %d", code)
		}
	default:
		ev.Type = downloader.EventFailed
		ev.Reason = downloader.ErrUnexpectedExit.Error()
		if lastErr != "" {
			ev.Reason += ": " + lastErr
		}
	}
	a.mu.Unlock()
	a.forget(r)

	if ev.Type == downloader.EventFailed {
		lg.Warn("backend failed", "exit", code, "reason", ev.Reason, "err", werr)
	} else {
		lg.Info("backend finished", "type", ev.Type, "exit", code)
	}
	a.report(ev)
}

// fail ends a job that could not be restarted.
func (a *Adapter) fail(r *run, reason string) {
	a.mu.Lock()
	if r.stopping || r.proc != nil {
		a.mu.Unlock()
		return
	}
	r.stopping = true
	a.mu.Unlock()
	a.forget(r)
	a.report(downloader.Event{HandleID: r.job.HandleID, TitleID: r.job.TitleID, Type: downloader.EventFailed, Reason: reason})
}

func isCompletion(r *run, line string) bool {
	for _, m := range completionMarkers[r.job.Kind] {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// parseProgress folds a DLManager status line into the previous progress.
func parseProgress(line string, prev downloader.Progress) (downloader.Progress, bool) {
	if m := progressRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			prev.Percent = v
			return prev, true
		}
	}
	if m := downloadedRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			prev.Downloaded = int64(v * 1024 * 1024)
			return prev, true
		}
	}
	return prev, false
}
