package legendarydl

import (
	"context"
	"fmt"

	"github.com/tinoosan/gamedock/internal/downloadcfg"
	"github.com/tinoosan/gamedock/internal/downloader"
	"github.com/tinoosan/gamedock/internal/legendary"
	"github.com/tinoosan/gamedock/internal/metrics"
)

// Start spawns the CLI process for job and begins watching it.
func (a *Adapter) Start(ctx context.Context, job *downloader.Job) error {
	j := *job
	j.Options.Tags = downloadcfg.NormalizeTags(j.Options.Tags)
	if j.Kind == "" || j.TitleID == "" || j.HandleID == "" {
		return fmt.Errorf("start: incomplete job %+v", j)
	}

	a.mu.Lock()
	if _, ok := a.jobs[j.HandleID]; ok {
		a.mu.Unlock()
		return downloader.ErrAlreadyRunning
	}
	r := &run{job: j}
	a.jobs[j.HandleID] = r
	metrics.ActiveDownloads.Set(float64(len(a.jobs)))
	a.mu.Unlock()

	proc, err := a.spawn(ctx, r)
	if err != nil {
		a.forget(r)
		return err
	}
	if proc == nil {
		return nil
	}
	a.report(downloader.Event{HandleID: j.HandleID, TitleID: j.TitleID, Type: downloader.EventStart})
	go a.watch(r, proc)
	return nil
}

// Pause stops the process without ending the job.
func (a *Adapter) Pause(ctx context.Context, job *downloader.Job) error {
	if !job.Kind.Pausable() {
		return downloader.ErrNotPausable
	}
	a.mu.Lock()
	r, ok := a.jobs[job.HandleID]
	if !ok {
		a.mu.Unlock()
		return downloader.ErrNotFound
	}
	if r.paused || r.stopping {
		a.mu.Unlock()
		return nil
	}
	r.paused = true
	proc := r.proc
	if proc != nil {
		r.interrupted = true
	}
	a.mu.Unlock()

	if proc == nil {
		return nil
	}
	return proc.Interrupt()
}

// Resume starts a fresh process for a paused job.
func (a *Adapter) Resume(ctx context.Context, job *downloader.Job) error {
	if !job.Kind.Pausable() {
		return downloader.ErrNotPausable
	}
	a.mu.Lock()
	r, ok := a.jobs[job.HandleID]
	if !ok {
		a.mu.Unlock()
		return downloader.ErrNotFound
	}
	if !r.paused || r.stopping {
		a.mu.Unlock()
		return nil
	}
	r.paused = false
	if r.proc != nil || r.spawning {
		// the paused process is still exiting and its watcher restarts it, or
		// a process is starting and will run on
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	return a.restart(ctx, r)
}

// Cancel kills the job's process. The Cancelled event is emitted by the
// watcher once the process is gone, or right away when nothing is running.
func (a *Adapter) Cancel(ctx context.Context, job *downloader.Job) error {
	a.mu.Lock()
	r, ok := a.jobs[job.HandleID]
	if !ok || r.stopping {
		a.mu.Unlock()
		return downloader.ErrNotFound
	}
	r.stopping = true
	proc := r.proc
	if proc == nil {
		a.mu.Unlock()
		a.forget(r)
		a.report(downloader.Event{HandleID: r.job.HandleID, TitleID: r.job.TitleID, Type: downloader.EventCancelled})
		return nil
	}
	a.mu.Unlock()
	return proc.Kill()
}

// restart spawns a new process for a job whose previous one exited on pause.
func (a *Adapter) restart(ctx context.Context, r *run) error {
	proc, err := a.spawn(ctx, r)
	if err != nil {
		a.mu.Lock()
		r.paused = true
		a.mu.Unlock()
		return err
	}
	if proc == nil {
		return nil
	}
	a.report(downloader.Event{HandleID: r.job.HandleID, TitleID: r.job.TitleID, Type: downloader.EventResumed})
	go a.watch(r, proc)
	return nil
}

// spawn starts a process for r. It returns a nil process when the job was
// cancelled while the process was starting; that process is killed and
// reaped without reporting. A pause that arrived meanwhile interrupts the new
// process, so its watcher reports the job paused.
func (a *Adapter) spawn(ctx context.Context, r *run) (*legendary.Process, error) {
	a.mu.Lock()
	r.spawning = true
	a.mu.Unlock()
	// process lifetime is owned by the adapter, not by the caller's request
	proc, err := a.cl.Spawn(context.WithoutCancel(ctx), args(r.job)...)
	a.mu.Lock()
	r.spawning = false
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	if r.stopping {
		a.mu.Unlock()
		_ = proc.Kill()
		go drain(proc)
		return nil, nil
	}
	r.proc = proc
	pause := r.paused
	if pause {
		r.interrupted = true
	}
	a.mu.Unlock()
	if pause {
		if err := proc.Interrupt(); err != nil {
			a.log.Warn("interrupt after start failed", "handle", r.job.HandleID, "err", err)
		}
	}
	return proc, nil
}

// forget drops the job from the tracking map.
func (a *Adapter) forget(r *run) {
	a.mu.Lock()
	if cur, ok := a.jobs[r.job.HandleID]; ok && cur == r {
		delete(a.jobs, r.job.HandleID)
	}
	metrics.ActiveDownloads.Set(float64(len(a.jobs)))
	a.mu.Unlock()
}

func (a *Adapter) report(e downloader.Event) {
	if a.rep != nil {
		a.rep.Report(e)
	}
}

func drain(p *legendary.Process) {
	for range p.Lines() {
	}
	_, _ = p.Wait()
}
