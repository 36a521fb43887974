package lifecycle

import (
	"context"
	"path/filepath"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloader"
	"github.com/tinoosan/gamedock/internal/metrics"
)

func (m *Manager) handle(e downloader.Event) {
	metrics.DownloadEvents.WithLabelValues(eventLabel(e.Type)).Inc()

	m.mu.Lock()
	h, ok := m.handles[e.TitleID]
	if !ok || h.id != e.HandleID {
		m.mu.Unlock()
		if e.Type.Terminal() {
			m.log.Info("ignoring stale terminal event", "title", e.TitleID, "handle", e.HandleID, "type", e.Type)
		}
		return
	}
	switch e.Type {
	case downloader.EventProgress:
		if e.Progress != nil {
			p := *e.Progress
			h.progress = &p
		}
		snap := snapshotOf(h)
		m.mu.Unlock()
		m.notify(Update{TitleID: e.TitleID, Event: e.Type, Handle: &snap})
		return
	case downloader.EventStart, downloader.EventPaused, downloader.EventResumed:
		m.mu.Unlock()
		m.log.Debug("backend event", "title", e.TitleID, "handle", e.HandleID, "type", e.Type)
		return
	case downloader.EventSucceeded:
		m.mu.Unlock()
		m.finish(h, Outcome{Result: Succeeded})
	case downloader.EventFailed:
		m.mu.Unlock()
		m.finish(h, Outcome{Result: Failed, Reason: e.Reason})
	case downloader.EventCancelled:
		m.mu.Unlock()
		m.finish(h, Outcome{Result: Cancelled})
	default:
		m.mu.Unlock()
		m.log.Warn("unknown event type", "title", e.TitleID, "type", e.Type)
	}
}

// finish ends h with out. Only the first caller wins; it applies the outcome
// to the catalog, fires the callback and then detaches the handle.
func (m *Manager) finish(h *handle, out Outcome) bool {
	if !h.terminated.CompareAndSwap(false, true) {
		return false
	}
	out.TitleID, out.Kind = h.titleID, h.kind
	log := m.log.With("title", h.titleID, "handle", h.id, "kind", h.kind)

	if out.Result == Succeeded {
		if err := m.apply(h); err != nil {
			log.Error("apply outcome", "err", err)
		}
	}
	switch out.Result {
	case Failed:
		log.Warn("operation failed", "reason", out.Reason)
	default:
		log.Info("operation finished", "result", out.Result)
	}

	cb := h.callback
	h.callback = nil
	if cb != nil {
		cb(out)
	}

	m.mu.Lock()
	if cur, ok := m.handles[h.titleID]; ok && cur == h {
		delete(m.handles, h.titleID)
	}
	m.mu.Unlock()
	m.notify(Update{TitleID: h.titleID, Event: terminalEvent(out.Result), Reason: out.Reason})
	return true
}

// apply records a successful operation in the catalog.
func (m *Manager) apply(h *handle) error {
	_, err := m.repo.Update(context.Background(), h.titleID, func(t *data.Title) error {
		switch h.kind {
		case data.KindInstall, data.KindUpdate:
			t.Status = data.StatusInstalled
			t.UpdateAvailable = false
		case data.KindRepair:
			t.Status = data.StatusInstalled
		case data.KindMove:
			t.InstallPath = movedPath(t.InstallPath, h.opts.Destination)
		}
		return nil
	})
	return err
}

func terminalEvent(r Result) downloader.EventType {
	switch r {
	case Succeeded:
		return downloader.EventSucceeded
	case Failed:
		return downloader.EventFailed
	}
	return downloader.EventCancelled
}

// movedPath is where a move to dest leaves an install that lived at old. The
// install folder keeps its name under the new base directory.
func movedPath(old, dest string) string {
	if old == "" {
		return dest
	}
	return filepath.Join(dest, filepath.Base(old))
}
