package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloadcfg"
	"github.com/tinoosan/gamedock/internal/downloader"
)

// RequestInstall starts installing a title that is not installed. tags is
// the resolved install-tag list and may be empty.
func (m *Manager) RequestInstall(ctx context.Context, titleID string, tags []string, baseDir string, cb Callback) error {
	opts := downloadcfg.StartOptions{Tags: downloadcfg.NormalizeTags(tags), BaseDir: baseDir}
	return m.request(ctx, titleID, data.KindInstall, opts, cb)
}

// RequestUpdate starts updating an installed title with a pending update.
func (m *Manager) RequestUpdate(ctx context.Context, titleID string, cb Callback) error {
	return m.request(ctx, titleID, data.KindUpdate, downloadcfg.StartOptions{}, cb)
}

// RequestRepair verifies and repairs an installed title.
func (m *Manager) RequestRepair(ctx context.Context, titleID string, cb Callback) error {
	return m.request(ctx, titleID, data.KindRepair, downloadcfg.StartOptions{}, cb)
}

// RequestMove relocates an installed title to dest.
func (m *Manager) RequestMove(ctx context.Context, titleID, dest string, cb Callback) error {
	if dest == "" {
		return fmt.Errorf("move %s: destination is required", titleID)
	}
	return m.request(ctx, titleID, data.KindMove, downloadcfg.StartOptions{Destination: dest}, cb)
}

func allowed(t *data.Title, kind data.OperationKind) bool {
	switch kind {
	case data.KindInstall:
		return !t.Installed()
	case data.KindUpdate:
		return t.HasUpdate()
	default:
		return t.Installed()
	}
}

func (m *Manager) request(ctx context.Context, titleID string, kind data.OperationKind, opts downloadcfg.StartOptions, cb Callback) error {
	t, err := m.repo.Get(ctx, titleID)
	if err != nil {
		return err
	}
	if !allowed(t, kind) {
		return fmt.Errorf("%w: %s on %s title %s", ErrInvalidState, kind, t.Status, titleID)
	}

	h := &handle{
		id:       uuid.NewString(),
		titleID:  titleID,
		kind:     kind,
		tags:     opts.Tags,
		opts:     opts,
		active:   kind.Pausable(),
		callback: cb,
	}
	m.mu.Lock()
	if _, ok := m.handles[titleID]; ok {
		m.mu.Unlock()
		return ErrHandleExists
	}
	m.handles[titleID] = h
	m.mu.Unlock()

	log := m.log.With("title", titleID, "handle", h.id, "kind", kind)
	m.notify(Update{TitleID: titleID, Event: downloader.EventStart, Handle: ptr(snapshotLocked(m, h))})
	if err := m.dl.Start(ctx, h.job()); err != nil {
		log.Error("start operation", "err", err)
		m.finish(h, Outcome{Result: Failed, Reason: err.Error()})
		return err
	}
	if h.terminated.Load() {
		// stopped while the backend was starting
		if err := m.dl.Cancel(ctx, h.job()); err != nil && !errors.Is(err, downloader.ErrNotFound) {
			log.Error("cancel operation", "err", err)
		}
		return nil
	}
	log.Info("operation started", "tags", opts.Tags)
	return nil
}

// Pause suspends an active install or update. Titles without a handle and
// kinds that cannot pause are ignored.
func (m *Manager) Pause(ctx context.Context, titleID string) error {
	return m.setActive(ctx, titleID, false)
}

// Resume continues a paused install or update. Titles without a handle and
// kinds that cannot pause are ignored.
func (m *Manager) Resume(ctx context.Context, titleID string) error {
	return m.setActive(ctx, titleID, true)
}

func (m *Manager) setActive(ctx context.Context, titleID string, active bool) error {
	m.mu.Lock()
	h, ok := m.handles[titleID]
	switch {
	case !ok:
		m.mu.Unlock()
		m.log.Debug("ignoring control", "title", titleID, "err", ErrNoHandle)
		return nil
	case !h.kind.Pausable():
		m.mu.Unlock()
		m.log.Debug("ignoring control", "title", titleID, "err", downloader.ErrNotPausable, "kind", h.kind)
		return nil
	case h.terminated.Load() || h.active == active:
		m.mu.Unlock()
		return nil
	}
	h.active = active
	m.mu.Unlock()

	var err error
	if active {
		err = m.dl.Resume(ctx, h.job())
	} else {
		err = m.dl.Pause(ctx, h.job())
	}
	if err != nil {
		if errors.Is(err, downloader.ErrNotFound) {
			// the job already ended; its terminal event detaches the handle
			return nil
		}
		m.mu.Lock()
		h.active = !active
		m.mu.Unlock()
		return fmt.Errorf("set active=%v for %s: %w", active, titleID, err)
	}
	ev := downloader.EventPaused
	if active {
		ev = downloader.EventResumed
	}
	m.notify(Update{TitleID: titleID, Event: ev, Handle: ptr(snapshotLocked(m, h))})
	return nil
}

// Stop cancels the title's operation. It is a no-op when the title has no
// handle or the handle has already terminated. Cancelling an update leaves
// the previous installation in place.
func (m *Manager) Stop(ctx context.Context, titleID string) {
	m.mu.Lock()
	h, ok := m.handles[titleID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if !m.finish(h, Outcome{Result: Cancelled}) {
		return
	}
	if err := m.dl.Cancel(ctx, h.job()); err != nil && !errors.Is(err, downloader.ErrNotFound) {
		m.log.Error("cancel operation", "title", titleID, "handle", h.id, "err", err)
	}
}

// StopAll cancels every live operation.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Stop(ctx, id)
	}
}

func snapshotLocked(m *Manager, h *handle) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotOf(h)
}

func ptr[T any](v T) *T { return &v }
