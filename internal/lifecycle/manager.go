// Package lifecycle owns the per-title download handles and applies backend
// outcomes to the catalog.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/downloadcfg"
	"github.com/tinoosan/gamedock/internal/downloader"
	"github.com/tinoosan/gamedock/internal/repo"
)

var (
	// ErrHandleExists is returned when a title already has a live handle.
	ErrHandleExists = errors.New("title already has an active operation")
	// ErrInvalidState is returned when the title's status does not allow the requested operation.
	ErrInvalidState = errors.New("operation not allowed in current title state")
	// ErrNoHandle is logged when a control targets a title without a handle. It is never returned.
	ErrNoHandle = errors.New("title has no active operation")
	// ErrMetadataFetch wraps failures of the out-of-band size lookup.
	ErrMetadataFetch = errors.New("metadata fetch failed")
	// ErrStaleResult is reported when a size lookup was superseded before it finished.
	ErrStaleResult = errors.New("result superseded")
)

type Result string

const (
	Succeeded Result = "Succeeded"
	Failed    Result = "Failed"
	Cancelled Result = "Cancelled"
)

// Outcome is the terminal result delivered to a handle's callback.
type Outcome struct {
	TitleID string
	Kind    data.OperationKind
	Result  Result
	// Reason is set for Failed outcomes.
	Reason string
}

// Callback receives a handle's outcome. It runs on the goroutine that
// observed the outcome and must not block.
type Callback func(Outcome)

// handle is the live operation attached to a title.
type handle struct {
	id      string
	titleID string
	kind    data.OperationKind
	tags    []string
	opts    downloadcfg.StartOptions

	// guarded by Manager.mu
	active   bool
	progress *downloader.Progress

	callback   Callback
	terminated atomic.Bool
}

func (h *handle) job() *downloader.Job {
	return &downloader.Job{HandleID: h.id, TitleID: h.titleID, Kind: h.kind, Options: h.opts}
}

// Snapshot is a read-only view of a live handle.
type Snapshot struct {
	ID       string               `json:"id"`
	TitleID  string               `json:"titleId"`
	Kind     data.OperationKind   `json:"kind"`
	Active   bool                 `json:"active"`
	Tags     []string             `json:"tags"`
	Progress *downloader.Progress `json:"progress,omitempty"`
}

// Update is published to the observer after every handle change.
type Update struct {
	TitleID string               `json:"titleId"`
	Event   downloader.EventType `json:"event"`
	Reason  string               `json:"reason,omitempty"`
	// Handle is nil once the handle has been detached.
	Handle *Snapshot `json:"handle,omitempty"`
}

// SizeFunc looks up the install size of a title.
type SizeFunc func(ctx context.Context, t *data.Title) (int64, error)

// Manager keeps at most one handle per title and drives the downloader.
type Manager struct {
	repo   repo.TitleRepo
	dl     downloader.Downloader
	events <-chan downloader.Event
	log    *slog.Logger

	mu      sync.Mutex
	handles map[string]*handle
	// size lookups are tagged with the epoch and per-title generation current
	// when they started; results are dropped if either moved on.
	epoch   uint64
	gens    map[string]uint64
	sizer   SizeFunc
	limiter *rate.Limiter

	observer func(Update)

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Manager that starts operations on dl and consumes its events.
func New(log *slog.Logger, titles repo.TitleRepo, dl downloader.Downloader, events <-chan downloader.Event) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		repo:    titles,
		dl:      dl,
		events:  events,
		log:     log,
		handles: make(map[string]*handle),
		gens:    make(map[string]uint64),
	}
}

// SetSizer wires the size lookup used by FetchSize. A nil limiter means unlimited.
func (m *Manager) SetSizer(f SizeFunc, limiter *rate.Limiter) {
	m.mu.Lock()
	m.sizer, m.limiter = f, limiter
	m.mu.Unlock()
}

// SetObserver registers a function notified of every handle change.
func (m *Manager) SetObserver(f func(Update)) {
	m.mu.Lock()
	m.observer = f
	m.mu.Unlock()
}

// Run starts the event loop.
func (m *Manager) Run() {
	m.stop = make(chan struct{})
	opID := uuid.NewString()
	m.log = m.log.With("operation_id", opID)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.stop:
				return
			case e, ok := <-m.events:
				if !ok {
					return
				}
				m.handle(e)
			}
		}
	}()
}

// Shutdown terminates the event loop. Live handles are left untouched.
func (m *Manager) Shutdown() {
	if m.stop != nil {
		close(m.stop)
		m.wg.Wait()
		m.stop = nil
	}
}

// Snapshot returns the live handle of a title, if any.
func (m *Manager) Snapshot(titleID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[titleID]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(h), true
}

// Snapshots returns every live handle.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, snapshotOf(h))
	}
	return out
}

func snapshotOf(h *handle) Snapshot {
	s := Snapshot{ID: h.id, TitleID: h.titleID, Kind: h.kind, Active: h.active}
	s.Tags = append([]string(nil), h.tags...)
	if h.progress != nil {
		p := *h.progress
		s.Progress = &p
	}
	return s
}

func (m *Manager) notify(u Update) {
	m.mu.Lock()
	f := m.observer
	m.mu.Unlock()
	if f != nil {
		f(u)
	}
}

func eventLabel(t downloader.EventType) string { return strings.ToLower(string(t)) }
