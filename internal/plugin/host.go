package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tinoosan/gamedock/internal/commands"
	"github.com/tinoosan/gamedock/internal/data"
)

var ErrUnknownSource = errors.New("unknown game source")

// Host owns the sources and keeps the catalog in sync with them.
type Host struct {
	app     *App
	sources []GameSource
	log     *slog.Logger

	reload chan struct{}

	mu    sync.RWMutex
	ready bool
}

// NewHost wires app to the sources. app.RequestReload feeds the host's
// reload loop.
func NewHost(app *App, sources ...GameSource) *Host {
	h := &Host{app: app, sources: sources, log: app.Logger("host"), reload: make(chan struct{}, 1)}
	app.reload = h.RequestReload
	if app.Presenter == nil {
		app.Presenter = NopPresenter{}
	}
	return h
}

// Initialize initializes every source and loads the catalog. A source that
// fails to initialize is logged and still listed.
func (h *Host) Initialize(ctx context.Context) error {
	for _, s := range h.sources {
		res, err := s.Initialize(ctx, h.app)
		if err != nil {
			h.log.Error("initialize source", "source", s.Slug(), "err", err)
			continue
		}
		if res != nil && res.Message != "" {
			h.app.Presenter.Message(res.Message)
		}
		h.log.Info("source initialized", "source", s.Slug(), "version", s.Version())
	}
	err := h.Reload(ctx)
	h.mu.Lock()
	h.ready = true
	h.mu.Unlock()
	return err
}

// Ready reports whether initialization finished.
func (h *Host) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Reload replaces every source's titles in the catalog.
func (h *Host) Reload(ctx context.Context) error {
	var errs []error
	for _, s := range h.sources {
		titles, err := s.Titles(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Slug(), err))
			continue
		}
		if err := checkVariants(s.Slug(), titles); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := h.app.Titles.Replace(ctx, s.Slug(), titles); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Slug(), err))
			continue
		}
		h.log.Info("catalog reloaded", "source", s.Slug(), "titles", len(titles))
	}
	h.app.Presenter.Publish("catalog", nil)
	return errors.Join(errs...)
}

func checkVariants(slug string, titles data.Titles) error {
	for _, t := range titles {
		if t.Variant == nil || t.Variant.SourceSlug() != slug {
			return fmt.Errorf("%w: title %s from %s", data.ErrInvalidTitleVariant, t.ID, slug)
		}
	}
	return nil
}

// RequestReload queues a reload for Run. Requests coalesce.
func (h *Host) RequestReload() {
	select {
	case h.reload <- struct{}{}:
	default:
	}
}

// Run serves reload requests until ctx is done.
func (h *Host) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.reload:
			if err := h.Reload(ctx); err != nil {
				h.log.Error("reload", "err", err)
			}
		}
	}
}

// Sources returns the registered sources.
func (h *Host) Sources() []GameSource { return h.sources }

func (h *Host) Source(slug string) (GameSource, error) {
	for _, s := range h.sources {
		if s.Slug() == slug {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, slug)
}

// TitleCommands returns the commands of a catalog title.
func (h *Host) TitleCommands(ctx context.Context, id string) ([]commands.Command, error) {
	t, err := h.app.Titles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := h.Source(t.Source)
	if err != nil {
		return nil, err
	}
	return s.TitleCommands(ctx, t)
}

// GlobalCommands returns the source-wide commands of one source.
func (h *Host) GlobalCommands(ctx context.Context, slug string) ([]commands.Command, error) {
	s, err := h.Source(slug)
	if err != nil {
		return nil, err
	}
	return s.GlobalCommands(ctx), nil
}

// Close releases sources that hold resources.
func (h *Host) Close() error {
	var errs []error
	for _, s := range h.sources {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
