package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tinoosan/gamedock/internal/data"
)

// NeedsSize reports whether a size lookup applies to t: unsized titles that
// are neither installed nor handled by an external launcher.
func NeedsSize(t *data.Title) bool {
	return t.Size == 0 && !t.FromOrigin && !t.Installed()
}

// FetchSize looks up the install size of a title in the background and
// stores it without touching any other field. The returned channel yields
// the outcome once: nil on success or when no lookup applies, ErrStaleResult
// when a newer lookup or a catalog reload superseded this one, or an error
// wrapping ErrMetadataFetch.
func (m *Manager) FetchSize(ctx context.Context, titleID string) <-chan error {
	done := make(chan error, 1)
	t, err := m.repo.Get(ctx, titleID)
	if err != nil {
		done <- err
		close(done)
		return done
	}

	m.mu.Lock()
	sizer, limiter := m.sizer, m.limiter
	if !NeedsSize(t) || sizer == nil {
		m.mu.Unlock()
		close(done)
		return done
	}
	m.gens[titleID]++
	epoch, gen := m.epoch, m.gens[titleID]
	m.mu.Unlock()

	// the lookup outlives the request that triggered it
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		done <- m.fetchSize(bg, t, sizer, limiter, epoch, gen)
	}()
	return done
}

func (m *Manager) fetchSize(ctx context.Context, t *data.Title, sizer SizeFunc, limiter *rate.Limiter, epoch, gen uint64) error {
	log := m.log.With("title", t.ID)
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataFetch, err)
		}
	}
	size, err := sizer(ctx, t)
	if err != nil {
		log.Warn("size lookup failed", "err", err)
		if errors.Is(err, ErrMetadataFetch) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMetadataFetch, err)
	}

	m.mu.Lock()
	current := m.epoch == epoch && m.gens[t.ID] == gen
	m.mu.Unlock()
	if !current {
		log.Info("dropping stale size result", "generation", gen)
		return ErrStaleResult
	}
	if _, err := m.repo.Update(ctx, t.ID, func(t *data.Title) error {
		t.Size = size
		return nil
	}); err != nil {
		return err
	}
	log.Info("size updated", "size", size)
	return nil
}

// Invalidate drops every in-flight size lookup. Call it when the catalog is
// reloaded.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.epoch++
	m.mu.Unlock()
}
