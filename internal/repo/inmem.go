package repo

import (
	"context"
	"sync"
	"time"

	"github.com/tinoosan/gamedock/internal/data"
)

type InMemoryTitleRepo struct {
	mu     sync.RWMutex
	titles data.Titles
}

func NewInMemoryTitleRepo() *InMemoryTitleRepo {
	return &InMemoryTitleRepo{
		titles: make(data.Titles, 0),
	}
}

var _ TitleRepo = (*InMemoryTitleRepo)(nil)

func (r *InMemoryTitleRepo) List(ctx context.Context) (data.Titles, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.titles.Clone(), nil
}

func (r *InMemoryTitleRepo) Get(ctx context.Context, id string) (*data.Title, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, err := r.findByID(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (r *InMemoryTitleRepo) Replace(ctx context.Context, source string, titles data.Titles) error {
	for _, t := range titles {
		if t.ID == "" {
			return data.ErrInvalidID
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.titles[:0:0]
	for _, t := range r.titles {
		if t.Source != source {
			kept = append(kept, t)
		}
	}
	now := time.Now()
	for _, t := range titles {
		c := t.Clone()
		c.Source = source
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		kept = append(kept, c)
	}
	r.titles = kept
	return nil
}

func (r *InMemoryTitleRepo) Update(ctx context.Context, id string, mutate func(*data.Title) error) (*data.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.findByID(id)
	if err != nil {
		return nil, err
	}
	// mutate a copy so a failing mutation leaves the stored record untouched
	c := t.Clone()
	if err := mutate(c); err != nil {
		return nil, err
	}
	c.ID = t.ID
	c.UpdatedAt = time.Now()
	*t = *c
	return c.Clone(), nil
}

func (r *InMemoryTitleRepo) Clear(ctx context.Context, source string) error {
	return r.Replace(ctx, source, nil)
}

func (r *InMemoryTitleRepo) findByID(id string) (*data.Title, error) {
	for _, t := range r.titles {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, data.ErrNotFound
}
