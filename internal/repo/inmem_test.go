package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tinoosan/gamedock/internal/data"
)

func seed(t *testing.T, r *InMemoryTitleRepo, source string, ids ...string) {
	t.Helper()
	titles := make(data.Titles, 0, len(ids))
	for _, id := range ids {
		titles = append(titles, &data.Title{ID: id, Name: "name-" + id, Status: data.StatusNotInstalled})
	}
	if err := r.Replace(context.Background(), source, titles); err != nil {
		t.Fatalf("replace: %v", err)
	}
}

func TestInMemoryTitleRepo_Replace(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryTitleRepo()
	seed(t, r, "epic-games", "a", "b")
	seed(t, r, "other", "c")

	list, _ := r.List(ctx)
	if len(list) != 3 {
		t.Fatalf("expected 3 titles, got %d", len(list))
	}

	// replacing one source must leave the other untouched
	seed(t, r, "epic-games", "d")
	list, _ = r.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 titles after replace, got %d", len(list))
	}
	if list[0].ID != "c" || list[1].ID != "d" {
		t.Fatalf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[1].Source != "epic-games" {
		t.Fatalf("source not stamped: %q", list[1].Source)
	}

	if err := r.Replace(ctx, "x", data.Titles{{}}); !errors.Is(err, data.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestInMemoryTitleRepo_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryTitleRepo()
	seed(t, r, "s", "a")

	list, _ := r.List(ctx)
	list[0].Size = 42
	list = append(list, &data.Title{ID: "z"})

	again, _ := r.List(ctx)
	if len(again) != 1 || again[0].Size != 0 {
		t.Fatalf("repo state leaked through List: %#v", again)
	}
}

func TestInMemoryTitleRepo_Get(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryTitleRepo()
	seed(t, r, "s", "a")

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"exists", "a", nil},
		{"not found", "nope", data.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Get(ctx, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && got.ID != tt.id {
				t.Fatalf("got id %q", got.ID)
			}
		})
	}
}

func TestInMemoryTitleRepo_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("applies mutation", func(t *testing.T) {
		r := NewInMemoryTitleRepo()
		seed(t, r, "s", "a")
		got, err := r.Update(ctx, "a", func(tt *data.Title) error {
			tt.Status = data.StatusInstalled
			tt.ID = "hijack"
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.Status != data.StatusInstalled || got.ID != "a" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("failed mutation leaves record", func(t *testing.T) {
		r := NewInMemoryTitleRepo()
		seed(t, r, "s", "a")
		boom := errors.New("boom")
		_, err := r.Update(ctx, "a", func(tt *data.Title) error {
			tt.Size = 10
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		got, _ := r.Get(ctx, "a")
		if got.Size != 0 {
			t.Fatalf("partial mutation persisted: %d", got.Size)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		r := NewInMemoryTitleRepo()
		if _, err := r.Update(ctx, "x", func(*data.Title) error { return nil }); !errors.Is(err, data.ErrNotFound) {
			t.Fatalf("expected ErrNotFound got %v", err)
		}
	})
}

func TestInMemoryTitleRepo_Concurrency(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryTitleRepo()
	const n = 50
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%d", i)
	}
	seed(t, r, "s", ids...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, _ = r.List(ctx)
			_, _ = r.Get(ctx, ids[i])
		}
	}()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.Update(ctx, ids[i], func(tt *data.Title) error {
				tt.Size = int64(i + 1)
				return nil
			}); err != nil {
				t.Errorf("update error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, _ := r.List(ctx)
	for _, tt := range list {
		if tt.Size == 0 {
			t.Fatalf("update lost for %s", tt.ID)
		}
	}
}
