package repo

import (
	"context"

	"github.com/tinoosan/gamedock/internal/data"
)

// TitleRepo stores the catalog. It is the single owner of title records;
// callers only ever receive clones.
type TitleRepo interface {
	TitleReader
	TitleWriter
}

type TitleReader interface {
	List(ctx context.Context) (data.Titles, error)
	Get(ctx context.Context, id string) (*data.Title, error)
}

type TitleWriter interface {
	// Replace swaps every title of the given source for the provided set.
	Replace(ctx context.Context, source string, titles data.Titles) error
	// Update applies mutate to the stored title atomically and returns a clone of the result.
	Update(ctx context.Context, id string, mutate func(*data.Title) error) (*data.Title, error)
	// Clear drops every title of the given source.
	Clear(ctx context.Context, source string) error
}
