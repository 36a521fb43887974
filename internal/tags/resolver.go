package tags

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tinoosan/gamedock/internal/metrics"
)

// DefaultBaseURL hosts the known tag catalog documents.
const DefaultBaseURL = "https://legendary.gl/v1/sdl"

// KnownTitles lists internal names that publish a tag catalog.
var KnownTitles = []string{"Fortnite", "Ginger"}

// DefaultURLs maps every known title to its document under base.
func DefaultURLs(base string) map[string]string {
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	out := make(map[string]string, len(KnownTitles))
	for _, name := range KnownTitles {
		out[name] = base + "/" + name + ".json"
	}
	return out
}

// Resolver fetches tag catalogs and caches them for the session.
type Resolver struct {
	http *http.Client
	urls map[string]string

	mu    sync.RWMutex
	cache map[string]*Catalog
	group singleflight.Group
	log   *slog.Logger
}

func NewResolver(client *http.Client, urls map[string]string) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{http: client, urls: urls, cache: make(map[string]*Catalog), log: slog.Default()}
}

// SetLogger allows wiring a shared application logger into the resolver.
func (r *Resolver) SetLogger(l *slog.Logger) {
	if l != nil {
		r.log = l
	}
}

// Has reports whether a catalog exists for the title's internal name.
func (r *Resolver) Has(internalName string) bool {
	_, ok := r.urls[internalName]
	return ok
}

// Get returns the catalog for internalName. Titles without a catalog yield
// (nil, nil) and trigger no request. Concurrent callers share one fetch.
func (r *Resolver) Get(ctx context.Context, internalName string) (*Catalog, error) {
	url, ok := r.urls[internalName]
	if !ok {
		return nil, nil
	}
	r.mu.RLock()
	c, ok := r.cache[internalName]
	r.mu.RUnlock()
	if ok {
		metrics.TagCatalogFetches.WithLabelValues("hit").Inc()
		return c, nil
	}

	v, err, _ := r.group.Do(internalName, func() (any, error) {
		c, err := r.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[internalName] = c
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		metrics.TagCatalogFetches.WithLabelValues("error").Inc()
		r.log.Warn("tag catalog fetch failed", "title", internalName, "err", err)
		return nil, err
	}
	metrics.TagCatalogFetches.WithLabelValues("fetched").Inc()
	return v.(*Catalog), nil
}

// Reset drops every cached catalog.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*Catalog)
	r.mu.Unlock()
}

func (r *Resolver) fetch(ctx context.Context, url string) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tag catalog http %d: %s", resp.StatusCode, string(b))
	}
	return Decode(io.LimitReader(resp.Body, 1<<20))
}
