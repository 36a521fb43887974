// Package legendarysrc is the Epic Games source, driven by the legendary CLI.
package legendarysrc

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tinoosan/gamedock/internal/downloader"
	legendarydl "github.com/tinoosan/gamedock/internal/downloader/legendary"
	"github.com/tinoosan/gamedock/internal/launch"
	"github.com/tinoosan/gamedock/internal/legendary"
	"github.com/tinoosan/gamedock/internal/lifecycle"
	"github.com/tinoosan/gamedock/internal/plugin"
	"github.com/tinoosan/gamedock/internal/session"
	"github.com/tinoosan/gamedock/internal/tags"
)

const (
	Slug    = "legendary"
	name    = "Epic Games Integration"
	version = "v1.2.5"
)

// Source implements plugin.GameSource on top of the legendary CLI.
type Source struct {
	cl   *legendary.Client
	http *http.Client

	app      *plugin.App
	log      *slog.Logger
	sess     *session.Session
	mgr      *lifecycle.Manager
	resolver *tags.Resolver
	launcher *launch.Launcher

	mu        sync.Mutex
	gameCount int
}

var _ plugin.GameSource = (*Source)(nil)

// New creates the source. A nil httpClient uses a client with a 15s timeout
// for tag catalog fetches.
func New(cl *legendary.Client, httpClient *http.Client) *Source {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Source{cl: cl, http: httpClient, log: slog.Default()}
}

func (s *Source) Slug() string    { return Slug }
func (s *Source) Name() string    { return name }
func (s *Source) Version() string { return version }

// Initialize wires the download lifecycle and checks the login state. Not
// being logged in is not an error.
func (s *Source) Initialize(ctx context.Context, app *plugin.App) (*plugin.InitResult, error) {
	s.app = app
	s.log = app.Logger(Slug)
	s.cl.SetLogger(s.log)

	cfg := app.Config
	s.sess = session.New(s.cl, cfg.Offline)
	s.sess.SetLogger(s.log)

	events := make(chan downloader.Event, 64)
	adapter := legendarydl.NewAdapter(s.cl, downloader.NewChanReporter(events))
	adapter.SetLogger(s.log)
	s.mgr = lifecycle.New(s.log, app.Titles, adapter, events)
	var limiter *rate.Limiter
	if cfg.MetadataRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MetadataRPS), 1)
	}
	s.mgr.SetSizer(s.installSize, limiter)
	s.mgr.SetObserver(func(u lifecycle.Update) { app.Presenter.Publish("download", u) })
	s.mgr.Run()

	s.resolver = tags.NewResolver(s.http, tags.DefaultURLs(cfg.SDLBaseURL))
	s.resolver.SetLogger(s.log)
	s.launcher = launch.NewLauncher(s.cl)
	s.launcher.SetLogger(s.log)

	st, err := s.sess.Refresh(ctx)
	if err != nil {
		s.log.Warn("session check failed", "err", err)
		return nil, nil
	}
	if st.LoggedIn && st.Offline && !cfg.Offline {
		return &plugin.InitResult{Message: "Epic Games started in offline mode"}, nil
	}
	return nil, nil
}

// Manager exposes the download lifecycle, mainly for the API.
func (s *Source) Manager() *lifecycle.Manager { return s.mgr }

// Snapshots lists the running operations of this source.
func (s *Source) Snapshots() []lifecycle.Snapshot {
	if s.mgr == nil {
		return nil
	}
	return s.mgr.Snapshots()
}

// Session returns the current session state.
func (s *Source) Session() session.State { return s.sess.State() }

// Close cancels running operations and stops the event loop.
func (s *Source) Close() error {
	if s.mgr == nil {
		return nil
	}
	s.mgr.StopAll(context.Background())
	s.mgr.Shutdown()
	return nil
}

// onDone is the completion callback of every handle this source starts. It
// only queues work.
func (s *Source) onDone(o lifecycle.Outcome) {
	if o.Result == lifecycle.Failed {
		s.log.Error("operation failed", "title", o.TitleID, "kind", o.Kind, "reason", o.Reason)
	}
	s.app.Presenter.Publish("outcome", o)
	s.app.RequestReload()
}
