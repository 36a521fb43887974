// Package plugin defines the contract between the host and game sources and
// the context the host injects into them.
package plugin

import (
	"context"
	"log/slog"

	"github.com/tinoosan/gamedock/internal/commands"
	"github.com/tinoosan/gamedock/internal/config"
	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/prompt"
	"github.com/tinoosan/gamedock/internal/repo"
)

// GameSource is implemented by every game-source backend.
type GameSource interface {
	// Slug is the stable identifier stored on the source's titles.
	Slug() string
	Name() string
	Version() string

	Initialize(ctx context.Context, app *App) (*InitResult, error)
	Titles(ctx context.Context) (data.Titles, error)
	// TitleCommands fails with data.ErrInvalidTitleVariant for titles of another source.
	TitleCommands(ctx context.Context, t *data.Title) ([]commands.Command, error)
	GlobalCommands(ctx context.Context) []commands.Command
}

// InitResult carries an optional notice produced while initializing.
type InitResult struct {
	Message string
}

// Presenter shows information to the user. Implementations must not block.
type Presenter interface {
	// Show displays an interactive form.
	Show(p *prompt.Prompt)
	// Message displays a status line until Hide.
	Message(text string)
	// Hide removes the current status line.
	Hide()
	// Open asks the client to open a URL or a local path.
	Open(target string)
	// Publish pushes a typed event to clients.
	Publish(kind string, payload any)
}

// App is the context injected into every source.
type App struct {
	Log       *slog.Logger
	Config    *config.Config
	Titles    repo.TitleRepo
	Presenter Presenter

	reload func()
}

// Logger returns a logger tagged with the source slug.
func (a *App) Logger(source string) *slog.Logger {
	l := a.Log
	if l == nil {
		l = slog.Default()
	}
	return l.With("source", source)
}

// RequestReload queues a catalog refresh. It never blocks.
func (a *App) RequestReload() {
	if a.reload != nil {
		a.reload()
	}
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Show(*prompt.Prompt) {}
func (NopPresenter) Message(string)      {}
func (NopPresenter) Hide()               {}
func (NopPresenter) Open(string)         {}
func (NopPresenter) Publish(string, any) {}

var _ Presenter = NopPresenter{}
