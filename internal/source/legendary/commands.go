package legendarysrc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tinoosan/gamedock/internal/commands"
	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/lifecycle"
)

const (
	wikiURL      = "https://github.com/derrod/legendary/wiki"
	freeGamesURL = "https://store.epicgames.com/en-US/free-games"
)

// TitleCommands returns the commands for one of this source's titles.
func (s *Source) TitleCommands(ctx context.Context, t *data.Title) ([]commands.Command, error) {
	g, err := gameOf(t)
	if err != nil {
		return nil, err
	}
	var h *lifecycle.Snapshot
	if snap, ok := s.mgr.Snapshot(t.ID); ok {
		h = &snap
	}
	id := t.ID
	browse := func(context.Context) error {
		s.app.Presenter.Open(g.StoreURL())
		return nil
	}
	a := commands.TitleActions{
		PlayOnOrigin:  func(ctx context.Context) error { return s.playOnOrigin(ctx, id) },
		Install:       func(ctx context.Context) error { return s.download(ctx, id) },
		ShowInBrowser: browse,
		Import:        func(ctx context.Context) error { return s.importForm(ctx, id) },
		FetchSize:     func(ctx context.Context) error { return s.fetchSize(ctx, id) },
		Update:        func(ctx context.Context) error { return s.download(ctx, id) },
		Launch:        func(ctx context.Context) error { return s.launchGame(ctx, id, false) },
		Config:        func(ctx context.Context) error { return s.infoForm(ctx, id) },
		ViewInBrowser: browse,
		Verify:        func(ctx context.Context) error { return s.mgr.RequestRepair(ctx, id, s.onDone) },
		Move:          func(ctx context.Context) error { return s.moveForm(ctx, id) },
		Uninstall:     func(ctx context.Context) error { return s.uninstallForm(ctx, id) },
		Pause:         func(ctx context.Context) error { return s.mgr.Pause(ctx, id) },
		Resume:        func(ctx context.Context) error { return s.mgr.Resume(ctx, id) },
		Stop: func(ctx context.Context) error {
			s.mgr.Stop(ctx, id)
			return nil
		},
	}
	return commands.ForTitle(t, h, s.sess.State(), a), nil
}

// GlobalCommands returns the source-wide commands.
func (s *Source) GlobalCommands(ctx context.Context) []commands.Command {
	open := func(target string) commands.Action {
		return func(context.Context) error {
			s.app.Presenter.Open(target)
			return nil
		}
	}
	st := commands.GlobalState{
		Session:     s.sess.State(),
		GameCount:   s.games(),
		HasSettings: s.app.Config.SettingsMarker(Slug),
	}
	return commands.Global(st, commands.GlobalActions{
		OpenWiki:          open(wikiURL),
		Login:             func(ctx context.Context) error { s.loginForm(""); return nil },
		Logout:            s.logout,
		OpenFreeGames:     open(freeGamesURL),
		Reload:            s.reloadGames,
		OpenConfigDir:     open(backendConfigDir()),
		OpenIntegration:   open(s.app.Config.SettingsPath(Slug)),
		OpenBackendConfig: open(filepath.Join(backendConfigDir(), "config.ini")),
		Overlay:           s.overlayCommands(),
	})
}

func (s *Source) overlayCommands() []commands.Command {
	run := func(args ...string) commands.Action {
		return func(ctx context.Context) error {
			_, err := s.cl.Run(ctx, append([]string{"eos-overlay"}, args...)...)
			return err
		}
	}
	return []commands.Command{
		{Label: "Info", Action: run("info")},
		{Label: "Install", Action: run("install", "-y")},
		{Label: "Update", Action: run("update", "-y")},
		{Label: "Enable", Action: run("enable")},
		{Label: "Disable", Action: run("disable")},
		{Label: "Remove", Action: run("remove", "-y")},
	}
}

// backendConfigDir is where legendary keeps its own configuration.
func backendConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "legendary")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "legendary")
	}
	return filepath.Join(home, ".config", "legendary")
}
