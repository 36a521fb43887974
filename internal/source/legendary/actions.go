package legendarysrc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/launch"
	"github.com/tinoosan/gamedock/internal/lifecycle"
	"github.com/tinoosan/gamedock/internal/prompt"
	"github.com/tinoosan/gamedock/internal/session"
	"github.com/tinoosan/gamedock/internal/tags"
)

const (
	buttonBack    = launch.LabelBack
	fieldPath     = "path"
	fieldCode     = "code"
	loginCodeHint = "Log in at https://legendary.gl/epiclogin and paste the authorization code"
)

func (s *Source) title(ctx context.Context, id string) (*data.Title, *Game, error) {
	t, err := s.app.Titles.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	g, err := gameOf(t)
	if err != nil {
		return nil, nil, err
	}
	return t, g, nil
}

// download installs or updates a title. Titles with optional content get a
// selection form first.
func (s *Source) download(ctx context.Context, id string) error {
	t, _, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	if t.Installed() {
		return s.mgr.RequestUpdate(ctx, id, s.onDone)
	}
	if !s.resolver.Has(t.InternalName) {
		return s.mgr.RequestInstall(ctx, id, nil, s.app.Config.GameDir, s.onDone)
	}
	cat, err := s.resolver.Get(ctx, t.InternalName)
	if err != nil {
		return fmt.Errorf("optional content for %s: %w", t.Name, err)
	}
	if cat.Empty() {
		return s.mgr.RequestInstall(ctx, id, nil, s.app.Config.GameDir, s.onDone)
	}
	s.app.Presenter.Show(s.tagForm(t, cat))
	return nil
}

func (s *Source) tagForm(t *data.Title, cat *tags.Catalog) *prompt.Prompt {
	p := &prompt.Prompt{Title: t.Name + " Optional Content"}
	for _, o := range cat.Options() {
		p.Fields = append(p.Fields, prompt.Field{Kind: prompt.FieldToggle, Key: o.Key, Label: o.Name, Checked: o.Selected, Locked: o.Locked})
	}
	id := t.ID
	p.Buttons = []prompt.Button{
		{Label: buttonBack},
		{Label: "Install", Action: func(ctx context.Context, r prompt.Response) error {
			sel := make(map[string]bool, len(cat.Entries))
			for _, e := range cat.Entries {
				sel[e.Key] = p.Toggled(r, e.Key)
			}
			return s.mgr.RequestInstall(ctx, id, cat.Resolve(sel), s.app.Config.GameDir, s.onDone)
		}},
	}
	return p
}

// launchGame starts a title. Failures become a form offering the recoveries
// that fit the failure.
func (s *Source) launchGame(ctx context.Context, id string, force bool) error {
	t, g, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	opts := launch.Options{SkipVersionCheck: force, Offline: s.sess.State().Offline}
	err = s.launcher.Launch(ctx, g.AppName, opts, s.app.RequestReload)
	if err == nil {
		s.app.RequestReload()
		return nil
	}
	s.launchFailed(t, err, func(ctx context.Context) error { return s.launchGame(ctx, id, true) })
	return nil
}

// playOnOrigin hands a title managed by Origin off to the Origin client.
func (s *Source) playOnOrigin(ctx context.Context, id string) error {
	t, g, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	uri, err := s.launcher.OriginURI(ctx, g.AppName, s.sess.State().Offline)
	if err != nil {
		s.launchFailed(t, err, nil)
		return nil
	}
	s.app.Presenter.Open(uri)
	return nil
}

// launchFailed shows a form offering the recoveries that fit err. force runs
// the launch again without the version check.
func (s *Source) launchFailed(t *data.Title, err error, force func(context.Context) error) {
	s.log.Error("something went wrong while launching", "title", t.Name, "err", err)

	msg := err.Error()
	var le *launch.Error
	if errors.As(err, &le) {
		msg = le.Message
	}
	p := &prompt.Prompt{Text: "Game failed to launch: " + msg}
	for _, r := range launch.Recoveries(launch.Outcome(err)) {
		b := prompt.Button{Label: r.Label}
		if r.Force {
			if force == nil {
				continue
			}
			b.Action = func(ctx context.Context, _ prompt.Response) error { return force(ctx) }
		}
		p.Buttons = append(p.Buttons, b)
	}
	s.app.Presenter.Show(p)
}

// fetchSize starts a size lookup and announces the result when it lands.
func (s *Source) fetchSize(ctx context.Context, id string) error {
	done := s.mgr.FetchSize(ctx, id)
	go func() {
		err := <-done
		switch {
		case err == nil:
			s.app.Presenter.Publish("title", id)
		case errors.Is(err, lifecycle.ErrStaleResult):
		default:
			s.log.Warn("size lookup", "title", id, "err", err)
		}
	}()
	return nil
}

func (s *Source) infoForm(ctx context.Context, id string) error {
	t, g, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	text := func(label, value string) prompt.Field {
		return prompt.Field{Kind: prompt.FieldText, Label: label, Value: value}
	}
	s.app.Presenter.Show(&prompt.Prompt{
		Title: t.Name,
		Fields: []prompt.Field{
			text("App name", g.AppName),
			text("Installed version", g.InstalledVersion),
			text("Available version", g.AvailableVersion),
			text("Install path", t.InstallPath),
			text("Size", fmt.Sprintf("%d bytes", t.Size)),
		},
		Buttons: []prompt.Button{{Label: buttonBack}},
	})
	return nil
}

func (s *Source) moveForm(ctx context.Context, id string) error {
	t, _, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	s.app.Presenter.Show(&prompt.Prompt{
		Title:  "Move " + t.Name,
		Fields: []prompt.Field{{Kind: prompt.FieldInput, Key: fieldPath, Label: "New base folder"}},
		Buttons: []prompt.Button{
			{Label: buttonBack},
			{Label: "Move", Action: func(ctx context.Context, r prompt.Response) error {
				return s.mgr.RequestMove(ctx, id, strings.TrimSpace(r.Inputs[fieldPath]), s.onDone)
			}},
		},
	})
	return nil
}

func (s *Source) importForm(ctx context.Context, id string) error {
	t, g, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	s.app.Presenter.Show(&prompt.Prompt{
		Title:  "Import " + t.Name,
		Fields: []prompt.Field{{Kind: prompt.FieldInput, Key: fieldPath, Label: "Game folder"}},
		Buttons: []prompt.Button{
			{Label: buttonBack},
			{Label: "Import", Action: func(ctx context.Context, r prompt.Response) error {
				path := strings.TrimSpace(r.Inputs[fieldPath])
				if path == "" {
					return fmt.Errorf("import %s: folder is required", g.AppName)
				}
				s.app.Presenter.Message(fmt.Sprintf("Importing %s...", t.Name))
				defer s.app.Presenter.Hide()
				if _, err := s.cl.Run(ctx, "import", g.AppName, path); err != nil {
					return err
				}
				s.app.RequestReload()
				return nil
			}},
		},
	})
	return nil
}

func (s *Source) uninstallForm(ctx context.Context, id string) error {
	t, g, err := s.title(ctx, id)
	if err != nil {
		return err
	}
	s.app.Presenter.Show(&prompt.Prompt{
		Text: fmt.Sprintf("Are you sure you want to uninstall %s?", t.Name),
		Buttons: []prompt.Button{
			{Label: "Uninstall", Action: func(ctx context.Context, _ prompt.Response) error {
				s.app.Presenter.Message(fmt.Sprintf("Uninstalling %s...", t.Name))
				defer s.app.Presenter.Hide()
				if _, err := s.cl.Run(ctx, "uninstall", g.AppName, "-y"); err != nil {
					return err
				}
				s.app.RequestReload()
				return nil
			}},
			{Label: buttonBack},
		},
	})
	return nil
}

func (s *Source) loginForm(warning string) {
	s.app.Presenter.Show(&prompt.Prompt{
		Title:   "Epic Games Login",
		Text:    loginCodeHint,
		Warning: warning,
		Fields:  []prompt.Field{{Kind: prompt.FieldInput, Key: fieldCode, Label: "Authorization code"}},
		Buttons: []prompt.Button{
			{Label: buttonBack},
			{Label: "Login", Action: func(ctx context.Context, r prompt.Response) error {
				return s.login(ctx, r.Inputs[fieldCode])
			}},
		},
	})
}

// login authenticates with an authorization code. A failed attempt shows the
// form again with the reason.
func (s *Source) login(ctx context.Context, code string) error {
	s.app.Presenter.Message("Logging in...")
	defer s.app.Presenter.Hide()
	if _, err := s.sess.Authenticate(ctx, code); err != nil {
		if errors.Is(err, session.ErrAuthNotEstablished) {
			s.log.Warn("login failed", "err", err)
			s.loginForm(err.Error())
			return nil
		}
		return err
	}
	s.mgr.Invalidate()
	s.app.RequestReload()
	return nil
}

// logout stops every operation, forgets the account and empties the catalog.
func (s *Source) logout(ctx context.Context) error {
	if !s.sess.State().LoggedIn {
		return nil
	}
	s.app.Presenter.Message("Logging out...")
	defer s.app.Presenter.Hide()
	s.mgr.StopAll(ctx)
	if err := s.sess.Logout(ctx); err != nil {
		return err
	}
	s.resolver.Reset()
	s.mgr.Invalidate()
	s.setGameCount(0)
	if err := s.app.Titles.Clear(ctx, Slug); err != nil {
		return err
	}
	s.app.RequestReload()
	return nil
}

func (s *Source) reloadGames(ctx context.Context) error {
	s.app.Presenter.Message("Reloading epic games...")
	defer s.app.Presenter.Hide()
	if _, err := s.cl.Run(ctx, "list-games"); err != nil {
		return err
	}
	s.mgr.Invalidate()
	s.app.RequestReload()
	return nil
}
