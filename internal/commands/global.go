package commands

import (
	"fmt"

	"github.com/tinoosan/gamedock/internal/session"
)

const (
	LabelOpenWiki          = "Open Wiki"
	LabelNotLoggedIn       = "Not logged in"
	LabelOfflineMode       = "Started in offline mode"
	LabelLogin             = "Login"
	LabelLogout            = "Logout"
	LabelFreeGames         = "Open free games page"
	LabelReload            = "Reload games"
	LabelConfigDir         = "Open legendary config dir"
	LabelIntegrationConfig = "Open legendary integration config"
	LabelBackendConfig     = "Open legendary config"
	LabelEOSOverlay        = "EOS Overlay"
)

// GlobalState is the input of Global.
type GlobalState struct {
	Session   session.State
	GameCount int
	// HasSettings reports whether the source's settings file exists.
	HasSettings bool
}

// GlobalActions holds the closures bound into the source-wide commands.
type GlobalActions struct {
	OpenWiki          Action
	Login             Action
	Logout            Action
	OpenFreeGames     Action
	Reload            Action
	OpenConfigDir     Action
	OpenIntegration   Action
	OpenBackendConfig Action
	// Overlay maps sub-command labels to actions, in order.
	Overlay []Command
}

// Global returns the source-wide commands.
func Global(st GlobalState, a GlobalActions) []Command {
	out := []Command{
		{Label: LabelOpenWiki, Action: a.OpenWiki},
		Separator(),
	}
	if !st.Session.LoggedIn {
		out = append(out, Command{Label: LabelNotLoggedIn})
	} else {
		out = append(out, Command{Label: fmt.Sprintf("Logged in as %s", st.Session.Account)})
		if st.Session.Offline {
			out = append(out, Command{Label: LabelOfflineMode})
		}
		out = append(out, Command{Label: fmt.Sprintf("Loaded %d games", st.GameCount)})
	}
	out = append(out, Separator())
	if !st.Session.LoggedIn {
		out = append(out, Command{Label: LabelLogin, Action: a.Login})
	} else {
		out = append(out, Command{Label: LabelLogout, Action: a.Logout})
	}
	out = append(out,
		Separator(),
		Command{Label: LabelFreeGames, Action: a.OpenFreeGames},
		Command{Label: LabelReload, Action: a.Reload},
		Separator(),
		Command{Label: LabelConfigDir, Action: a.OpenConfigDir},
	)
	if st.HasSettings {
		out = append(out, Command{Label: LabelIntegrationConfig, Action: a.OpenIntegration})
	}
	out = append(out, Command{Label: LabelBackendConfig, Action: a.OpenBackendConfig})
	if st.Session.LoggedIn {
		out = append(out, Separator(), Command{Label: LabelEOSOverlay, Sub: a.Overlay})
	}
	return out
}
