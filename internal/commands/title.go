package commands

import (
	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/lifecycle"
	"github.com/tinoosan/gamedock/internal/session"
)

const (
	LabelPlayOnOrigin  = "Play on Origin"
	LabelInstall       = "Install"
	LabelShowInBrowser = "Show in browser"
	LabelImport        = "Import"
	LabelFetchSize     = "Get game install size"
	LabelUpdate        = "Update"
	LabelLaunch        = "Launch"
	LabelRunning       = "Running"
	LabelConfig        = "Config/Info"
	LabelViewInBrowser = "View in browser"
	LabelVerify        = "Verify"
	LabelMove          = "Move"
	LabelUninstall     = "Uninstall"
	LabelPause         = "Pause"
	LabelContinue      = "Continue"
	LabelStop          = "Stop"
)

// TitleActions holds the closures bound into a title's commands.
type TitleActions struct {
	PlayOnOrigin  Action
	Install       Action
	ShowInBrowser Action
	Import        Action
	FetchSize     Action
	Update        Action
	Launch        Action
	Config        Action
	ViewInBrowser Action
	Verify        Action
	Move          Action
	Uninstall     Action
	Pause         Action
	Resume        Action
	Stop          Action
}

// ForTitle returns the commands for t. A live handle replaces every other
// command with download controls, and a move handle exposes none. The result
// depends only on the arguments.
func ForTitle(t *data.Title, h *lifecycle.Snapshot, s session.State, a TitleActions) []Command {
	if h != nil {
		if h.Kind == data.KindMove {
			return []Command{}
		}
		toggle := Command{Label: LabelPause, Action: a.Pause}
		if !h.Active {
			toggle = Command{Label: LabelContinue, Action: a.Resume}
		}
		return []Command{toggle, {Label: LabelStop, Action: a.Stop}}
	}

	if !t.Installed() {
		var out []Command
		if t.FromOrigin {
			out = append(out, Command{Label: LabelPlayOnOrigin, Action: a.PlayOnOrigin})
		} else {
			out = append(out, Command{Label: LabelInstall, Action: a.Install})
		}
		out = append(out,
			Command{Label: LabelShowInBrowser, Action: a.ShowInBrowser},
			Command{Label: LabelImport, Action: a.Import},
		)
		if t.Size == 0 && !t.FromOrigin {
			out = append(out, Command{Label: LabelFetchSize, Action: a.FetchSize})
		}
		return out
	}

	var out []Command
	if t.HasUpdate() && !s.Offline {
		out = append(out, Command{Label: LabelUpdate, Action: a.Update})
	}
	launch := LabelLaunch
	if t.IsRunning {
		launch = LabelRunning
	}
	return append(out,
		Command{Label: launch, Action: a.Launch},
		Command{Label: LabelConfig, Action: a.Config},
		Command{Label: LabelViewInBrowser, Action: a.ViewInBrowser},
		Command{Label: LabelVerify, Action: a.Verify},
		Command{Label: LabelMove, Action: a.Move},
		Command{Label: LabelUninstall, Action: a.Uninstall},
	)
}
