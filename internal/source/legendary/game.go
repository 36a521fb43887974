package legendarysrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tinoosan/gamedock/internal/data"
)

const storeBase = "https://store.epicgames.com"

// Game holds the Epic specific fields of a title.
type Game struct {
	AppName          string `json:"appName"`
	AvailableVersion string `json:"availableVersion"`
	InstalledVersion string `json:"installedVersion,omitempty"`
	ProductSlug      string `json:"productSlug,omitempty"`
	Title            string `json:"title"`
}

func (*Game) SourceSlug() string { return Slug }

// DecodeVariant restores a persisted Game.
func DecodeVariant(raw json.RawMessage) (data.Variant, error) {
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// gameOf returns the title's Game or data.ErrInvalidTitleVariant.
func gameOf(t *data.Title) (*Game, error) {
	g, ok := t.Variant.(*Game)
	if !ok || g == nil {
		return nil, fmt.Errorf("%w: %s has %T", data.ErrInvalidTitleVariant, t.ID, t.Variant)
	}
	return g, nil
}

// StoreURL is the store page of the game.
func (g *Game) StoreURL() string {
	if g.ProductSlug != "" {
		return storeBase + "/p/" + g.ProductSlug
	}
	return storeBase + "/browse?q=" + url.QueryEscape(g.Title)
}

type attribute struct {
	Value string `json:"value"`
}

type listedGame struct {
	AppName  string `json:"app_name"`
	AppTitle string `json:"app_title"`
	Metadata struct {
		CustomAttributes map[string]attribute `json:"customAttributes"`
	} `json:"metadata"`
	AssetInfos map[string]struct {
		BuildVersion string `json:"build_version"`
	} `json:"asset_infos"`
}

func (l *listedGame) version() string {
	if a, ok := l.AssetInfos["Windows"]; ok {
		return a.BuildVersion
	}
	for _, a := range l.AssetInfos {
		return a.BuildVersion
	}
	return ""
}

func (l *listedGame) fromOrigin() bool {
	return l.Metadata.CustomAttributes["ThirdPartyManagedApp"].Value == "Origin"
}

type installedGame struct {
	AppName     string `json:"app_name"`
	Title       string `json:"title"`
	Version     string `json:"version"`
	InstallSize int64  `json:"install_size"`
	InstallPath string `json:"install_path"`
}

// Titles lists the library merged with the installed games. Nothing is
// listed while logged out.
func (s *Source) Titles(ctx context.Context) (data.Titles, error) {
	st := s.sess.State()
	if !st.LoggedIn {
		s.setGameCount(0)
		return data.Titles{}, nil
	}
	offline := []string{}
	if st.Offline {
		offline = append(offline, "--offline")
	}

	var listed []listedGame
	if res, err := s.cl.Run(ctx, append([]string{"list", "--json"}, offline...)...); err != nil {
		if !st.Offline {
			return nil, err
		}
		s.log.Warn("offline library listing failed", "err", err)
	} else if err := json.Unmarshal(res.Stdout, &listed); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	var installed []installedGame
	res, err := s.cl.Run(ctx, "list-installed", "--json")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(res.Stdout, &installed); err != nil {
		return nil, fmt.Errorf("decode list-installed: %w", err)
	}
	byApp := make(map[string]installedGame, len(installed))
	for _, ig := range installed {
		byApp[ig.AppName] = ig
	}

	out := make(data.Titles, 0, len(listed)+len(installed))
	seen := make(map[string]bool, len(listed))
	for _, lg := range listed {
		seen[lg.AppName] = true
		g := &Game{
			AppName:          lg.AppName,
			AvailableVersion: lg.version(),
			ProductSlug:      lg.Metadata.CustomAttributes["com.epicgames.app.productSlug"].Value,
			Title:            lg.AppTitle,
		}
		t := &data.Title{
			ID:           lg.AppName,
			InternalName: lg.AppName,
			Name:         lg.AppTitle,
			Version:      g.AvailableVersion,
			Status:       data.StatusNotInstalled,
			FromOrigin:   lg.fromOrigin(),
			Source:       Slug,
			Variant:      g,
		}
		if ig, ok := byApp[lg.AppName]; ok {
			s.markInstalled(t, g, ig)
		} else {
			t.Size = s.knownSize(ctx, t.ID)
		}
		out = append(out, t)
	}
	// installed games missing from the listing, e.g. when offline
	for _, ig := range installed {
		if seen[ig.AppName] {
			continue
		}
		g := &Game{AppName: ig.AppName, AvailableVersion: ig.Version, Title: ig.Title}
		t := &data.Title{ID: ig.AppName, InternalName: ig.AppName, Name: ig.Title, Source: Slug, Variant: g}
		s.markInstalled(t, g, ig)
		out = append(out, t)
	}
	s.setGameCount(len(out))
	return out, nil
}

func (s *Source) markInstalled(t *data.Title, g *Game, ig installedGame) {
	g.InstalledVersion = ig.Version
	t.Status = data.StatusInstalled
	t.Version = ig.Version
	t.Size = ig.InstallSize
	t.InstallPath = ig.InstallPath
	t.UpdateAvailable = g.AvailableVersion != "" && ig.Version != g.AvailableVersion
	t.IsRunning = s.launcher.Running(g.AppName)
}

// knownSize keeps a size looked up earlier in the session across reloads.
func (s *Source) knownSize(ctx context.Context, id string) int64 {
	prev, err := s.app.Titles.Get(ctx, id)
	if err != nil || prev.Installed() {
		return 0
	}
	return prev.Size
}

func (s *Source) setGameCount(n int) {
	s.mu.Lock()
	s.gameCount = n
	s.mu.Unlock()
}

func (s *Source) games() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameCount
}

type infoResponse struct {
	Install struct {
		DiskSize int64 `json:"disk_size"`
	} `json:"install"`
}

// installSize asks the backend for a title's install size.
func (s *Source) installSize(ctx context.Context, t *data.Title) (int64, error) {
	g, err := gameOf(t)
	if err != nil {
		return 0, err
	}
	args := []string{"info", g.AppName, "--json"}
	if s.sess.State().Offline {
		args = append(args, "--offline")
	}
	res, err := s.cl.Run(ctx, args...)
	if err != nil {
		return 0, err
	}
	var info infoResponse
	if err := json.Unmarshal(res.Stdout, &info); err != nil {
		return 0, fmt.Errorf("decode info: %w", err)
	}
	if info.Install.DiskSize <= 0 {
		return 0, fmt.Errorf("no install size reported for %s", g.AppName)
	}
	return info.Install.DiskSize, nil
}
