package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tinoosan/gamedock/internal/config"
	"github.com/tinoosan/gamedock/internal/data"
	"github.com/tinoosan/gamedock/internal/legendary"
	"github.com/tinoosan/gamedock/internal/logging"
	"github.com/tinoosan/gamedock/internal/plugin"
	"github.com/tinoosan/gamedock/internal/repo"
	legendarysrc "github.com/tinoosan/gamedock/internal/source/legendary"
)

// runtime is everything a subcommand needs once sources are wired.
type runtime struct {
	cfg    *config.Config
	log    *slog.Logger
	app    *plugin.App
	host   *plugin.Host
	source *legendarysrc.Source

	closers []io.Closer
}

// setup loads the configuration and wires the store, the sources and the
// host. The presenter discards everything until replaced.
func setup() (*runtime, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	log, logCloser := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	rt := &runtime{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	titles, err := openRepo(cfg, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if c, ok := titles.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}

	cl := legendary.NewClient(cfg.LegendaryBin, cfg.ProcessTimeout())
	rt.source = legendarysrc.New(cl, nil)
	rt.app = &plugin.App{Log: log, Config: cfg, Titles: titles}
	rt.host = plugin.NewHost(rt.app, rt.source)
	rt.closers = append(rt.closers, rt.host)
	return rt, nil
}

func openRepo(cfg *config.Config, log *slog.Logger) (repo.TitleRepo, error) {
	if cfg.DatabaseURL == "" {
		return repo.NewInMemoryTitleRepo(), nil
	}
	decoders := map[string]data.VariantDecoder{legendarysrc.Slug: legendarysrc.DecodeVariant}
	r, err := repo.NewPostgresRepo(cfg.DatabaseURL, decoders)
	if err != nil {
		return nil, fmt.Errorf("open title store: %w", err)
	}
	log.Info("using postgres title store")
	return r, nil
}

// Close releases resources in reverse order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			rt.log.Error("close", "err", err)
		}
	}
}

// initialize runs source initialization and the first catalog load.
func (rt *runtime) initialize(ctx context.Context) error {
	return rt.host.Initialize(ctx)
}
