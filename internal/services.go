package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/tankobon/internal/api"
	"github.com/starford/tankobon/internal/archiveservice"
	"github.com/starford/tankobon/internal/catalog"
	"github.com/starford/tankobon/internal/comicinfo"
	"github.com/starford/tankobon/internal/library"
	"github.com/starford/tankobon/internal/remote"
	"github.com/starford/tankobon/internal/scanner"
)

// Services is the wired domain layer shared by the server, the MCP server
// and the one-shot CLI commands.
type Services struct {
	Library  *library.FS
	Archives *archiveservice.Service

	closers []func() error
}

// NewServices builds the library, codec, catalog and archive service from
// cfg. Extra options are applied to the archive service after the
// configured ones.
func NewServices(cfg *Config, logger *slog.Logger, opts ...archiveservice.Option) (*Services, error) {
	lib, err := library.NewFS(cfg.Library.Root)
	if err != nil {
		return nil, fmt.Errorf("init library: %w", err)
	}

	if cfg.Library.ScratchDir != "" {
		if err := os.MkdirAll(cfg.Library.ScratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch dir: %w", err)
		}
	}
	codec := comicinfo.New(
		comicinfo.WithPacker(comicinfo.FormatRar, comicinfo.RarPacker{
			Binary:  cfg.Rar.Binary,
			Timeout: cfg.Rar.Timeout.D(),
		}),
		comicinfo.WithScratchDir(cfg.Library.ScratchDir),
		comicinfo.WithLogger(logger),
	)

	s := &Services{Library: lib}

	lookup, err := s.openCatalog(cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}

	scan := scanner.New(lib, codec, lookup, logger)

	svcOpts := []archiveservice.Option{
		archiveservice.WithLogger(logger),
		archiveservice.WithAutoRepair(cfg.Watch.AutoRepair),
	}
	if cfg.Library.LockPath != "" {
		svcOpts = append(svcOpts, archiveservice.WithLockFile(cfg.Library.LockPath))
	}
	s.Archives = archiveservice.New(lib, codec, scan, append(svcOpts, opts...)...)
	return s, nil
}

func (s *Services) openCatalog(cfg CatalogConfig, logger *slog.Logger) (catalog.Lookup, error) {
	if !cfg.Enabled {
		return catalog.Nop{}, nil
	}
	var lookup catalog.Lookup = catalog.NewMangaUpdates(cfg.BaseURL, cfg.Timeout.D(), logger)
	if cfg.CachePath == "" {
		return lookup, nil
	}
	cache, err := catalog.OpenCache(cfg.CachePath, cfg.CacheTTL.D(), lookup, logger)
	if err != nil {
		return nil, fmt.Errorf("init catalog cache: %w", err)
	}
	s.closers = append(s.closers, cache.Close)
	return cache, nil
}

// Close releases the catalog cache.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// newRemotes builds the Komga and Kavita passthrough factories. Settings
// are resolved on every request so a token exported after startup is
// picked up, and a missing one is reported to the caller.
func newRemotes(cfg *Config, logger *slog.Logger) api.Remotes {
	return api.Remotes{
		Komga:  remoteFactory(cfg.Komga, "KOMGA_API_URL", "KOMGA_API_TOKEN", remote.NewKomga, logger),
		Kavita: remoteFactory(cfg.Kavita, "KAVITA_API_URL", "KAVITA_API_TOKEN", remote.NewKavita, logger),
	}
}

func remoteFactory(
	cfg RemoteConfig,
	urlEnv, tokenEnv string,
	build func(remote.Settings, *slog.Logger) (*remote.Client, error),
	logger *slog.Logger,
) api.UpdaterFactory {
	return func() (api.MetadataUpdater, error) {
		settings := cfg.Settings()
		if settings.URL == "" {
			settings.URL = os.Getenv(urlEnv)
		}
		if settings.Token == "" {
			settings.Token = os.Getenv(tokenEnv)
		}
		client, err := build(settings, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
