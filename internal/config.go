package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tankobon/internal/catalog"
	"github.com/starford/tankobon/internal/library"
	"github.com/starford/tankobon/internal/remote"
	pkgconfig "github.com/starford/tankobon/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Library LibraryConfig     `yaml:"library" toml:"library"`
	Catalog CatalogConfig     `yaml:"catalog" toml:"catalog"`
	Rar     RarConfig         `yaml:"rar" toml:"rar"`
	Watch   WatchConfig       `yaml:"watch" toml:"watch"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
	Komga   RemoteConfig      `yaml:"komga" toml:"komga"`
	Kavita  RemoteConfig      `yaml:"kavita" toml:"kavita"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Library.Validate(); err != nil {
		return fmt.Errorf("library: %w", err)
	}
	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := c.Rar.Validate(); err != nil {
		return fmt.Errorf("rar: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig locates the archive tree.
type LibraryConfig struct {
	Root       string `yaml:"root" toml:"root"`
	ScratchDir string `yaml:"scratch_dir" toml:"scratch_dir"` // empty: system temp dir
	LockPath   string `yaml:"lock_path" toml:"lock_path"`     // empty: in-process locking only
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// CatalogConfig configures MangaUpdates lookups and their SQLite cache.
type CatalogConfig struct {
	Enabled   bool               `yaml:"enabled" toml:"enabled"`
	BaseURL   string             `yaml:"base_url" toml:"base_url"`
	Timeout   pkgconfig.Duration `yaml:"timeout" toml:"timeout"`
	CachePath string             `yaml:"cache_path" toml:"cache_path"` // empty disables the cache
	CacheTTL  pkgconfig.Duration `yaml:"cache_ttl" toml:"cache_ttl"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(pkgconfig.Duration(time.Second))),
		validation.Field(&c.CacheTTL, validation.Min(pkgconfig.Duration(0))),
	)
}

// RarConfig configures the external rar tool used to repack CBR archives.
type RarConfig struct {
	Binary  string             `yaml:"binary" toml:"binary"`
	Timeout pkgconfig.Duration `yaml:"timeout" toml:"timeout"`
}

// Validate validates the rar configuration.
func (c *RarConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.Timeout, validation.Min(pkgconfig.Duration(0))),
	)
}

// WatchConfig controls the library watcher of the serve command.
type WatchConfig struct {
	Enabled    bool               `yaml:"enabled" toml:"enabled"`
	Settle     pkgconfig.Duration `yaml:"settle" toml:"settle"`
	AutoRepair bool               `yaml:"auto_repair" toml:"auto_repair"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Settle, validation.Min(pkgconfig.Duration(0))),
	)
}

// RemoteConfig holds the endpoint of a Komga or Kavita server. Empty
// fields fall back to the KOMGA_API_* / KAVITA_API_* environment
// variables when a passthrough is used.
type RemoteConfig struct {
	URL     string             `yaml:"url" toml:"url"`
	Token   string             `yaml:"token" toml:"token"`
	Timeout pkgconfig.Duration `yaml:"timeout" toml:"timeout"`
}

// Settings converts the config into client settings.
func (c RemoteConfig) Settings() remote.Settings {
	return remote.Settings{URL: c.URL, Token: c.Token, Timeout: c.Timeout.D()}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			Root: "./library",
		},
		Catalog: CatalogConfig{
			Enabled:   true,
			BaseURL:   catalog.DefaultBaseURL,
			Timeout:   pkgconfig.Duration(10 * time.Second),
			CachePath: "./tankobon.db",
			CacheTTL:  pkgconfig.Duration(7 * 24 * time.Hour),
		},
		Rar: RarConfig{
			Binary:  "rar",
			Timeout: pkgconfig.Duration(5 * time.Minute),
		},
		Watch: WatchConfig{
			Settle: pkgconfig.Duration(library.DefaultSettle),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Komga: RemoteConfig{
			Timeout: pkgconfig.Duration(remote.DefaultTimeout),
		},
		Kavita: RemoteConfig{
			Timeout: pkgconfig.Duration(remote.DefaultTimeout),
		},
	}
}
