package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sha1n/relic-history/internal/domain"
	"github.com/sha1n/relic-history/internal/indexing"
	"github.com/sha1n/relic-history/internal/search"
	"github.com/sha1n/relic-history/internal/sourcecontrol"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadSettings.
const EnvPrefix = "RELIC_HISTORY"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`

	// PublicMetrics serves /metrics without credentials.
	PublicMetrics bool `mapstructure:"public_metrics"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IndexSettings locates the index and taxonomy of the configured repository.
// IndexDir and TaxonomyDir default to locations under BaseDir named after the repository.
type IndexSettings struct {
	BaseDir     string `mapstructure:"base_dir"`
	IndexDir    string `mapstructure:"index_dir"`
	TaxonomyDir string `mapstructure:"taxonomy_dir"`
	OpenMode    string `mapstructure:"open_mode"`
}

// SourceSettings selects and configures the revision source.
type SourceSettings struct {
	Provider string        `mapstructure:"provider"`
	Location string        `mapstructure:"location"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SearchSettings configures search defaults.
type SearchSettings struct {
	MaxResults int    `mapstructure:"max_results"`
	Sort       string `mapstructure:"sort"`
}

// SyncSettings configures incremental indexing by the server.
type SyncSettings struct {
	OnStart     bool          `mapstructure:"on_start"`
	Interval    time.Duration `mapstructure:"interval"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// Settings application settings
type Settings struct {
	Transport string         `mapstructure:"transport"`
	Host      string         `mapstructure:"host"`
	Port      int            `mapstructure:"port"`
	Auth      AuthSettings   `mapstructure:"auth"`
	Index     IndexSettings  `mapstructure:"index"`
	Source    SourceSettings `mapstructure:"source"`
	Search    SearchSettings `mapstructure:"search"`
	Sync      SyncSettings   `mapstructure:"sync"`
}

// flagBindings maps settings keys to CLI flag names.
var flagBindings = map[string]string{
	"transport":           "transport",
	"host":                "host",
	"port":                "port",
	"auth.type":           "auth-type",
	"auth.basic.username": "auth-basic-username",
	"auth.basic.password": "auth-basic-password",
	"auth.api_keys":       "auth-api-keys",
	"auth.public_metrics": "auth-public-metrics",
	"index.base_dir":      "base-dir",
	"index.index_dir":     "index-dir",
	"index.taxonomy_dir":  "taxonomy-dir",
	"index.open_mode":     "open-mode",
	"source.provider":     "provider",
	"source.location":     "location",
	"source.username":     "source-username",
	"source.password":     "source-password",
	"source.timeout":      "source-timeout",
	"search.max_results":  "max-results",
	"search.sort":         "sort",
	"sync.on_start":       "sync-on-start",
	"sync.interval":       "sync-interval",
	"sync.lock_timeout":   "sync-lock-timeout",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used. Flags missing from
// the set are skipped, so each command may register a subset.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)

	v.SetDefault("index.base_dir", defaultBaseDir())
	v.SetDefault("index.open_mode", indexing.ModeCreateOrAppend.String())
	v.SetDefault("source.provider", string(sourcecontrol.ProviderGit))
	v.SetDefault("source.timeout", 60*time.Second)
	v.SetDefault("search.max_results", 100)
	v.SetDefault("search.sort", "-"+domain.FieldRevisionNumber)
	v.SetDefault("sync.on_start", true)
	v.SetDefault("sync.interval", 15*time.Minute)
	v.SetDefault("sync.lock_timeout", 60*time.Second)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	for key := range flagBindings {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv(envName("auth.api_keys"))
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	settings.Index.BaseDir = expandHomeDir(settings.Index.BaseDir)
	settings.Index.IndexDir = expandHomeDir(settings.Index.IndexDir)
	settings.Index.TaxonomyDir = expandHomeDir(settings.Index.TaxonomyDir)

	return &settings, nil
}

// envName returns the environment variable bound to a settings key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// defaultBaseDir returns the default base directory for indexes and sync state
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relic-history"
	}
	return filepath.Join(home, ".relic-history")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// Locations returns the index and taxonomy directories for a repository id.
// Explicitly configured directories win over the BaseDir layout.
func (s IndexSettings) Locations(repoID string) (indexDir, taxonomyDir string) {
	indexes := filepath.Join(s.BaseDir, "indexes")
	indexDir = s.IndexDir
	if indexDir == "" {
		indexDir = filepath.Join(indexes, repoID+indexing.IndexSuffix)
	}
	taxonomyDir = s.TaxonomyDir
	if taxonomyDir == "" {
		taxonomyDir = filepath.Join(indexes, repoID+indexing.TaxonomySuffix)
	}
	return indexDir, taxonomyDir
}

// ValidateSettings checks for conflicting configurations.
// Returns an error wrapping domain.ErrConfiguration if the settings are
// invalid or contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	if err := validate(s); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

func validate(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateIndexSettings(&s.Index); err != nil {
		return err
	}
	if err := validateSourceSettings(&s.Source); err != nil {
		return err
	}
	if err := validateSearchSettings(&s.Search); err != nil {
		return err
	}
	return validateSyncSettings(&s.Sync)
}

// validateIndexSettings validates the index locations and open mode
func validateIndexSettings(i *IndexSettings) error {
	if i.BaseDir == "" {
		return errors.New("base-dir cannot be empty")
	}
	if i.IndexDir != "" && i.TaxonomyDir != "" && filepath.Clean(i.IndexDir) == filepath.Clean(i.TaxonomyDir) {
		return errors.New("index-dir and taxonomy-dir must differ")
	}
	if _, err := indexing.ParseOpenMode(i.OpenMode); err != nil {
		return fmt.Errorf("open-mode: %w", err)
	}
	return nil
}

// validateSourceSettings validates the revision source configuration
func validateSourceSettings(src *SourceSettings) error {
	provider, err := sourcecontrol.ParseProviderType(src.Provider)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if provider != sourcecontrol.ProviderMemory && src.Location == "" {
		return fmt.Errorf("provider '%s' requires a repository location", provider)
	}
	if src.Timeout <= 0 {
		return errors.New("source-timeout must be positive")
	}
	return nil
}

// validateSearchSettings validates the search defaults
func validateSearchSettings(s *SearchSettings) error {
	if s.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}
	if _, err := search.ParseSort(s.Sort); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	return nil
}

// validateSyncSettings validates the sync configuration
func validateSyncSettings(s *SyncSettings) error {
	if s.Interval < 0 {
		return errors.New("sync-interval cannot be negative")
	}
	if s.LockTimeout <= 0 {
		return errors.New("sync-lock-timeout must be positive")
	}
	return nil
}
