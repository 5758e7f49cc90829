// Package config loads harvester settings from a YAML file, LH_-prefixed
// environment variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "linkharvest"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LH"
)

// Store names.
const (
	StoreNotion = "notion"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// ValidStores lists the supported destination stores.
var ValidStores = []string{StoreNotion, StoreSQLite, StoreMongo}

var (
	// ErrMissingCredential is returned when a required secret is empty.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalid is returned for values that cannot be used.
	ErrInvalid = errors.New("invalid configuration")
)

// NotionProperties names the Notion database columns.
type NotionProperties struct {
	Title    string `mapstructure:"title" yaml:"title"`
	URL      string `mapstructure:"url" yaml:"url"`
	SharedBy string `mapstructure:"shared_by" yaml:"shared_by"`
	SharedOn string `mapstructure:"shared_on" yaml:"shared_on"`
}

// Config is the full harvester configuration.
type Config struct {
	SlackBotToken  string `mapstructure:"slack_bot_token" yaml:"slack_bot_token"`
	SlackChannelID string `mapstructure:"slack_channel_id" yaml:"slack_channel_id"`
	Oldest         string `mapstructure:"oldest" yaml:"oldest"` // RFC 3339 or unix seconds

	Store            string           `mapstructure:"store" yaml:"store"`
	NotionToken      string           `mapstructure:"notion_token" yaml:"notion_token"`
	NotionDatabaseID string           `mapstructure:"notion_database_id" yaml:"notion_database_id"`
	NotionProperties NotionProperties `mapstructure:"notion_properties" yaml:"notion_properties"`
	SQLitePath       string           `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI         string           `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase    string           `mapstructure:"mongo_database" yaml:"mongo_database"`
	MongoCollection  string           `mapstructure:"mongo_collection" yaml:"mongo_collection"`

	CrossrefMailto string        `mapstructure:"crossref_mailto" yaml:"crossref_mailto"`
	ADSToken       string        `mapstructure:"ads_token" yaml:"ads_token"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RespectRobots  bool          `mapstructure:"respect_robots" yaml:"respect_robots"`

	Timezone       string `mapstructure:"timezone" yaml:"timezone"`
	HeuristicsFile string `mapstructure:"heuristics_file" yaml:"heuristics_file"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
	DryRun         bool   `mapstructure:"dry_run" yaml:"dry_run"`
	Journal        string `mapstructure:"journal" yaml:"journal"`
}

// defaults are applied before the file and environment.
var defaults = map[string]any{
	"slack_bot_token":             "",
	"slack_channel_id":            "",
	"oldest":                      "",
	"store":                       StoreNotion,
	"notion_token":                "",
	"notion_database_id":          "",
	"notion_properties.title":     "Article Name",
	"notion_properties.url":       "URL or Permalink",
	"notion_properties.shared_by": "Shared by",
	"notion_properties.shared_on": "Shared on",
	"sqlite_path":                 "~/.local/share/linkharvest/links.db",
	"mongo_uri":                   "",
	"mongo_database":              "linkharvest",
	"mongo_collection":            "links",
	"crossref_mailto":             "",
	"ads_token":                   "",
	"user_agent":                  "",
	"timeout":                     "20s",
	"max_retries":                 3,
	"respect_robots":              false,
	"timezone":                    "America/Chicago",
	"heuristics_file":             "",
	"log_level":                   "info",
	"dry_run":                     false,
	"journal":                     "",
}

// unprefixed are the conventional variable names also honored, after the
// LH_ form.
var unprefixed = map[string]string{
	"slack_bot_token":    "SLACK_BOT_TOKEN",
	"slack_channel_id":   "SLACK_CHANNEL_ID",
	"notion_token":       "NOTION_TOKEN",
	"notion_database_id": "NOTION_DATABASE_ID",
	"ads_token":          "ADS_API_TOKEN",
	"crossref_mailto":    "CROSSREF_MAILTO",
	"mongo_uri":          "MONGO_URI",
}

// Path returns the default config file path.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/linkharvest/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads the config file at path (the default path when empty; a
// missing default file is not an error) and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range unprefixed {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = Path()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SQLitePath = ExpandPath(cfg.SQLitePath)
	cfg.HeuristicsFile = ExpandPath(cfg.HeuristicsFile)
	cfg.Journal = ExpandPath(cfg.Journal)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	return &cfg, nil
}

// Validate checks values that do not depend on which command runs.
func (c *Config) Validate() error {
	var errs []error
	if !isValidStore(c.Store) {
		errs = append(errs, fmt.Errorf("%w: store %q (want one of %s)", ErrInvalid, c.Store, strings.Join(ValidStores, ", ")))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: max_retries must be >= 0", ErrInvalid))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrInvalid))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("%w: timezone %q", ErrInvalid, c.Timezone))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel))
	}
	if _, err := c.OldestTime(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// ValidateRun checks the credentials a harvest run needs: the Slack token
// and channel, and the selected store's settings unless dryRun is set.
func (c *Config) ValidateRun(dryRun bool) error {
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingCredential, name))
	}
	if c.SlackBotToken == "" {
		missing("slack_bot_token (SLACK_BOT_TOKEN)")
	}
	if c.SlackChannelID == "" {
		missing("slack_channel_id (SLACK_CHANNEL_ID)")
	}
	if !dryRun {
		switch c.Store {
		case StoreNotion:
			if c.NotionToken == "" {
				missing("notion_token (NOTION_TOKEN)")
			}
			if c.NotionDatabaseID == "" {
				missing("notion_database_id (NOTION_DATABASE_ID)")
			}
		case StoreSQLite:
			if c.SQLitePath == "" {
				missing("sqlite_path")
			}
		case StoreMongo:
			if c.MongoURI == "" {
				missing("mongo_uri (MONGO_URI)")
			}
		}
	}
	return errors.Join(errs...)
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// OldestTime parses Oldest as RFC 3339, a date, or unix seconds. Empty
// means the whole history.
func (c *Config) OldestTime() (time.Time, error) {
	return ParseOldest(c.Oldest)
}

// ParseOldest parses an --oldest value.
func ParseOldest(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("oldest %q: want RFC 3339, YYYY-MM-DD or unix seconds", s)
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 8 {
			return "****"
		}
		return s[:4] + "…" + s[len(s)-2:]
	}
	c.SlackBotToken = mask(c.SlackBotToken)
	c.NotionToken = mask(c.NotionToken)
	c.ADSToken = mask(c.ADSToken)
	if c.MongoURI != "" {
		c.MongoURI = redactURI(c.MongoURI)
	}
	return c
}

// redactURI hides the password in user:pass@host URIs.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return uri
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":****@" + host
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}

func isValidStore(s string) bool {
	for _, v := range ValidStores {
		if s == v {
			return true
		}
	}
	return false
}
