package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted for connection settings.
const (
	EnvServerURL  = "JIRA_SERVER_URL"
	EnvUsername   = "JIRA_USERNAME"
	EnvAPIToken   = "JIRA_API_TOKEN"
	EnvBackend    = "JIRA_LOADER_BACKEND"
	EnvAPIVersion = "JIRA_LOADER_API_VERSION"
)

// Token sources.
const (
	TokenSourceFile    = "file"
	TokenSourceKeyring = "keyring"
)

// DefaultTimeoutSeconds bounds a single HTTP round trip to Jira.
const DefaultTimeoutSeconds = 30

// Config holds Jira connection and loader settings.
type Config struct {
	URL            string `yaml:"url"                       mapstructure:"url"`
	Username       string `yaml:"username"                  mapstructure:"username"`
	Token          string `yaml:"token,omitempty"           mapstructure:"token"`
	TokenSource    string `yaml:"token_source,omitempty"    mapstructure:"token_source"`
	Backend        string `yaml:"backend,omitempty"         mapstructure:"backend"`
	APIVersion     int    `yaml:"api_version,omitempty"     mapstructure:"api_version"`
	JQL            string `yaml:"jql,omitempty"             mapstructure:"jql"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// DefaultPath returns the default config file path (~/.jira-loader.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jira-loader.yaml"
	}
	return filepath.Join(home, ".jira-loader.yaml")
}

// Load reads config from the YAML file and applies env var overrides.
// configPath may be empty to use the default path. A .env file in the
// working directory is loaded first; it never overrides variables that
// are already set.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper(configPath)
	v.BindEnv("url", EnvServerURL)
	v.BindEnv("username", EnvUsername)
	v.BindEnv("token", EnvAPIToken)
	v.BindEnv("backend", EnvBackend)
	v.BindEnv("api_version", EnvAPIVersion)

	return read(v)
}

// LoadFile reads only the YAML file plus defaults, ignoring the
// environment. Use it when the result is written back with Save, so that
// env-only secrets never end up on disk. A missing file is not an error.
func LoadFile(configPath string) (Config, error) {
	return read(newViper(configPath))
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	if configPath == "" {
		configPath = DefaultPath()
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("backend", "rest")
	v.SetDefault("api_version", 2)
	v.SetDefault("token_source", TokenSourceFile)
	v.SetDefault("timeout_seconds", DefaultTimeoutSeconds)
	return v
}

func read(v *viper.Viper) (Config, error) {
	// Read the config file (ignore "not found" errors so env vars still work)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings that have a fixed set of legal values.
// Credentials are not checked here; they are resolved at load time.
func (c Config) Validate() error {
	if c.APIVersion != 0 && c.APIVersion != 2 && c.APIVersion != 3 {
		return fmt.Errorf("api_version must be 2 or 3, got %d", c.APIVersion)
	}
	switch c.TokenSource {
	case "", TokenSourceFile, TokenSourceKeyring:
	default:
		return fmt.Errorf("token_source must be %q or %q, got %q", TokenSourceFile, TokenSourceKeyring, c.TokenSource)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

// Save writes the config to the given path (or default path if empty).
// The token is left out of the file when it lives in the keyring.
func Save(cfg Config, configPath string) error {
	if configPath == "" {
		configPath = DefaultPath()
	}

	if cfg.TokenSource == TokenSourceKeyring {
		cfg.Token = ""
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
