package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jgivc/csclient/internal/common"
	"github.com/jgivc/csclient/internal/validator"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvServer      = "CRYPTSHARE_SERVER"
	EnvSenderEmail = "CRYPTSHARE_SENDER_EMAIL"
	EnvSenderName  = "CRYPTSHARE_SENDER_NAME"
	EnvSenderPhone = "CRYPTSHARE_SENDER_PHONE"
	EnvAPIVersion  = "CRYPTSHARE_API_VERSION"
	EnvRedisURL    = "CRYPTSHARE_REDIS_URL"
	EnvLogLevel    = "CRYPTSHARE_LOG_LEVEL"

	defaultAPIVersion     = "1.9"
	defaultTimeout        = 30 * time.Second
	defaultStorePath      = "client_store.json"
	defaultExpirationDays = 7
	defaultDownloadDir    = "."
	defaultEnvFile        = ".env"
)

type SenderConfig struct {
	Name     string `yaml:"name"`
	Phone    string `yaml:"phone"`
	Email    string `yaml:"email"`
	Language string `yaml:"language"`
}

// StoreConfig selects where verification tokens live. A redis url wins over path.
type StoreConfig struct {
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
}

type Config struct {
	Server         string        `yaml:"server"`
	APIVersion     string        `yaml:"api_version"`
	Timeout        time.Duration `yaml:"timeout"`
	Insecure       bool          `yaml:"insecure"`
	LogLevel       string        `yaml:"log_level"`
	ExpirationDays int           `yaml:"expiration_days"`
	DownloadDir    string        `yaml:"download_dir"`
	Sender         SenderConfig  `yaml:"sender"`
	Store          StoreConfig   `yaml:"store"`
}

func (c *Config) SetDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}

	if c.ExpirationDays <= 0 {
		c.ExpirationDays = defaultExpirationDays
	}

	if c.DownloadDir == "" {
		c.DownloadDir = defaultDownloadDir
	}

	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
}

// ApplyEnv overrides file values with CRYPTSHARE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		EnvServer:      &c.Server,
		EnvSenderEmail: &c.Sender.Email,
		EnvSenderName:  &c.Sender.Name,
		EnvSenderPhone: &c.Sender.Phone,
		EnvAPIVersion:  &c.APIVersion,
		EnvRedisURL:    &c.Store.RedisURL,
		EnvLogLevel:    &c.LogLevel,
	} {
		if value, ok := lookup(env); ok && strings.TrimSpace(value) != "" {
			*field = strings.TrimSpace(value)
		}
	}
}

func (c *Config) Validate() error {
	if !validator.IsValidServerURL(c.Server) {
		return fmt.Errorf("%w: %q", common.ErrInvalidServerURL, c.Server)
	}

	if !validator.IsValidEmailOrBlank(c.Sender.Email) {
		return fmt.Errorf("%w: %q", common.ErrInvalidEmail, c.Sender.Email)
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}

// Load reads .env and the config file from disk. A blank path means env only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load %s: %w", defaultEnvFile, err)
	}

	return LoadWithFS(afero.NewOsFs(), path, os.LookupEnv)
}

func LoadWithFS(fs afero.Fs, path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		content, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(lookup)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}
