package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/snapetech/sdguide/internal/httpclient"
	"github.com/snapetech/sdguide/internal/livetv"
	"github.com/snapetech/sdguide/internal/logging"
)

const (
	// EnvPrefix is stripped from environment variables before mapping them to keys:
	// SDGUIDE_SD_LISTINGS_ID -> sd.listings_id.
	EnvPrefix = "SDGUIDE_"
	// PathEnvVar names an optional YAML config file.
	PathEnvVar = "SDGUIDE_CONFIG"

	DefaultBaseURL = "https://json.schedulesdirect.org/20141201"
)

// Config holds Schedules Direct credentials plus guide, HTTP, logging and metrics settings.
// Load layers defaults, an optional YAML file, then SDGUIDE_* environment variables.
type Config struct {
	SD      SDConfig      `koanf:"sd"`
	Guide   GuideConfig   `koanf:"guide"`
	HTTP    HTTPConfig    `koanf:"http"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

type SDConfig struct {
	Username   string `koanf:"username"`
	Password   string `koanf:"password"` // plain text or lowercase SHA-1 hex
	ListingsID string `koanf:"listings_id"`
	// CredentialsFile holds "Username:" / "Password:" lines; used when username or password is unset.
	CredentialsFile string        `koanf:"credentials_file"`
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	UserAgent       string        `koanf:"user_agent"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit       float64       `koanf:"rate_limit" validate:"gte=0"` // requests/sec; 0 = unlimited
	RateBurst       int           `koanf:"rate_burst" validate:"gte=1"`
	Country         string        `koanf:"country"`
	PostalCode      string        `koanf:"postal_code"`
}

type GuideConfig struct {
	Days        int    `koanf:"days" validate:"gte=1,lte=21"`
	Concurrency int    `koanf:"concurrency" validate:"gte=1,lte=32"`
	Format      string `koanf:"format" validate:"oneof=json xmltv"`
	Output      string `koanf:"output"` // "" or "-" = stdout
}

type HTTPConfig struct {
	Proxy   string `koanf:"proxy" validate:"omitempty,url"`
	NoProxy string `koanf:"no_proxy"`
}

type LogConfig struct {
	Level      string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format     string `koanf:"format" validate:"oneof=json console"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

type MetricsConfig struct {
	Textfile string `koanf:"textfile"` // node_exporter textfile path; "" = disabled
}

// sections are the top-level keys; the first underscore after one of them becomes a dot.
var sections = []string{"sd", "guide", "http", "log", "metrics"}

func defaultConfig() *Config {
	return &Config{
		SD: SDConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   30 * time.Second,
			RateLimit: 5,
			RateBurst: 5,
			Country:   "USA",
		},
		Guide: GuideConfig{
			Days:        3,
			Concurrency: 4,
			Format:      "xmltv",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (or $SDGUIDE_CONFIG when path
// is empty; no file is fine), and SDGUIDE_* environment variables, then validates it.
// Call LoadEnvFile(".env") before Load to pick up a .env file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		path = filepath.Clean(path)
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	c.SD.BaseURL = strings.TrimSuffix(c.SD.BaseURL, "/")
	if c.SD.Username == "" || c.SD.Password == "" {
		if user, pass, err := readCredentialsFile(c.SD.CredentialsFile); err == nil {
			if c.SD.Username == "" {
				c.SD.Username = user
			}
			if c.SD.Password == "" {
				c.SD.Password = pass
			}
		} else if c.SD.CredentialsFile != "" {
			return nil, fmt.Errorf("config: credentials file: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// envKey maps SDGUIDE_SD_LISTINGS_ID to sd.listings_id. Variables outside a known
// section (including SDGUIDE_CONFIG) are ignored.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if rest, ok := strings.CutPrefix(key, sec+"_"); ok && rest != "" {
			return sec + "." + rest
		}
	}
	return ""
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field shapes. Credentials are not required here: each command
// reports missing credentials itself.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

// ProviderInfo returns the credentials used by the listings provider.
func (c *Config) ProviderInfo() livetv.ProviderInfo {
	return livetv.ProviderInfo{
		Username:   c.SD.Username,
		Password:   c.SD.Password,
		ListingsID: c.SD.ListingsID,
	}
}

// HTTPOptions returns client settings for httpclient.New.
func (c *Config) HTTPOptions() httpclient.Options {
	return httpclient.Options{
		Timeout: c.SD.Timeout,
		Proxy:   c.HTTP.Proxy,
		NoProxy: c.HTTP.NoProxy,
	}
}

// Logging returns the logger settings for logging.Init.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// readCredentialsFile reads "Username: x" and "Password: x" from path.
func readCredentialsFile(path string) (user, pass string, err error) {
	if path == "" {
		return "", "", os.ErrNotExist
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "Username:"); ok {
			user = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "Password:"); ok {
			pass = strings.TrimSpace(v)
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if user == "" || pass == "" {
		return "", "", fmt.Errorf("missing Username or Password in %s", path)
	}
	return user, pass, nil
}
