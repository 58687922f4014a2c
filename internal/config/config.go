// Package config loads the ptsites configuration from viper and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/ptsites/internal/llm"
	"github.com/jmylchreest/ptsites/internal/logger"
	"github.com/jmylchreest/ptsites/internal/scheduler"
	"github.com/jmylchreest/ptsites/pkg/site"
	"github.com/jmylchreest/ptsites/pkg/vision"
)

// Config is the full ptsites configuration.
type Config struct {
	Sites  []site.Descriptor `mapstructure:"sites" yaml:"sites" validate:"dive"`
	Vision vision.Config     `mapstructure:"vision" yaml:"vision"`

	// DataDir holds the answer cache and the database unless they are set
	// explicitly.
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`
	Database  string `mapstructure:"database" yaml:"database"`

	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	OpenCheck OpenCheckConfig `mapstructure:"opencheck" yaml:"opencheck"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
}

// TransportConfig configures site fetching.
type TransportConfig struct {
	Proxy          string        `mapstructure:"proxy" yaml:"proxy" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Attempts       int           `mapstructure:"attempts" yaml:"attempts" validate:"min=1,max=10"`
	Interval       time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout" yaml:"browser_timeout" validate:"gt=0"`
}

// OpenCheckConfig configures registration checks.
type OpenCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	// IncludePublic also checks sites marked public.
	IncludePublic bool `mapstructure:"include_public" yaml:"include_public"`
}

// ScheduleConfig holds the cron expressions of the serve command. An empty
// expression disables the job.
type ScheduleConfig struct {
	SignIn    string        `mapstructure:"signin" yaml:"signin" validate:"omitempty,cron"`
	Medals    string        `mapstructure:"medals" yaml:"medals" validate:"omitempty,cron"`
	OpenCheck string        `mapstructure:"opencheck" yaml:"opencheck" validate:"omitempty,cron"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// SetDefaults registers the default values on v. Nested keys need a default
// to be reachable through environment variables.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("cache_path", "")
	v.SetDefault("database", "")

	v.SetDefault("vision.provider", "")
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "")
	v.SetDefault("vision.model", "")
	v.SetDefault("vision.proxy", "")
	v.SetDefault("vision.compatible", false)
	v.SetDefault("vision.timeout", 60*time.Second)
	v.SetDefault("vision.max_retries", 2)

	v.SetDefault("transport.proxy", "")
	v.SetDefault("transport.timeout", 20*time.Second)
	v.SetDefault("transport.attempts", 2)
	v.SetDefault("transport.interval", 5*time.Second)
	v.SetDefault("transport.browser_timeout", 60*time.Second)

	v.SetDefault("opencheck.timeout", 15*time.Second)
	v.SetDefault("opencheck.include_public", false)

	v.SetDefault("schedule.signin", "0 9 * * *")
	v.SetDefault("schedule.medals", "30 9 * * *")
	v.SetDefault("schedule.opencheck", "0 10 * * *")
	v.SetDefault("schedule.timeout", scheduler.DefaultTimeout)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ptsites")
	}
	return ".ptsites"
}

// Load applies defaults, unmarshals v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.fill()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fill() {
	if c.CachePath == "" {
		c.CachePath = filepath.Join(c.DataDir, "answers.json")
	}
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "ptsites.db")
	}
	for i := range c.Sites {
		if c.Sites[i].ID == "" {
			c.Sites[i].ID = strings.ToLower(c.Sites[i].Name)
		}
	}
}

// Validate checks struct tags and that site ids are unique.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return scheduler.Validate(fl.Field().String()) == nil
	}); err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, formatValidationError(e))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	seen := make(map[string]bool, len(c.Sites))
	for _, d := range c.Sites {
		if seen[d.ID] {
			return fmt.Errorf("invalid config: duplicate site id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", field, e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, e.Param())
	case "cron":
		return fmt.Sprintf("%s is not a valid cron expression: %q", field, e.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", field, e.Tag(), e.Param())
	}
}

// SiteTransport returns the settings for site fetching.
func (c *Config) SiteTransport() site.TransportConfig {
	return site.TransportConfig{
		ProxyURL:       c.Transport.Proxy,
		Timeout:        c.Transport.Timeout,
		Attempts:       c.Transport.Attempts,
		Interval:       c.Transport.Interval,
		BrowserTimeout: c.Transport.BrowserTimeout,
	}
}

// CheckTransport returns the settings for registration checks, which use a
// shorter timeout.
func (c *Config) CheckTransport() site.TransportConfig {
	tc := c.SiteTransport()
	tc.Timeout = c.OpenCheck.Timeout
	return tc
}

// Site returns the configured site with the given id.
func (c *Config) Site(id string) (site.Descriptor, bool) {
	for _, d := range c.Sites {
		if strings.EqualFold(d.ID, id) {
			return d, true
		}
	}
	return site.Descriptor{}, false
}

// LoadDotEnv loads environment files that exist, earlier files winning.
// Missing files are ignored.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			logger.Debug("loaded environment file", "path", f)
		}
	}
}

// ResolveVision fills the vision backend from well-known API key variables
// when no key is configured, then fills model and endpoint defaults for the
// chosen provider.
func (c *Config) ResolveVision() {
	v := &c.Vision
	if v.APIKey == "" {
		if name, key := llm.DetectProvider(); name != "" && (v.Provider == "" || v.Provider == name) {
			v.Provider, v.APIKey = name, key
			logger.Debug("vision provider detected from environment", "provider", name)
		}
	}
	if v.APIKey == "" {
		return
	}
	if v.Provider == "" {
		v.Provider = "openai"
	}
	if v.Model == "" {
		v.Model = llm.GetDefaultModel(v.Provider)
	}
	if v.BaseURL == "" {
		v.BaseURL = llm.GetDefaultBaseURL(v.Provider)
	}
}
