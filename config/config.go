package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/strata-site/strata/router"
)

// RouteConfig binds one route pattern to a content collection. Dynamic
// segments are filled from entry attributes at build time: [slug] from the
// entry slug, any other name from the entry's frontmatter.
type RouteConfig struct {
	Pattern    string `mapstructure:"pattern"`
	Collection string `mapstructure:"collection"`
}

// ServerConfig groups request-time settings for serve mode.
type ServerConfig struct {
	Listen            string `mapstructure:"listen"`
	HandlerTimeoutSec int    `mapstructure:"handlerTimeoutSec"`
	EnableTLS         bool   `mapstructure:"enableTLS"`
	TLSCert           string `mapstructure:"tlsCert"`
	TLSKey            string `mapstructure:"tlsKey"`
	WebhookSecret     string `mapstructure:"webhookSecret"`
	CORSOrigin        string `mapstructure:"corsOrigin"`
}

// Config encapsulates build-time and serve-time options.
type Config struct {
	SiteName    string        `mapstructure:"siteName"`
	BaseURL     string        `mapstructure:"baseUrl"`
	ContentDir  string        `mapstructure:"contentDir"`
	StaticDir   string        `mapstructure:"staticDir"`
	TemplateDir string        `mapstructure:"templateDir"`
	OutputDir   string        `mapstructure:"outputDir"`
	HomeDoc     string        `mapstructure:"homeDoc"`
	Routes      []RouteConfig `mapstructure:"routes"`
	PublicEnv   []string      `mapstructure:"publicEnv"`
	GitMetadata bool          `mapstructure:"gitMetadata"`
	LogLevel    string        `mapstructure:"logLevel"`
	Server      ServerConfig  `mapstructure:"server"`

	HandlerTimeout time.Duration `mapstructure:"-"`

	env *Env
}

// Load reads configuration from the given file (or ./config.yaml when empty),
// applies environment overrides with the STRATA_ prefix, then defaults and
// validation.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STRATA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if file != "" {
			return nil, fmt.Errorf("config file %s not found: %w", file, err)
		}
		// No config file is fine; defaults plus environment apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	c.SiteName = strings.TrimSpace(c.SiteName)
	if c.SiteName == "" {
		c.SiteName = "Strata Site"
	}
	if c.ContentDir == "" {
		c.ContentDir = "./content"
	}
	if c.TemplateDir == "" {
		c.TemplateDir = "./template"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./dist"
	}
	c.HomeDoc = normalizeHomeDoc(c.HomeDoc)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.Routes) == 0 {
		c.Routes = []RouteConfig{{Pattern: "/blog/[slug]", Collection: "blog"}}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.HandlerTimeoutSec <= 0 {
		c.Server.HandlerTimeoutSec = 15
	}
	c.HandlerTimeout = time.Duration(c.Server.HandlerTimeoutSec) * time.Second

	c.env = newEnv(c.PublicEnv)
	return nil
}

func (c *Config) validate() error {
	seen := make([]router.Pattern, 0, len(c.Routes))
	for _, route := range c.Routes {
		pattern, err := router.Parse(route.Pattern)
		if err != nil {
			return fmt.Errorf("route %q: %w", route.Pattern, err)
		}
		if len(pattern.ParamNames()) == 0 {
			return fmt.Errorf("route %q declares no dynamic segments", route.Pattern)
		}
		if strings.TrimSpace(route.Collection) == "" {
			return fmt.Errorf("route %q has no collection", route.Pattern)
		}
		for _, prev := range seen {
			if pattern.ConflictsWith(prev) {
				return fmt.Errorf("route %q: %w with %q", route.Pattern, router.ErrRouteConflict, prev.String())
			}
		}
		seen = append(seen, pattern)
	}
	if c.Server.EnableTLS {
		if c.Server.TLSCert == "" || c.Server.TLSKey == "" {
			return fmt.Errorf("tls enabled but certificates missing")
		}
	}
	if secret := strings.TrimSpace(c.Server.WebhookSecret); secret != "" {
		if n := len(secret); n < 8 || n > 128 {
			return fmt.Errorf("webhook secret must be between 8 and 128 characters")
		}
	}
	return nil
}

// Env returns the environment bindings derived from this configuration.
func (c *Config) Env() *Env {
	if c.env == nil {
		c.env = newEnv(c.PublicEnv)
	}
	return c.env
}

// Env exposes process environment variables to handlers and, for variables
// flagged public, to build-time rendering. Unflagged variables never leave
// server-side handler execution.
type Env struct {
	public map[string]struct{}
}

func newEnv(publicNames []string) *Env {
	e := &Env{public: make(map[string]struct{}, len(publicNames))}
	for _, name := range publicNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		e.public[name] = struct{}{}
	}
	return e
}

// Get reads a variable from the process environment.
func (e *Env) Get(name string) string {
	return os.Getenv(name)
}

// IsPublic reports whether the variable may be exposed at build time.
func (e *Env) IsPublic(name string) bool {
	_, ok := e.public[name]
	return ok
}

// Public returns the current values of all public variables.
func (e *Env) Public() map[string]string {
	out := make(map[string]string, len(e.public))
	for name := range e.public {
		out[name] = os.Getenv(name)
	}
	return out
}

func normalizeHomeDoc(input string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(input, "\\", "/"))
	if trimmed == "" {
		trimmed = "index.md"
	}
	if !strings.HasSuffix(strings.ToLower(trimmed), ".md") {
		trimmed += ".md"
	}
	cleaned := path.Clean(trimmed)
	cleaned = strings.TrimPrefix(cleaned, "./")
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || strings.HasPrefix(cleaned, "..") {
		cleaned = "index.md"
	}
	return cleaned
}
