// Package config loads folio settings from YAML with FOLIO_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ByLCY/folio/export"
	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/paginate"
	"github.com/ByLCY/folio/printdoc"
	"github.com/ByLCY/folio/sanitize"
)

// EnvPrefix 环境变量前缀。
const EnvPrefix = "FOLIO_"

// Config is the full application configuration.
type Config struct {
	Page     PageConfig              `yaml:"page"`
	Capture  CaptureConfig           `yaml:"capture"`
	Colors   ColorConfig             `yaml:"colors"`
	Branding printdoc.BrandingConfig `yaml:"branding"`
	Output   OutputConfig            `yaml:"output"`
	Server   ServerConfig            `yaml:"server"`
	Chrome   ChromeConfig            `yaml:"chrome"`
	Log      logger.Config           `yaml:"log"`
}

// PageConfig selects the physical page.
type PageConfig struct {
	Size        string `yaml:"size"`
	Orientation string `yaml:"orientation"`
}

// CaptureConfig controls rasterization and pagination.
type CaptureConfig struct {
	// Width 为模板未声明宽度时的截取宽度（px）。
	Width      float64       `yaml:"width"`
	Tolerance  float64       `yaml:"tolerance"`
	Scale      float64       `yaml:"scale"`
	Background string        `yaml:"background"`
	Settle     time.Duration `yaml:"settle"`
	// AssetDir 为相对路径图片与字体的根目录。
	AssetDir string `yaml:"asset_dir"`
}

// ColorConfig replaces the built-in color fallback rules when Rules is set.
type ColorConfig struct {
	Rules    []sanitize.Rule           `yaml:"rules"`
	Defaults map[sanitize.Group]string `yaml:"defaults"`
}

// OutputConfig 输出目录。
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig configures `folio serve`.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// MaxBody 为请求体上限（字节）。
	MaxBody int64 `yaml:"max_body"`
}

// ChromeConfig configures the headless print browser.
type ChromeConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Page: PageConfig{Size: "A4", Orientation: "portrait"},
		Capture: CaptureConfig{
			Width:      1200,
			Tolerance:  paginate.DefaultTolerance,
			Scale:      2,
			Background: "#ffffff",
			Settle:     export.DefaultSettle,
		},
		Branding: printdoc.BrandingConfig{CurrencyPrefix: "$"},
		Output:   OutputConfig{Dir: "."},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute,
			MaxBody:      8 << 20,
		},
		Chrome: ChromeConfig{Timeout: 60 * time.Second},
		Log:    logger.Config{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FOLIO_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("PAGE_SIZE", &c.Page.Size)
	str("ORIENTATION", &c.Page.Orientation)
	num("CAPTURE_WIDTH", &c.Capture.Width)
	num("TOLERANCE", &c.Capture.Tolerance)
	num("SCALE", &c.Capture.Scale)
	str("BACKGROUND", &c.Capture.Background)
	dur("SETTLE", &c.Capture.Settle)
	str("ASSET_DIR", &c.Capture.AssetDir)
	str("OUTPUT_DIR", &c.Output.Dir)
	str("ADDR", &c.Server.Addr)
	str("CHROME_PATH", &c.Chrome.Path)
	dur("CHROME_TIMEOUT", &c.Chrome.Timeout)
	str("LOG_LEVEL", &c.Log.Level)
	str("STORE_NAME", &c.Branding.StoreName)
	str("CURRENCY_PREFIX", &c.Branding.CurrencyPrefix)
	str("LOGO_URL", &c.Branding.LogoURL)
	return errors.Join(errs...)
}

// Validate checks values that would otherwise fail deep inside an export.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.PageSize(); err != nil {
		errs = append(errs, err)
	}
	if c.Capture.Width <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.width must be positive, got %g", c.Capture.Width))
	}
	if c.Capture.Scale <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.scale must be positive, got %g", c.Capture.Scale))
	}
	if c.Capture.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("config: capture.tolerance must not be negative, got %g", c.Capture.Tolerance))
	}
	if _, err := c.RuleTable(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PageSize resolves the configured page.
func (c Config) PageSize() (paginate.PageSize, error) {
	return paginate.LookupPageSize(c.Page.Size, c.Page.Orientation)
}

// RuleTable builds the color fallback table; no configured rules means the
// built-in ones.
func (c Config) RuleTable() (*sanitize.RuleTable, error) {
	rules := c.Colors.Rules
	if len(rules) == 0 {
		rules = sanitize.DefaultRules()
	}
	return sanitize.NewRuleTable(rules, c.Colors.Defaults)
}

// Export returns the pipeline settings.
func (c Config) Export() (export.Config, error) {
	page, err := c.PageSize()
	if err != nil {
		return export.Config{}, err
	}
	rules, err := c.RuleTable()
	if err != nil {
		return export.Config{}, err
	}
	return export.Config{
		Page:       page,
		Tolerance:  c.Capture.Tolerance,
		Scale:      c.Capture.Scale,
		Background: c.Capture.Background,
		Settle:     c.Capture.Settle,
		Rules:      rules,
	}, nil
}
