package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sonargap/internal/browser"
	"sonargap/internal/loader"
	"sonargap/internal/logging"
	"sonargap/internal/report"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "sonargap.yaml"

// Config holds all sonargap configuration.
type Config struct {
	// HTTP document loading
	Fetch FetchConfig `yaml:"fetch"`

	// Headless Chrome rendering
	Browser BrowserConfig `yaml:"browser"`

	// Row classification and retry
	Extraction ExtractionConfig `yaml:"extraction"`

	// Report output
	Output OutputConfig `yaml:"output"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			UserAgent:         loader.DefaultUserAgent,
			Timeout:           "0s",
			RequestsPerSecond: 4,
			Burst:             2,
			MaxBodyBytes:      loader.DefaultMaxBodyBytes,
		},

		Browser: BrowserConfig{
			Enabled:  true,
			Headless: true,
			Viewport: ViewportConfig{
				Width:  1280,
				Height: 720,
			},
			LoadTimeout:    "20s",
			WaitTimeout:    "12s",
			WaitInterval:   "300ms",
			MarkerTimeout:  "3s",
			MarkerInterval: "200ms",
		},

		Extraction: ExtractionConfig{
			ColorHeuristic: false,
			Retry: RetryConfig{
				Enabled:              true,
				MinIndicatorOnlyRows: 1,
				MinFilteredRows:      1,
				MinIndicatorRows:     1,
			},
		},

		Output: OutputConfig{
			Format:   FormatMarkdown,
			Dir:      ".",
			WordWrap: 100,
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if ua := os.Getenv("SONARGAP_USER_AGENT"); ua != "" {
		c.Fetch.UserAgent = ua
	}
	if token := os.Getenv("SONARGAP_TOKEN"); token != "" {
		c.Fetch.Token = token
	}

	// Chrome location
	if bin := os.Getenv("SONARGAP_CHROME_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if url := os.Getenv("SONARGAP_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}

	if level := os.Getenv("SONARGAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if dir := os.Getenv("SONARGAP_OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must not be negative, got %v", c.Fetch.RequestsPerSecond)
	}
	if c.Fetch.Burst < 0 {
		return fmt.Errorf("fetch.burst must not be negative, got %d", c.Fetch.Burst)
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must not be negative, got %d", c.Fetch.MaxBodyBytes)
	}
	if c.Browser.Viewport.Width < 0 || c.Browser.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport must not be negative, got %dx%d", c.Browser.Viewport.Width, c.Browser.Viewport.Height)
	}

	durations := []struct {
		key, value string
	}{
		{"fetch.timeout", c.Fetch.Timeout},
		{"browser.load_timeout", c.Browser.LoadTimeout},
		{"browser.wait_timeout", c.Browser.WaitTimeout},
		{"browser.wait_interval", c.Browser.WaitInterval},
		{"browser.marker_timeout", c.Browser.MarkerTimeout},
		{"browser.marker_interval", c.Browser.MarkerInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if v, err := time.ParseDuration(d.value); err != nil || v < 0 {
			return fmt.Errorf("invalid %s: %q", d.key, d.value)
		}
	}

	r := c.Extraction.Retry
	if r.MinIndicatorOnlyRows < 0 || r.MinFilteredRows < 0 || r.MinIndicatorRows < 0 {
		return fmt.Errorf("extraction.retry thresholds must not be negative")
	}

	if !isValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, ValidFormats)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}

// LoaderConfig converts the fetch section for loader.NewHTTPLoader.
func (c *Config) LoaderConfig() loader.Config {
	return loader.Config{
		UserAgent:         c.Fetch.UserAgent,
		Token:             c.Fetch.Token,
		Timeout:           c.GetFetchTimeout(),
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		Burst:             c.Fetch.Burst,
		MaxBodyBytes:      c.Fetch.MaxBodyBytes,
	}
}

// RendererConfig converts the browser section for browser.NewRenderer.
// The renderer shares the fetch credentials and user agent.
func (c *Config) RendererConfig() browser.Config {
	d := browser.DefaultConfig()
	return browser.Config{
		Bin:            c.Browser.Bin,
		DebuggerURL:    c.Browser.DebuggerURL,
		Headless:       c.Browser.Headless,
		ViewportWidth:  c.Browser.Viewport.Width,
		ViewportHeight: c.Browser.Viewport.Height,
		UserAgent:      c.Fetch.UserAgent,
		Token:          c.Fetch.Token,
		LoadTimeout:    c.GetLoadTimeout(),
		WaitTimeout:    parseDuration(c.Browser.WaitTimeout, d.WaitTimeout),
		WaitInterval:   parseDuration(c.Browser.WaitInterval, d.WaitInterval),
		MarkerTimeout:  parseDuration(c.Browser.MarkerTimeout, d.MarkerTimeout),
		MarkerInterval: parseDuration(c.Browser.MarkerInterval, d.MarkerInterval),
	}
}

// RetryPolicy converts the extraction retry settings.
func (c *Config) RetryPolicy() report.RetryPolicy {
	r := c.Extraction.Retry
	return report.RetryPolicy{
		Enabled:              r.Enabled,
		MinIndicatorOnlyRows: r.MinIndicatorOnlyRows,
		MinFilteredRows:      r.MinFilteredRows,
		MinIndicatorRows:     r.MinIndicatorRows,
	}
}

// BuilderOptions returns the report builder options for this configuration.
func (c *Config) BuilderOptions() []report.Option {
	return []report.Option{
		report.WithRetryPolicy(c.RetryPolicy()),
		report.WithColorHeuristic(c.Extraction.ColorHeuristic),
	}
}

// LoggingOptions converts the logging section for logging.Initialize.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		Categories: c.Logging.Categories,
	}
}

// GetFetchTimeout returns the fetch timeout; zero means none.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Fetch.Timeout, 0)
}

// GetLoadTimeout returns the overall render timeout as a duration.
func (c *Config) GetLoadTimeout() time.Duration {
	return parseDuration(c.Browser.LoadTimeout, browser.DefaultConfig().LoadTimeout)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
