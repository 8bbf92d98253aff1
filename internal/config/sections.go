package config

// FetchConfig configures HTTP document loading.
type FetchConfig struct {
	UserAgent string `yaml:"user_agent"`

	// SonarQube user token, sent as basic auth. Prefer SONARGAP_TOKEN.
	Token             string  `yaml:"token,omitempty"`
	Timeout           string  `yaml:"timeout"` // 0s = none
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxBodyBytes      int64   `yaml:"max_body_bytes"` // 0 = 16 MiB
}

// BrowserConfig configures the headless Chrome renderer.
type BrowserConfig struct {
	// Enabled allows falling back to rendering when a fetch fails.
	Enabled     bool           `yaml:"enabled"`
	Bin         string         `yaml:"bin"`
	DebuggerURL string         `yaml:"debugger_url"`
	Headless    bool           `yaml:"headless"`
	Viewport    ViewportConfig `yaml:"viewport"`

	LoadTimeout    string `yaml:"load_timeout"`
	WaitTimeout    string `yaml:"wait_timeout"`
	WaitInterval   string `yaml:"wait_interval"`
	MarkerTimeout  string `yaml:"marker_timeout"`
	MarkerInterval string `yaml:"marker_interval"`
}

// ViewportConfig is the emulated window size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ExtractionConfig configures row classification.
type ExtractionConfig struct {
	// ColorHeuristic enables detection of new code from inline row tints.
	ColorHeuristic bool        `yaml:"color_heuristic"`
	Retry          RetryConfig `yaml:"retry"`
}

// RetryConfig holds the thresholds for the structural fallback pass.
type RetryConfig struct {
	Enabled              bool `yaml:"enabled"`
	MinIndicatorOnlyRows int  `yaml:"min_indicator_only_rows"`
	MinFilteredRows      int  `yaml:"min_filtered_rows"`
	MinIndicatorRows     int  `yaml:"min_indicator_rows"`
}

// Output formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatTerminal = "terminal"
)

// ValidFormats lists all supported output formats.
var ValidFormats = []string{FormatJSON, FormatMarkdown, FormatTerminal}

// OutputConfig configures where and how reports are written.
type OutputConfig struct {
	Format   string `yaml:"format"`
	Dir      string `yaml:"dir"`
	WordWrap int    `yaml:"word_wrap"`
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
