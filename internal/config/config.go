package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abelbrown/tailfeed/internal/follow"
	"github.com/abelbrown/tailfeed/internal/logging"
	"github.com/abelbrown/tailfeed/internal/render"
)

// Config is the persistent application configuration
type Config struct {
	Follow  FollowConfig   `json:"follow"`
	Render  RenderConfig   `json:"render"`
	UI      UIConfig       `json:"ui"`
	Fetch   FetchConfig    `json:"fetch"`
	Sources []SourceConfig `json:"sources"`
}

// FollowConfig tunes tail-following
type FollowConfig struct {
	Threshold     float64 `json:"threshold"`       // viewport-bottom fraction counted as "at tail"
	SettleDelayMs int     `json:"settle_delay_ms"` // wait before scrolling to a new item
	SmoothScroll  bool    `json:"smooth_scroll"`
}

// RenderConfig tunes the virtualization planner. Heights are in layout
// units; LineHeight units make one terminal row.
type RenderConfig struct {
	VirtualizeThreshold int `json:"virtualize_threshold"`
	BaseHeight          int `json:"base_height"`
	CharsPerLine        int `json:"chars_per_line"`
	LineHeight          int `json:"line_height"`
	ImageAllowance      int `json:"image_allowance"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme        string `json:"theme"`
	MessageLimit int    `json:"message_limit"` // tail of each conversation to load
	LogLevel     string `json:"log_level"`
}

// FetchConfig controls feed tailing
type FetchConfig struct {
	IntervalSec       int `json:"interval_sec"`
	TimeoutSec        int `json:"timeout_sec"`
	RequestsPerMinute int `json:"requests_per_minute"`
}

// SourceConfig is a feed tailed into its own conversation
type SourceConfig struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Follow: FollowConfig{
			Threshold:     follow.DefaultThreshold,
			SettleDelayMs: int(follow.DefaultSettleDelay / time.Millisecond),
			SmoothScroll:  true,
		},
		Render: RenderConfig{
			VirtualizeThreshold: render.DefaultThreshold,
			BaseHeight:          render.DefaultBaseHeight,
			CharsPerLine:        render.DefaultCharsPerLine,
			LineHeight:          render.DefaultLineHeight,
			ImageAllowance:      render.DefaultImageAllowance,
		},
		UI: UIConfig{
			Theme:        "dark",
			MessageLimit: 2000,
			LogLevel:     "info",
		},
		Fetch: FetchConfig{
			IntervalSec:       300,
			TimeoutSec:        30,
			RequestsPerMinute: 30,
		},
		Sources: []SourceConfig{
			{Name: "Hacker News", URL: "https://news.ycombinator.com/rss", Enabled: false},
			{Name: "Lobsters", URL: "https://lobste.rs/rss", Enabled: false},
		},
	}
}

// DataDir returns ~/.tailfeed
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tailfeed")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// Load reads config from the default path, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields defaults; a corrupt
// file is logged and also yields defaults. Environment overrides apply last.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		logging.Warn("config unreadable, using defaults", "path", path, "err", err)
		cfg = DefaultConfig()
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Save writes config to the default path
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// ApplyEnv overrides tuning from TAILFEED_* environment variables.
// Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	if v, ok := envFloat("TAILFEED_FOLLOW_THRESHOLD"); ok {
		c.Follow.Threshold = v
	}
	if v, ok := envInt("TAILFEED_SETTLE_DELAY_MS"); ok {
		c.Follow.SettleDelayMs = v
	}
	if v, ok := envInt("TAILFEED_VIRTUALIZE_THRESHOLD"); ok {
		c.Render.VirtualizeThreshold = v
	}
	if v, ok := envInt("TAILFEED_MESSAGE_LIMIT"); ok {
		c.UI.MessageLimit = v
	}
	if v := os.Getenv("TAILFEED_LOG_LEVEL"); v != "" {
		c.UI.LogLevel = v
	}
}

// FollowSettings converts to the follow controller's tuning.
func (c *Config) FollowSettings() follow.Config {
	return follow.Config{
		Threshold:   c.Follow.Threshold,
		SettleDelay: time.Duration(c.Follow.SettleDelayMs) * time.Millisecond,
		Smooth:      c.Follow.SmoothScroll,
	}
}

// RenderSettings converts to the planner's tuning.
func (c *Config) RenderSettings() render.Config {
	return render.Config{
		Threshold:      c.Render.VirtualizeThreshold,
		BaseHeight:     c.Render.BaseHeight,
		CharsPerLine:   c.Render.CharsPerLine,
		LineHeight:     c.Render.LineHeight,
		ImageAllowance: c.Render.ImageAllowance,
	}
}

// FetchInterval returns the polling interval, never below ten seconds.
func (c *Config) FetchInterval() time.Duration {
	d := time.Duration(c.Fetch.IntervalSec) * time.Second
	if d < 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// FetchTimeout returns the per-request timeout.
func (c *Config) FetchTimeout() time.Duration {
	if c.Fetch.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// EnabledSources returns the sources to tail.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled && s.URL != "" {
			out = append(out, s)
		}
	}
	return out
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
