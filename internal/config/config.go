package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the program configuration.
type Config struct {
	Verbose      bool   `yaml:"verbose"`
	DownloadsDir string `yaml:"downloads_dir"`
	AudioFormat  string `yaml:"audio_format"`
	MinFileKB    int64  `yaml:"min_file_kb"`

	Cache    CacheConfig    `yaml:"cache"`
	Governor GovernorConfig `yaml:"governor"`
	LongForm LongFormConfig `yaml:"long_form"`
	Radio    RadioConfig    `yaml:"radio"`
	Web      WebConfig      `yaml:"web"`

	// Secrets come from the environment, never from the yaml file.
	CookiesText   string `yaml:"-"`
	LastFMKey     string `yaml:"-"`
	YouTubeAPIKey string `yaml:"-"`
	RedisAddr     string `yaml:"-"`
}

// CacheConfig tunes the two cache instances. The TTL and size constants are
// deliberately configurable, not load-bearing.
type CacheConfig struct {
	Backend          string  `yaml:"backend"` // "file" or "redis"
	Dir              string  `yaml:"dir"`
	ResultTTLDays    int     `yaml:"result_ttl_days"`
	ResultMaxEntries int     `yaml:"result_max_entries"`
	MetadataTTLDays  int     `yaml:"metadata_ttl_days"`
	MetadataMaxSize  int     `yaml:"metadata_max_entries"`
	MinRetryScore    float64 `yaml:"min_retry_score"`
}

// GovernorConfig tunes retry and concurrency enforcement.
type GovernorConfig struct {
	MaxRetries    int `yaml:"max_retries"`
	BaseDelaySec  int `yaml:"base_delay_seconds"`
	MaxConcurrent int `yaml:"max_concurrent"`
	TimeoutSec    int `yaml:"timeout_seconds"`
	RatePerMinute int `yaml:"rate_per_minute"`
}

// LongFormConfig tunes audiobook/podcast style selection.
type LongFormConfig struct {
	ThresholdSec int      `yaml:"threshold_seconds"`
	SearchWindow int      `yaml:"search_window"`
	Variants     []string `yaml:"variants"` // appended to the query, e.g. "full version"
}

// RadioConfig tunes the autonomous radio loop.
type RadioConfig struct {
	Genres         []string `yaml:"genres"`
	CooldownSec    int      `yaml:"cooldown_seconds"`
	MinDurationSec int      `yaml:"min_duration_seconds"`
	MaxDurationSec int      `yaml:"max_duration_seconds"`
	HistorySize    int      `yaml:"history_size"`
	SearchLimit    int      `yaml:"search_limit"`
}

// WebConfig tunes the status/control HTTP surface.
type WebConfig struct {
	Port int `yaml:"port"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DownloadsDir: filepath.Join(os.TempDir(), "radiobot-downloads"),
		AudioFormat:  "mp3",
		MinFileKB:    50,
		Cache: CacheConfig{
			Backend:          "file",
			Dir:              filepath.Join(homeDir(), ".local", "share", "radiobot"),
			ResultTTLDays:    7,
			ResultMaxEntries: 100,
			MetadataTTLDays:  30,
			MetadataMaxSize:  300,
			MinRetryScore:    0.6,
		},
		Governor: GovernorConfig{
			MaxRetries:    3,
			BaseDelaySec:  2,
			MaxConcurrent: 3,
			TimeoutSec:    60,
			RatePerMinute: 30,
		},
		LongForm: LongFormConfig{
			ThresholdSec: 1800,
			SearchWindow: 10,
			Variants:     []string{"full version", "full album", "audiobook"},
		},
		Radio: RadioConfig{
			Genres: []string{
				"pop", "80s pop", "90s pop", "rock", "70s rock", "80s rock",
				"hip hop", "90s hip hop", "electronic", "ambient", "synthwave",
				"classical", "jazz", "blues", "metal", "reggae", "folk",
				"indie", "r&b", "soul", "funk", "disco", "lo-fi hip hop",
			},
			CooldownSec:    60,
			MinDurationSec: 240,
			MaxDurationSec: 600,
			HistorySize:    200,
			SearchLimit:    10,
		},
		Web: WebConfig{Port: 8080},
	}
}

// Load reads the yaml config file and the environment. If path is empty,
// standard locations are searched; missing files fall back to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.DownloadsDir = expandHome(cfg.DownloadsDir)
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir)
	cfg.loadEnv()

	return cfg, nil
}

// loadEnv pulls secrets from the environment, reading a .env file first when
// one is present in the working directory.
func (c *Config) loadEnv() {
	_ = godotenv.Load() // absence of .env is fine

	c.CookiesText = os.Getenv("COOKIES_TEXT")
	c.LastFMKey = os.Getenv("LASTFM_API_KEY")
	c.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	c.RedisAddr = os.Getenv("REDIS_ADDR")
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func findConfigFile() string {
	home := homeDir()
	locations := []string{
		"./radiobot.yaml",
		"./radiobot.yml",
		filepath.Join(home, ".config", "radiobot", "config.yaml"),
		filepath.Join(home, ".config", "radiobot", "config.yml"),
	}
	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// GetDefaultLogPath returns the default log directory path.
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "radiobot", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DownloadsDir == "" {
		return fmt.Errorf("downloads_dir cannot be empty")
	}

	validFormats := []string{"mp3", "m4a", "opus", "aac"}
	valid := false
	for _, format := range validFormats {
		if c.AudioFormat == format {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unsupported audio format %q, valid formats: %v", c.AudioFormat, validFormats)
	}

	if c.Cache.Backend != "file" && c.Cache.Backend != "redis" {
		return fmt.Errorf("unknown cache backend %q, valid backends: file, redis", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("cache backend is redis but REDIS_ADDR is not set")
	}
	if c.Cache.ResultTTLDays < 1 || c.Cache.MetadataTTLDays < 1 {
		return fmt.Errorf("cache TTLs must be at least one day")
	}
	if c.Cache.ResultMaxEntries < 1 || c.Cache.MetadataMaxSize < 1 {
		return fmt.Errorf("cache sizes must be at least 1 entry")
	}
	if c.Cache.MinRetryScore < 0 || c.Cache.MinRetryScore > 1 {
		return fmt.Errorf("min_retry_score must be between 0.0 and 1.0, got %.2f", c.Cache.MinRetryScore)
	}

	if c.Governor.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.Governor.MaxRetries)
	}
	if c.Governor.MaxConcurrent < 1 || c.Governor.MaxConcurrent > 10 {
		return fmt.Errorf("max_concurrent must be between 1 and 10 (to avoid rate limiting), got %d", c.Governor.MaxConcurrent)
	}
	if c.Governor.TimeoutSec < 1 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.Governor.TimeoutSec)
	}

	if c.LongForm.ThresholdSec < 60 {
		return fmt.Errorf("long_form threshold must be at least 60s, got %d", c.LongForm.ThresholdSec)
	}

	if len(c.Radio.Genres) == 0 {
		return fmt.Errorf("radio genre list cannot be empty")
	}
	if c.Radio.CooldownSec < 1 {
		return fmt.Errorf("radio cooldown must be positive, got %d", c.Radio.CooldownSec)
	}
	if c.Radio.MaxDurationSec < 30 {
		return fmt.Errorf("radio max duration must be at least 30s, got %d", c.Radio.MaxDurationSec)
	}
	if c.Radio.MinDurationSec < 0 || c.Radio.MinDurationSec >= c.Radio.MaxDurationSec {
		return fmt.Errorf("radio min duration must sit below the max, got %d", c.Radio.MinDurationSec)
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}

	return nil
}
