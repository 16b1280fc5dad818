package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "STATION_SCRAPER_CONFIG"

	gatewayEndpointEnv    = "GATEWAY_ENDPOINT"
	gatewayAdminSecretEnv = "GATEWAY_ADMIN_SECRET"
	fetchTimeoutEnv       = "SCRAPER_FETCH_TIMEOUT"
	probeTimeoutEnv       = "SCRAPER_PROBE_TIMEOUT"
	concurrencyEnv        = "SCRAPER_CONCURRENCY"
	cronEnv               = "SCRAPER_CRON"
	logLevelEnv           = "LOG_LEVEL"
	debugEnv              = "DEBUG"
	httpAddrEnv           = "HTTP_ADDR"
	journalPathEnv        = "JOURNAL_PATH"
	telegramTokenEnv      = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv     = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Gateway       GatewayConfig      `yaml:"gateway"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Journal       JournalConfig      `yaml:"journal"`
	Cache         CacheConfig        `yaml:"cache"`
	Logging       LoggingConfig      `yaml:"logging"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// Duration reads Go duration strings ("10s", "1m30s") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GatewayConfig describes the GraphQL persistence endpoint.
type GatewayConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	AdminSecret string   `yaml:"adminSecret"`
	Timeout     Duration `yaml:"timeout"`
	// WritesPerSecond paces metadata writes; zero disables pacing.
	WritesPerSecond float64 `yaml:"writesPerSecond"`
	WriteBurst      int     `yaml:"writeBurst"`
}

// ScraperConfig bounds per-station work.
type ScraperConfig struct {
	FetchTimeout Duration `yaml:"fetchTimeout"`
	ProbeTimeout Duration `yaml:"probeTimeout"`
	Concurrency  int      `yaml:"concurrency"`
	// ShuffleSeed fixes the station order; zero shuffles randomly on every run.
	ShuffleSeed int64 `yaml:"shuffleSeed"`
}

// SchedulerConfig defines when batches run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     *bool          `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ShouldRunOnStart reports whether a batch runs right after startup.
func (s SchedulerConfig) ShouldRunOnStart() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}

// HTTPConfig configures the trigger endpoint; an empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// JournalConfig points at the SQLite run journal; an empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the status cache.
type CacheConfig struct {
	RefreshInterval Duration `yaml:"refreshInterval"`
}

// LoggingConfig selects level and handler ("text" or "pretty").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return load(os.Getenv)
}

func load(getenv func(string) string) Config {
	cfg := defaultConfig()

	if path := getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides(getenv)
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := getenv(gatewayEndpointEnv); v != "" {
		c.Gateway.Endpoint = v
	}
	if v := getenv(gatewayAdminSecretEnv); v != "" {
		c.Gateway.AdminSecret = v
	}

	if v := getenv(fetchTimeoutEnv); v != "" {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			log.Printf("config: invalid %s=%q, keeping %s", fetchTimeoutEnv, v, c.Scraper.FetchTimeout.Std())
		} else {
			c.Scraper.FetchTimeout = Duration(d)
		}
	}
	if v := getenv(probeTimeoutEnv); v != "" {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			log.Printf("config: invalid %s=%q, keeping %s", probeTimeoutEnv, v, c.Scraper.ProbeTimeout.Std())
		} else {
			c.Scraper.ProbeTimeout = Duration(d)
		}
	}
	if v := getenv(concurrencyEnv); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			log.Printf("config: invalid %s=%q, keeping %d", concurrencyEnv, v, c.Scraper.Concurrency)
		} else {
			c.Scraper.Concurrency = n
		}
	}

	if v := getenv(cronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if truthy(getenv(debugEnv)) {
		c.Logging.Level = "debug"
	}

	if v := getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := getenv(journalPathEnv); v != "" {
		c.Journal.Path = v
	}

	if v := getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Gateway.Endpoint != "" {
		base.Gateway.Endpoint = override.Gateway.Endpoint
	}
	if override.Gateway.AdminSecret != "" {
		base.Gateway.AdminSecret = override.Gateway.AdminSecret
	}
	if override.Gateway.Timeout > 0 {
		base.Gateway.Timeout = override.Gateway.Timeout
	}
	if override.Gateway.WritesPerSecond > 0 {
		base.Gateway.WritesPerSecond = override.Gateway.WritesPerSecond
	}
	if override.Gateway.WriteBurst > 0 {
		base.Gateway.WriteBurst = override.Gateway.WriteBurst
	}

	if override.Scraper.FetchTimeout > 0 {
		base.Scraper.FetchTimeout = override.Scraper.FetchTimeout
	}
	if override.Scraper.ProbeTimeout > 0 {
		base.Scraper.ProbeTimeout = override.Scraper.ProbeTimeout
	}
	if override.Scraper.Concurrency > 0 {
		base.Scraper.Concurrency = override.Scraper.Concurrency
	}
	if override.Scraper.ShuffleSeed != 0 {
		base.Scraper.ShuffleSeed = override.Scraper.ShuffleSeed
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.RunOnStart != nil {
		base.Scheduler.RunOnStart = override.Scheduler.RunOnStart
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.Journal.Path != "" {
		base.Journal.Path = override.Journal.Path
	}
	if override.Cache.RefreshInterval > 0 {
		base.Cache.RefreshInterval = override.Cache.RefreshInterval
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Gateway: GatewayConfig{
			Endpoint: "http://localhost:8080/v1/graphql",
			Timeout:  Duration(10 * time.Second),
		},
		Scraper: ScraperConfig{
			FetchTimeout: Duration(10 * time.Second),
			ProbeTimeout: Duration(5 * time.Second),
			Concurrency:  10,
		},
		Scheduler: SchedulerConfig{CronExpression: "*/1 * * * *", Timezone: defaultTimezone, location: tz},
		HTTP:      HTTPConfig{Addr: ":8090"},
		Cache:     CacheConfig{RefreshInterval: Duration(60 * time.Second)},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}
