package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Report   ReportConfig   `mapstructure:"report"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// CrawlConfig covers the browser session and the pacing of a run.
type CrawlConfig struct {
	Source            string        `mapstructure:"source"`
	Locale            string        `mapstructure:"locale"`
	Headless          bool          `mapstructure:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	InterItemDelay    time.Duration `mapstructure:"inter_item_delay"`
	SnapshotTimeout   time.Duration `mapstructure:"snapshot_timeout"`
	PriceProperty     string        `mapstructure:"price_property"`
	CurrencyMarker    string        `mapstructure:"currency_marker"`
	MaxVisibleTextLen int           `mapstructure:"max_visible_text_len"`
	BlockedResources  []string      `mapstructure:"blocked_resources"`
	UserAgents        []string      `mapstructure:"user_agents"`
	Proxies           []string      `mapstructure:"proxies"`
}

type CatalogConfig struct {
	Path    string        `mapstructure:"path"`   // local workbook; wins over Object when set
	Object  string        `mapstructure:"object"` // workbook name in the object store
	Columns ColumnsConfig `mapstructure:"columns"`
}

// ColumnsConfig names the catalog header cells.
type ColumnsConfig struct {
	SKU       string `mapstructure:"sku"`
	Name      string `mapstructure:"name"`
	BasePrice string `mapstructure:"base_price"`
	URL       string `mapstructure:"url"`
}

type ReportConfig struct {
	Prefix   string `mapstructure:"prefix"`
	Timezone string `mapstructure:"timezone"`
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver"` // local or ftp
	LocalDir      string        `mapstructure:"local_dir"`
	FTPURL        string        `mapstructure:"ftp_url"`
	FTPTimeout    time.Duration `mapstructure:"ftp_timeout"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	PriceTTL time.Duration `mapstructure:"price_ttl"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// Load reads configuration from an optional file and the environment.
// Environment variables use the RECONCILER_ prefix with dots replaced by
// underscores, e.g. RECONCILER_CRAWL_NAVIGATION_TIMEOUT=30s.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RECONCILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Report.Prefix == "" {
		cfg.Report.Prefix = "precios_" + cfg.Crawl.Source
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", "8080")

	v.SetDefault("crawl.source", "djichile")
	v.SetDefault("crawl.locale", "es-CL")
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.navigation_timeout", 60*time.Second)
	v.SetDefault("crawl.settle_delay", 2500*time.Millisecond)
	v.SetDefault("crawl.inter_item_delay", 1500*time.Millisecond)
	v.SetDefault("crawl.snapshot_timeout", 10*time.Second)
	v.SetDefault("crawl.price_property", "product:price:amount")
	v.SetDefault("crawl.currency_marker", "$")
	v.SetDefault("crawl.max_visible_text_len", 18)
	v.SetDefault("crawl.blocked_resources", []string{"Image", "Font", "Media"})
	v.SetDefault("crawl.user_agents", []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	})
	v.SetDefault("crawl.proxies", []string{})

	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.object", "catalog.xlsx")
	v.SetDefault("catalog.columns.sku", "sku")
	v.SetDefault("catalog.columns.name", "nombre_producto")
	v.SetDefault("catalog.columns.base_price", "precio_publico")
	v.SetDefault("catalog.columns.url", "link")

	v.SetDefault("report.prefix", "")
	v.SetDefault("report.timezone", "America/Santiago")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./data")
	v.SetDefault("storage.ftp_url", "")
	v.SetDefault("storage.ftp_timeout", 30*time.Second)
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("postgres.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 5*time.Minute)
	v.SetDefault("redis.price_ttl", 30*24*time.Hour)

	v.SetDefault("schedule.cron", "")
}

// Validate checks the few values that have to hold before a run can start.
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"crawl.navigation_timeout": c.Crawl.NavigationTimeout,
		"crawl.settle_delay":       c.Crawl.SettleDelay,
		"crawl.inter_item_delay":   c.Crawl.InterItemDelay,
		"crawl.snapshot_timeout":   c.Crawl.SnapshotTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %s", key, d)
		}
	}
	if strings.TrimSpace(c.Crawl.Source) == "" {
		return errors.New("config: crawl.source must not be empty")
	}
	switch c.Storage.Driver {
	case "local", "ftp":
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "ftp" && c.Storage.FTPURL == "" {
		return errors.New("config: storage.ftp_url is required for the ftp driver")
	}
	if _, err := time.LoadLocation(c.Report.Timezone); err != nil {
		return fmt.Errorf("config: report.timezone: %w", err)
	}
	return nil
}
