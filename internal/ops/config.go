package ops

import (
	"strings"
	"time"

	"mdingest/internal/bus"
	"mdingest/internal/model/enum"
	"mdingest/internal/tz"
	"mdingest/pkg/exception"

	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

// EnvPrefix prefixes every environment override, e.g. MDINGEST_VENDOR_API_KEY.
const EnvPrefix = "MDINGEST"

// Config is the process configuration.
type Config struct {
	Vendor       VendorConfig       `mapstructure:"vendor"`
	Feeds        FeedsConfig        `mapstructure:"feeds"`
	Reconnect    ReconnectConfig    `mapstructure:"reconnect"`
	Dial         DialConfig         `mapstructure:"dial"`
	Tickers      TickerSet          `mapstructure:"tickers"`
	TickersFile  string             `mapstructure:"tickers_file"`
	Bus          BusConfig          `mapstructure:"bus"`
	Consolidator ConsolidatorConfig `mapstructure:"consolidator"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Timezone     string             `mapstructure:"timezone"`
	Profiling    ProfilingConfig    `mapstructure:"profiling"`
}

type VendorConfig struct {
	Name   string `mapstructure:"name"`
	APIKey string `mapstructure:"api_key"`
}

type FeedsConfig struct {
	IEX    FeedConfig `mapstructure:"iex"`
	FX     FeedConfig `mapstructure:"fx"`
	Crypto FeedConfig `mapstructure:"crypto"`
}

// Of returns the settings of feed.
func (c FeedsConfig) Of(feed enum.Feed) FeedConfig {
	switch feed {
	case enum.FeedIEX:
		return c.IEX
	case enum.FeedFX:
		return c.FX
	case enum.FeedCrypto:
		return c.Crypto
	default:
		return FeedConfig{}
	}
}

type FeedConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url"`
	ThresholdLevel int    `mapstructure:"threshold_level"`
}

type ReconnectConfig struct {
	Backoff    time.Duration `mapstructure:"backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
	Factor     float64       `mapstructure:"factor"`
	Jitter     float64       `mapstructure:"jitter"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type DialConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

type BusConfig struct {
	Capacity int    `mapstructure:"capacity"`
	Overflow string `mapstructure:"overflow"`
}

type ConsolidatorConfig struct {
	Dir             string        `mapstructure:"dir"`
	FilePrefix      string        `mapstructure:"file_prefix"`
	Compression     string        `mapstructure:"compression"`
	FlushThreshold  int           `mapstructure:"flush_threshold"`
	AsyncFlush      bool          `mapstructure:"async_flush"`
	FlushQueue      int           `mapstructure:"flush_queue"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CatalogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type ProfilingConfig struct {
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vendor.name", "tiingo")
	v.SetDefault("vendor.api_key", "")

	v.SetDefault("feeds.iex.enabled", true)
	v.SetDefault("feeds.iex.url", "wss://api.tiingo.com/iex")
	v.SetDefault("feeds.iex.threshold_level", 6)
	v.SetDefault("feeds.fx.enabled", true)
	v.SetDefault("feeds.fx.url", "wss://api.tiingo.com/fx")
	v.SetDefault("feeds.fx.threshold_level", 5)
	v.SetDefault("feeds.crypto.enabled", true)
	v.SetDefault("feeds.crypto.url", "wss://api.tiingo.com/crypto")
	v.SetDefault("feeds.crypto.threshold_level", 5)

	v.SetDefault("reconnect.backoff", 10*time.Second)
	v.SetDefault("reconnect.max_backoff", 0)
	v.SetDefault("reconnect.factor", 1.0)
	v.SetDefault("reconnect.jitter", 0.0)
	v.SetDefault("reconnect.max_retries", 0)
	v.SetDefault("dial.handshake_timeout", 10*time.Second)

	v.SetDefault("tickers.stock", []string{})
	v.SetDefault("tickers.etf", []string{})
	v.SetDefault("tickers.fx", []string{})
	v.SetDefault("tickers.crypto", []string{})
	v.SetDefault("tickers_file", "")

	v.SetDefault("bus.capacity", 0)
	v.SetDefault("bus.overflow", "drop_oldest")

	v.SetDefault("consolidator.dir", "data")
	v.SetDefault("consolidator.file_prefix", "consol_feeds")
	v.SetDefault("consolidator.compression", "snappy")
	v.SetDefault("consolidator.flush_threshold", 30)
	v.SetDefault("consolidator.async_flush", false)
	v.SetDefault("consolidator.flush_queue", 4)
	v.SetDefault("consolidator.shutdown_timeout", 10*time.Second)

	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.dsn", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("timezone", tz.ExchangeZone)
	v.SetDefault("profiling.server_address", "")
	v.SetDefault("profiling.application_name", "mdingest")
}

// Load reads the YAML file at path (optional) with MDINGEST_ environment
// overrides, resolves the ticker file and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "read config %s, err: %+v", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrapf(exception.ErrInvalidConfig, "decode config, err: %+v", err)
	}

	if cfg.TickersFile != "" {
		fromFile, err := LoadTickersFile(cfg.TickersFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Tickers = cfg.Tickers.Merge(fromFile)
	} else {
		cfg.Tickers = cfg.Tickers.Merge(TickerSet{})
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnabledFeeds returns the feeds switched on, in declaration order.
func (c Config) EnabledFeeds() []enum.Feed {
	var out []enum.Feed
	for _, f := range enum.Feeds() {
		if c.Feeds.Of(f).Enabled {
			out = append(out, f)
		}
	}
	return out
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	return tz.Load(c.Timezone)
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Vendor.APIKey) == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "vendor.api_key is required")
	}
	if strings.TrimSpace(c.Vendor.Name) == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "vendor.name is empty")
	}

	feeds := c.EnabledFeeds()
	if len(feeds) == 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "no feed enabled")
	}
	for _, f := range feeds {
		fc := c.Feeds.Of(f)
		if fc.URL == "" {
			return errors.Wrapf(exception.ErrInvalidConfig, "feeds.%s.url is empty", f)
		}
		if fc.ThresholdLevel < 0 {
			return errors.Wrapf(exception.ErrInvalidConfig, "feeds.%s.threshold_level must be >= 0", f)
		}
		if len(c.Tickers.ForFeed(f)) == 0 {
			return errors.Wrapf(exception.ErrInvalidConfig, "feeds.%s is enabled without tickers", f)
		}
	}

	r := c.Reconnect
	if r.Backoff < 0 || r.MaxBackoff < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "reconnect backoff must be >= 0")
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		return errors.Wrapf(exception.ErrInvalidConfig, "reconnect.jitter must be within [0, 1], got %v", r.Jitter)
	}
	if r.MaxRetries < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "reconnect.max_retries must be >= 0")
	}

	if c.Bus.Capacity < 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "bus.capacity must be >= 0")
	}
	if _, ok := bus.ParseOverflowPolicy(c.Bus.Overflow); !ok {
		return errors.Wrapf(exception.ErrInvalidConfig, "bus.overflow %q", c.Bus.Overflow)
	}

	if c.Consolidator.Dir == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "consolidator.dir is empty")
	}
	if c.Consolidator.FlushThreshold <= 0 {
		return errors.Wrap(exception.ErrInvalidConfig, "consolidator.flush_threshold must be > 0")
	}

	if c.Catalog.Enabled && c.Catalog.DSN == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "catalog.dsn is required when the catalog is enabled")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
