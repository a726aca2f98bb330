package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides for keys of the config file,
// e.g. LIGHTNING_APIKEY overrides apikey.
const EnvPrefix = "LIGHTNING"

// DBConfig holds the MySQL connection settings.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Addr returns host:port.
func (c DBConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Config holds all service settings, populated from a key=value file,
// LIGHTNING_* overrides and service environment variables.
type Config struct {
	APIKey string
	DB     DBConfig

	// Upstream query settings.
	FMIBaseURL   string
	FetchTimeout time.Duration
	BBox         string
	CRS          string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Poller settings.
	PollInterval time.Duration
	Lookback     time.Duration
	StoreEnabled bool

	// Kafka publishing is enabled when brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string
}

// KafkaEnabled reports whether observations should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from the key=value file at path (skipped when
// path is empty) and the environment, applying defaults where unset.
// Lines starting with # are comments.
func Load(path string) (*Config, error) {
	v := viper.New()
	// key=value lines with # comments; the dotenv codec splits on the first =.
	v.SetConfigType("env")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 3306)
	v.SetDefault("host", "localhost")
	v.SetDefault("fmi_url", "https://opendata.fmi.fi")
	v.SetDefault("fetch_timeout", "5s")
	v.SetDefault("bbox", "19.0,59.0,32.0,71.0")
	v.SetDefault("poll_interval", "5m")
	v.SetDefault("lookback", "1h")
	v.SetDefault("store", false)
	v.SetDefault("kafka_topic", "lightning-observations")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	cfg := &Config{
		APIKey: strings.TrimSpace(v.GetString("apikey")),
		DB: DBConfig{
			Host:     v.GetString("host"),
			Port:     v.GetInt("port"),
			User:     v.GetString("user"),
			Password: v.GetString("password"),
			Database: v.GetString("database"),
		},
		FMIBaseURL:   strings.TrimRight(v.GetString("fmi_url"), "/"),
		FetchTimeout: v.GetDuration("fetch_timeout"),
		BBox:         v.GetString("bbox"),
		CRS:          v.GetString("crs"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval: v.GetDuration("poll_interval"),
		Lookback:     v.GetDuration("lookback"),
		StoreEnabled: v.GetBool("store"),

		KafkaBrokers: brokers,
		KafkaTopic:   v.GetString("kafka_topic"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FMIBaseURL == "" {
		return errors.New("fmi_url is required")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("invalid fetch_timeout")
	}
	if c.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if c.Lookback <= 0 {
		return errors.New("invalid lookback")
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.DB.Port)
	}
	if c.StoreEnabled && (c.DB.User == "" || c.DB.Database == "") {
		return errors.New("store is enabled but user or database is not set")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return errors.New("kafka_topic is required when KAFKA_BROKERS is set")
	}
	return nil
}

// RequireDB reports an error when the database settings are incomplete.
// Commands that always write to MySQL call it regardless of StoreEnabled.
func (c *Config) RequireDB() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Database == "" {
		return errors.New("host, user and database are required for persistence")
	}
	return nil
}
