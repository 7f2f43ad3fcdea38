package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	pkgerrors "github.com/folio-service/folio_service/pkg/errors"
)

// Config holds all configuration for the application
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Brokerage   BrokerageConfig `mapstructure:"brokerage"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Sync        SyncConfig      `mapstructure:"sync"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// Configured reports whether a database was set up at all. The service runs
// without one, serving trades straight from the brokerage ledger.
func (d DatabaseConfig) Configured() bool {
	return d.URL != ""
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port for the redis client
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type BrokerageConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	DeviceToken    string `mapstructure:"device_token"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds, per call
	TokenTTL       int    `mapstructure:"token_ttl"`       // seconds, requested session lifetime
}

type CacheConfig struct {
	TradesTTL      int `mapstructure:"trades_ttl"`      // seconds
	PositionsTTL   int `mapstructure:"positions_ttl"`   // seconds
	PerformanceTTL int `mapstructure:"performance_ttl"` // seconds
}

func (c CacheConfig) TradesTTLDuration() time.Duration      { return time.Duration(c.TradesTTL) * time.Second }
func (c CacheConfig) PositionsTTLDuration() time.Duration   { return time.Duration(c.PositionsTTL) * time.Second }
func (c CacheConfig) PerformanceTTLDuration() time.Duration { return time.Duration(c.PerformanceTTL) * time.Second }

type SyncConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	BatchSize       int  `mapstructure:"batch_size"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if pieces were provided instead
	if config.Database.URL == "" && config.Database.Host != "" && config.Database.Name != "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults (no URL default: the database is optional)
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Brokerage defaults
	viper.SetDefault("brokerage.base_url", "https://api.robinhood.com")
	viper.SetDefault("brokerage.request_timeout", 10)
	viper.SetDefault("brokerage.token_ttl", 2592000) // 30 days, the upstream maximum

	// Cache TTLs, seconds. Portfolio data does not change second to second,
	// so trades and performance sit longer than positions.
	viper.SetDefault("cache.trades_ttl", 300)
	viper.SetDefault("cache.positions_ttl", 60)
	viper.SetDefault("cache.performance_ttl", 300)

	// Sync worker defaults
	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.interval_minutes", 5)
	viper.SetDefault("sync.batch_size", 40)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if origins := os.Getenv("FRONTEND_ORIGINS"); origins != "" {
		if origins == "*" {
			viper.Set("server.allowed_origins", []string{"*"})
		} else {
			parts := strings.Split(origins, ",")
			var trimmed []string
			for _, part := range parts {
				if p := strings.TrimSpace(part); p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				viper.Set("server.allowed_origins", trimmed)
			}
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if username := os.Getenv("ROBINHOOD_USERNAME"); username != "" {
		viper.Set("brokerage.username", username)
	}
	if password := os.Getenv("ROBINHOOD_PASSWORD"); password != "" {
		viper.Set("brokerage.password", password)
	}
	if deviceToken := os.Getenv("ROBINHOOD_DEVICE_TOKEN"); deviceToken != "" {
		viper.Set("brokerage.device_token", deviceToken)
	}

	if ttl := os.Getenv("TRADES_TTL"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			viper.Set("cache.trades_ttl", v)
		}
	}
	if ttl := os.Getenv("POSITIONS_TTL"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			viper.Set("cache.positions_ttl", v)
		}
	}
	if ttl := os.Getenv("PERFORMANCE_TTL"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			viper.Set("cache.performance_ttl", v)
		}
	}

	if interval := os.Getenv("SYNC_INTERVAL_MINUTES"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			viper.Set("sync.interval_minutes", v)
		}
	}
	if run := os.Getenv("RUN_SCHEDULER"); run != "" {
		viper.Set("sync.enabled", strings.EqualFold(run, "true"))
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		viper.Set("log_level", strings.ToLower(level))
	}
}

func validate(config *Config) error {
	if config.Brokerage.Username == "" || config.Brokerage.Password == "" {
		return pkgerrors.NewConfig("brokerage credentials are required")
	}
	if config.Brokerage.BaseURL == "" {
		return pkgerrors.NewConfig("brokerage base URL is required")
	}
	if config.Sync.IntervalMinutes < 1 {
		return pkgerrors.NewConfig("sync interval must be at least one minute")
	}
	return nil
}
