package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Databases DatabasesConfig `mapstructure:"databases"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServiceType string

const (
	API    ServiceType = "API"
	WORKER ServiceType = "WORKER"
)

type ServiceConfig struct {
	Type ServiceType `mapstructure:"type"`
	Port string      `mapstructure:"port"`
}

type DatabasesConfig struct {
	SQL   SQLConfig   `mapstructure:"sql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// SQLConfig.Driver is either "postgres" or "memory".
type SQLConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Driver           string `mapstructure:"driver"`
	Database         string `mapstructure:"database"`
	ConnectionString string `mapstructure:"connection_string"`
	MaxConns         int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
	TLS      bool   `mapstructure:"tls"`
}

type AWSConfig struct {
	Region            string `mapstructure:"region"`
	SQLPasswordSecret string `mapstructure:"sql_password_secret"`
}

type EngineConfig struct {
	ScheduleCron         string        `mapstructure:"schedule_cron"`
	MarketDipCron        string        `mapstructure:"market_dip_cron"`
	Workers              int           `mapstructure:"workers"`
	RoundUpThreshold     string        `mapstructure:"round_up_threshold"`
	FeeRate              string        `mapstructure:"fee_rate"`
	QuantityPrecision    int32         `mapstructure:"quantity_precision"`
	MaxPriceAge          time.Duration `mapstructure:"max_price_age"`
	PriceCacheTTL        time.Duration `mapstructure:"price_cache_ttl"`
	DefaultCooldownHours int           `mapstructure:"default_cooldown_hours"`
	Locker               string        `mapstructure:"locker"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.type", string(API))
	v.SetDefault("service.port", "8000")
	v.SetDefault("databases.sql.driver", "postgres")
	v.SetDefault("databases.sql.max_conns", 5)
	v.SetDefault("engine.schedule_cron", "@every 1m")
	v.SetDefault("engine.market_dip_cron", "@every 5m")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.round_up_threshold", "5.00")
	v.SetDefault("engine.fee_rate", "0.001")
	v.SetDefault("engine.quantity_precision", 8)
	v.SetDefault("engine.default_cooldown_hours", 24)
	v.SetDefault("engine.locker", "local")
	v.SetDefault("engine.lock_ttl", 2*time.Minute)
	v.SetDefault("logging.level", "info")
}

// LoadConfig reads appsettings.yaml from path and, when env is not empty,
// merges appsettings.<env>.yaml on top of it.
func LoadConfig(path string, env string) (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("appsettings")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if env != "" {
		v.SetConfigName("appsettings." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to merge %s settings: %w", env, err)
		}
	}

	v.SetEnvPrefix("AUTOINVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
