package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the rank tracker service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Search    SearchConfig    `mapstructure:"search"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Plans     PlansConfig     `mapstructure:"plans"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// SearchConfig tunes the outbound search-engine fetcher and the heuristic
// area windows applied to extracted link lists.
type SearchConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// RequestSpacing is the minimum pause between consecutive checks when
	// refreshing several trackers in a row. The target site blocks callers
	// that hammer it.
	RequestSpacing time.Duration `mapstructure:"request_spacing"`
	SmartblockSize int           `mapstructure:"smartblock_size"`
	MainBlogSize   int           `mapstructure:"main_blog_size"`
	BlogTabSize    int           `mapstructure:"blog_tab_size"`
}

// DatabasesConfig groups backing store connections.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the Postgres connection. URL wins when set.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a Postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig describes the Redis connection used for scheduler locks.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

// PlansConfig carries per-plan tracker quotas. A limit of -1 means
// unlimited.
type PlansConfig struct {
	TrackerLimits map[string]int `mapstructure:"tracker_limits"`
}

// SchedulerConfig controls the periodic tracker refresh loop.
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// Cron decides when a tracker is due for a re-check relative to its
	// last check. Supports "@daily", "@hourly" and 5-field cron specs.
	Cron string `mapstructure:"cron"`
}

// LoadConfig loads config from file and RANKWATCH_* environment variables.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":10020")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("search.base_url", "https://search.naver.com/search.naver")
	viper.SetDefault("search.accept_language", "ko-KR,ko;q=0.9")
	viper.SetDefault("search.timeout", 15*time.Second)
	viper.SetDefault("search.request_spacing", time.Second)
	viper.SetDefault("search.smartblock_size", 10)
	viper.SetDefault("search.main_blog_size", 20)
	viper.SetDefault("search.blog_tab_size", 100)
	viper.SetDefault("plans.tracker_limits", map[string]int{
		"free":       3,
		"basic":      10,
		"booster":    50,
		"enterprise": -1,
	})
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.interval", time.Hour)
	viper.SetDefault("scheduler.cron", "@daily")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("RANKWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine (defaults + env); anything else is fatal.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
