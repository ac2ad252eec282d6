package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CountriesURL          string
	CountriesTimeout      time.Duration
	CountriesCacheEnabled bool
	CountriesCacheTTL     time.Duration // 0 = keep indefinitely
	CountriesWarmOnStart  bool

	WeatherAPIKey       string
	WeatherAPIURL       string
	WeatherAPITimeout   time.Duration
	WeatherCacheEnabled bool
	WeatherCacheTTL     time.Duration

	CacheBackend string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	DashboardDefaultCountry string
	DashboardSessionTTL     time.Duration
	DashboardAPIBaseURL     string // empty = call services in-process

	OTLPEndpoint string
	OTLPInsecure bool
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Countries struct {
		URL         string `yaml:"url"`
		Timeout     string `yaml:"timeout"`
		Cache       *bool  `yaml:"cache"`
		CacheTTL    string `yaml:"cache_ttl"`
		WarmOnStart bool   `yaml:"warm_on_start"`
	} `yaml:"countries"`

	Weather struct {
		URL      string `yaml:"url"`
		Timeout  string `yaml:"timeout"`
		Cache    bool   `yaml:"cache"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"weather"`

	Cache struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Dashboard struct {
		DefaultCountry string `yaml:"default_country"`
		SessionTTL     string `yaml:"session_ttl"`
		APIBaseURL     string `yaml:"api_base_url"`
	} `yaml:"dashboard"`

	Tracing struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		Insecure     bool   `yaml:"insecure"`
	} `yaml:"tracing"`
}

type secretsFile struct {
	OpenWeatherAPIKey string `yaml:"openweather_api_key"`
}

const (
	defaultCountriesURL = "https://restcountries.com/v3.1/all?fields=name,capital,cca2"
	defaultWeatherURL   = "https://api.openweathermap.org/data/2.5/weather"
)

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// then applies env overrides. Call from project root.
// A missing OPENWEATHER_API_KEY is not an error: weather lookups report it per request.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	// Variables already set in the process environment win over .env.
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.CountriesURL = firstNonEmpty(fc.Countries.URL, defaultCountriesURL)
	cfg.CountriesTimeout = parseDurationOrZero(fc.Countries.Timeout, 5*time.Second)
	cfg.CountriesCacheEnabled = true
	if fc.Countries.Cache != nil {
		cfg.CountriesCacheEnabled = *fc.Countries.Cache
	}
	cfg.CountriesCacheTTL = parseDurationOrZero(fc.Countries.CacheTTL, 0)
	cfg.CountriesWarmOnStart = fc.Countries.WarmOnStart

	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))
	if cfg.WeatherAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.WeatherAPIKey = strings.TrimSpace(sec.OpenWeatherAPIKey)
		}
	}
	cfg.WeatherAPIURL = firstNonEmpty(fc.Weather.URL, defaultWeatherURL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.Weather.Timeout, 5*time.Second)
	cfg.WeatherCacheEnabled = fc.Weather.Cache
	cfg.WeatherCacheTTL = parseDurationOrZero(fc.Weather.CacheTTL, 0)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = firstNonEmpty(
		strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")),
		strings.TrimSpace(fc.Cache.Memcached.Addrs),
		"localhost:11211",
	)
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.DashboardDefaultCountry = strings.ToUpper(firstNonEmpty(strings.TrimSpace(fc.Dashboard.DefaultCountry), "DE"))
	cfg.DashboardSessionTTL = parseDuration(fc.Dashboard.SessionTTL, 30*time.Minute)
	cfg.DashboardAPIBaseURL = strings.TrimRight(strings.TrimSpace(fc.Dashboard.APIBaseURL), "/")

	cfg.OTLPEndpoint = firstNonEmpty(
		strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		strings.TrimSpace(fc.Tracing.OTLPEndpoint),
	)
	cfg.OTLPInsecure = fc.Tracing.Insecure

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Upstream timeouts must be positive and RequestTimeout is raised above both.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather.timeout must be positive")
	}
	if cfg.CountriesTimeout <= 0 {
		return fmt.Errorf("countries.timeout must be positive")
	}
	if cfg.CountriesCacheTTL < 0 || cfg.WeatherCacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	upstream := cfg.WeatherAPITimeout
	if cfg.CountriesTimeout > upstream {
		upstream = cfg.CountriesTimeout
	}
	if cfg.RequestTimeout <= upstream {
		cfg.RequestTimeout = upstream + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if len(cfg.DashboardDefaultCountry) != 2 {
		return fmt.Errorf("dashboard.default_country must be a two-letter code, got %q", cfg.DashboardDefaultCountry)
	}
	return nil
}
