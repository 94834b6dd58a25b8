package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	ChatBaseURL     string
	ChatSecret      string
	PaymentBaseURL  string
	PaymentAPIKey   string
	DefaultCurrency string

	CacheDir            string
	DownloadTimeout     time.Duration
	StatusCacheTTL      time.Duration
	ContentListingLimit int
	PreloadThumbnails   int

	MaxDBConns int32

	TopicSessionStarted string
	TopicSessionEnded   string
	TopicSubsArchived   string
	TopicMediaCleared   string
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL    string   `yaml:"postgres_url"`
		RedisURL       string   `yaml:"redis_url"`
		KafkaBrokers   []string `yaml:"kafka_brokers"`
		ChatBaseURL    string   `yaml:"chat_base_url"`
		ChatSecret     string   `yaml:"chat_secret"`
		PaymentBaseURL string   `yaml:"payment_base_url"`
		PaymentAPIKey  string   `yaml:"payment_api_key"`
	} `yaml:"dependencies"`
	Cache struct {
		Dir               string `yaml:"dir"`
		DownloadTimeout   int    `yaml:"download_timeout_seconds"`
		StatusTTLSeconds  int    `yaml:"status_ttl_seconds"`
		ListingLimit      int    `yaml:"listing_limit"`
		PreloadThumbnails int    `yaml:"preload_thumbnails"`
	} `yaml:"cache"`
}

// LoadConfig layers file values over defaults and environment variables over
// both. DatabaseURL, RedisURL and KafkaBrokers are optional: when absent the
// runtime falls back to in-process stand-ins, which keeps a dev laptop usable
// without infrastructure.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "cherrizbox-syncd",
		HTTPPort:            8080,
		GRPCPort:            9090,
		DefaultCurrency:     "usd",
		CacheDir:            filepath.Join("data", "media-cache"),
		DownloadTimeout:     30 * time.Second,
		StatusCacheTTL:      5 * time.Minute,
		ContentListingLimit: 50,
		PreloadThumbnails:   12,
		MaxDBConns:          10,
		TopicSessionStarted: "session.started",
		TopicSessionEnded:   "session.ended",
		TopicSubsArchived:   "subscription.archived",
		TopicMediaCleared:   "media.cache_cleared",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.ChatBaseURL != "" {
			cfg.ChatBaseURL = f.Dependencies.ChatBaseURL
		}
		if f.Dependencies.ChatSecret != "" {
			cfg.ChatSecret = f.Dependencies.ChatSecret
		}
		if f.Dependencies.PaymentBaseURL != "" {
			cfg.PaymentBaseURL = f.Dependencies.PaymentBaseURL
		}
		if f.Dependencies.PaymentAPIKey != "" {
			cfg.PaymentAPIKey = f.Dependencies.PaymentAPIKey
		}
		if f.Cache.Dir != "" {
			cfg.CacheDir = f.Cache.Dir
		}
		if f.Cache.DownloadTimeout > 0 {
			cfg.DownloadTimeout = time.Duration(f.Cache.DownloadTimeout) * time.Second
		}
		if f.Cache.StatusTTLSeconds > 0 {
			cfg.StatusCacheTTL = time.Duration(f.Cache.StatusTTLSeconds) * time.Second
		}
		if f.Cache.ListingLimit > 0 {
			cfg.ContentListingLimit = f.Cache.ListingLimit
		}
		if f.Cache.PreloadThumbnails > 0 {
			cfg.PreloadThumbnails = f.Cache.PreloadThumbnails
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ChatBaseURL = envOrDefault("CHAT_BASE_URL", cfg.ChatBaseURL)
	cfg.ChatSecret = envOrDefault("CHAT_SECRET", cfg.ChatSecret)
	cfg.PaymentBaseURL = envOrDefault("PAYMENT_BASE_URL", cfg.PaymentBaseURL)
	cfg.PaymentAPIKey = envOrDefault("PAYMENT_API_KEY", cfg.PaymentAPIKey)
	cfg.DefaultCurrency = envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency)
	cfg.CacheDir = envOrDefault("MEDIA_CACHE_DIR", cfg.CacheDir)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.DownloadTimeout = time.Duration(envInt("DOWNLOAD_TIMEOUT_SECONDS", int(cfg.DownloadTimeout.Seconds()))) * time.Second
	cfg.StatusCacheTTL = time.Duration(envInt("STATUS_CACHE_SECONDS", int(cfg.StatusCacheTTL.Seconds()))) * time.Second
	cfg.ContentListingLimit = envInt("CONTENT_LISTING_LIMIT", cfg.ContentListingLimit)
	cfg.PreloadThumbnails = envInt("PRELOAD_THUMBNAILS", cfg.PreloadThumbnails)

	if cfg.ChatBaseURL == "" {
		return Config{}, fmt.Errorf("missing CHAT_BASE_URL")
	}
	if cfg.ChatSecret == "" {
		return Config{}, fmt.Errorf("missing CHAT_SECRET")
	}
	if cfg.PaymentBaseURL == "" {
		return Config{}, fmt.Errorf("missing PAYMENT_BASE_URL")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
