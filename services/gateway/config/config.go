package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/model"
)

// Config holds typed configuration for the gateway service.
type Config struct {
	LogLevel         string
	LogFile          string
	HTTPPort         string
	MetricsAddr      string
	Store            bootstrap.StoreConfig
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	KafkaBrokers     []string
	Model            model.Config
	MaxModelAttempts int
	RetryBaseDelay   time.Duration
	MaxPromptLength  int
	RateLimit        int
	DraftCacheTTL    time.Duration
	OTelEndpoint     string
	TraceSampleRatio float64
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:    v.GetString("log_level"),
		LogFile:     v.GetString("log_file"),
		HTTPPort:    v.GetString("http_port"),
		MetricsAddr: v.GetString("metrics_addr"),
		Store: bootstrap.StoreConfig{
			Driver:      v.GetString("store_driver"),
			PostgresDSN: v.GetString("postgres_dsn"),
			SQLitePath:  v.GetString("sqlite_path"),
		},
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		KafkaBrokers:  SplitList(v.GetString("kafka_brokers")),
		Model: model.Config{
			Provider: v.GetString("model_provider"),
			APIURL:   v.GetString("model_api_url"),
			APIKey:   v.GetString("model_api_key"),
			Model:    v.GetString("model_name"),
			Timeout:  v.GetDuration("model_timeout"),
		},
		MaxModelAttempts: v.GetInt("max_model_attempts"),
		RetryBaseDelay:   v.GetDuration("retry_base_delay"),
		MaxPromptLength:  v.GetInt("max_prompt_length"),
		RateLimit:        v.GetInt("rate_limit"),
		DraftCacheTTL:    v.GetDuration("draft_cache_ttl"),
		OTelEndpoint:     v.GetString("otel_endpoint"),
		TraceSampleRatio: v.GetFloat64("trace_sample_ratio"),
	}
}

// AsyncEnabled reports whether confirmations can be queued for the worker.
func (c Config) AsyncEnabled() bool { return len(c.KafkaBrokers) > 0 }

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
