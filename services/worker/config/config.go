package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
)

// Config holds typed configuration for the worker service.
type Config struct {
	LogLevel          string
	LogFile           string
	Store             bootstrap.StoreConfig
	KafkaBrokers      []string
	GroupID           string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DraftCacheTTL     time.Duration
	MaxRetries        int
	TaskTimeout       time.Duration
	RedeliveryBackoff time.Duration
	MetricsAddr       string
	OTelEndpoint      string
	TraceSampleRatio  float64
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	var brokers []string
	for _, b := range strings.Split(v.GetString("kafka_brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return Config{
		LogLevel: v.GetString("log_level"),
		LogFile:  v.GetString("log_file"),
		Store: bootstrap.StoreConfig{
			Driver:      v.GetString("store_driver"),
			PostgresDSN: v.GetString("postgres_dsn"),
			SQLitePath:  v.GetString("sqlite_path"),
		},
		KafkaBrokers:      brokers,
		GroupID:           v.GetString("group_id"),
		RedisAddr:         v.GetString("redis_addr"),
		RedisPassword:     v.GetString("redis_password"),
		RedisDB:           v.GetInt("redis_db"),
		DraftCacheTTL:     v.GetDuration("draft_cache_ttl"),
		MaxRetries:        v.GetInt("max_retries"),
		TaskTimeout:       v.GetDuration("task_timeout"),
		RedeliveryBackoff: v.GetDuration("redelivery_backoff"),
		MetricsAddr:       v.GetString("metrics_addr"),
		OTelEndpoint:      v.GetString("otel_endpoint"),
		TraceSampleRatio:  v.GetFloat64("trace_sample_ratio"),
	}
}
