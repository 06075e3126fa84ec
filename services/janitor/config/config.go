package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
)

// Config holds typed configuration for the janitor service.
type Config struct {
	LogLevel         string
	LogFile          string
	Store            bootstrap.StoreConfig
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	DraftCacheTTL    time.Duration
	Schedule         string
	PreviewTTL       time.Duration
	StuckTTL         time.Duration
	ExpireBatch      int
	LeaseTTL         time.Duration
	MetricsAddr      string
	OTelEndpoint     string
	TraceSampleRatio float64
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel: v.GetString("log_level"),
		LogFile:  v.GetString("log_file"),
		Store: bootstrap.StoreConfig{
			Driver:      v.GetString("store_driver"),
			PostgresDSN: v.GetString("postgres_dsn"),
			SQLitePath:  v.GetString("sqlite_path"),
		},
		RedisAddr:        v.GetString("redis_addr"),
		RedisPassword:    v.GetString("redis_password"),
		RedisDB:          v.GetInt("redis_db"),
		DraftCacheTTL:    v.GetDuration("draft_cache_ttl"),
		Schedule:         v.GetString("expire_schedule"),
		PreviewTTL:       v.GetDuration("preview_ttl"),
		StuckTTL:         v.GetDuration("stuck_ttl"),
		ExpireBatch:      v.GetInt("expire_batch"),
		LeaseTTL:         v.GetDuration("lease_ttl"),
		MetricsAddr:      v.GetString("metrics_addr"),
		OTelEndpoint:     v.GetString("otel_endpoint"),
		TraceSampleRatio: v.GetFloat64("trace_sample_ratio"),
	}
}
