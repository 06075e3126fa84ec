package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	v := viper.New()
	v.Set("store_driver", "postgres")
	v.Set("postgres_dsn", "postgres://fixo@db/fixo")
	v.Set("kafka_brokers", "k1:9092, k2:9092,")
	v.Set("model_provider", "gemini")
	v.Set("model_timeout", "45s")
	v.Set("rate_limit", 10)
	v.Set("trace_sample_ratio", 0.25)

	cfg := Load(v)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://fixo@db/fixo", cfg.Store.PostgresDSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AsyncEnabled())
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, 45*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
}

func TestAsyncDisabledWithoutBrokers(t *testing.T) {
	assert.False(t, Load(viper.New()).AsyncEnabled())
	assert.Nil(t, SplitList(" , "))
}
