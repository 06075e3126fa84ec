package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/kafka"
	"github.com/NooberThanYall/fixo-crm/internal/model"
	"github.com/NooberThanYall/fixo-crm/internal/pipeline"
	redisstore "github.com/NooberThanYall/fixo-crm/internal/redis"
	"github.com/NooberThanYall/fixo-crm/pkg/telemetry"
	"github.com/NooberThanYall/fixo-crm/services/gateway/config"
	"github.com/NooberThanYall/fixo-crm/services/gateway/handler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST server",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("http-port", "8080", "HTTP server port")
	f.String("metrics-addr", ":9095", "Prometheus metrics server address")
	f.String("redis-addr", "localhost:6379", "Redis address (host:port); empty disables cache and rate limit")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("kafka-brokers", "localhost:9092", "comma-separated Kafka brokers; empty disables async confirmation")
	f.String("model-provider", model.ProviderOpenAI, "model backend: openai | gemini")
	f.String("model-api-url", "https://api.openai.com/v1/chat/completions", "model endpoint URL")
	f.String("model-api-key", "", "model API key")
	f.String("model-name", "gpt-4o-mini", "model identifier")
	f.Duration("model-timeout", 30*time.Second, "timeout of one model call")
	f.Int("max-model-attempts", 3, "model calls per prompt before giving up")
	f.Duration("retry-base-delay", 500*time.Millisecond, "backoff unit between model attempts")
	f.Int("max-prompt-length", 2000, "maximum prompt length in characters")
	f.Int("rate-limit", 20, "prompts per user per minute; 0 disables")
	f.Duration("draft-cache-ttl", redisstore.DefaultDraftTTL, "lifetime of cached draft snapshots")
	f.String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")
	f.Float64("trace-sample-ratio", 1, "share of new traces recorded")

	v := viper.GetViper()
	for key, flag := range map[string]string{
		"http_port":          "http-port",
		"metrics_addr":       "metrics-addr",
		"redis_addr":         "redis-addr",
		"redis_password":     "redis-password",
		"redis_db":           "redis-db",
		"kafka_brokers":      "kafka-brokers",
		"model_provider":     "model-provider",
		"model_api_url":      "model-api-url",
		"model_api_key":      "model-api-key",
		"model_name":         "model-name",
		"model_timeout":      "model-timeout",
		"max_model_attempts": "max-model-attempts",
		"retry_base_delay":   "retry-base-delay",
		"max_prompt_length":  "max-prompt-length",
		"rate_limit":         "rate-limit",
		"draft_cache_ttl":    "draft-cache-ttl",
		"otel_endpoint":      "otel-endpoint",
		"trace_sample_ratio": "trace-sample-ratio",
	} {
		bootstrap.BindFlag(v, key, f, flag)
	}
	_ = v.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := bootstrap.BuildLogger(cfg.LogLevel, serviceName, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName: "fixo-" + serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	stores, err := bootstrap.OpenStores(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	generator, err := model.New(ctx, cfg.Model)
	if err != nil {
		return fmt.Errorf("model: %w", err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.MaxModelAttempts > 0 {
		opts = append(opts, pipeline.WithMaxAttempts(cfg.MaxModelAttempts))
	}
	if cfg.RetryBaseDelay > 0 {
		opts = append(opts, pipeline.WithBaseDelay(cfg.RetryBaseDelay))
	}
	if cfg.MaxPromptLength > 0 {
		opts = append(opts, pipeline.WithMaxPromptLength(cfg.MaxPromptLength))
	}

	if cfg.RedisAddr != "" {
		redisClient := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = redisClient.Close() }()
		opts = append(opts, pipeline.WithCache(redisstore.NewDraftCache(redisClient, cfg.DraftCacheTTL)))
		if cfg.RateLimit > 0 {
			opts = append(opts, pipeline.WithRateLimiter(redisstore.NewRateLimiter(redisClient, cfg.RateLimit, time.Minute)))
		}
	}
	if cfg.AsyncEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, kafka.WithProducerLogger(logger))
		defer func() { _ = producer.Close() }()
		opts = append(opts, pipeline.WithPublisher(kafka.NewDraftPublisher(producer)))
	}

	svc := pipeline.New(stores.Catalog, stores.Records, stores.Drafts, generator, opts...)
	rest := handler.NewREST(svc, stores.Ping, cfg.AsyncEnabled(), logger)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.NewRouter(rest, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // sync confirm and model retries run inside the request
		IdleTimeout:  60 * time.Second,
	}

	telemetry.StartMetricsServer(ctx, cfg.MetricsAddr, stores.Ping, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway HTTP starting",
			slog.String("addr", httpSrv.Addr),
			slog.String("store_driver", cfg.Store.Driver),
			slog.String("model_provider", cfg.Model.Provider),
			slog.Bool("async_confirm", cfg.AsyncEnabled()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
