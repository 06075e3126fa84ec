//go:build integration

package worker

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcKafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/kafka"
	"github.com/NooberThanYall/fixo-crm/internal/model"
	"github.com/NooberThanYall/fixo-crm/internal/pipeline"
	"github.com/NooberThanYall/fixo-crm/internal/postgres"
	"github.com/NooberThanYall/fixo-crm/internal/postgres/migrations"
	redisstore "github.com/NooberThanYall/fixo-crm/internal/redis"
)

var (
	testRedisAddr    string
	testPostgresDSN  string
	testKafkaBrokers []string
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	// ── Redis ────────────────────────────────────────────────────────────────
	redisCtr, err := tcRedis.Run(ctx, "redis:7-alpine")
	if err != nil {
		log.Fatalf("start redis container: %v", err)
	}
	defer redisCtr.Terminate(ctx) //nolint:errcheck

	redisConnStr, err := redisCtr.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("redis connection string: %v", err)
	}
	testRedisAddr = strings.TrimPrefix(redisConnStr, "redis://")

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pgCtr, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("fixo"),
		tcPostgres.WithUsername("fixo"),
		tcPostgres.WithPassword("fixo"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer pgCtr.Terminate(ctx) //nolint:errcheck

	testPostgresDSN, err = pgCtr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("postgres connection string: %v", err)
	}
	pool, err := postgres.NewPool(ctx, testPostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	if err := migrations.Apply(ctx, pool, nil); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	pool.Close()

	// ── Kafka ────────────────────────────────────────────────────────────────
	kafkaCtr, err := tcKafka.Run(ctx, "confluentinc/confluent-local:7.7.1",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Kafka Server started").
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start kafka container: %v", err)
	}
	defer kafkaCtr.Terminate(ctx) //nolint:errcheck

	testKafkaBrokers, err = kafkaCtr.Brokers(ctx)
	if err != nil {
		log.Fatalf("kafka brokers: %v", err)
	}
	return m.Run()
}

func createTopic(t *testing.T, topic string) {
	t.Helper()
	conn, err := kafkago.DialContext(context.Background(), "tcp", testKafkaBrokers[0])
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type answerGenerator string

func (g answerGenerator) Generate(context.Context, string) (string, error) { return string(g), nil }

// TestE2E_AsyncConfirm runs the gateway and worker halves of the pipeline
// against real infrastructure.
//
// Flow: submit prompt → preview → async confirm → Kafka drafts.confirmed →
//
//	worker ExecuteQueued → Postgres record updated + Redis cache refreshed.
func TestE2E_AsyncConfirm(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores, err := bootstrap.OpenStores(ctx, bootstrap.StoreConfig{
		Driver:      bootstrap.DriverPostgres,
		PostgresDSN: testPostgresDSN,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	redisClient := redisstore.NewClient(testRedisAddr, "", 0)
	t.Cleanup(func() { redisClient.Close() }) //nolint:errcheck
	cache := redisstore.NewDraftCache(redisClient, time.Hour)

	producer := kafka.NewProducer(testKafkaBrokers)
	t.Cleanup(func() { producer.Close() }) //nolint:errcheck
	createTopic(t, kafka.TopicConfirmed)

	require.NoError(t, stores.SetFields(ctx, "u1", []string{"color"}))
	widget, err := stores.Records.Create(ctx, "u1", domain.Fields{"name": "Widget", "price": 80.0, "color": "red"})
	require.NoError(t, err)

	// ── Gateway: translate, preview, queue ───────────────────────────────────
	gateway := pipeline.New(stores.Catalog, stores.Records, stores.Drafts,
		answerGenerator(`{"entity":"product","action":"update","data":{"price":100},"queries":{"name":"Widget"}}`),
		pipeline.WithLogger(logger),
		pipeline.WithCache(cache),
		pipeline.WithPublisher(kafka.NewDraftPublisher(producer)),
	)
	d, err := gateway.SubmitPrompt(ctx, "u1", "set the widget price to 100")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPreview, d.Status, d.Error)

	d, err = gateway.ConfirmDraft(ctx, "u1", d.ID, domain.ConfirmAsync)
	require.NoError(t, err)
	require.Equal(t, domain.StatusQueued, d.Status)

	// ── Worker: consume and execute ──────────────────────────────────────────
	executor := pipeline.New(stores.Catalog, stores.Records, stores.Drafts, model.Disabled,
		pipeline.WithLogger(logger),
		pipeline.WithCache(cache),
	)
	consumer := kafka.NewConsumer(testKafkaBrokers, kafka.TopicConfirmed, "e2e-worker", logger,
		kafka.WithRedeliveryBackoff(100*time.Millisecond))
	t.Cleanup(func() { consumer.Close() }) //nolint:errcheck

	w := NewWorker("e2e-worker-1", consumer, producer, executor, WithLogger(logger))
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	// The gateway reads through the cache the worker refreshed.
	require.Eventually(t, func() bool {
		got, err := gateway.GetDraft(ctx, "u1", d.ID)
		return err == nil && got.Status == domain.StatusDone
	}, 45*time.Second, 200*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	w.Wait()

	stored, err := stores.Drafts.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, stored.Status)
	assert.NotNil(t, stored.ExecutedAt)
	require.NotNil(t, stored.Result)
	assert.Equal(t, 1, stored.Result.Affected)

	updated, err := stores.Records.Get(ctx, "u1", widget.ID())
	require.NoError(t, err)
	price, ok := domain.AsFloat(updated["price"])
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, "red", updated["color"])
}
