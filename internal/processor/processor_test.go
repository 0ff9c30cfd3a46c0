package processor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/events"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
	"github.com/nimasrn/ledger-book/pkg/prom"
	"github.com/nimasrn/ledger-book/pkg/redis"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProcessor(t *testing.T) (redis.RedisAdapter, *LedgerEventProcessor) {
	require.NoError(t, prom.Create("test-host", "test", "ledger_test"))

	mr := miniredis.RunT(t)
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redis.Close(connName) })

	return adapter, NewLedgerEventProcessor(NewIdempotencyService(adapter, DefaultIdempotencyConfig()))
}

func txEvent(kind model.EventKind, customerID uuid.UUID, due string) model.LedgerEvent {
	txID := uuid.New()
	return model.LedgerEvent{
		ID:            uuid.New(),
		Kind:          kind,
		CustomerID:    customerID,
		TransactionID: &txID,
		Type:          model.TransactionCredit,
		Amount:        money.MustParse("500"),
		TotalDue:      money.MustParse(due),
		At:            time.Now(),
	}
}

func outstanding(customerID uuid.UUID) float64 {
	return testutil.ToFloat64(prom.MetricCollectionGaugeVec[prom.SystemLedger+prom.MetricOutstandingTotal].WithLabelValues(customerID.String()))
}

func eventsProcessed(kind model.EventKind, status string) float64 {
	return testutil.ToFloat64(prom.MetricCollectionCounterVec[prom.SystemEvents+prom.MetricEventsProcessed].WithLabelValues(string(kind), status))
}

func TestLedgerEventProcessor_Process(t *testing.T) {
	_, p := setupProcessor(t)
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("transaction sets outstanding gauge", func(t *testing.T) {
		ev := txEvent(model.EventTransactionAdded, customerID, "300")
		require.NoError(t, p.Process(ctx, &events.Message{ID: "1-0", Event: ev, Attempts: 1}))
		assert.Equal(t, 300.0, outstanding(customerID))
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		ev := txEvent(model.EventTransactionAdded, customerID, "800")
		require.NoError(t, p.Process(ctx, &events.Message{ID: "2-0", Event: ev, Attempts: 1}))

		before := eventsProcessed(model.EventTransactionAdded, StatusDuplicate)
		stale := ev
		stale.TotalDue = money.MustParse("1")
		require.NoError(t, p.Process(ctx, &events.Message{ID: "2-0", Event: stale, Attempts: 2}))

		assert.Equal(t, 800.0, outstanding(customerID))
		assert.Equal(t, before+1, eventsProcessed(model.EventTransactionAdded, StatusDuplicate))
	})

	t.Run("customer deletion forgets the gauge", func(t *testing.T) {
		other := uuid.New()
		created := model.LedgerEvent{ID: uuid.New(), Kind: model.EventCustomerCreated, CustomerID: other, At: time.Now()}
		require.NoError(t, p.Process(ctx, &events.Message{Event: created}))

		deleted := model.LedgerEvent{ID: uuid.New(), Kind: model.EventCustomerDeleted, CustomerID: other, At: time.Now()}
		require.NoError(t, p.Process(ctx, &events.Message{Event: deleted}))

		gauge := prom.MetricCollectionGaugeVec[prom.SystemLedger+prom.MetricOutstandingTotal]
		assert.False(t, gauge.DeleteLabelValues(other.String()), "series should already be gone")
	})

	t.Run("unknown kind is skipped", func(t *testing.T) {
		ev := model.LedgerEvent{ID: uuid.New(), Kind: "customer.archived", CustomerID: customerID}
		assert.NoError(t, p.Process(ctx, &events.Message{Event: ev}))
	})
}

func TestLedgerEventProcessor_MalformedIsDroppedAfterRetries(t *testing.T) {
	_, p := setupProcessor(t)
	ctx := context.Background()

	ev := model.LedgerEvent{ID: uuid.New(), Kind: model.EventTransactionAdded, CustomerID: uuid.New()}
	for i := 0; i < DefaultIdempotencyConfig().MaxRetries; i++ {
		err := p.Process(ctx, &events.Message{Event: ev, Attempts: int64(i + 1)})
		assert.ErrorIs(t, err, ErrMalformedEvent)
	}

	before := eventsProcessed(model.EventTransactionAdded, StatusDropped)
	assert.NoError(t, p.Process(ctx, &events.Message{Event: ev}))
	assert.Equal(t, before+1, eventsProcessed(model.EventTransactionAdded, StatusDropped))
}

func TestProcessorService_ConsumesStream(t *testing.T) {
	adapter, p := setupProcessor(t)
	ctx := context.Background()

	opts := Options{
		Stream: events.Config{
			Stream:            "test:ledger-events",
			ConsumerGroup:     "processors",
			ConsumerName:      "test",
			VisibilityTimeout: time.Second,
			PollInterval:      20 * time.Millisecond,
			BatchSize:         10,
		},
		Consumers: 2,
		Workers:   4,
	}

	svc := NewProcessorService(adapter, opts)
	assert.ErrorIs(t, svc.Start(), ErrNoProcessor)

	svc.RegisterProcessor(p)
	require.NoError(t, svc.Start())

	publisher, err := events.NewStream(ctx, adapter, opts.Stream)
	require.NoError(t, err)

	customerID := uuid.New()
	for _, due := range []string{"100", "250", "75"} {
		require.NoError(t, publisher.Publish(ctx, txEvent(model.EventTransactionAdded, customerID, due)))
	}

	require.Eventually(t, func() bool {
		return svc.Metrics().Processed(model.EventTransactionAdded) == 3
	}, 3*time.Second, 20*time.Millisecond)

	svc.Stop()
	assert.Equal(t, int64(3), svc.Metrics().GetStats()["total_processed"])
}
