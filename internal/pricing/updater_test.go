package pricing

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/metrics"
)

type scriptFunc func(productID string, call int) (vendors.PriceResult, bool)

type scriptedClient struct {
	vendors.Client

	mu      sync.Mutex
	script  scriptFunc
	calls   map[string]int
	batches [][]string
	logins  int
}

func newScriptedClient(script scriptFunc) *scriptedClient {
	return &scriptedClient{script: script, calls: map[string]int{}}
}

func (c *scriptedClient) Login(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	return nil
}

func (c *scriptedClient) GetProductsPrices(_ context.Context, refs []vendors.ProductRef) (map[string]vendors.PriceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]vendors.PriceResult, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ProductID)
		c.calls[ref.ProductID]++
		if result, ok := c.script(ref.ProductID, c.calls[ref.ProductID]); ok {
			out[ref.ProductID] = result
		}
	}
	c.batches = append(c.batches, ids)
	return out, nil
}

func (c *scriptedClient) callsFor(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[productID]
}

type memoryStore struct {
	mu       sync.Mutex
	due      []Target
	prices   map[uuid.UUID]decimal.Decimal
	statuses map[uuid.UUID]enums.ProductVendorStatus
	expiry   map[uuid.UUID]time.Time
}

func newMemoryStore(due ...Target) *memoryStore {
	return &memoryStore{
		due:      due,
		prices:   map[uuid.UUID]decimal.Decimal{},
		statuses: map[uuid.UUID]enums.ProductVendorStatus{},
		expiry:   map[uuid.UUID]time.Time{},
	}
}

func (s *memoryStore) DueProducts(_ context.Context, _ uuid.UUID, _ time.Time, limit int) ([]Target, error) {
	if len(s.due) > limit {
		return s.due[:limit], nil
	}
	return s.due, nil
}

func (s *memoryStore) DueOfficeProducts(ctx context.Context, _, vendorID uuid.UUID, now time.Time, limit int) ([]Target, error) {
	return s.DueProducts(ctx, vendorID, now, limit)
}

func (s *memoryStore) ApplyPrice(_ context.Context, target Target, info vendors.PriceInfo, _, expiration time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[target.ID] = info.Price
	s.statuses[target.ID] = info.VendorStatus
	s.expiry[target.ID] = expiration
	return nil
}

func (s *memoryStore) MarkStatus(_ context.Context, target Target, status enums.ProductVendorStatus, _, expiration time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[target.ID] = status
	s.expiry[target.ID] = expiration
	return nil
}

func target(productID string, inventory bool) Target {
	id := uuid.New()
	return Target{ID: id, ProductID: id, Ref: vendors.ProductRef{ProductID: productID}, Inventory: inventory}
}

func priced(price string) vendors.PriceResult {
	return vendors.PriceResult{Info: &vendors.PriceInfo{
		Price:        decimal.RequireFromString(price),
		VendorStatus: enums.ProductVendorStatusActive,
	}}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func fastParams(batch int) VendorParams {
	return VendorParams{InventoryAge: 24 * time.Hour, RegularAge: 48 * time.Hour, RequestRate: 1000, BatchSize: batch, NeedsLogin: true}
}

func TestUpdaterRetriesUntilThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	flaky := target("FLAKY", true)
	broken := target("BROKEN", false)
	gone := target("GONE", false)
	store := newMemoryStore(flaky, broken, gone)

	client := newScriptedClient(func(productID string, call int) (vendors.PriceResult, bool) {
		switch productID {
		case "FLAKY":
			if call <= 2 {
				return vendors.PriceResult{Err: vendors.ErrTooManyRequests}, true
			}
			return priced("19.99"), true
		case "BROKEN":
			return vendors.PriceResult{Err: vendors.ErrNetworkConnection}, true
		default:
			return vendors.PriceResult{Err: vendors.ErrProductNotFound}, true
		}
	})

	reg := prometheus.NewRegistry()
	m := metrics.NewPriceRefreshMetrics(reg)
	updater, err := NewUpdater(Config{Vendor: vendors.SlugBenco, Params: fastParams(1)}, client, store, testLogger(),
		WithClock(func() time.Time { return now }), WithMetrics(m))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := updater.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Enqueued)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unavailable)
	assert.Equal(t, 1, summary.Exhausted)
	assert.Equal(t, 5, summary.Retried)
	assert.Equal(t, 1, client.logins)

	assert.Equal(t, 3, client.callsFor("FLAKY"))
	assert.Equal(t, 4, client.callsFor("BROKEN"))
	assert.Equal(t, 1, client.callsFor("GONE"))

	assert.True(t, decimal.RequireFromString("19.99").Equal(store.prices[flaky.ID]))
	assert.Equal(t, enums.ProductVendorStatusActive, store.statuses[flaky.ID])
	assert.Equal(t, now.Add(24*time.Hour), store.expiry[flaky.ID])

	assert.Equal(t, enums.ProductVendorStatusExhausted, store.statuses[broken.ID])
	_, hasPrice := store.prices[broken.ID]
	assert.False(t, hasPrice)

	assert.Equal(t, enums.ProductVendorStatusUnavailable, store.statuses[gone.ID])
	assert.Equal(t, now.Add(48*time.Hour), store.expiry[gone.ID])

	assert.Zero(t, updater.InFlight())
	series, err := testutil.GatherAndCount(reg, "ordo_price_refresh_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 4, series)
}

func TestUpdaterBatchesAndSkipsMissing(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first := target("A", false)
	second := target("B", false)
	status := enums.ProductVendorStatusDiscontinued
	missing := target("C", false)
	missing.Status = &status
	store := newMemoryStore(first, second, missing)

	client := newScriptedClient(func(productID string, _ int) (vendors.PriceResult, bool) {
		if productID == "C" {
			return vendors.PriceResult{}, false
		}
		return priced("5.00"), true
	})

	params := fastParams(3)
	params.NeedsLogin = false
	updater, err := NewUpdater(Config{Vendor: vendors.SlugHenrySchein, Params: params}, client, store, testLogger(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	summary, err := updater.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, client.logins)
	assert.Equal(t, enums.ProductVendorStatusDiscontinued, store.statuses[missing.ID])
	assert.Equal(t, now.Add(48*time.Hour), store.expiry[missing.ID])

	total := 0
	for _, batch := range client.batches {
		assert.LessOrEqual(t, len(batch), 3)
		total += len(batch)
	}
	assert.Equal(t, 3, total)
}

func TestUpdaterQueueBlocksWhenFull(t *testing.T) {
	updater, err := NewUpdater(Config{Vendor: vendors.SlugDarby, Params: fastParams(1)},
		newScriptedClient(nil), newMemoryStore(), testLogger())
	require.NoError(t, err)

	for i := 0; i < DefaultQueueSize; i++ {
		require.NoError(t, updater.put(context.Background(), ProcessTask{Target: target("X", false)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = updater.put(ctx, ProcessTask{Target: target("Y", false)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, updater.queue, DefaultQueueSize)

	updater.discardQueued()
	updater.pending.Wait()
}

func TestUpdaterEmptyRunReturns(t *testing.T) {
	updater, err := NewUpdater(Config{Vendor: vendors.SlugDarby, Params: fastParams(1)},
		newScriptedClient(nil), newMemoryStore(), testLogger())
	require.NoError(t, err)

	summary, err := updater.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{}, summary)

	_, err = updater.Run(context.Background())
	assert.ErrorIs(t, err, errAlreadyRan)
}

func TestUpdaterStopsOnCancel(t *testing.T) {
	store := newMemoryStore(target("SLOW", false))
	client := newScriptedClient(func(string, int) (vendors.PriceResult, bool) {
		return vendors.PriceResult{Err: vendors.ErrNetworkConnection}, true
	})
	params := fastParams(1)
	params.RequestRate = 0.5
	updater, err := NewUpdater(Config{Vendor: vendors.SlugDarby, Params: params}, client, store, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = updater.Run(ctx)
	require.Error(t, err)
	assert.Zero(t, updater.InFlight())
}

func TestNewUpdaterValidates(t *testing.T) {
	_, err := NewUpdater(Config{}, nil, newMemoryStore(), testLogger())
	require.Error(t, err)
	_, err = NewUpdater(Config{}, newScriptedClient(nil), nil, testLogger())
	require.Error(t, err)

	updater, err := NewUpdater(Config{Vendor: vendors.SlugBenco}, newScriptedClient(nil), newMemoryStore(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, ParamsFor(vendors.SlugBenco), updater.cfg.Params)
	assert.Equal(t, 5.0, updater.TargetRate())
}
