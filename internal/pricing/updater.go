package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/metrics"
)

const (
	DefaultQueueSize = 20
	DefaultBulkSize  = 500
)

var errAlreadyRan = errors.New("pricing: updater already ran")

// ProcessTask is one target and the number of times it has been retried.
type ProcessTask struct {
	Target  Target
	Attempt int
}

// Config scopes one refresh run to a vendor and optionally an office.
type Config struct {
	Vendor           vendors.Slug
	VendorID         uuid.UUID
	OfficeID         *uuid.UUID
	Params           VendorParams
	QueueSize        int
	AttemptThreshold int
	BulkSize         int
	StatWindow       time.Duration
}

// Summary counts how the tasks of a run were resolved.
type Summary struct {
	Enqueued    int `json:"enqueued"`
	Updated     int `json:"updated"`
	Unavailable int `json:"unavailable"`
	Exhausted   int `json:"exhausted"`
	Retried     int `json:"retried"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

type counters struct {
	enqueued, updated, unavailable, exhausted, retried, skipped, failed atomic.Int64
}

func (c *counters) summary() Summary {
	return Summary{
		Enqueued:    int(c.enqueued.Load()),
		Updated:     int(c.updated.Load()),
		Unavailable: int(c.unavailable.Load()),
		Exhausted:   int(c.exhausted.Load()),
		Retried:     int(c.retried.Load()),
		Skipped:     int(c.skipped.Load()),
		Failed:      int(c.failed.Load()),
	}
}

// Option customises an Updater.
type Option func(*Updater)

// WithClock overrides the clock used for expirations and statistics.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}

// WithMetrics records outcomes, target rate and in-flight workers.
func WithMetrics(m *metrics.PriceRefreshMetrics) Option {
	return func(u *Updater) {
		u.metrics = m
	}
}

// Updater refreshes the due prices of one vendor. The producer feeds a
// bounded queue; the consumer drains it in vendor sized batches at the
// controller's target rate and hands every batch to its own worker. Retries
// go back through the same queue. An Updater runs once.
type Updater struct {
	cfg     Config
	client  vendors.Client
	store   Store
	logg    *logger.Logger
	metrics *metrics.PriceRefreshMetrics
	now     func() time.Time
	policy  RetryPolicy

	queue      chan ProcessTask
	pending    sync.WaitGroup
	inFlight   atomic.Int64
	stats      *StatBuffer
	controller *RateController
	limiter    *rate.Limiter
	counts     counters
	ran        atomic.Bool
}

func NewUpdater(cfg Config, client vendors.Client, store Store, logg *logger.Logger, opts ...Option) (*Updater, error) {
	if client == nil {
		return nil, fmt.Errorf("pricing: vendor client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("pricing: store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("pricing: logger is required")
	}
	if cfg.Params == (VendorParams{}) {
		cfg.Params = ParamsFor(cfg.Vendor)
	}
	if cfg.Params.BatchSize < 1 {
		cfg.Params.BatchSize = 1
	}
	if cfg.Params.RequestRate <= 0 {
		cfg.Params.RequestRate = DefaultVendorParams.RequestRate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.AttemptThreshold <= 0 {
		cfg.AttemptThreshold = DefaultAttemptThreshold
	}
	if cfg.BulkSize <= 0 {
		cfg.BulkSize = DefaultBulkSize
	}

	u := &Updater{
		cfg:    cfg,
		client: client,
		store:  store,
		logg:   logg,
		now:    time.Now,
		policy: RetryPolicy{AttemptThreshold: cfg.AttemptThreshold},
		queue:  make(chan ProcessTask, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.stats = NewStatBuffer(cfg.StatWindow, u.now)
	u.controller = NewRateController(cfg.Params.RequestRate, u.now())
	u.limiter = rate.NewLimiter(rate.Limit(cfg.Params.RequestRate), 1)
	return u, nil
}

// InFlight returns the number of batches currently being fetched.
func (u *Updater) InFlight() int64 {
	return u.inFlight.Load()
}

// TargetRate returns the current requests per second.
func (u *Updater) TargetRate() float64 {
	return u.controller.Target()
}

// Run refreshes every due target. It returns once the producer has finished
// and every task, retries included, has been resolved, or when ctx ends.
func (u *Updater) Run(ctx context.Context) (Summary, error) {
	if !u.ran.CompareAndSwap(false, true) {
		return Summary{}, errAlreadyRan
	}
	ctx = u.logg.WithVendor(ctx, u.cfg.Vendor.String())
	if u.cfg.OfficeID != nil {
		ctx = u.logg.WithOfficeID(ctx, u.cfg.OfficeID.String())
	}
	u.metrics.SetTargetRate(u.cfg.Vendor.String(), u.controller.Target())

	if u.cfg.Params.NeedsLogin {
		if err := u.client.Login(ctx); err != nil {
			return Summary{}, vendors.Wrap(u.cfg.Vendor, "login", nil, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	produced := make(chan struct{})
	g.Go(func() error {
		defer close(produced)
		return u.produce(gctx)
	})

	drained := make(chan struct{})
	go func() {
		<-produced
		u.pending.Wait()
		close(drained)
	}()

	consumeErr := u.consume(gctx, g, drained)
	if consumeErr != nil {
		cancel()
	}
	err := g.Wait()
	u.discardQueued()
	if err == nil {
		err = consumeErr
	}

	summary := u.counts.summary()
	u.logg.Info(u.logg.WithFields(ctx, map[string]any{
		"enqueued":    summary.Enqueued,
		"updated":     summary.Updated,
		"unavailable": summary.Unavailable,
		"exhausted":   summary.Exhausted,
		"retried":     summary.Retried,
		"target_rate": u.controller.Target(),
	}), "price refresh finished")
	return summary, err
}

func (u *Updater) dueTargets(ctx context.Context) ([]Target, error) {
	now := u.now()
	if u.cfg.OfficeID != nil {
		return u.store.DueOfficeProducts(ctx, *u.cfg.OfficeID, u.cfg.VendorID, now, u.cfg.BulkSize)
	}
	return u.store.DueProducts(ctx, u.cfg.VendorID, now, u.cfg.BulkSize)
}

func (u *Updater) produce(ctx context.Context) error {
	targets, err := u.dueTargets(ctx)
	if err != nil {
		return fmt.Errorf("loading due products: %w", err)
	}
	for _, target := range targets {
		if err := u.put(ctx, ProcessTask{Target: target}); err != nil {
			return err
		}
		u.counts.enqueued.Add(1)
	}
	u.logg.Debug(u.logg.WithField(ctx, "count", len(targets)), "due products enqueued")
	return nil
}

// put blocks while the queue is full. The task counts as pending until a
// worker resolves it.
func (u *Updater) put(ctx context.Context, task ProcessTask) error {
	u.pending.Add(1)
	select {
	case u.queue <- task:
		return nil
	case <-ctx.Done():
		u.pending.Done()
		return ctx.Err()
	}
}

func (u *Updater) consume(ctx context.Context, g *errgroup.Group, drained <-chan struct{}) error {
	vendor := u.cfg.Vendor.String()
	for {
		batch, ok, err := u.nextBatch(ctx, drained)
		if err != nil || !ok {
			return err
		}
		if err := u.limiter.Wait(ctx); err != nil {
			u.release(batch)
			return err
		}

		u.metrics.SetInFlight(vendor, u.inFlight.Add(1))
		g.Go(func() error {
			defer func() {
				u.metrics.SetInFlight(vendor, u.inFlight.Add(-1))
			}()
			u.process(ctx, batch)
			return nil
		})

		if target, changed := u.controller.Observe(u.stats.Stats(), u.now()); changed {
			u.limiter.SetLimit(rate.Limit(target))
			u.metrics.SetTargetRate(vendor, target)
			u.logg.Debug(u.logg.WithField(ctx, "target_rate", target), "adjusted vendor request rate")
		}
	}
}

// nextBatch waits for one task, then takes whatever else is queued up to the
// vendor's batch size. ok is false once every task has been resolved.
func (u *Updater) nextBatch(ctx context.Context, drained <-chan struct{}) ([]ProcessTask, bool, error) {
	var first ProcessTask
	select {
	case first = <-u.queue:
	case <-drained:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	batch := []ProcessTask{first}
	for len(batch) < u.cfg.Params.BatchSize {
		select {
		case task := <-u.queue:
			batch = append(batch, task)
		default:
			return batch, true, nil
		}
	}
	return batch, true, nil
}

func (u *Updater) process(ctx context.Context, batch []ProcessTask) {
	refs := make([]vendors.ProductRef, 0, len(batch))
	for _, task := range batch {
		refs = append(refs, task.Target.Ref)
	}
	results, fetchErr := u.client.GetProductsPrices(ctx, refs)
	now := u.now()

	for _, task := range batch {
		if fetchErr != nil {
			u.resolve(ctx, task, nil, fetchErr, now)
			continue
		}
		result, ok := results[task.Target.Ref.ProductID]
		if !ok {
			u.skip(ctx, task, now)
			continue
		}
		err := result.Err
		if err == nil && result.Info == nil {
			err = vendors.ErrEmptyResults
		}
		u.resolve(ctx, task, result.Info, err, now)
	}
}

func (u *Updater) resolve(ctx context.Context, task ProcessTask, info *vendors.PriceInfo, fetchErr error, now time.Time) {
	defer u.pending.Done()

	outcome := vendors.Classify(fetchErr)
	u.stats.Add(outcome == vendors.OutcomeSuccess || outcome == vendors.OutcomeNotFound)
	u.metrics.IncOutcome(u.cfg.Vendor.String(), outcome.String())

	target := task.Target
	ctx = u.logg.WithField(ctx, "product_id", target.ID.String())
	expiration := now.Add(u.cfg.Params.Age(target.Inventory))

	var err error
	switch decision := u.policy.Decide(outcome, task.Attempt); decision.Action {
	case ActionUpdate:
		if err = u.store.ApplyPrice(ctx, target, *info, now, expiration); err == nil {
			u.counts.updated.Add(1)
		}
	case ActionMarkUnavailable:
		if err = u.store.MarkStatus(ctx, target, enums.ProductVendorStatusUnavailable, now, expiration); err == nil {
			u.counts.unavailable.Add(1)
		}
	case ActionRetry:
		u.counts.retried.Add(1)
		if putErr := u.put(ctx, ProcessTask{Target: target, Attempt: decision.NextAttempt}); putErr != nil {
			u.logg.Warn(u.logg.WithField(ctx, "attempt", decision.NextAttempt), "dropping retry: "+putErr.Error())
		}
	case ActionGiveUp:
		u.logg.Warn(u.logg.WithFields(ctx, map[string]any{
			"attempt": task.Attempt,
			"outcome": outcome.String(),
		}), "giving up on product price")
		if err = u.store.MarkStatus(ctx, target, enums.ProductVendorStatusExhausted, now, expiration); err == nil {
			u.counts.exhausted.Add(1)
		}
	}
	if err != nil {
		u.counts.failed.Add(1)
		u.logg.Error(ctx, "failed to store price refresh result", err)
	}
}

// skip handles a target the vendor left out of its answer: the current
// status is kept and the expiration pushed out.
func (u *Updater) skip(ctx context.Context, task ProcessTask, now time.Time) {
	defer u.pending.Done()
	status := enums.ProductVendorStatusUnknown
	if task.Target.Status != nil {
		status = *task.Target.Status
	}
	expiration := now.Add(u.cfg.Params.Age(task.Target.Inventory))
	if err := u.store.MarkStatus(ctx, task.Target, status, now, expiration); err != nil {
		u.counts.failed.Add(1)
		u.logg.Error(ctx, "failed to restamp skipped product", err)
		return
	}
	u.counts.skipped.Add(1)
}

func (u *Updater) release(batch []ProcessTask) {
	for range batch {
		u.pending.Done()
	}
}

// discardQueued resolves tasks stranded in the queue after cancellation.
func (u *Updater) discardQueued() {
	for {
		select {
		case <-u.queue:
			u.pending.Done()
		default:
			return
		}
	}
}
