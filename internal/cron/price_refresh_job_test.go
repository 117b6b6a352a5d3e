package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordo-backend/internal/pricing"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
)

type fakeRefresher struct {
	calls []vendors.Slug
	fail  map[vendors.Slug]error
}

func (f *fakeRefresher) Refresh(_ context.Context, slug vendors.Slug, officeID *uuid.UUID) (pricing.Summary, error) {
	f.calls = append(f.calls, slug)
	if officeID != nil {
		return pricing.Summary{}, errors.New("catalog refresh must not be office scoped")
	}
	if err := f.fail[slug]; err != nil {
		return pricing.Summary{}, err
	}
	return pricing.Summary{Enqueued: 3, Updated: 3}, nil
}

func TestPriceRefreshJobContinuesPastFailingVendor(t *testing.T) {
	refresher := &fakeRefresher{fail: map[vendors.Slug]error{vendors.SlugBenco: errors.New("login rejected")}}
	job, err := NewPriceRefreshJob(PriceRefreshJobParams{
		Logger:  testLogger(),
		Runner:  refresher,
		Vendors: []vendors.Slug{vendors.SlugHenrySchein, vendors.SlugBenco, vendors.SlugDarby},
	})
	if err != nil {
		t.Fatalf("NewPriceRefreshJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected the benco failure to be reported")
	}
	if len(refresher.calls) != 3 {
		t.Fatalf("expected every vendor refreshed, got %v", refresher.calls)
	}
}

func TestPriceRefreshJobRequiresVendors(t *testing.T) {
	if _, err := NewPriceRefreshJob(PriceRefreshJobParams{Logger: testLogger(), Runner: &fakeRefresher{}}); err == nil {
		t.Fatal("expected error without vendors")
	}
}

type fakeRoller struct {
	at      time.Time
	created int
	err     error
}

func (f *fakeRoller) RollOver(_ context.Context, now time.Time) (int, error) {
	f.at = now
	return f.created, f.err
}

func TestBudgetRolloverJob(t *testing.T) {
	roller := &fakeRoller{created: 4}
	jobIface, err := NewBudgetRolloverJob(BudgetRolloverJobParams{Logger: testLogger(), Budgets: roller})
	if err != nil {
		t.Fatalf("NewBudgetRolloverJob: %v", err)
	}
	job := jobIface.(*budgetRolloverJob)
	now := time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !roller.at.Equal(now) {
		t.Fatalf("expected rollover at %s, got %s", now, roller.at)
	}

	roller.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
