package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

type BudgetRolloverJobParams struct {
	Logger  *logger.Logger
	Budgets budgetRoller
}

type budgetRoller interface {
	RollOver(ctx context.Context, now time.Time) (int, error)
}

// NewBudgetRolloverJob builds the job that opens each office's budget for the
// current month from the previous one.
func NewBudgetRolloverJob(params BudgetRolloverJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Budgets == nil {
		return nil, fmt.Errorf("budget service required")
	}
	return &budgetRolloverJob{logg: params.Logger, budgets: params.Budgets, now: time.Now}, nil
}

type budgetRolloverJob struct {
	logg    *logger.Logger
	budgets budgetRoller
	now     func() time.Time
}

func (j *budgetRolloverJob) Name() string { return "budget-rollover" }

func (j *budgetRolloverJob) Run(ctx context.Context) error {
	created, err := j.budgets.RollOver(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("budget rollover: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "budgets_created", created), "budget rollover complete")
	return nil
}
