// Package budgets keeps each office's monthly spend in line with the vendor
// orders placed in that month.
package budgets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

// MonthLayout is the format of OfficeBudget.Month.
const MonthLayout = "2006-01"

// MonthOf returns the budget month t falls in.
func MonthOf(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// ParseMonth returns the first instant of a YYYY-MM month.
func ParseMonth(month string) (time.Time, error) {
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "month must be formatted as YYYY-MM")
	}
	return start, nil
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service recomputes and adjusts office budgets.
type Service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo *Repository, tx txRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("budgets repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{repo: repo, tx: tx, logg: logg}, nil
}

// Get returns the office budget of month.
func (s *Service) Get(ctx context.Context, officeID uuid.UUID, month string) (*models.OfficeBudget, error) {
	if _, err := ParseMonth(month); err != nil {
		return nil, err
	}
	budget, err := s.repo.Find(ctx, officeID, month)
	if err != nil {
		return nil, notFoundOr(err, "load budget")
	}
	return budget, nil
}

// Recompute rebuilds the spend buckets of one office month from its order items.
func (s *Service) Recompute(ctx context.Context, officeID uuid.UUID, month string) (*models.OfficeBudget, error) {
	start, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}

	var budget *models.OfficeBudget
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.Find(ctx, officeID, month)
		if err != nil {
			return notFoundOr(err, "load budget")
		}
		spend, err := repo.SpendByType(ctx, officeID, start, start.AddDate(0, 1, 0))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum order items")
		}
		found.DentalSpend = spend[enums.BudgetSpendDental]
		found.OfficeSpend = spend[enums.BudgetSpendOffice]
		found.MiscellaneousSpend = spend[enums.BudgetSpendMiscellaneous]
		if err := repo.SaveSpend(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save budget spend")
		}
		budget = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

// MoveSpendCategory moves amount between two spend buckets of the month at falls in.
func (s *Service) MoveSpendCategory(ctx context.Context, officeID uuid.UUID, at time.Time, amount decimal.Decimal, from, to enums.BudgetSpendType) error {
	if !from.IsValid() || !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown budget spend type")
	}
	if from == to || amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		budget, err := repo.Find(ctx, officeID, MonthOf(at))
		if err != nil {
			return notFoundOr(err, "load budget")
		}
		*bucket(budget, from) = bucket(budget, from).Sub(amount)
		*bucket(budget, to) = bucket(budget, to).Add(amount)
		if err := repo.SaveSpend(ctx, budget); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save budget spend")
		}
		return nil
	})
}

// RollOver opens the month of now for every office that had a budget the
// month before, carrying the budget amounts over with zero spend.
func (s *Service) RollOver(ctx context.Context, now time.Time) (int, error) {
	current := MonthOf(now)
	previous := MonthOf(now.UTC().AddDate(0, 0, -now.UTC().Day()))

	prior, err := s.repo.ListMonth(ctx, previous)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list previous budgets")
	}

	created := 0
	var errs error
	for _, old := range prior {
		if _, err := s.repo.Find(ctx, old.OfficeID, current); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			errs = multierr.Append(errs, err)
			continue
		}
		next := models.OfficeBudget{
			OfficeID:           old.OfficeID,
			Month:              current,
			DentalBudget:       old.DentalBudget,
			OfficeBudget:       old.OfficeBudget,
			DentalSpend:        decimal.Zero,
			OfficeSpend:        decimal.Zero,
			MiscellaneousSpend: decimal.Zero,
		}
		if err := s.repo.Create(ctx, &next); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		created++
	}
	if errs != nil {
		s.logg.Error(s.logg.WithField(ctx, "month", current), "budget rollover incomplete", errs)
	}
	return created, errs
}

func bucket(budget *models.OfficeBudget, spendType enums.BudgetSpendType) *decimal.Decimal {
	switch spendType {
	case enums.BudgetSpendOffice:
		return &budget.OfficeSpend
	case enums.BudgetSpendMiscellaneous:
		return &budget.MiscellaneousSpend
	default:
		return &budget.DentalSpend
	}
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "budget not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
