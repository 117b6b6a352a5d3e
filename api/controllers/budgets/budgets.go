package budgets

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/api/controllers/officecontext"
	"github.com/angelmondragon/ordo-backend/api/responses"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

// Reader loads one office budget month.
type Reader interface {
	Get(ctx context.Context, officeID uuid.UUID, month string) (*models.OfficeBudget, error)
}

// BudgetView is the monthly budget of an office with its spend buckets.
type BudgetView struct {
	OfficeID           uuid.UUID       `json:"office_id"`
	Month              string          `json:"month"`
	DentalBudget       decimal.Decimal `json:"dental_budget"`
	DentalSpend        decimal.Decimal `json:"dental_spend"`
	DentalRemaining    decimal.Decimal `json:"dental_remaining"`
	OfficeBudget       decimal.Decimal `json:"office_budget"`
	OfficeSpend        decimal.Decimal `json:"office_spend"`
	OfficeRemaining    decimal.Decimal `json:"office_remaining"`
	MiscellaneousSpend decimal.Decimal `json:"miscellaneous_spend"`
}

// Get returns the budget of {month} (YYYY-MM).
func Get(svc Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "budget service unavailable"))
			return
		}

		officeID, err := officecontext.ResolveOfficeID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		month := strings.TrimSpace(chi.URLParam(r, "month"))
		if month == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "month is required"))
			return
		}

		budget, err := svc.Get(ctx, officeID, month)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, BudgetView{
			OfficeID:           budget.OfficeID,
			Month:              budget.Month,
			DentalBudget:       budget.DentalBudget,
			DentalSpend:        budget.DentalSpend,
			DentalRemaining:    budget.DentalBudget.Sub(budget.DentalSpend),
			OfficeBudget:       budget.OfficeBudget,
			OfficeSpend:        budget.OfficeSpend,
			OfficeRemaining:    budget.OfficeBudget.Sub(budget.OfficeSpend),
			MiscellaneousSpend: budget.MiscellaneousSpend,
		})
	}
}
