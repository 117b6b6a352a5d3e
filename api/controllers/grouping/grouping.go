package grouping

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ordo-backend/api/responses"
	"github.com/angelmondragon/ordo-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

const maxImportBytes = 10 << 20

// Catalog is the grouping surface of the catalog service.
type Catalog interface {
	GroupByCategory(ctx context.Context, slug string, opts catalog.GroupOptions) (*catalog.Report, error)
	ExportCSV(ctx context.Context, w io.Writer, slug string) (int, error)
	ImportCSV(ctx context.Context, r io.Reader, mode catalog.ResolveMode) (*catalog.Report, error)
}

// Run groups the listings of {category} into parent products.
func Run(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		category, err := categoryParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		includeGrouped := false
		if raw := strings.TrimSpace(r.URL.Query().Get("include_grouped")); raw != "" {
			includeGrouped, err = strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "include_grouped must be a boolean"))
				return
			}
		}

		report, err := svc.GroupByCategory(ctx, category, catalog.GroupOptions{IncludeGrouped: includeGrouped})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// Export streams the parent products of {category} as a review CSV.
func Export(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		category, err := categoryParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// buffered so a failed export still gets a JSON error envelope
		var buf bytes.Buffer
		rows, err := svc.ExportCSV(ctx, &buf, category)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-grouping.csv"`, category))
		w.Header().Set("X-Row-Count", strconv.Itoa(rows))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil && logg != nil {
			logg.Error(ctx, "write grouping csv", err)
		}
	}
}

// Import materialises the rows of an uploaded review CSV. use_by selects
// whether rows are resolved by product_ids or vendor_products.
func Import(svc Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		useBy := strings.TrimSpace(r.URL.Query().Get("use_by"))
		if useBy == "" {
			useBy = string(catalog.ResolveByID)
		}
		mode, err := catalog.ParseResolveMode(useBy)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "use_by must be id or vendor-product"))
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxImportBytes)
		defer body.Close()

		report, err := svc.ImportCSV(ctx, body, mode)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

func categoryParam(r *http.Request) (string, error) {
	category := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "category")))
	if category == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	return category, nil
}
