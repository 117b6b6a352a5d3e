package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/similarity"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
)

const listSeparator = ";"

// ResolveMode selects how imported rows name their listings.
type ResolveMode string

const (
	// ResolveByID reads product_ids.
	ResolveByID ResolveMode = "id"
	// ResolveByVendorProduct reads vendor_products entries of the form "<vendor slug>-<vendor product id>".
	ResolveByVendorProduct ResolveMode = "vendor-product"
)

// ParseResolveMode validates a use_by value.
func ParseResolveMode(value string) (ResolveMode, error) {
	switch ResolveMode(value) {
	case ResolveByID, ResolveByVendorProduct:
		return ResolveMode(value), nil
	}
	return "", fmt.Errorf("invalid resolve mode %q", value)
}

// GroupingRow is one parent product in the review CSV.
type GroupingRow struct {
	Category       string `csv:"category"`
	ProductIDs     string `csv:"product_ids"`
	VendorProducts string `csv:"vendor_products"`
	ProductNames   string `csv:"product_names"`
	ProductURLs    string `csv:"product_urls"`
}

// ExportCSV writes one row per parent product of the category and returns the row count.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, slug string) (int, error) {
	category, err := s.repo.FindCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("category %q not found", slug))
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	parents, children, err := s.repo.ListParents(ctx, category.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list parents")
	}

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(GroupingRow{}); err != nil {
		return 0, err
	}

	rows := 0
	for _, parent := range parents {
		kids := children[parent.ID]
		if len(kids) == 0 {
			continue
		}
		row := GroupingRow{Category: category.Slug}
		var ids, refs, names, urls []string
		for _, kid := range kids {
			ids = append(ids, kid.ID.String())
			vendorSlug := ""
			if kid.Vendor != nil {
				vendorSlug = kid.Vendor.Slug
			}
			refs = append(refs, vendorSlug+"-"+kid.ProductID)
			names = append(names, kid.Name)
			urls = append(urls, kid.URL)
		}
		row.ProductIDs = strings.Join(ids, listSeparator)
		row.VendorProducts = strings.Join(refs, listSeparator)
		row.ProductNames = strings.Join(names, listSeparator)
		row.ProductURLs = strings.Join(urls, listSeparator)
		if err := enc.Encode(row); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}

// ImportCSV materialises every row as a cluster. The parent takes the row's
// first product name and its category when set. Rows naming fewer than two
// known listings or an unknown category are skipped with a warning.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, mode ResolveMode) (*Report, error) {
	if _, err := ParseResolveMode(string(mode)); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Report{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv header")
	}

	var clusters []clusterSpec
	categories := map[string]*uuid.UUID{}
	skipped := 0
	for line := 2; ; line++ {
		var row GroupingRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("decode csv line %d", line))
		}

		var ids []uuid.UUID
		switch mode {
		case ResolveByID:
			ids = s.resolveIDs(ctx, row.ProductIDs)
		case ResolveByVendorProduct:
			ids, err = s.resolveVendorProducts(ctx, row.VendorProducts)
			if err != nil {
				return nil, err
			}
		}
		if len(ids) < 2 {
			skipped++
			s.logg.Warn(s.logg.WithField(ctx, "line", line), "csv row resolves to fewer than two listings")
			continue
		}
		spec := clusterSpec{ids: ids}
		if names := splitList(row.ProductNames); len(names) > 0 {
			spec.name = names[0]
		}
		if slug := strings.TrimSpace(row.Category); slug != "" {
			categoryID, err := s.importCategory(ctx, categories, slug)
			if err != nil {
				return nil, err
			}
			if categoryID == nil {
				skipped++
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"line": line, "category": slug}), "csv row names an unknown category")
				continue
			}
			spec.categoryID = categoryID
		}
		clusters = append(clusters, spec)
	}

	report, err := s.materialize(ctx, uuid.Nil, "", clusters)
	if err != nil {
		return nil, err
	}
	report.Category = "import"
	report.Skipped += skipped
	return report, nil
}

// importCategory resolves slug once per import. A nil id means the slug is unknown.
func (s *Service) importCategory(ctx context.Context, seen map[string]*uuid.UUID, slug string) (*uuid.UUID, error) {
	if id, ok := seen[slug]; ok {
		return id, nil
	}
	category, err := s.repo.FindCategoryBySlug(ctx, slug)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seen[slug] = nil
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find category")
	}
	seen[slug] = &category.ID
	return &category.ID, nil
}

func (s *Service) resolveIDs(ctx context.Context, raw string) []uuid.UUID {
	var ids []uuid.UUID
	for _, part := range splitList(raw) {
		id, err := uuid.Parse(part)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", part), "skipping unknown product id")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) resolveVendorProducts(ctx context.Context, raw string) ([]uuid.UUID, error) {
	byVendor := map[string][]string{}
	var order []string
	for _, part := range splitList(raw) {
		slug, productID, ok := strings.Cut(part, "-")
		if !ok || slug == "" || productID == "" {
			s.logg.Warn(s.logg.WithField(ctx, "vendor_product", part), "skipping malformed vendor product")
			continue
		}
		if _, seen := byVendor[slug]; !seen {
			order = append(order, slug)
		}
		byVendor[slug] = append(byVendor[slug], productID)
	}

	var ids []uuid.UUID
	for _, slug := range order {
		vendor, err := s.repo.FindVendorBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(s.logg.WithField(ctx, "vendor", slug), "skipping unknown vendor")
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load vendor")
		}
		products, err := s.repo.FindVendorProducts(ctx, vendor.ID, byVendor[slug])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve vendor products")
		}
		for _, p := range products {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nameable(name string) bool {
	words, _ := similarity.Tokens(name, similarity.DefaultStopWords)
	return len(words) > 0
}
