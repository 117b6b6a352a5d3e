// Package catalog turns grouping clusters into canonical parent products and
// moves groupings in and out of CSV for manual review.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/grouping"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
	"github.com/angelmondragon/ordo-backend/pkg/outbox/payloads"
)

// ManufacturerNumberReport is the Report.Category of manufacturer-number runs.
const ManufacturerNumberReport = "manufacturer-number"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GroupOptions tunes a grouping run.
type GroupOptions struct {
	// IncludeGrouped regroups listings that already have a parent.
	IncludeGrouped bool
}

// Report summarises one grouping run.
type Report struct {
	Category       string      `json:"category"`
	Clusters       int         `json:"clusters"`
	ParentsCreated int         `json:"parents_created"`
	ParentsMerged  int         `json:"parents_merged"`
	ParentIDs      []uuid.UUID `json:"parent_ids"`
	Skipped        int         `json:"skipped"`
}

func (r *Report) add(o Report) {
	r.Clusters += o.Clusters
	r.ParentsCreated += o.ParentsCreated
	r.ParentsMerged += o.ParentsMerged
	r.ParentIDs = append(r.ParentIDs, o.ParentIDs...)
	r.Skipped += o.Skipped
}

type Service struct {
	repo    *Repository
	tx      txRunner
	outbox  outboxEmitter
	grouper *grouping.Grouper
	logg    *logger.Logger
}

func NewService(repo *Repository, tx txRunner, emitter outboxEmitter, grouper *grouping.Grouper, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if grouper == nil {
		return nil, errors.New("grouper required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{repo: repo, tx: tx, outbox: emitter, grouper: grouper, logg: logg}, nil
}

// GroupByCategory groups the vendor listings mapped to one category.
func (s *Service) GroupByCategory(ctx context.Context, slug string, opts GroupOptions) (*Report, error) {
	category, err := s.repo.FindCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("category %q not found", slug))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	ctx = s.logg.WithField(ctx, "category", category.Slug)

	lists, skipped, err := s.categoryLists(ctx, category, opts)
	if err != nil {
		return nil, err
	}

	report := &Report{Category: category.Slug, Skipped: skipped}
	if len(lists) <= 1 {
		s.logg.Info(ctx, "fewer than two vendors carry the category, nothing to group")
		return report, nil
	}

	clusters, err := s.grouper.Group(lists)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "group products")
	}

	materialized, err := s.materialize(ctx, category.ID, category.Slug, clusterSpecs(clusters))
	if err != nil {
		return nil, err
	}
	report.add(*materialized)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"clusters":        report.Clusters,
		"parents_created": report.ParentsCreated,
		"parents_merged":  report.ParentsMerged,
	}), "category grouped")
	return report, nil
}

// GroupAllCategories runs GroupByCategory over every category ordered by name.
func (s *Service) GroupAllCategories(ctx context.Context, opts GroupOptions) ([]Report, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	reports := make([]Report, 0, len(categories))
	for _, category := range categories {
		report, err := s.GroupByCategory(ctx, category.Slug, opts)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func (s *Service) categoryLists(ctx context.Context, category *models.ProductCategory, opts GroupOptions) ([][]grouping.Item, int, error) {
	vendors, err := s.repo.ListVendors(ctx)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendors")
	}

	var lists [][]grouping.Item
	skipped := 0
	for _, vendor := range vendors {
		var vendorCategories []string
		if !category.MatchesAllVendors() {
			mapped, ok := category.VendorCategories[vendor.Slug]
			if !ok {
				continue
			}
			vendorCategories = append([]string{}, mapped...)
		}

		products, err := s.repo.ListVendorProducts(ctx, vendor.ID, category.ID, vendorCategories, opts.IncludeGrouped)
		if err != nil {
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendor products")
		}

		items := make([]grouping.Item, 0, len(products))
		for _, p := range products {
			if !nameable(p.Name) {
				skipped++
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"vendor":     vendor.Slug,
					"product_id": p.ProductID,
				}), "skipping product without a usable name")
				continue
			}
			items = append(items, toItem(p))
		}
		if len(items) > 0 {
			lists = append(lists, items)
		}
	}
	return lists, skipped, nil
}

// GroupByManufacturerNumbers groups listings sharing a manufacturer number.
func (s *Service) GroupByManufacturerNumbers(ctx context.Context) (*Report, error) {
	products, err := s.repo.ListWithManufacturerNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	items := make([]grouping.Item, len(products))
	for i, p := range products {
		items[i] = toItem(p)
	}
	clusters := grouping.GroupByManufacturerNumber(items)
	return s.materialize(ctx, uuid.Nil, ManufacturerNumberReport, clusterSpecs(clusters))
}

// Materialize assigns every cluster to a single canonical parent. When members
// already have parents the lowest parent id is kept and the others are folded
// into it; otherwise a parent is created from the first member. Running it
// again over the same clusters changes nothing.
func (s *Service) Materialize(ctx context.Context, clusters [][]uuid.UUID) (*Report, error) {
	specs := make([]clusterSpec, len(clusters))
	for i, ids := range clusters {
		specs[i] = clusterSpec{ids: ids}
	}
	return s.materialize(ctx, uuid.Nil, "", specs)
}

// clusterSpec is one cluster to materialise. A non-empty name or non-nil
// categoryID overrides what the parent would take from its first member.
type clusterSpec struct {
	ids        []uuid.UUID
	name       string
	categoryID *uuid.UUID
}

func (s *Service) materialize(ctx context.Context, aggregateID uuid.UUID, label string, clusters []clusterSpec) (*Report, error) {
	report := &Report{Category: label}
	if len(clusters) == 0 {
		return report, nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, spec := range clusters {
			parentID, created, merged, err := materializeCluster(ctx, repo, spec)
			if err != nil {
				return err
			}
			if parentID == uuid.Nil {
				report.Skipped++
				continue
			}
			report.Clusters++
			report.ParentIDs = append(report.ParentIDs, parentID)
			report.ParentsMerged += merged
			if created {
				report.ParentsCreated++
			}
		}

		if s.outbox == nil || report.Clusters == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductsGrouped,
			AggregateType: enums.AggregateProduct,
			AggregateID:   aggregateID,
			Data: payloads.ProductsGroupedEvent{
				Category:       label,
				Clusters:       report.Clusters,
				ParentsCreated: report.ParentsCreated,
				ParentsMerged:  report.ParentsMerged,
				ParentIDs:      report.ParentIDs,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "materialize clusters")
	}
	return report, nil
}

func materializeCluster(ctx context.Context, repo *Repository, spec clusterSpec) (uuid.UUID, bool, int, error) {
	ids := spec.ids
	members, err := repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return uuid.Nil, false, 0, err
	}
	var listings []models.Product
	for _, m := range members {
		if !m.IsParent() {
			listings = append(listings, m)
		}
	}
	if len(listings) < 2 {
		return uuid.Nil, false, 0, nil
	}

	parentSet := map[uuid.UUID]struct{}{}
	for _, m := range listings {
		if m.ParentID != nil {
			parentSet[*m.ParentID] = struct{}{}
		}
	}
	parents := make([]uuid.UUID, 0, len(parentSet))
	for id := range parentSet {
		parents = append(parents, id)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].String() < parents[j].String() })

	memberIDs := make([]uuid.UUID, len(listings))
	for i, m := range listings {
		memberIDs[i] = m.ID
	}

	if len(parents) == 0 {
		// preserve the caller's order so the first listing names the parent
		first := firstInOrder(listings, ids)
		parent := &models.Product{
			Name:               first.Name,
			ProductUnit:        first.ProductUnit,
			CategoryID:         first.CategoryID,
			ManufacturerNumber: first.ManufacturerNumber,
			PriceExpiration:    time.Now().UTC(),
		}
		if spec.name != "" {
			parent.Name = spec.name
		}
		if spec.categoryID != nil {
			parent.CategoryID = spec.categoryID
		}
		if err := repo.CreateParent(ctx, parent); err != nil {
			return uuid.Nil, false, 0, err
		}
		if err := repo.SetParent(ctx, memberIDs, parent.ID); err != nil {
			return uuid.Nil, false, 0, err
		}
		return parent.ID, true, 0, nil
	}

	keep := parents[0]
	extras := parents[1:]
	for _, extra := range extras {
		if _, err := repo.MoveChildren(ctx, extra, keep); err != nil {
			return uuid.Nil, false, 0, err
		}
	}
	if err := repo.SetParent(ctx, memberIDs, keep); err != nil {
		return uuid.Nil, false, 0, err
	}
	if err := repo.DeleteParents(ctx, extras); err != nil {
		return uuid.Nil, false, 0, err
	}
	if err := repo.RenameParent(ctx, keep, spec.name, spec.categoryID); err != nil {
		return uuid.Nil, false, 0, err
	}
	return keep, false, len(extras), nil
}

func firstInOrder(listings []models.Product, order []uuid.UUID) models.Product {
	byID := make(map[uuid.UUID]models.Product, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	for _, id := range order {
		if p, ok := byID[id]; ok {
			return p
		}
	}
	return listings[0]
}

func clusterSpecs(clusters []grouping.Cluster) []clusterSpec {
	out := make([]clusterSpec, len(clusters))
	for i, c := range clusters {
		out[i] = clusterSpec{ids: c.IDs()}
	}
	return out
}

func toItem(p models.Product) grouping.Item {
	item := grouping.Item{ID: p.ID, Name: p.Name}
	if p.VendorID != nil {
		item.VendorID = *p.VendorID
	}
	if p.ManufacturerNumber != nil {
		item.ManufacturerNumber = *p.ManufacturerNumber
	}
	return item
}
