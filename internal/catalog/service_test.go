package catalog

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/grouping"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
)

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	benco    models.Vendor
	darby    models.Vendor
	category models.ProductCategory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	grouper, err := grouping.New(grouping.DefaultThreshold)
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), emitter, grouper, logg)
	require.NoError(t, err)

	f := &fixture{
		conn:  conn,
		svc:   svc,
		benco: models.Vendor{Slug: "benco", Name: "Benco"},
		darby: models.Vendor{Slug: "darby", Name: "Darby"},
		category: models.ProductCategory{
			Name: "Anesthetics",
			Slug: "anesthetics",
			VendorCategories: map[string][]string{
				"benco": {"Anesthetic"},
				"darby": {"Local Anesthetics"},
			},
		},
	}
	dbtest.MustCreate(t, conn, &f.benco)
	dbtest.MustCreate(t, conn, &f.darby)
	dbtest.MustCreate(t, conn, &f.category)
	return f
}

func (f *fixture) product(t *testing.T, vendor models.Vendor, productID, name, vendorCategory string) models.Product {
	t.Helper()
	vendorID := vendor.ID
	p := models.Product{
		VendorID:        &vendorID,
		ProductID:       productID,
		Name:            name,
		VendorCategory:  vendorCategory,
		CategoryID:      &f.category.ID,
		URL:             "https://" + vendor.Slug + ".example/p/" + productID,
		PriceExpiration: time.Now().UTC(),
	}
	dbtest.MustCreate(t, f.conn, &p)
	return p
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	return p
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestGroupByCategoryCreatesParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, f.benco, "B-1", "Articaine HCl 4% Epinephrine 1:100,000 Box of 50", "Anesthetic")
	b := f.product(t, f.darby, "D-9", "Articaine 4% with Epi 1:100,000, 50 ct", "Local Anesthetics")
	f.product(t, f.darby, "D-10", "Cotton Rolls", "Cotton")

	report, err := f.svc.GroupByCategory(ctx, "anesthetics", GroupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 1, report.ParentsCreated)

	gotA, gotB := f.reload(t, a.ID), f.reload(t, b.ID)
	require.NotNil(t, gotA.ParentID)
	require.NotNil(t, gotB.ParentID)
	assert.Equal(t, *gotA.ParentID, *gotB.ParentID)

	parent := f.reload(t, *gotA.ParentID)
	assert.True(t, parent.IsParent())
	assert.Equal(t, a.Name, parent.Name)
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventProductsGrouped))
}

func TestGroupByCategoryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, f.benco, "B-1", "Septocaine 4% 1:100000 50/Box", "Anesthetic")
	f.product(t, f.darby, "D-1", "Septocaine 4% 1:100000 50 Box", "Local Anesthetics")

	_, err := f.svc.GroupByCategory(ctx, "anesthetics", GroupOptions{})
	require.NoError(t, err)
	parents := f.count(t, &models.Product{}, "vendor_id IS NULL")
	require.Equal(t, int64(1), parents)

	again, err := f.svc.GroupByCategory(ctx, "anesthetics", GroupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Clusters)

	regrouped, err := f.svc.GroupByCategory(ctx, "anesthetics", GroupOptions{IncludeGrouped: true})
	require.NoError(t, err)
	assert.Equal(t, 1, regrouped.Clusters)
	assert.Equal(t, 0, regrouped.ParentsCreated)
	assert.Equal(t, parents, f.count(t, &models.Product{}, "vendor_id IS NULL"))
}

func TestGroupByCategoryOtherStaysWithinCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := models.ProductCategory{Name: "Other", Slug: models.OtherCategorySlug}
	dbtest.MustCreate(t, f.conn, &other)

	f.product(t, f.benco, "B-1", "Articaine HCl 4% Epinephrine 1:100,000 Box of 50", "Anesthetic")
	f.product(t, f.darby, "D-1", "Articaine 4% with Epi 1:100,000, 50 ct", "Local Anesthetics")

	report, err := f.svc.GroupByCategory(ctx, models.OtherCategorySlug, GroupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Clusters)
	assert.Equal(t, 0, report.ParentsCreated)
	assert.Equal(t, int64(0), f.count(t, &models.Product{}, "vendor_id IS NULL"))

	x := f.product(t, f.benco, "B-7", "Disposable Bibs Blue 500 ct", "Misc")
	y := f.product(t, f.darby, "D-7", "Disposable Bibs Blue 500/cs", "Sundries")
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id IN ?", []uuid.UUID{x.ID, y.ID}).Update("category_id", other.ID).Error)

	report, err = f.svc.GroupByCategory(ctx, models.OtherCategorySlug, GroupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	gotX, gotY := f.reload(t, x.ID), f.reload(t, y.ID)
	require.NotNil(t, gotX.ParentID)
	require.NotNil(t, gotY.ParentID)
	assert.Equal(t, *gotX.ParentID, *gotY.ParentID)
}

func TestGroupByCategoryUnknownSlug(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GroupByCategory(context.Background(), "missing", GroupOptions{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMaterializeMergesExistingParents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.product(t, f.benco, "B-1", "Gloves Nitrile Small", "Gloves")
	y := f.product(t, f.darby, "D-1", "Nitrile Gloves S", "Gloves")
	z := f.product(t, f.darby, "D-2", "Nitrile Gloves Small Blue", "Gloves")

	first := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	second := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	for _, id := range []uuid.UUID{first, second} {
		dbtest.MustCreate(t, f.conn, &models.Product{ID: id, Name: "parent", PriceExpiration: time.Now()})
	}
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", x.ID).Update("parent_id", second).Error)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id IN ?", []uuid.UUID{y.ID, z.ID}).Update("parent_id", first).Error)

	report, err := f.svc.Materialize(ctx, [][]uuid.UUID{{x.ID, y.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ParentsMerged)
	assert.Equal(t, 0, report.ParentsCreated)

	for _, id := range []uuid.UUID{x.ID, y.ID, z.ID} {
		got := f.reload(t, id)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, first, *got.ParentID)
	}
	assert.Equal(t, int64(1), f.count(t, &models.Product{}, "vendor_id IS NULL"))

	again, err := f.svc.Materialize(ctx, [][]uuid.UUID{{x.ID, y.ID}})
	require.NoError(t, err)
	assert.Equal(t, 0, again.ParentsMerged)
	assert.Equal(t, int64(1), f.count(t, &models.Product{}, "vendor_id IS NULL"))
}

func TestMaterializeSkipsUnknownMembers(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, f.benco, "B-1", "Gloves Nitrile Small", "Gloves")

	report, err := f.svc.Materialize(context.Background(), [][]uuid.UUID{{x.ID, uuid.New()}})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Clusters)
	assert.Equal(t, 1, report.Skipped)
	assert.Nil(t, f.reload(t, x.ID).ParentID)
}

func TestGroupByManufacturerNumbers(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, f.benco, "B-1", "Composite A2", "Restorative")
	b := f.product(t, f.darby, "D-1", "Filtek Composite", "Restorative")
	mfr := "ab-100"
	mfr2 := "AB100"
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", a.ID).Update("manufacturer_number", mfr).Error)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", b.ID).Update("manufacturer_number", mfr2).Error)

	report, err := f.svc.GroupByManufacturerNumbers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, ManufacturerNumberReport, report.Category)
	assert.Equal(t, *f.reload(t, a.ID).ParentID, *f.reload(t, b.ID).ParentID)
}

func TestExportAndImportCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, f.benco, "B-1", "Septocaine 4% 1:100000 50/Box", "Anesthetic")
	b := f.product(t, f.darby, "D-1", "Septocaine 4% 1:100000 50 Box", "Local Anesthetics")
	_, err := f.svc.GroupByCategory(ctx, "anesthetics", GroupOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	rows, err := f.svc.ExportCSV(ctx, &buf, "anesthetics")
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "category,product_ids,vendor_products,product_names,product_urls\n"))
	assert.Contains(t, out, "benco-B-1")
	assert.Contains(t, out, "darby-D-1")

	c := f.product(t, f.benco, "B-2", "Lidocaine 2% 1:100000 50", "Anesthetic")
	d := f.product(t, f.darby, "D-2", "Xylocaine 2% 50 ct", "Local Anesthetics")
	input := "category,product_ids,vendor_products,product_names,product_urls\n" +
		"anesthetics,,benco-B-2;darby-D-2;ghost-1,,\n" +
		"anesthetics,,benco-B-404,,\n"

	report, err := f.svc.ImportCSV(ctx, strings.NewReader(input), ResolveByVendorProduct)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, *f.reload(t, c.ID).ParentID, *f.reload(t, d.ID).ParentID)

	byID := "category,product_ids,vendor_products,product_names,product_urls\n" +
		"anesthetics," + a.ID.String() + ";" + b.ID.String() + ",,,\n"
	report, err = f.svc.ImportCSV(ctx, strings.NewReader(byID), ResolveByID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 0, report.ParentsCreated)
}

func TestImportCSVUsesRowNameAndCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gloves := models.ProductCategory{Name: "Gloves", Slug: "gloves"}
	dbtest.MustCreate(t, f.conn, &gloves)

	a := f.product(t, f.benco, "B-1", "Nitrile Glove Sm 100", "Gloves")
	b := f.product(t, f.darby, "D-1", "Gloves Nitrile S/100", "Exam Gloves")
	c := f.product(t, f.benco, "B-2", "Vinyl Glove Md", "Gloves")
	d := f.product(t, f.darby, "D-2", "Vinyl Gloves M", "Exam Gloves")
	input := "category,product_ids,vendor_products,product_names,product_urls\n" +
		"gloves," + a.ID.String() + ";" + b.ID.String() + ",,Nitrile Exam Gloves Small;Gloves Nitrile S/100,\n" +
		"mystery," + c.ID.String() + ";" + d.ID.String() + ",,Vinyl Gloves,\n"

	report, err := f.svc.ImportCSV(ctx, strings.NewReader(input), ResolveByID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 1, report.ParentsCreated)
	assert.Equal(t, 1, report.Skipped)
	assert.Nil(t, f.reload(t, c.ID).ParentID)

	gotA := f.reload(t, a.ID)
	require.NotNil(t, gotA.ParentID)
	parent := f.reload(t, *gotA.ParentID)
	assert.Equal(t, "Nitrile Exam Gloves Small", parent.Name)
	require.NotNil(t, parent.CategoryID)
	assert.Equal(t, gloves.ID, *parent.CategoryID)

	// Re-importing under a new name renames the kept parent.
	renamed := "category,product_ids,vendor_products,product_names,product_urls\n" +
		"gloves," + a.ID.String() + ";" + b.ID.String() + ",,Nitrile Gloves S,\n"
	report, err = f.svc.ImportCSV(ctx, strings.NewReader(renamed), ResolveByID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ParentsCreated)
	assert.Equal(t, "Nitrile Gloves S", f.reload(t, parent.ID).Name)
}

func TestImportCSVRejectsUnknownMode(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ImportCSV(context.Background(), strings.NewReader(""), ResolveMode("name"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
