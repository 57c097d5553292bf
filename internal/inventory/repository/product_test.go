package repository_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer suite.Cleanup(ctx)
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

func strPtr(s string) *string {
	return &s
}

// Helper to create a product for tests that need one
func createTestProduct(t *testing.T, tenantCtx context.Context, repo *repository.ProductRepository, name, sku string) *repository.Product {
	t.Helper()
	product := &repository.Product{
		Name:     name,
		SKU:      sku,
		Category: repository.CategoryMedication,
		MinStock: 5,
		IsActive: true,
	}
	err := repo.Create(tenantCtx, product)
	require.NoError(t, err)
	return product
}

// --- Product Repository Tests ---

func TestProductRepository_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-create")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)

	product := &repository.Product{
		Name:        "Dipirona 500mg",
		SKU:         "MED-001",
		Barcode:     strPtr("7891234567890"),
		Category:    repository.CategoryMedication,
		MinStock:    10,
		CostPrice:   floatPtr(1.25),
		SalePrice:   floatPtr(3.50),
		IsActive:    true,
	}

	err := repo.Create(tenantCtx, product)
	require.NoError(t, err)

	assert.NotEmpty(t, product.ID)
	assert.False(t, product.CreatedAt.IsZero())
	assert.False(t, product.UpdatedAt.IsZero())

	// Defaults applied on create
	assert.Equal(t, "unit", product.Unit)
	assert.Equal(t, 30, product.ExpirationAlertDays)
}

func TestProductRepository_Create_DuplicateSKU(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-dup-sku")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)
	createTestProduct(t, tenantCtx, repo, "Dipirona", "MED-001")

	dup := &repository.Product{
		Name:     "Dipirona Generica",
		SKU:      "MED-001",
		Category: repository.CategoryMedication,
		IsActive: true,
	}
	err := repo.Create(tenantCtx, dup)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SKU_EXISTS", appErr.Code)
	assert.Equal(t, 409, appErr.StatusCode)
}

func TestProductRepository_Create_DuplicateBarcode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-dup-barcode")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)

	first := &repository.Product{
		Name:     "Soro Fisiologico",
		SKU:      "MED-010",
		Barcode:  strPtr("7890001112223"),
		Category: repository.CategoryMedication,
		IsActive: true,
	}
	require.NoError(t, repo.Create(tenantCtx, first))

	dup := &repository.Product{
		Name:     "Soro Fisiologico 500ml",
		SKU:      "MED-011",
		Barcode:  strPtr("7890001112223"),
		Category: repository.CategoryMedication,
		IsActive: true,
	}
	err := repo.Create(tenantCtx, dup)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "BARCODE_EXISTS", appErr.Code)
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-get-missing")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)

	_, err := repo.GetByID(tenantCtx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestProductRepository_GetBySKU(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-get-sku")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)
	created := createTestProduct(t, tenantCtx, repo, "Luva Nitrilica", "SUP-001")

	found, err := repo.GetBySKU(tenantCtx, "SUP-001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestProductRepository_List_Filters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-list")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)

	createTestProduct(t, tenantCtx, repo, "Dipirona 500mg", "MED-001")
	createTestProduct(t, tenantCtx, repo, "Amoxicilina 500mg", "MED-002")

	supply := &repository.Product{
		Name:     "Luva Nitrilica M",
		SKU:      "SUP-001",
		Category: repository.CategoryMedicalSupply,
		MinStock: 50,
		IsActive: true,
	}
	require.NoError(t, repo.Create(tenantCtx, supply))

	products, total, err := repo.List(tenantCtx, repository.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, products, 3)

	products, total, err = repo.List(tenantCtx, repository.ProductFilter{Search: "500mg"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	products, total, err = repo.List(tenantCtx, repository.ProductFilter{Category: repository.CategoryMedicalSupply})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, supply.ID, products[0].ID)

	// Everything starts at zero stock, so the low stock pre-filter matches all
	_, total, err = repo.List(tenantCtx, repository.ProductFilter{LowStock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestProductRepository_List_Pagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-pages")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)
	factory := testutil.NewFixtureFactory()
	for i := 0; i < 3; i++ {
		fx := factory.Product(testutil.WithMinStock(5))
		product := &repository.Product{
			Name:     fx.Name,
			SKU:      fx.SKU,
			Category: fx.Category,
			Unit:     fx.Unit,
			MinStock: fx.MinStock,
			IsActive: true,
		}
		require.NoError(t, repo.Create(tenantCtx, product))
	}

	products, total, err := repo.List(tenantCtx, repository.ProductFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, products, 1)
}

func TestProductRepository_Update_DoesNotTouchStock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-update")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, tenantCtx, repo, "Termometro", "EQP-001")

	err := suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		return repo.UpdateStock(txCtx, product.ID, 42)
	})
	require.NoError(t, err)

	product.Name = "Termometro Digital"
	product.CurrentStock = 999
	require.NoError(t, repo.Update(tenantCtx, product))

	found, err := repo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Termometro Digital", found.Name)
	assert.Equal(t, 42, found.CurrentStock)
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-update-missing")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)

	err := repo.Update(tenantCtx, &repository.Product{
		ID:       "00000000-0000-0000-0000-000000000000",
		Name:     "Ghost",
		SKU:      "GHO-001",
		Category: repository.CategoryOther,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestProductRepository_SoftDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-delete")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, tenantCtx, repo, "Otoscopio", "EQP-002")

	require.NoError(t, repo.SoftDelete(tenantCtx, product.ID))

	_, err := repo.GetByID(tenantCtx, product.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Soft-deleted products disappear from listings too
	_, total, err := repo.List(tenantCtx, repository.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestProductRepository_TenantIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenantA := suite.SetupInventoryTenant(t, ctx, "iso-clinic-a")
	tenantB := suite.SetupInventoryTenant(t, ctx, "iso-clinic-b")

	ctxA := suite.TenantContext(tenantA)
	ctxB := suite.TenantContext(tenantB)

	repo := repository.NewProductRepository(suite.DB)
	product := createTestProduct(t, ctxA, repo, "Exclusivo A", "ISO-001")

	// Tenant B cannot see tenant A's product
	_, err := repo.GetByID(ctxB, product.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, total, err := repo.List(ctxB, repository.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	// Same SKU is fine in a different tenant
	createTestProduct(t, ctxB, repo, "Exclusivo B", "ISO-001")
}

func TestProductRepository_MissingTenantContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := repository.NewProductRepository(suite.DB)

	_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
}

func TestProductRepository_HasMovements(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "product-has-movements")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Cateter", "SUP-010")

	has, err := productRepo.HasMovements(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.False(t, has)

	err = suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		return movementRepo.Insert(txCtx, &repository.StockMovement{
			ProductID: product.ID,
			Type:      repository.MovementIn,
			Quantity:  10,
			NewStock:  10,
		})
	})
	require.NoError(t, err)

	has, err = productRepo.HasMovements(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func floatPtr(f float64) *float64 {
	return &f
}
