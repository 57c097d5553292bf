package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
)

// Helper to append a movement inside a tenant transaction
func insertMovement(t *testing.T, tenantCtx context.Context, repo *repository.MovementRepository, m *repository.StockMovement) {
	t.Helper()
	err := suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		return repo.Insert(txCtx, m)
	})
	require.NoError(t, err)
}

// --- Movement Repository Tests ---

func TestMovementRepository_Insert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-insert")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Dipirona", "MOV-001")

	expiry := time.Now().AddDate(0, 3, 0).Truncate(24 * time.Hour)
	m := &repository.StockMovement{
		ProductID:      product.ID,
		Type:           repository.MovementIn,
		Quantity:       50,
		PreviousStock:  0,
		NewStock:       50,
		UnitCost:       floatPtr(1.20),
		BatchNumber:    strPtr("L2024-001"),
		ExpirationDate: &expiry,
		Reason:         strPtr("purchase order 4711"),
	}
	insertMovement(t, tenantCtx, movementRepo, m)

	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	movements, err := movementRepo.ListAllByProduct(tenantCtx, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "L2024-001", *movements[0].BatchNumber)
	assert.Equal(t, 50, movements[0].NewStock)
}

func TestMovementRepository_Insert_InvalidTypeRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-bad-type")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Soro", "MOV-002")

	err := suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		return movementRepo.Insert(txCtx, &repository.StockMovement{
			ProductID: product.ID,
			Type:      "LOST",
			Quantity:  1,
			NewStock:  1,
		})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestMovementRepository_Insert_ZeroQuantityRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-zero-qty")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Gaze", "MOV-003")

	err := suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		return movementRepo.Insert(txCtx, &repository.StockMovement{
			ProductID: product.ID,
			Type:      repository.MovementIn,
			Quantity:  0,
		})
	})
	require.Error(t, err)

	// ADJUSTMENT is the one type allowed a non-positive quantity
	err = suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		return movementRepo.Insert(txCtx, &repository.StockMovement{
			ProductID: product.ID,
			Type:      repository.MovementAdjustment,
			Quantity:  0,
		})
	})
	require.NoError(t, err)
}

func TestMovementRepository_LedgerOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-order")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Luvas", "MOV-004")

	stock := 0
	for i := 0; i < 5; i++ {
		insertMovement(t, tenantCtx, movementRepo, &repository.StockMovement{
			ProductID:     product.ID,
			Type:          repository.MovementIn,
			Quantity:      10,
			PreviousStock: stock,
			NewStock:      stock + 10,
			Reason:        strPtr(fmt.Sprintf("delivery %d", i+1)),
		})
		stock += 10
	}

	movements, err := movementRepo.ListAllByProduct(tenantCtx, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 5)

	// Oldest first, with an unbroken snapshot chain
	for i, m := range movements {
		assert.Equal(t, i*10, m.PreviousStock)
		assert.Equal(t, (i+1)*10, m.NewStock)
	}
}

func TestMovementRepository_ListByProduct_Pagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-pages")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Seringas", "MOV-005")

	for i := 0; i < 5; i++ {
		insertMovement(t, tenantCtx, movementRepo, &repository.StockMovement{
			ProductID:     product.ID,
			Type:          repository.MovementIn,
			Quantity:      1,
			PreviousStock: i,
			NewStock:      i + 1,
		})
	}

	page1, total, err := movementRepo.ListByProduct(tenantCtx, product.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, 1, page1[0].NewStock)

	page3, _, err := movementRepo.ListByProduct(tenantCtx, product.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, 5, page3[0].NewStock)
}

func TestMovementRepository_TxRollbackLeavesNoTrace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-rollback")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	product := createTestProduct(t, tenantCtx, productRepo, "Atadura", "MOV-006")

	boom := fmt.Errorf("boom")
	err := suite.DB.WithTenantTx(tenantCtx, func(txCtx context.Context) error {
		if err := movementRepo.Insert(txCtx, &repository.StockMovement{
			ProductID: product.ID,
			Type:      repository.MovementIn,
			Quantity:  10,
			NewStock:  10,
		}); err != nil {
			return err
		}
		if err := productRepo.UpdateStock(txCtx, product.ID, 10); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the ledger entry nor the projection update survived
	movements, err := movementRepo.ListAllByProduct(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)

	found, err := productRepo.GetByID(tenantCtx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.CurrentStock)
}

func TestMovementRepository_ListProductIDsWithExpiringBatches(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "movement-expiring")
	tenantCtx := suite.TenantContext(tenant)

	productRepo := repository.NewProductRepository(suite.DB)
	movementRepo := repository.NewMovementRepository(suite.DB)

	soon := createTestProduct(t, tenantCtx, productRepo, "Insulina", "EXP-001")
	later := createTestProduct(t, tenantCtx, productRepo, "Vacina", "EXP-002")
	noBatch := createTestProduct(t, tenantCtx, productRepo, "Granel", "EXP-003")

	soonExpiry := time.Now().AddDate(0, 0, 10)
	insertMovement(t, tenantCtx, movementRepo, &repository.StockMovement{
		ProductID:      soon.ID,
		Type:           repository.MovementIn,
		Quantity:       10,
		NewStock:       10,
		BatchNumber:    strPtr("B-SOON"),
		ExpirationDate: &soonExpiry,
	})

	laterExpiry := time.Now().AddDate(0, 6, 0)
	insertMovement(t, tenantCtx, movementRepo, &repository.StockMovement{
		ProductID:      later.ID,
		Type:           repository.MovementIn,
		Quantity:       10,
		NewStock:       10,
		BatchNumber:    strPtr("B-LATER"),
		ExpirationDate: &laterExpiry,
	})

	insertMovement(t, tenantCtx, movementRepo, &repository.StockMovement{
		ProductID: noBatch.ID,
		Type:      repository.MovementIn,
		Quantity:  10,
		NewStock:  10,
	})

	ids, err := movementRepo.ListProductIDsWithExpiringBatches(tenantCtx, 30)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, soon.ID, ids[0])

	ids, err = movementRepo.ListProductIDsWithExpiringBatches(tenantCtx, 365)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

// --- User Cache Repository Tests ---

func TestUserCacheRepository_SetAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "user-cache")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewUserCacheRepository(suite.DB)

	user := &repository.CachedUser{
		UserID:    "11111111-1111-1111-1111-111111111111",
		FirstName: "Ana",
		LastName:  "Souza",
		Email:     "ana@clinic.test",
		RoleName:  strPtr("nurse"),
		TenantID:  tenant.ID,
	}
	require.NoError(t, repo.Set(tenantCtx, user))

	found, err := repo.Get(tenantCtx, user.UserID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ana Souza", found.FullName())

	// Upsert replaces the existing row
	user.LastName = "Souza Lima"
	require.NoError(t, repo.Set(tenantCtx, user))

	found, err = repo.Get(tenantCtx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza Lima", found.FullName())
}

func TestUserCacheRepository_GetMissingReturnsNil(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "user-cache-missing")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewUserCacheRepository(suite.DB)

	found, err := repo.Get(tenantCtx, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUserCacheRepository_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "user-cache-delete")
	tenantCtx := suite.TenantContext(tenant)

	repo := repository.NewUserCacheRepository(suite.DB)

	user := &repository.CachedUser{
		UserID:   "33333333-3333-3333-3333-333333333333",
		Email:    "gone@clinic.test",
		TenantID: tenant.ID,
	}
	require.NoError(t, repo.Set(tenantCtx, user))
	require.NoError(t, repo.Delete(tenantCtx, user.UserID))

	found, err := repo.Get(tenantCtx, user.UserID)
	require.NoError(t, err)
	assert.Nil(t, found)
}
