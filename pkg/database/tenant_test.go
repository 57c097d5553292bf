package database_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/database"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/testutil"
)

const (
	testTenantID = "11111111-2222-3333-4444-555555555555"
	testSchema   = "tenant_city_clinic"
)

func tenantCtx() context.Context {
	return tenant.WithTenantContext(context.Background(), testTenantID, "city-clinic", testSchema)
}

func TestWithTenantTx_CommitsOnSuccess(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.WrapDB(mockDB.DB, logger.Nop())

	mockDB.ExpectTenantTxStart(testSchema, testTenantID)
	mockDB.ExpectQuery("SELECT 1").WillReturnRows(testutil.MockRows("one").AddRow(1))
	mockDB.ExpectCommit()

	err := db.WithTenantTx(tenantCtx(), func(ctx context.Context) error {
		var one int
		return db.GetContext(ctx, &one, "SELECT 1")
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestWithTenantTx_RollsBackOnError(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.WrapDB(mockDB.DB, logger.Nop())

	mockDB.ExpectTenantTxStart(testSchema, testTenantID)
	mockDB.ExpectRollback()

	boom := fmt.Errorf("boom")
	err := db.WithTenantTx(tenantCtx(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	mockDB.ExpectationsWereMet(t)
}

func TestWithTenantTx_NestedCallJoinsTransaction(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.WrapDB(mockDB.DB, logger.Nop())

	// Only one Begin for the whole nested chain
	mockDB.ExpectTenantTxStart(testSchema, testTenantID)
	mockDB.ExpectQuery("SELECT 1").WillReturnRows(testutil.MockRows("one").AddRow(1))
	mockDB.ExpectCommit()

	err := db.WithTenantTx(tenantCtx(), func(outer context.Context) error {
		return db.WithTenantTx(outer, func(inner context.Context) error {
			var one int
			return db.GetContext(inner, &one, "SELECT 1")
		})
	})
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestWithTenantTx_MissingTenantContext(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	db := database.WrapDB(mockDB.DB, logger.Nop())

	err := db.WithTenantTx(context.Background(), func(ctx context.Context) error {
		t.Fatal("fn must not run without tenant context")
		return nil
	})
	require.Error(t, err)

	mockDB.ExpectationsWereMet(t)
}
