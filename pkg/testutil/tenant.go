package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID         string
	Name       string
	Slug       string
	SchemaName string
}

// TenantManager manages test tenant schemas
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant creates a new isolated tenant schema for testing.
// Each test can have its own tenant to ensure complete isolation.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	tenant := tm.CreateTenant(ctx, "test-clinic")
//	ctx = testutil.WithTestTenant(ctx, tenant)
//
//	// Repository operations now use this tenant's schema
//	product, err := productRepo.GetByID(ctx, productID)
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	schemaName := fmt.Sprintf("tenant_%s", strings.ReplaceAll(slug, "-", "_"))

	_, err := tm.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant schema: %w", err)
	}

	_, err = tm.db.ExecContext(ctx, `
		INSERT INTO public.tenants (id, name, slug, schema_name, subscription_status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (slug) DO NOTHING
	`, id, name, slug, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}

	t := TestTenant{
		ID:         id,
		Name:       name,
		Slug:       slug,
		SchemaName: schemaName,
	}

	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// CreateTenantWithMigrations creates a tenant and applies the given migrations
func (tm *TenantManager) CreateTenantWithMigrations(ctx context.Context, name string, migrations []string) (*TestTenant, error) {
	t, err := tm.CreateTenant(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, migration := range migrations {
		_, err = tm.db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", t.SchemaName))
		if err != nil {
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}

		_, err = tm.db.ExecContext(ctx, migration)
		if err != nil {
			return nil, fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	_, err = tm.db.ExecContext(ctx, "SET search_path TO public")
	if err != nil {
		return nil, fmt.Errorf("failed to reset search_path: %w", err)
	}

	return t, nil
}

// DropTenant removes a tenant schema completely
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	_, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName))
	if err != nil {
		return fmt.Errorf("failed to drop tenant schema: %w", err)
	}

	_, err = tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID)
	if err != nil {
		return fmt.Errorf("failed to delete tenant record: %w", err)
	}

	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup drops all tenant schemas created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		_, err := tm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", t.SchemaName))
		if err != nil {
			lastErr = err
		}
		_, err = tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", t.ID)
		if err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

// WithTestTenant creates a context with tenant information for testing.
// This is the primary way to set up tenant context in tests.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantContext(ctx, t.ID, t.Slug, t.SchemaName)
}

// WithTestTenantValues creates a context with custom tenant values.
// Useful for testing error cases or edge conditions.
func WithTestTenantValues(ctx context.Context, id, slug, schema string) context.Context {
	return tenant.WithTenantContext(ctx, id, slug, schema)
}

// TestTenantContext creates a context with a fake tenant for simple unit tests
// that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantContext(
		context.Background(),
		"test-tenant-id",
		"test-tenant",
		"tenant_test",
	)
}

// InventoryMigrations returns the inventory service migrations for tests.
// Mirrors the production tenant schema: product registry, append-only
// movement ledger, and the event-synced user cache.
func InventoryMigrations() []string {
	return []string{
		// Product registry
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			sku VARCHAR(100) NOT NULL,
			barcode VARCHAR(100),
			description TEXT,
			category VARCHAR(100),
			unit VARCHAR(50) NOT NULL DEFAULT 'unit',
			current_stock INT NOT NULL DEFAULT 0,
			min_stock INT NOT NULL DEFAULT 0,
			max_stock INT,
			cost_price DECIMAL(12,2),
			sale_price DECIMAL(12,2),
			supplier VARCHAR(255),
			requires_prescription BOOLEAN NOT NULL DEFAULT FALSE,
			controlled_substance BOOLEAN NOT NULL DEFAULT FALSE,
			anvisa_registry VARCHAR(100),
			expiration_alert_days INT NOT NULL DEFAULT 30,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			CONSTRAINT products_stock_non_negative CHECK (current_stock >= 0),
			CONSTRAINT products_sku_unique UNIQUE (sku)
		)`,

		// Barcode is optional but unique when present
		`CREATE UNIQUE INDEX IF NOT EXISTS products_barcode_unique
			ON products(barcode) WHERE barcode IS NOT NULL AND deleted_at IS NULL`,

		// Append-only movement ledger
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			product_id UUID NOT NULL REFERENCES products(id),
			type VARCHAR(20) NOT NULL,
			quantity INT NOT NULL,
			previous_stock INT NOT NULL,
			new_stock INT NOT NULL,
			unit_cost DECIMAL(12,2),
			batch_number VARCHAR(100),
			expiration_date DATE,
			reason TEXT,
			reference_id UUID,
			reference_type VARCHAR(50),
			performed_by UUID,
			performed_by_name VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_movements_movement_type_valid
				CHECK (type IN ('IN', 'OUT', 'ADJUSTMENT', 'EXPIRED', 'TRANSFER')),
			CONSTRAINT stock_movements_quantity_positive
				CHECK (quantity > 0 OR type = 'ADJUSTMENT')
		)`,

		`CREATE INDEX IF NOT EXISTS idx_stock_movements_product
			ON stock_movements(product_id, created_at, id)`,

		// User cache synced from user.* events
		`CREATE TABLE IF NOT EXISTS user_cache (
			user_id UUID PRIMARY KEY,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL,
			role_name VARCHAR(100),
			tenant_id UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
}
