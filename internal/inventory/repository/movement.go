package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/database"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
)

// Movement types
const (
	MovementIn         = "IN"
	MovementOut        = "OUT"
	MovementAdjustment = "ADJUSTMENT"
	MovementExpired    = "EXPIRED"
	MovementTransfer   = "TRANSFER"
)

// StockMovement is one entry of the append-only ledger. Rows are never
// updated or deleted; PreviousStock and NewStock snapshot the projection
// around this entry, captured in the same transaction that applied it.
type StockMovement struct {
	ID              string     `db:"id" json:"id"`
	ProductID       string     `db:"product_id" json:"product_id"`
	Type            string     `db:"type" json:"type"`
	Quantity        int        `db:"quantity" json:"quantity"`
	PreviousStock   int        `db:"previous_stock" json:"previous_stock"`
	NewStock        int        `db:"new_stock" json:"new_stock"`
	UnitCost        *float64   `db:"unit_cost" json:"unit_cost,omitempty"`
	BatchNumber     *string    `db:"batch_number" json:"batch_number,omitempty"`
	ExpirationDate  *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	ReferenceID     *string    `db:"reference_id" json:"reference_id,omitempty"`
	ReferenceType   *string    `db:"reference_type" json:"reference_type,omitempty"`
	PerformedBy     *string    `db:"performed_by" json:"performed_by,omitempty"`
	PerformedByName *string    `db:"performed_by_name" json:"performed_by_name,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

const movementColumns = `id, product_id, type, quantity, previous_stock, new_stock,
	       unit_cost, batch_number, expiration_date, reason, reference_id,
	       reference_type, performed_by, performed_by_name, created_at`

// MovementRepository handles ledger persistence
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Insert appends a movement to the ledger. Must be called inside WithTenantTx
// with the product row lock held so the snapshot columns stay consistent.
func (r *MovementRepository) Insert(ctx context.Context, m *StockMovement) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (
			id, tenant_id, product_id, type, quantity, previous_stock, new_stock,
			unit_cost, batch_number, expiration_date, reason,
			reference_id, reference_type, performed_by, performed_by_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`

	err = r.db.QueryRowxContext(ctx, query,
		m.ID, tenantID, m.ProductID, m.Type, m.Quantity, m.PreviousStock, m.NewStock,
		m.UnitCost, m.BatchNumber, m.ExpirationDate, m.Reason,
		m.ReferenceID, m.ReferenceType, m.PerformedBy, m.PerformedByName,
	).Scan(&m.CreatedAt)

	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// ListByProduct lists a product's movements in ledger order with pagination.
// (created_at, id) is the ledger's total order; id breaks timestamp ties.
// TENANT-ISOLATED: Returns only movements from the tenant's schema
func (r *MovementRepository) ListByProduct(ctx context.Context, productID string, page, perPage int) ([]*StockMovement, int64, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	var movements []*StockMovement

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM stock_movements WHERE product_id = $1`
		if err := r.db.GetContext(ctx, &total, countQuery, productID); err != nil {
			return err
		}

		offset := (page - 1) * perPage
		query := `SELECT ` + movementColumns + ` FROM stock_movements
			WHERE product_id = $1
			ORDER BY created_at, id
			LIMIT $2 OFFSET $3`

		return r.db.SelectContext(ctx, &movements, query, productID, perPage, offset)
	})

	if err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// ListAllByProduct returns the full ledger for a product in ledger order,
// oldest first. The batch allocator recomputes from this on every read.
// TENANT-ISOLATED: Returns only movements from the tenant's schema
func (r *MovementRepository) ListAllByProduct(ctx context.Context, productID string) ([]*StockMovement, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, err
	}

	var movements []*StockMovement

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `SELECT ` + movementColumns + ` FROM stock_movements
			WHERE product_id = $1
			ORDER BY created_at, id`
		return r.db.SelectContext(ctx, &movements, query, productID)
	})

	if err != nil {
		return nil, err
	}

	return movements, nil
}

// ListProductIDsWithExpiringBatches returns the IDs of products that have at
// least one IN movement whose expiration date falls within [now, now+days].
// The allocator then decides which of those batches still hold stock.
// TENANT-ISOLATED: Returns only products from the tenant's schema
func (r *MovementRepository) ListProductIDsWithExpiringBatches(ctx context.Context, days int) ([]string, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, err
	}

	var ids []string

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `
			SELECT DISTINCT m.product_id
			FROM stock_movements m
			JOIN products p ON p.id = m.product_id
			WHERE m.type = 'IN'
			  AND m.batch_number IS NOT NULL
			  AND m.expiration_date IS NOT NULL
			  AND m.expiration_date >= CURRENT_DATE
			  AND m.expiration_date <= CURRENT_DATE + $1 * INTERVAL '1 day'
			  AND p.deleted_at IS NULL
		`
		return r.db.SelectContext(ctx, &ids, query, days)
	})

	if err != nil {
		return nil, err
	}

	return ids, nil
}
