package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nenempneuscom-star/syscli-sub000/pkg/database"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
)

// Product categories
const (
	CategoryMedication    = "MEDICATION"
	CategoryMedicalSupply = "MEDICAL_SUPPLY"
	CategoryEquipment     = "EQUIPMENT"
	CategoryConsumable    = "CONSUMABLE"
	CategoryOther         = "OTHER"
)

// Product represents a registered inventory product. CurrentStock is a
// projection of the movement ledger and is only ever written through
// RecordMovement, never through Update.
type Product struct {
	ID                  string     `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	SKU                 string     `db:"sku" json:"sku"`
	Barcode             *string    `db:"barcode" json:"barcode,omitempty"`
	Description         *string    `db:"description" json:"description,omitempty"`
	Category            string     `db:"category" json:"category"`
	Unit                string     `db:"unit" json:"unit"`
	CurrentStock        int        `db:"current_stock" json:"current_stock"`
	MinStock            int        `db:"min_stock" json:"min_stock"`
	MaxStock            *int       `db:"max_stock" json:"max_stock,omitempty"`
	CostPrice           *float64   `db:"cost_price" json:"cost_price,omitempty"`
	SalePrice           *float64   `db:"sale_price" json:"sale_price,omitempty"`
	Supplier            *string    `db:"supplier" json:"supplier,omitempty"`
	RequiresPrescription bool      `db:"requires_prescription" json:"requires_prescription"`
	ControlledSubstance  bool      `db:"controlled_substance" json:"controlled_substance"`
	AnvisaRegistry       *string   `db:"anvisa_registry" json:"anvisa_registry,omitempty"`
	ExpirationAlertDays int        `db:"expiration_alert_days" json:"expiration_alert_days"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	CreatedBy           *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt           *time.Time `db:"deleted_at" json:"-"`
}

// ProductFilter enumerates every supported list filter. LowStock is only a
// coarse pre-filter here; the service re-checks current_stock <= min_stock
// per row.
type ProductFilter struct {
	Search   string
	Category string
	LowStock bool
	Page     int
	PerPage  int
}

const productColumns = `id, name, sku, barcode, description, category, unit,
	       current_stock, min_stock, max_stock, cost_price, sale_price, supplier,
	       requires_prescription, controlled_substance, anvisa_registry,
	       expiration_alert_days, is_active, created_by, created_at, updated_at`

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
// TENANT-ISOLATED: Inserts into the tenant's schema
func (r *ProductRepository) Create(ctx context.Context, product *Product) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err // Fail-fast if tenant context missing
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.Unit == "" {
		product.Unit = "unit"
	}
	if product.ExpirationAlertDays == 0 {
		product.ExpirationAlertDays = 30
	}

	err = r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO products (
				id, tenant_id, name, sku, barcode, description, category, unit,
				current_stock, min_stock, max_stock, cost_price, sale_price, supplier,
				requires_prescription, controlled_substance, anvisa_registry,
				expiration_alert_days, is_active, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			RETURNING created_at, updated_at
		`

		return r.db.QueryRowxContext(ctx, query,
			product.ID, tenantID, product.Name, product.SKU, product.Barcode,
			product.Description, product.Category, product.Unit,
			product.CurrentStock, product.MinStock, product.MaxStock,
			product.CostPrice, product.SalePrice, product.Supplier,
			product.RequiresPrescription, product.ControlledSubstance, product.AnvisaRegistry,
			product.ExpirationAlertDays, product.IsActive, product.CreatedBy,
		).Scan(&product.CreatedAt, &product.UpdatedAt)
	})

	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a product by ID
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, err // Fail-fast if tenant context missing
	}

	var product Product

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND deleted_at IS NULL`
		return r.db.GetContext(ctx, &product, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product").WithCode("PRODUCT_NOT_FOUND")
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// GetBySKU gets a product by SKU
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, err
	}

	var product Product

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products WHERE sku = $1 AND deleted_at IS NULL`
		return r.db.GetContext(ctx, &product, query, sku)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product").WithCode("PRODUCT_NOT_FOUND")
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// List lists products with pagination and filters
// TENANT-ISOLATED: Returns only products from the tenant's schema
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]*Product, int64, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 || filter.PerPage > 100 {
		filter.PerPage = 20
	}

	where := ` WHERE deleted_at IS NULL`
	args := []interface{}{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += ` AND (name ILIKE $` + strconv.Itoa(n) + ` OR sku ILIKE $` + strconv.Itoa(n) + ` OR barcode ILIKE $` + strconv.Itoa(n) + `)`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filter.LowStock {
		// Coarse pre-filter; callers re-check per row
		where += ` AND current_stock <= min_stock`
	}

	var total int64
	var products []*Product

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		countQuery := `SELECT COUNT(*) FROM products` + where
		if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}

		offset := (filter.Page - 1) * filter.PerPage
		pageArgs := append(args, filter.PerPage, offset)
		query := `SELECT ` + productColumns + ` FROM products` + where +
			` ORDER BY name LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)

		return r.db.SelectContext(ctx, &products, query, pageArgs...)
	})

	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Update updates a product's registry fields. current_stock is deliberately
// absent from the SET list: the projection is only written by RecordMovement.
// TENANT-ISOLATED: Updates only in the tenant's schema
func (r *ProductRepository) Update(ctx context.Context, product *Product) error {
	if _, err := tenant.TenantID(ctx); err != nil {
		return err
	}

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `
			UPDATE products SET
				name = $2, sku = $3, barcode = $4, description = $5, category = $6,
				unit = $7, min_stock = $8, max_stock = $9, cost_price = $10,
				sale_price = $11, supplier = $12,
				requires_prescription = $13, controlled_substance = $14, anvisa_registry = $15,
				expiration_alert_days = $16, is_active = $17,
				updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`

		result, err := r.db.ExecContext(ctx, query,
			product.ID, product.Name, product.SKU, product.Barcode, product.Description,
			product.Category, product.Unit, product.MinStock, product.MaxStock,
			product.CostPrice, product.SalePrice, product.Supplier,
			product.RequiresPrescription, product.ControlledSubstance, product.AnvisaRegistry,
			product.ExpirationAlertDays, product.IsActive,
		)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("product").WithCode("PRODUCT_NOT_FOUND")
		}

		return nil
	})

	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// SoftDelete soft deletes a product
// TENANT-ISOLATED: Soft deletes only in the tenant's schema
func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := tenant.TenantID(ctx); err != nil {
		return err
	}

	return r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `UPDATE products SET deleted_at = NOW(), is_active = FALSE WHERE id = $1 AND deleted_at IS NULL`
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("product").WithCode("PRODUCT_NOT_FOUND")
		}

		return nil
	})
}

// GetAllActive gets all active products
// TENANT-ISOLATED: Returns only active products from the tenant's schema
func (r *ProductRepository) GetAllActive(ctx context.Context) ([]*Product, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, err
	}

	var products []*Product

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `SELECT ` + productColumns + ` FROM products
			WHERE deleted_at IS NULL AND is_active = TRUE ORDER BY name`
		return r.db.SelectContext(ctx, &products, query)
	})

	if err != nil {
		return nil, err
	}

	return products, nil
}

// GetForUpdate loads a product and takes its row lock for the duration of the
// enclosing transaction. Must be called inside WithTenantTx; concurrent
// movements on the same product serialize on this lock.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*Product, error) {
	var product Product

	query := `SELECT ` + productColumns + ` FROM products
		WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	err := r.db.GetContext(ctx, &product, query, id)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("product").WithCode("PRODUCT_NOT_FOUND")
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// UpdateStock writes the projection. Must be called inside WithTenantTx with
// the row lock held, in the same transaction as the ledger insert.
func (r *ProductRepository) UpdateStock(ctx context.Context, id string, newStock int) error {
	query := `UPDATE products SET current_stock = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, newStock)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product").WithCode("PRODUCT_NOT_FOUND")
	}

	return nil
}

// HasMovements reports whether any ledger entry references the product
// TENANT-ISOLATED: Queries only the tenant's schema
func (r *ProductRepository) HasMovements(ctx context.Context, productID string) (bool, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return false, err
	}

	var exists bool

	err := r.db.WithTenantTx(ctx, func(ctx context.Context) error {
		query := `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE product_id = $1)`
		return r.db.GetContext(ctx, &exists, query, productID)
	})

	if err != nil {
		return false, err
	}

	return exists, nil
}
