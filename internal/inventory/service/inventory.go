package service

import (
	"context"
	"time"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/database"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/errors"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
)

// InventoryService owns the movement ledger and the views derived from it
type InventoryService struct {
	db        TxRunner
	products  ProductStore
	movements MovementStore
	users     UserCacheStore
	publisher EventPublisher
	logger    *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	db TxRunner,
	products ProductStore,
	movements MovementStore,
	users UserCacheStore,
	publisher EventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		db:        db,
		products:  products,
		movements: movements,
		users:     users,
		publisher: publisher,
		logger:    log,
	}
}

// ProductWithBatches is a product enriched with its derived batch view
type ProductWithBatches struct {
	*repository.Product
	Batches       []*BatchInfo `json:"batches"`
	NearestExpiry *time.Time   `json:"nearest_expiry,omitempty"`
	Status        string       `json:"status"`
}

// ExpiringProduct groups a product with its soon-to-expire batches
type ExpiringProduct struct {
	Product *repository.Product `json:"product"`
	Batches []*BatchInfo        `json:"batches"`
}

// MovementInput carries everything needed to record one ledger entry.
// Quantity is a positive amount for IN/OUT/EXPIRED/TRANSFER; for ADJUSTMENT
// it is the absolute target stock.
type MovementInput struct {
	ProductID      string
	Type           string
	Quantity       int
	UnitCost       *float64
	BatchNumber    *string
	ExpirationDate *time.Time
	Reason         *string
	ReferenceID    *string
	ReferenceType  *string
	PerformedBy    string
}

// DashboardStats summarizes the tenant's inventory
type DashboardStats struct {
	TotalProducts     int64            `json:"total_products"`
	TotalStock        int              `json:"total_stock"`
	LowStockCount     int64            `json:"low_stock_count"`
	ExpiringBatches   int64            `json:"expiring_batches"`
	ExpiredBatches    int64            `json:"expired_batches"`
	CategoryBreakdown map[string]int64 `json:"category_breakdown"`
}

// Product operations

// CreateProduct registers a product. A nonzero initial stock is recorded as
// a synthetic IN movement in the same transaction, so current_stock equals
// the ledger sum from the first moment.
func (s *InventoryService) CreateProduct(ctx context.Context, product *repository.Product, initialStock int) error {
	if initialStock < 0 {
		return errors.Validation(map[string]string{"initial_stock": "must not be negative"})
	}

	product.CurrentStock = 0

	var seed *repository.StockMovement
	err := s.db.WithTenantTx(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, product); err != nil {
			return err
		}

		if initialStock == 0 {
			return nil
		}

		reason := "initial stock"
		seed = &repository.StockMovement{
			ProductID:     product.ID,
			Type:          repository.MovementIn,
			Quantity:      initialStock,
			PreviousStock: 0,
			NewStock:      initialStock,
			UnitCost:      product.CostPrice,
			Reason:        &reason,
			PerformedBy:   product.CreatedBy,
		}
		if err := s.movements.Insert(ctx, seed); err != nil {
			return err
		}
		if err := s.products.UpdateStock(ctx, product.ID, initialStock); err != nil {
			return err
		}

		product.CurrentStock = initialStock
		return nil
	})
	if err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishProductCreated(ctx, product)
		if seed != nil {
			s.publisher.PublishMovementRecorded(ctx, product, seed)
		}
	}

	return nil
}

// GetProduct gets a product with its derived batch view
func (s *InventoryService) GetProduct(ctx context.Context, id string) (*ProductWithBatches, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	movements, err := s.movements.ListAllByProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.enrichProduct(product, AllocateBatches(movements)), nil
}

// ListProducts lists products. The low-stock filter is re-applied row by row
// in application code; the store-side filter is treated as approximate.
func (s *InventoryService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*repository.Product, int64, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if filter.LowStock {
		filtered := products[:0]
		for _, p := range products {
			if p.CurrentStock <= p.MinStock {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	return products, total, nil
}

// UpdateProduct updates a product's registry fields. The stock projection
// cannot be changed through this path; drift is corrected with an
// ADJUSTMENT movement instead.
func (s *InventoryService) UpdateProduct(ctx context.Context, product *repository.Product) error {
	existing, err := s.products.GetByID(ctx, product.ID)
	if err != nil {
		return err
	}

	product.CurrentStock = existing.CurrentStock
	if err := s.products.Update(ctx, product); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishProductUpdated(ctx, product)
	}

	return nil
}

// DeleteProduct soft deletes a product. Products referenced by the ledger
// cannot be deleted; the caller deactivates them instead.
func (s *InventoryService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}

	hasMovements, err := s.products.HasMovements(ctx, id)
	if err != nil {
		return err
	}
	if hasMovements {
		return errors.Conflict("product has movement history and cannot be deleted, deactivate it instead").
			WithCode("PRODUCT_HAS_MOVEMENTS")
	}

	if err := s.products.SoftDelete(ctx, id); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publisher.PublishProductDeleted(ctx, product)
	}

	return nil
}

// Ledger

// RecordMovement appends one entry to the ledger and moves the stock
// projection by the same signed change, atomically. The product row lock
// serializes concurrent movements on the same product; serialization and
// deadlock failures are retried a bounded number of times.
func (s *InventoryService) RecordMovement(ctx context.Context, input MovementInput) (*repository.StockMovement, error) {
	if err := validateMovementInput(input); err != nil {
		return nil, err
	}

	performedByName := s.resolveUserName(ctx, input.PerformedBy)

	var (
		movement *repository.StockMovement
		product  *repository.Product
	)

	err := database.RetryOnSerialization(ctx, func(ctx context.Context) error {
		return s.db.WithTenantTx(ctx, func(ctx context.Context) error {
			p, err := s.products.GetForUpdate(ctx, input.ProductID)
			if err != nil {
				return err
			}

			change, err := stockChange(p.CurrentStock, input.Type, input.Quantity)
			if err != nil {
				return err
			}
			newStock := p.CurrentStock + change

			m := &repository.StockMovement{
				ProductID:       p.ID,
				Type:            input.Type,
				Quantity:        input.Quantity,
				PreviousStock:   p.CurrentStock,
				NewStock:        newStock,
				UnitCost:        input.UnitCost,
				BatchNumber:     input.BatchNumber,
				ExpirationDate:  input.ExpirationDate,
				Reason:          input.Reason,
				ReferenceID:     input.ReferenceID,
				ReferenceType:   input.ReferenceType,
				PerformedByName: performedByName,
			}
			if input.PerformedBy != "" {
				m.PerformedBy = &input.PerformedBy
			}

			if err := s.movements.Insert(ctx, m); err != nil {
				return err
			}
			if err := s.products.UpdateStock(ctx, p.ID, newStock); err != nil {
				return err
			}

			movement = m
			product = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishMovementRecorded(ctx, product, movement)

		// Only the crossing into low stock raises an event, not every
		// movement made while already low
		if movement.NewStock <= product.MinStock && movement.PreviousStock > product.MinStock {
			low := *product
			low.CurrentStock = movement.NewStock
			s.publisher.PublishStockLow(ctx, &low)
		}
	}

	return movement, nil
}

// ListMovements lists a product's ledger entries in ledger order
func (s *InventoryService) ListMovements(ctx context.Context, productID string, page, perPage int) ([]*repository.StockMovement, int64, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, 0, err
	}

	return s.movements.ListByProduct(ctx, productID, page, perPage)
}

// GetBatches returns the product's remaining batches, FEFO order
func (s *InventoryService) GetBatches(ctx context.Context, productID string) ([]*BatchInfo, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	movements, err := s.movements.ListAllByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return AllocateBatches(movements), nil
}

// Alerting queries

// ListLowStock returns active products at or below their minimum. The
// two-column comparison runs here, not in SQL.
func (s *InventoryService) ListLowStock(ctx context.Context) ([]*repository.Product, error) {
	products, err := s.products.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]*repository.Product, 0)
	for _, p := range products {
		if p.CurrentStock <= p.MinStock {
			low = append(low, p)
		}
	}

	return low, nil
}

// ListExpiringSoon returns products holding batches that expire within the
// horizon. days <= 0 means each product's own expiration_alert_days. Each
// surviving batch also raises an expiring event.
func (s *InventoryService) ListExpiringSoon(ctx context.Context, days int) ([]*ExpiringProduct, error) {
	now := time.Now()

	candidates, err := s.expiringCandidates(ctx, days)
	if err != nil {
		return nil, err
	}

	result := make([]*ExpiringProduct, 0)
	for _, product := range candidates {
		horizon := days
		if horizon <= 0 {
			horizon = product.ExpirationAlertDays
		}

		movements, err := s.movements.ListAllByProduct(ctx, product.ID)
		if err != nil {
			return nil, err
		}

		expiring := FilterExpiringWithin(AllocateBatches(movements), now, horizon)
		if len(expiring) == 0 {
			continue
		}

		result = append(result, &ExpiringProduct{Product: product, Batches: expiring})

		if s.publisher != nil {
			for _, b := range expiring {
				daysUntil := int(b.ExpirationDate.Sub(now).Hours() / 24)
				s.publisher.PublishBatchExpiring(ctx, product, b, daysUntil)
			}
		}
	}

	return result, nil
}

// expiringCandidates narrows the product set before running the allocator.
// With an explicit horizon the ledger is queried for products that received
// stock expiring inside it; otherwise every active product is a candidate
// since horizons vary per product.
func (s *InventoryService) expiringCandidates(ctx context.Context, days int) ([]*repository.Product, error) {
	if days <= 0 {
		return s.products.GetAllActive(ctx)
	}

	ids, err := s.movements.ListProductIDsWithExpiringBatches(ctx, days)
	if err != nil {
		return nil, err
	}

	candidates := make([]*repository.Product, 0, len(ids))
	for _, id := range ids {
		product, err := s.products.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		candidates = append(candidates, product)
	}

	return candidates, nil
}

// Dashboard

// GetDashboardStats computes tenant-wide inventory statistics
func (s *InventoryService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	products, err := s.products.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalProducts:     int64(len(products)),
		CategoryBreakdown: make(map[string]int64),
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, p := range products {
		stats.TotalStock += p.CurrentStock
		stats.CategoryBreakdown[p.Category]++

		if p.CurrentStock <= p.MinStock {
			stats.LowStockCount++
		}

		movements, err := s.movements.ListAllByProduct(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		for _, b := range AllocateBatches(movements) {
			if b.ExpirationDate == nil {
				continue
			}
			switch {
			case b.ExpirationDate.Before(today):
				stats.ExpiredBatches++
			case !b.ExpirationDate.After(today.AddDate(0, 0, p.ExpirationAlertDays)):
				stats.ExpiringBatches++
			}
		}
	}

	return stats, nil
}

// Helpers

// stockChange computes the signed projection change for a movement.
// ADJUSTMENT interprets quantity as the absolute target, so an operator can
// correct drift without computing a delta.
func stockChange(currentStock int, movementType string, quantity int) (int, error) {
	switch movementType {
	case repository.MovementIn, repository.MovementTransfer:
		return quantity, nil

	case repository.MovementOut, repository.MovementExpired:
		if currentStock-quantity < 0 {
			return 0, errors.InsufficientStock(currentStock, quantity)
		}
		return -quantity, nil

	case repository.MovementAdjustment:
		return quantity - currentStock, nil

	default:
		return 0, errors.Validation(map[string]string{
			"type": "must be one of: IN, OUT, ADJUSTMENT, EXPIRED, TRANSFER",
		})
	}
}

func validateMovementInput(input MovementInput) error {
	if input.ProductID == "" {
		return errors.Validation(map[string]string{"product_id": "must not be empty"})
	}

	switch input.Type {
	case repository.MovementAdjustment:
		if input.Quantity < 0 {
			return errors.Validation(map[string]string{"quantity": "target stock must not be negative"})
		}
	case repository.MovementIn, repository.MovementOut, repository.MovementExpired, repository.MovementTransfer:
		if input.Quantity <= 0 {
			return errors.Validation(map[string]string{"quantity": "must be greater than zero"})
		}
	default:
		return errors.Validation(map[string]string{
			"type": "must be one of: IN, OUT, ADJUSTMENT, EXPIRED, TRANSFER",
		})
	}

	return nil
}

// resolveUserName looks the actor up in the event-synced user cache.
// Best-effort: an unknown user leaves the name empty.
func (s *InventoryService) resolveUserName(ctx context.Context, userID string) *string {
	if userID == "" || s.users == nil {
		return nil
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil || user == nil {
		return nil
	}

	name := user.FullName()
	return &name
}

func (s *InventoryService) enrichProduct(product *repository.Product, batches []*BatchInfo) *ProductWithBatches {
	result := &ProductWithBatches{
		Product:       product,
		Batches:       batches,
		NearestExpiry: NearestExpiry(batches),
	}

	switch {
	case product.CurrentStock == 0:
		result.Status = "out_of_stock"
	case product.CurrentStock <= product.MinStock:
		result.Status = "low_stock"
	default:
		result.Status = "in_stock"
	}

	return result
}
