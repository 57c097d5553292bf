package service

import (
	"context"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
)

// The service talks to the store through these interfaces so the ledger
// logic can be exercised against an in-memory fake. The sqlx repositories
// are the production implementations.

// TxRunner runs a function inside a tenant-scoped transaction. Store calls
// made with the inner context join that transaction.
type TxRunner interface {
	WithTenantTx(ctx context.Context, fn func(context.Context) error) error
}

// ProductStore persists products
type ProductStore interface {
	Create(ctx context.Context, product *repository.Product) error
	GetByID(ctx context.Context, id string) (*repository.Product, error)
	List(ctx context.Context, filter repository.ProductFilter) ([]*repository.Product, int64, error)
	Update(ctx context.Context, product *repository.Product) error
	SoftDelete(ctx context.Context, id string) error
	GetAllActive(ctx context.Context) ([]*repository.Product, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Product, error)
	UpdateStock(ctx context.Context, id string, newStock int) error
	HasMovements(ctx context.Context, productID string) (bool, error)
}

// MovementStore persists the ledger
type MovementStore interface {
	Insert(ctx context.Context, m *repository.StockMovement) error
	ListByProduct(ctx context.Context, productID string, page, perPage int) ([]*repository.StockMovement, int64, error)
	ListAllByProduct(ctx context.Context, productID string) ([]*repository.StockMovement, error)
	ListProductIDsWithExpiringBatches(ctx context.Context, days int) ([]string, error)
}

// UserCacheStore resolves acting users to display names
type UserCacheStore interface {
	Get(ctx context.Context, userID string) (*repository.CachedUser, error)
}

// EventPublisher publishes domain events. Implemented by
// events.InventoryEventPublisher; tests substitute a recorder.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, product *repository.Product)
	PublishProductUpdated(ctx context.Context, product *repository.Product)
	PublishProductDeleted(ctx context.Context, product *repository.Product)
	PublishMovementRecorded(ctx context.Context, product *repository.Product, m *repository.StockMovement)
	PublishStockLow(ctx context.Context, product *repository.Product)
	PublishBatchExpiring(ctx context.Context, product *repository.Product, batch *BatchInfo, daysUntil int)
}
