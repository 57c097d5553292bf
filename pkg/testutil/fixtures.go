package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductFixture represents test product data
type ProductFixture struct {
	ID                  string
	Name                string
	SKU                 string
	Barcode             *string
	Category            string
	Unit                string
	CurrentStock        int
	MinStock            int
	ExpirationAlertDays int
	CreatedAt           time.Time
}

// MovementFixture represents test stock movement data
type MovementFixture struct {
	ID             string
	ProductID      string
	Type           string
	Quantity       int
	BatchNumber    *string
	ExpirationDate *time.Time
	Reason         string
	PerformedBy    string
	CreatedAt      time.Time
}

// UserCacheFixture represents an event-synced user cache row
type UserCacheFixture struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	RoleName  string
	TenantID  string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()

	p := ProductFixture{
		ID:                  uuid.New().String(),
		Name:                fmt.Sprintf("Test Product %d", seq),
		SKU:                 fmt.Sprintf("SKU-%04d", seq),
		Category:            "MEDICAL_SUPPLY",
		Unit:                "unit",
		CurrentStock:        0,
		MinStock:            10,
		ExpirationAlertDays: 30,
		CreatedAt:           time.Now(),
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// WithProductName sets the product name
func WithProductName(name string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Name = name
	}
}

// WithSKU sets the product SKU
func WithSKU(sku string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.SKU = sku
	}
}

// WithBarcode sets the product barcode
func WithBarcode(barcode string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Barcode = &barcode
	}
}

// WithCategory sets the product category
func WithCategory(category string) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.Category = category
	}
}

// WithMinStock sets the product minimum stock level
func WithMinStock(min int) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.MinStock = min
	}
}

// Movement creates a stock movement fixture with defaults
func (f *FixtureFactory) Movement(productID string, opts ...func(*MovementFixture)) MovementFixture {
	f.nextSeq()

	m := MovementFixture{
		ID:          uuid.New().String(),
		ProductID:   productID,
		Type:        "IN",
		Quantity:    10,
		Reason:      "test movement",
		PerformedBy: uuid.New().String(),
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

// WithMovementType sets the movement type
func WithMovementType(movementType string) func(*MovementFixture) {
	return func(m *MovementFixture) {
		m.Type = movementType
	}
}

// WithQuantity sets the movement quantity
func WithQuantity(quantity int) func(*MovementFixture) {
	return func(m *MovementFixture) {
		m.Quantity = quantity
	}
}

// WithBatch sets the movement batch number and expiry
func WithBatch(batchNumber string, expiry time.Time) func(*MovementFixture) {
	return func(m *MovementFixture) {
		m.BatchNumber = &batchNumber
		m.ExpirationDate = &expiry
	}
}

// CachedUser creates a user cache fixture with defaults
func (f *FixtureFactory) CachedUser(tenantID string, opts ...func(*UserCacheFixture)) UserCacheFixture {
	seq := f.nextSeq()

	u := UserCacheFixture{
		UserID:    uuid.New().String(),
		FirstName: fmt.Sprintf("Test%d", seq),
		LastName:  "User",
		Email:     fmt.Sprintf("user%d@clinic.test", seq),
		RoleName:  "staff",
		TenantID:  tenantID,
	}

	for _, opt := range opts {
		opt(&u)
	}

	return u
}

// WithUserName sets the cached user's first and last name
func WithUserName(first, last string) func(*UserCacheFixture) {
	return func(u *UserCacheFixture) {
		u.FirstName = first
		u.LastName = last
	}
}
