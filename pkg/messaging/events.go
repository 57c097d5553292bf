package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User events (consumed from the identity platform)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Product events
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"

	// Inventory events
	EventMovementRecorded = "inventory.movement.recorded"
	EventStockLow         = "inventory.stock.low"
	EventBatchExpiring    = "inventory.batch.expiring"
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published by the identity platform when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`

	// Tenant context (required for per-tenant user cache)
	TenantID     string `json:"tenant_id"`
	TenantSlug   string `json:"tenant_slug"`
	TenantSchema string `json:"tenant_schema"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is published when a user is updated
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"` // Changed fields

	TenantID     string `json:"tenant_id"`
	TenantSlug   string `json:"tenant_slug"`
	TenantSchema string `json:"tenant_schema"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`

	TenantID     string `json:"tenant_id"`
	TenantSlug   string `json:"tenant_slug"`
	TenantSchema string `json:"tenant_schema"`
}

// Product Events

// ProductCreatedEvent is published when a product is registered
type ProductCreatedEvent struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	InitialStock int    `json:"initial_stock"`
}

// ProductUpdatedEvent is published when a product is updated
type ProductUpdatedEvent struct {
	ProductID string         `json:"product_id"`
	SKU       string         `json:"sku"`
	Fields    map[string]any `json:"fields"`
}

// ProductDeletedEvent is published when a product is deactivated
type ProductDeletedEvent struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
}

// Inventory Events

// MovementRecordedEvent is published for every ledger entry
type MovementRecordedEvent struct {
	MovementID    string `json:"movement_id"`
	ProductID     string `json:"product_id"`
	SKU           string `json:"sku"`
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	PerformedBy   string `json:"performed_by"`
	Reason        string `json:"reason,omitempty"`
}

// StockLowEvent is published when a movement drops stock to or below the minimum
type StockLowEvent struct {
	ProductID    string `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	MinStock     int    `json:"min_stock"`
}

// BatchExpiringEvent is published when a batch with remaining stock nears expiry
type BatchExpiringEvent struct {
	ProductID      string    `json:"product_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	BatchNumber    string    `json:"batch_number"`
	ExpirationDate time.Time `json:"expiration_date"`
	DaysUntil      int       `json:"days_until"`
	Quantity       int       `json:"quantity"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
