package events

import (
	"context"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/service"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/messaging"
)

// InventoryEventPublisher publishes inventory domain events. Publishing is
// best-effort: a broker failure is logged, never surfaced to the request
// that triggered the event.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishProductCreated publishes a product created event
func (p *InventoryEventPublisher) PublishProductCreated(ctx context.Context, product *repository.Product) {
	if p == nil {
		return
	}

	data := messaging.ProductCreatedEvent{
		ProductID:    product.ID,
		SKU:          product.SKU,
		Name:         product.Name,
		Category:     product.Category,
		InitialStock: product.CurrentStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventProductCreated, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to publish product created event")
	}
}

// PublishProductUpdated publishes a product updated event
func (p *InventoryEventPublisher) PublishProductUpdated(ctx context.Context, product *repository.Product) {
	if p == nil {
		return
	}

	data := messaging.ProductUpdatedEvent{
		ProductID: product.ID,
		SKU:       product.SKU,
	}

	if err := p.publisher.Publish(ctx, messaging.EventProductUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to publish product updated event")
	}
}

// PublishProductDeleted publishes a product deleted event
func (p *InventoryEventPublisher) PublishProductDeleted(ctx context.Context, product *repository.Product) {
	if p == nil {
		return
	}

	data := messaging.ProductDeletedEvent{
		ProductID: product.ID,
		SKU:       product.SKU,
	}

	if err := p.publisher.Publish(ctx, messaging.EventProductDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to publish product deleted event")
	}
}

// PublishMovementRecorded publishes a movement recorded event
func (p *InventoryEventPublisher) PublishMovementRecorded(ctx context.Context, product *repository.Product, m *repository.StockMovement) {
	if p == nil {
		return
	}

	performedBy := ""
	if m.PerformedBy != nil {
		performedBy = *m.PerformedBy
	}
	reason := ""
	if m.Reason != nil {
		reason = *m.Reason
	}

	data := messaging.MovementRecordedEvent{
		MovementID:    m.ID,
		ProductID:     m.ProductID,
		SKU:           product.SKU,
		Type:          m.Type,
		Quantity:      m.Quantity,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		PerformedBy:   performedBy,
		Reason:        reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", m.ID).Msg("failed to publish movement recorded event")
	}
}

// PublishStockLow publishes a stock low event
func (p *InventoryEventPublisher) PublishStockLow(ctx context.Context, product *repository.Product) {
	if p == nil {
		return
	}

	data := messaging.StockLowEvent{
		ProductID:    product.ID,
		SKU:          product.SKU,
		Name:         product.Name,
		CurrentStock: product.CurrentStock,
		MinStock:     product.MinStock,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to publish stock low event")
	}
}

// PublishBatchExpiring publishes a batch expiring event
func (p *InventoryEventPublisher) PublishBatchExpiring(ctx context.Context, product *repository.Product, batch *service.BatchInfo, daysUntil int) {
	if p == nil || batch.ExpirationDate == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		ProductID:      product.ID,
		SKU:            product.SKU,
		Name:           product.Name,
		BatchNumber:    batch.BatchNumber,
		ExpirationDate: *batch.ExpirationDate,
		DaysUntil:      daysUntil,
		Quantity:       batch.Quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", product.ID).Str("batch", batch.BatchNumber).Msg("failed to publish batch expiring event")
	}
}
