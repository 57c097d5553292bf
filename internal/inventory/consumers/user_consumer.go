package consumers

import (
	"context"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/messaging"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/tenant"
)

// UserEventConsumer syncs user.* events into the tenant's user_cache table
// so movement history can show who acted without calling the user service.
type UserEventConsumer struct {
	consumer      *messaging.Consumer
	userCacheRepo *repository.UserCacheRepository
	logger        *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer
func NewUserEventConsumer(rmq *messaging.RabbitMQ, userCacheRepo *repository.UserCacheRepository, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.user-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := &UserEventConsumer{
		consumer:      consumer,
		userCacheRepo: userCacheRepo,
		logger:        log,
	}

	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserCreated)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpdated)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("tenant_id", data.TenantID).
		Msg("received user created event")

	// Events arrive without an HTTP tenant context; it comes from the payload
	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug, data.TenantSchema)

	return c.userCacheRepo.Set(ctx, &repository.CachedUser{
		UserID:    data.UserID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		RoleName:  &data.RoleName,
	})
}

func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug, data.TenantSchema)

	existing, err := c.userCacheRepo.Get(ctx, data.UserID)
	if err != nil {
		return err
	}
	if existing == nil {
		// Never cached here; nothing to update
		return nil
	}

	if v, ok := data.Fields["first_name"].(string); ok {
		existing.FirstName = v
	}
	if v, ok := data.Fields["last_name"].(string); ok {
		existing.LastName = v
	}
	if v, ok := data.Fields["email"].(string); ok {
		existing.Email = v
	}
	if v, ok := data.Fields["role_name"].(string); ok {
		existing.RoleName = &v
	}

	return c.userCacheRepo.Set(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	ctx = tenant.WithTenantContext(ctx, data.TenantID, data.TenantSlug, data.TenantSchema)

	return c.userCacheRepo.Delete(ctx, data.UserID)
}
