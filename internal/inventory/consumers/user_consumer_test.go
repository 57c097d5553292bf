package consumers

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/messaging"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer suite.Cleanup(ctx)

	os.Exit(m.Run())
}

// newTestConsumer builds a consumer with the handler wiring but no broker
// connection; the handlers are exercised directly.
func newTestConsumer() *UserEventConsumer {
	return &UserEventConsumer{
		userCacheRepo: repository.NewUserCacheRepository(suite.DB),
		logger:        suite.Logger,
	}
}

func makeEvent(t *testing.T, eventType string, data interface{}) *messaging.Event {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)

	return &messaging.Event{
		ID:        messaging.GenerateEventID(),
		Type:      eventType,
		Source:    "user-service",
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}
}

func TestHandleUserCreated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "consumer-created")

	c := newTestConsumer()
	userID := uuid.New().String()

	event := makeEvent(t, messaging.EventUserCreated, messaging.UserCreatedEvent{
		UserID:       userID,
		Email:        "ana@clinic.test",
		FirstName:    "Ana",
		LastName:     "Souza",
		RoleName:     "nurse",
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		TenantSchema: tenant.SchemaName,
	})
	require.NoError(t, c.handleUserCreated(ctx, event))

	// Cached in the tenant's schema
	tenantCtx := suite.TenantContext(tenant)
	cached, err := repository.NewUserCacheRepository(suite.DB).Get(tenantCtx, userID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Ana Souza", cached.FullName())
	require.NotNil(t, cached.RoleName)
	assert.Equal(t, "nurse", *cached.RoleName)
}

func TestHandleUserCreated_MissingTenantContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := newTestConsumer()

	event := makeEvent(t, messaging.EventUserCreated, messaging.UserCreatedEvent{
		UserID:    uuid.New().String(),
		Email:     "lost@clinic.test",
		FirstName: "Sem",
		LastName:  "Tenant",
	})
	assert.Error(t, c.handleUserCreated(context.Background(), event))
}

func TestHandleUserUpdated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "consumer-updated")

	c := newTestConsumer()
	userID := uuid.New().String()

	created := makeEvent(t, messaging.EventUserCreated, messaging.UserCreatedEvent{
		UserID:       userID,
		Email:        "bruno@clinic.test",
		FirstName:    "Bruno",
		LastName:     "Costa",
		RoleName:     "admin",
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		TenantSchema: tenant.SchemaName,
	})
	require.NoError(t, c.handleUserCreated(ctx, created))

	updated := makeEvent(t, messaging.EventUserUpdated, messaging.UserUpdatedEvent{
		UserID: userID,
		Fields: map[string]any{
			"last_name": "Costa Filho",
			"role_name": "manager",
		},
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		TenantSchema: tenant.SchemaName,
	})
	require.NoError(t, c.handleUserUpdated(ctx, updated))

	tenantCtx := suite.TenantContext(tenant)
	cached, err := repository.NewUserCacheRepository(suite.DB).Get(tenantCtx, userID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Bruno Costa Filho", cached.FullName())
	assert.Equal(t, "manager", *cached.RoleName)

	// Unchanged fields keep their cached values
	assert.Equal(t, "bruno@clinic.test", cached.Email)
}

func TestHandleUserUpdated_UnknownUserIsNoop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "consumer-update-unknown")

	c := newTestConsumer()

	event := makeEvent(t, messaging.EventUserUpdated, messaging.UserUpdatedEvent{
		UserID:       uuid.New().String(),
		Fields:       map[string]any{"first_name": "Ghost"},
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		TenantSchema: tenant.SchemaName,
	})
	assert.NoError(t, c.handleUserUpdated(ctx, event))
}

func TestHandleUserDeleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupInventoryTenant(t, ctx, "consumer-deleted")

	c := newTestConsumer()
	userID := uuid.New().String()

	created := makeEvent(t, messaging.EventUserCreated, messaging.UserCreatedEvent{
		UserID:       userID,
		Email:        "carla@clinic.test",
		FirstName:    "Carla",
		LastName:     "Lima",
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		TenantSchema: tenant.SchemaName,
	})
	require.NoError(t, c.handleUserCreated(ctx, created))

	deleted := makeEvent(t, messaging.EventUserDeleted, messaging.UserDeletedEvent{
		UserID:       userID,
		Email:        "carla@clinic.test",
		TenantID:     tenant.ID,
		TenantSlug:   tenant.Slug,
		TenantSchema: tenant.SchemaName,
	})
	require.NoError(t, c.handleUserDeleted(ctx, deleted))

	tenantCtx := suite.TenantContext(tenant)
	cached, err := repository.NewUserCacheRepository(suite.DB).Get(tenantCtx, userID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}
