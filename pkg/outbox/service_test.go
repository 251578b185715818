package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	tenantID := uuid.New()
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			TenantID:      tenantID,
			Actor:         &ActorRef{ID: "system", Type: enums.ActorTypeSystem},
			Data:          map[string]string{"order_number": "ND-1"},
		})
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	var rows []models.OutboxEvent
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != 1 || envelope.EventID == "" || envelope.TenantID != tenantID.String() {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.Actor == nil || envelope.Actor.Type != enums.ActorTypeSystem {
		t.Fatalf("expected system actor, got %+v", envelope.Actor)
	}
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]string{},
		}); err != nil {
			t.Fatalf("emit: %v", err)
		}
		return errors.New("abort")
	})

	var count int64
	conn.Model(&models.OutboxEvent{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rollback to discard event, got %d rows", count)
	}
}

func TestEmitUsesRowIDAsEventIDAndRejectsInvalidEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventTenantUpdated,
			AggregateType: enums.AggregateTenant,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, row.ID.String(), envelope.EventID)
	assert.True(t, envelope.OccurredAt.Equal(fixed))

	invalid := []DomainEvent{
		{EventType: "made_up", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateTenant, AggregateID: uuid.New()},
	}
	for _, ev := range invalid {
		err := conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, ev)
		})
		assert.Error(t, err, "%+v", ev)
	}
	assert.Error(t, svc.Emit(context.Background(), nil, invalid[0]))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	row := models.OutboxEvent{
		EventType:     enums.EventTenantUpdated,
		AggregateType: enums.AggregateTenant,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
	if err := repo.Insert(conn, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := repo.Claim(conn, 10, 3)
	if err != nil || len(rows) != 1 {
		t.Fatalf("fetch: %v (%d rows)", err, len(rows))
	}
	id := rows[0].ID

	if err := repo.RecordFailure(conn, id, errors.New("boom")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.Park(conn, id, errors.New("boom"), 3); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}
	rows, err = repo.Claim(conn, 10, 3)
	if err != nil {
		t.Fatalf("fetch after terminal: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("terminal rows must not be fetched again")
	}

	var stored models.OutboxEvent
	if err := conn.First(&stored, "id = ?", id).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.AttemptCount != 3 || stored.LastError == nil || *stored.LastError != "boom" {
		t.Fatalf("unexpected stored row %+v", stored)
	}
}

func TestRepositoryMarkPublishedRemovesRowFromClaims(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	id := uuid.New()
	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}))
	require.NoError(t, repo.RecordFailure(conn, id, errors.New("unavailable")))

	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.MarkPublished(conn, id, at))

	rows, err := repo.Claim(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored, "id = ?", id).Error)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, stored.PublishedAt.Equal(at))
	assert.Nil(t, stored.LastError)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.ErrorIs(t, repo.MarkPublished(nil, id, at), errNoTx)
}
