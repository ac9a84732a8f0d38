package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
)

func TestOutboxRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)

	t.Run("rejects empty payload", func(t *testing.T) {
		err := repo.Create(context.Background(), &model.OutboxEvent{EventType: model.EventAppointmentCreated})
		assert.Error(t, err)
	})

	t.Run("stores a pending event", func(t *testing.T) {
		payload := json.RawMessage(`{"resource":"appointment","operation":"create"}`)
		mock.ExpectExec("INSERT INTO outbox_events").
			WithArgs(sqlmock.AnyArg(), model.EventAppointmentCreated, []byte(payload),
				model.OutboxStatusPending, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		event := &model.OutboxEvent{EventType: model.EventAppointmentCreated, Payload: payload}
		require.NoError(t, repo.Create(context.Background(), event))
		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Equal(t, model.OutboxStatusPending, event.Status)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)

	id := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "error_message", "retry_count", "created_at", "processed_at", "updated_at",
	}).AddRow(id.String(), model.EventAppointmentDeleted, []byte(`{"resource":"appointment"}`),
		string(model.OutboxStatusProcessing), nil, 1, now, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(model.OutboxStatusProcessing, sqlmock.AnyArg(), model.OutboxStatusPending, sqlmock.AnyArg(), 10).
		WillReturnRows(rows)

	events, err := repo.ClaimPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, model.OutboxStatusProcessing, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	assert.Nil(t, events[0].ProcessedAt)
	assert.JSONEq(t, `{"resource":"appointment"}`, string(events[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("status = CASE WHEN retry_count + 1 >= $2 THEN $3 ELSE $4 END")).
		WithArgs("smtp down", 3, model.OutboxStatusFailed, model.OutboxStatusPending, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), id, "smtp down", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_DeleteProcessedBefore(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)
	cutoff := time.Now().Add(-72 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2")).
		WithArgs(model.OutboxStatusProcessed, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteProcessedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
