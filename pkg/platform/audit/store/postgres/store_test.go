package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kyccase/pkg/domain"
	audit "kyccase/pkg/platform/audit"
	txcontext "kyccase/pkg/platform/tx"
)

func TestAppendJoinsContextTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), "subject", sqlmock.AnyArg(), "case_transitioned", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)
	require.NoError(t, store.Append(ctx, audit.Event{
		SubjectID: id.NewSubjectID(),
		Action:    string(audit.EventCaseTransitioned),
		Timestamp: time.Now(),
	}))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDrainPublishesMaterializesAndMarks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)

	subjectID := id.NewSubjectID()
	first, second := uuid.New(), uuid.New()
	payload := []byte(`{"id":"x","category":"compliance","timestamp":"2026-03-01T00:00:00Z","subject_id":"` +
		subjectID.String() + `","action":"report_generated"}`)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload FROM outbox").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload"}).
			AddRow(first.String(), subjectID.String(), "report_generated", payload).
			AddRow(second.String(), subjectID.String(), "report_generated", payload))
	mock.ExpectExec("INSERT INTO audit_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox SET published_at").WithArgs(first.String(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sinkDown := errors.New("broker down")
	var published []uuid.UUID
	n, err := store.Drain(context.Background(), 10, func(_ context.Context, e audit.OutboxEntry) error {
		if e.ID == second {
			return sinkDown
		}
		published = append(published, e.ID)
		return nil
	})
	assert.ErrorIs(t, err, sinkDown)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{first}, published)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodePayload(t *testing.T) {
	subjectID := id.NewSubjectID()
	event, err := decodePayload([]byte(`{"category":"compliance","timestamp":"2026-03-01T10:00:00.5Z","subject_id":"` +
		subjectID.String() + `","action":"case_transitioned","decision":"REJECTED","reason":"sanctions"}`))
	require.NoError(t, err)
	assert.Equal(t, subjectID, event.SubjectID)
	assert.Equal(t, "REJECTED", event.Decision)
	assert.Equal(t, 500*time.Millisecond, time.Duration(event.Timestamp.Nanosecond()))

	_, err = decodePayload([]byte(`{"timestamp":"yesterday"}`))
	assert.Error(t, err)
}
