package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	"kyccase/pkg/platform/sentinel"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresCreateSubjectConflict(t *testing.T) {
	s, mock := newMockPostgres(t)
	subj, err := models.NewIndividualSubject(id.NewSubjectID(), "IND-1", "", models.Individual{FullName: "Jane"}, base)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO kyc_subjects").WillReturnError(&pq.Error{Code: "23505"})
	err = s.CreateSubject(context.Background(), subj)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	mock.ExpectExec("INSERT INTO kyc_subjects").WillReturnError(&pgconn.PgError{Code: "23505"})
	err = s.CreateSubject(context.Background(), subj)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	mock.ExpectExec("INSERT INTO kyc_subjects").WillReturnError(errors.New("connection reset"))
	err = s.CreateSubject(context.Background(), subj)
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetCaseNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery("SELECT snapshot FROM kyc_cases").WillReturnRows(sqlmock.NewRows([]string{"snapshot"}))

	_, err := s.GetCase(context.Background(), id.NewSubjectID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTx(t *testing.T) {
	subjectID := id.NewSubjectID()
	raw, err := json.Marshal(workflow.NewCase(subjectID, base).Snapshot())
	require.NoError(t, err)

	t.Run("commits and locks the case row", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT snapshot FROM kyc_cases WHERE subject_id = \$1 FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow(raw))
		mock.ExpectExec("INSERT INTO kyc_cases").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.RunInTx(context.Background(), func(ctx context.Context, tx ports.Store) error {
			c, err := tx.GetCaseForUpdate(ctx, subjectID)
			if err != nil {
				return err
			}
			if err := workflow.Transition(c, workflow.Request{To: models.StateSubmitted, Actor: "a", At: base}); err != nil {
				return err
			}
			return tx.SaveCase(ctx, c)
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM kyc_screening_results").WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectRollback()

		boom := errors.New("boom")
		var deleted int
		err := s.RunInTx(context.Background(), func(ctx context.Context, tx ports.Store) error {
			n, err := tx.DeleteResults(ctx, subjectID)
			deleted = n
			if err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, deleted)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUpdateSubjectMissing(t *testing.T) {
	s, mock := newMockPostgres(t)
	subj, err := models.NewIndividualSubject(id.NewSubjectID(), "IND-1", "", models.Individual{FullName: "Jane"}, base)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE kyc_subjects").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.UpdateSubject(context.Background(), subj), sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubmittedSubjectKeysConflict(t *testing.T) {
	s, mock := newMockPostgres(t)
	subj, err := models.NewIndividualSubject(id.NewSubjectID(), "IND-1", " Jane@Example.COM ", models.Individual{
		FullName: "Jane",
		ID:       models.IDDescriptor{Kind: models.DocPassport, Number: "P-DUP"},
	}, base)
	require.NoError(t, err)
	subj.ApplySubmission(base)

	// a second submitted individual already holds P-DUP
	mock.ExpectExec("UPDATE kyc_subjects").
		WithArgs(sqlmock.AnyArg(), "IND-1", "P-DUP", nil, "jane@example.com", false,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "kyc_subjects_submitted_id_document_uq"})

	assert.ErrorIs(t, s.UpdateSubject(context.Background(), subj), sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
