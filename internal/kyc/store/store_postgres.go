package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/workflow"
	id "kyccase/pkg/domain"
	dErrors "kyccase/pkg/domain-errors"
	"kyccase/pkg/platform/sentinel"
	txcontext "kyccase/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Migrate creates the catalog tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply catalog schema: %w", err)
	}
	return nil
}

// Postgres persists the catalog in PostgreSQL. Rich records are stored as
// JSONB next to the columns the queries filter on.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

var (
	_ ports.Catalog = (*Postgres)(nil)
	_ ports.Catalog = (*Memory)(nil)
)

// NewPostgres constructs a PostgreSQL-backed catalog.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, timeout: defaultTxTimeout}
}

func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

func (s *Postgres) q(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

func (s *Postgres) CreateSubject(ctx context.Context, subj *models.Subject) error {
	payload, err := json.Marshal(subj)
	if err != nil {
		return fmt.Errorf("marshal subject: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO kyc_subjects (id, external_id, variant, id_document_number, registration_number, email, is_draft, id_expiry, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(subj.ID), subj.ExternalID, string(subj.Variant()),
		nullString(subj.IDDocumentNumber()), nullString(subj.RegistrationNumber()), nullString(subj.Email), subj.IsDraft,
		subj.PrimaryIDExpiry(), payload, subj.CreatedAt, subj.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateSubject(ctx context.Context, subj *models.Subject) error {
	payload, err := json.Marshal(subj)
	if err != nil {
		return fmt.Errorf("marshal subject: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE kyc_subjects
		SET external_id = $2, id_document_number = $3, registration_number = $4, email = $5, is_draft = $6,
			id_expiry = $7, payload = $8, updated_at = $9
		WHERE id = $1`,
		uuid.UUID(subj.ID), subj.ExternalID,
		nullString(subj.IDDocumentNumber()), nullString(subj.RegistrationNumber()), nullString(subj.Email), subj.IsDraft,
		subj.PrimaryIDExpiry(), payload, subj.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update subject: %w", err)
	}
	return requireAffected(res)
}

func (s *Postgres) GetSubject(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT payload FROM kyc_subjects WHERE id = $1`, uuid.UUID(subjectID))
	return scanJSON[models.Subject](row, "subject")
}

func (s *Postgres) FindSubjectByIdentifier(ctx context.Context, identifier string) (*models.Subject, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT payload FROM kyc_subjects
		WHERE id_document_number = $1 OR registration_number = $1 OR external_id = $1
		ORDER BY CASE
			WHEN id_document_number = $1 THEN 0
			WHEN registration_number = $1 THEN 1
			ELSE 2
		END, is_draft, created_at, id
		LIMIT 1`, identifier)
	return scanJSON[models.Subject](row, "subject")
}

func (s *Postgres) ListSubjectsCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Subject, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT payload FROM kyc_subjects
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	return scanAllJSON[models.Subject](rows, "subject")
}

func (s *Postgres) ListIndividualsWithIDExpiryBefore(ctx context.Context, before time.Time) ([]*models.Subject, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT payload FROM kyc_subjects
		WHERE variant = $1 AND id_expiry IS NOT NULL AND id_expiry < $2
		ORDER BY created_at, id`, string(models.VariantIndividual), before)
	if err != nil {
		return nil, fmt.Errorf("query expiring subjects: %w", err)
	}
	return scanAllJSON[models.Subject](rows, "subject")
}

func (s *Postgres) SaveDocument(ctx context.Context, d *models.Document) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO kyc_documents (id, subject_id, kind, status, uploaded_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, payload = EXCLUDED.payload`,
		uuid.UUID(d.ID), uuid.UUID(d.SubjectID), string(d.Kind), string(d.Status), d.UploadedAt, payload,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *Postgres) GetDocument(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT payload FROM kyc_documents WHERE id = $1`, uuid.UUID(docID))
	return scanJSON[models.Document](row, "document")
}

func (s *Postgres) ListDocuments(ctx context.Context, subjectID id.SubjectID) ([]*models.Document, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT payload FROM kyc_documents WHERE subject_id = $1 ORDER BY uploaded_at, id`, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return scanAllJSON[models.Document](rows, "document")
}

func (s *Postgres) SaveCase(ctx context.Context, c *workflow.Case) error {
	snap := c.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO kyc_cases (subject_id, state, next_review_date, created_at, updated_at, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject_id) DO UPDATE SET
			state = EXCLUDED.state,
			next_review_date = EXCLUDED.next_review_date,
			updated_at = EXCLUDED.updated_at,
			snapshot = EXCLUDED.snapshot`,
		uuid.UUID(snap.SubjectID), string(snap.CurrentState), snap.NextReviewDate, snap.CreatedAt, snap.UpdatedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("save case: %w", err)
	}
	return nil
}

func (s *Postgres) GetCase(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT snapshot FROM kyc_cases WHERE subject_id = $1`, uuid.UUID(subjectID))
	return scanCase(row)
}

func (s *Postgres) GetCaseForUpdate(ctx context.Context, subjectID id.SubjectID) (*workflow.Case, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT snapshot FROM kyc_cases WHERE subject_id = $1 FOR UPDATE`, uuid.UUID(subjectID))
	return scanCase(row)
}

func (s *Postgres) ListCases(ctx context.Context, filter ports.CaseFilter) ([]*workflow.Case, error) {
	var limit sql.NullInt64
	if filter.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(filter.Limit), Valid: true}
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT snapshot FROM kyc_cases
		WHERE ($1 = '' OR state = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at, subject_id
		LIMIT $4`,
		string(filter.State), filter.CreatedFrom, filter.CreatedTo, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	snaps, err := scanAllJSON[workflow.Snapshot](rows, "case")
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.Case, 0, len(snaps))
	for _, snap := range snaps {
		c, err := workflow.Restore(*snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Postgres) SaveResult(ctx context.Context, r *models.ScreeningResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal screening result: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO kyc_screening_results (id, subject_id, screened_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET screened_at = EXCLUDED.screened_at, payload = EXCLUDED.payload`,
		uuid.UUID(r.ID), uuid.UUID(r.SubjectID), r.ScreenedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("save screening result: %w", err)
	}
	return nil
}

func (s *Postgres) LatestResult(ctx context.Context, subjectID id.SubjectID) (*models.ScreeningResult, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT payload FROM kyc_screening_results
		WHERE subject_id = $1
		ORDER BY screened_at DESC
		LIMIT 1`, uuid.UUID(subjectID))
	return scanJSON[models.ScreeningResult](row, "screening result")
}

func (s *Postgres) DeleteResults(ctx context.Context, subjectID id.SubjectID) (int, error) {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM kyc_screening_results WHERE subject_id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return 0, fmt.Errorf("delete screening results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete screening results: %w", err)
	}
	return int(n), nil
}

func (s *Postgres) SaveReport(ctx context.Context, r *models.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO kyc_reports (id, subject_id, report_number, superseded, generated_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET superseded = EXCLUDED.superseded, generated_at = EXCLUDED.generated_at, payload = EXCLUDED.payload`,
		uuid.UUID(r.ID), uuid.UUID(r.SubjectID), r.ReportNumber, r.Superseded, r.GeneratedAt, payload,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *Postgres) CurrentReport(ctx context.Context, subjectID id.SubjectID) (*models.Report, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT payload FROM kyc_reports
		WHERE subject_id = $1 AND NOT superseded
		ORDER BY generated_at DESC
		LIMIT 1`, uuid.UUID(subjectID))
	return scanJSON[models.Report](row, "report")
}

func (s *Postgres) ListReports(ctx context.Context, subjectID id.SubjectID) ([]*models.Report, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT payload FROM kyc_reports WHERE subject_id = $1 ORDER BY generated_at, id`, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	return scanAllJSON[models.Report](rows, "report")
}

func scanCase(row *sql.Row) (*workflow.Case, error) {
	snap, err := scanJSON[workflow.Snapshot](row, "case")
	if err != nil {
		return nil, err
	}
	return workflow.Restore(*snap)
}

func scanJSON[T any](row *sql.Row, what string) (*T, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", what, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return &v, nil
}

func scanAllJSON[T any](rows *sql.Rows, what string) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", what, err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return out, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// sqlState extracts the SQLSTATE from either supported driver.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool     { return sqlState(err) == uniqueViolation }
func isForeignKeyViolation(err error) bool { return sqlState(err) == foreignKeyViolation }
