package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gate-access-service/internal/domain"
)

// AuditRepository persists gate verification attempts as an append-only log.
// Records are never updated or deleted by the service. subject_id is not a
// foreign key: attempts with forged or stale tokens must still leave a trail.
type AuditRepository interface {
	Append(ctx context.Context, record *domain.AuditRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	ListBySubject(ctx context.Context, subjectID int64, limit int) ([]domain.AuditRecord, error)
	Stats(ctx context.Context, since time.Time) (*domain.AuditStats, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns a Postgres-backed implementation.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	const query = `
        INSERT INTO access_logs (subject_id, access_granted, failure_reason, similarity, method)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		record.SubjectID,
		record.AccessGranted,
		record.FailureReason,
		record.Similarity,
		record.Method,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *auditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	const query = `
        SELECT id, subject_id, access_granted, failure_reason, similarity, method, created_at
        FROM access_logs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *auditRepository) ListBySubject(ctx context.Context, subjectID int64, limit int) ([]domain.AuditRecord, error) {
	const query = `
        SELECT id, subject_id, access_granted, failure_reason, similarity, method, created_at
        FROM access_logs WHERE subject_id=$1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *auditRepository) Stats(ctx context.Context, since time.Time) (*domain.AuditStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE access_granted),
               COUNT(*) FILTER (WHERE NOT access_granted)
        FROM access_logs WHERE created_at >= $1`

	stats := domain.AuditStats{Since: since}
	if err := r.pool.QueryRow(ctx, query, since).Scan(
		&stats.TotalAttempts,
		&stats.GrantedAttempts,
		&stats.DeniedAttempts,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanRecords(rows pgx.Rows) ([]domain.AuditRecord, error) {
	var result []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.SubjectID,
			&record.AccessGranted,
			&record.FailureReason,
			&record.Similarity,
			&record.Method,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
