package service

import (
	"context"
	"time"

	"github.com/spec-kit/gate-access-service/internal/domain"
	"github.com/spec-kit/gate-access-service/internal/repository"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// LogService exposes reporting over the append-only audit log. It never
// mutates records.
type LogService struct {
	audits repository.AuditRepository
}

// NewLogService builds the service.
func NewLogService(audits repository.AuditRepository) *LogService {
	return &LogService{audits: audits}
}

// List returns recent records, optionally scoped to one subject.
func (s *LogService) List(ctx context.Context, subjectID *int64, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	if subjectID != nil {
		return s.audits.ListBySubject(ctx, *subjectID, limit)
	}
	return s.audits.ListRecent(ctx, limit)
}

// Stats aggregates attempts over the trailing number of days.
func (s *LogService) Stats(ctx context.Context, days int) (*domain.AuditStats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	return s.audits.Stats(ctx, since)
}
