package dto

import (
	"time"

	"github.com/spec-kit/gate-access-service/internal/domain"
)

// LogEntry is the reporting view of one audit record.
type LogEntry struct {
	ID            int64    `json:"id"`
	SubjectID     int64    `json:"subject_id"`
	AccessGranted bool     `json:"access_granted"`
	FailureReason *string  `json:"failure_reason,omitempty"`
	Similarity    *float64 `json:"similarity,omitempty"`
	Method        string   `json:"method"`
	CreatedAt     string   `json:"created_at"`
}

// LogStatsResponse aggregates attempts over a window.
type LogStatsResponse struct {
	TotalAttempts   int64  `json:"total_attempts"`
	GrantedAttempts int64  `json:"successful_attempts"`
	DeniedAttempts  int64  `json:"failed_attempts"`
	Since           string `json:"since"`
}

// FromAuditRecords maps domain records to the response shape.
func FromAuditRecords(records []domain.AuditRecord) []LogEntry {
	entries := make([]LogEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, LogEntry{
			ID:            record.ID,
			SubjectID:     record.SubjectID,
			AccessGranted: record.AccessGranted,
			FailureReason: record.FailureReason,
			Similarity:    record.Similarity,
			Method:        record.Method,
			CreatedAt:     record.CreatedAt.Format(time.RFC3339),
		})
	}
	return entries
}

// FromAuditStats maps domain stats to the response shape.
func FromAuditStats(stats *domain.AuditStats) LogStatsResponse {
	return LogStatsResponse{
		TotalAttempts:   stats.TotalAttempts,
		GrantedAttempts: stats.GrantedAttempts,
		DeniedAttempts:  stats.DeniedAttempts,
		Since:           stats.Since.Format(time.RFC3339),
	}
}
