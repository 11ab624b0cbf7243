package domain

import "time"

// VerificationMethod identifies the credential pipeline that produced an
// audit record.
const VerificationMethod = "SecureQR+FaceMatch"

// AuditRecord captures one gate verification attempt and its outcome.
// Records are append-only; SubjectID keeps the id claimed by the token even
// when no matching identity exists, so forged or stale tokens leave a trail.
type AuditRecord struct {
	ID            int64
	SubjectID     int64
	AccessGranted bool
	FailureReason *string
	Similarity    *float64
	Method        string
	CreatedAt     time.Time
}

// AuditStats aggregates attempts over a reporting window.
type AuditStats struct {
	TotalAttempts   int64
	GrantedAttempts int64
	DeniedAttempts  int64
	Since           time.Time
}
