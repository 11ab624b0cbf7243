package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-access-service/internal/biometric"
	"github.com/spec-kit/gate-access-service/internal/domain"
	"github.com/spec-kit/gate-access-service/internal/events"
	"github.com/spec-kit/gate-access-service/internal/observability"
	"github.com/spec-kit/gate-access-service/internal/replay"
	"github.com/spec-kit/gate-access-service/internal/repository"
	"github.com/spec-kit/gate-access-service/internal/token"
	apperrors "github.com/spec-kit/gate-access-service/pkg/util"
)

// unknownSubject is recorded when the token never yielded a subject id.
const unknownSubject int64 = 0

// AccessService is the entry decision engine. VerifyEntry walks the staged
// pipeline token -> identity -> status -> biometrics and always appends
// exactly one audit record per attempt, whichever stage terminates it.
type AccessService struct {
	codec      *token.Codec
	matcher    *biometric.Matcher
	extractor  biometric.Extractor
	identities repository.IdentityRepository
	audits     repository.AuditRepository
	guard      replay.Guard
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AccessDependencies encapsulates collaborator requirements for the engine.
type AccessDependencies struct {
	Codec        *token.Codec
	Matcher      *biometric.Matcher
	Extractor    biometric.Extractor
	IdentityRepo repository.IdentityRepository
	AuditRepo    repository.AuditRepository
	ReplayGuard  replay.Guard
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewAccessService builds the engine.
func NewAccessService(deps AccessDependencies) *AccessService {
	guard := deps.ReplayGuard
	if guard == nil {
		guard = replay.NewNoopGuard()
	}
	return &AccessService{
		codec:      deps.Codec,
		matcher:    deps.Matcher,
		extractor:  deps.Extractor,
		identities: deps.IdentityRepo,
		audits:     deps.AuditRepo,
		guard:      guard,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// IssueToken produces a fresh rotating credential for the subject, used by
// an authenticated identity owner to render their own QR pass.
func (s *AccessService) IssueToken(subjectID int64) string {
	return s.codec.Issue(subjectID)
}

// TokenValidity exposes the validity window for the issuance response.
func (s *AccessService) TokenValidity() time.Duration {
	return s.codec.Validity()
}

// VerifyEntry renders the Allow/Deny decision for one attempt. It never
// returns an error: every outcome, including internal faults, is folded into
// the decision and audited.
func (s *AccessService) VerifyEntry(ctx context.Context, qrToken string, image []byte) *domain.EntryDecision {
	// Stage 1: token structure, signature, expiry.
	subjectID, err := s.codec.Verify(qrToken)
	if err != nil {
		s.logger.Info("gate token rejected", zap.Error(err))
		return s.deny(ctx, unknownSubject, domain.ReasonInvalidToken,
			"Invalid or expired QR token", http.StatusUnauthorized, nil)
	}

	if ok := s.firstUse(ctx, qrToken); !ok {
		return s.deny(ctx, subjectID, domain.ReasonTokenReplayed,
			"Invalid or expired QR token", http.StatusUnauthorized, nil)
	}

	// Stage 2: resolve the claimed identity. The audit record keeps the
	// claimed id even when no such account exists.
	identity, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.deny(ctx, subjectID, domain.ReasonIdentityNotFound,
				"Token valid but identity not found", http.StatusNotFound, nil)
		}
		return s.internalFault(ctx, subjectID, err)
	}

	// Stage 3: account status.
	if identity.Expired(time.Now()) {
		return s.deny(ctx, subjectID, domain.ReasonAccountExpired,
			"Account expired", http.StatusForbidden, nil)
	}

	// Stage 4: enrollment precondition.
	if !identity.HasBiometrics() {
		return s.deny(ctx, subjectID, domain.ReasonNoTemplate,
			"No biometric template registered", http.StatusBadRequest, nil)
	}

	// Stage 5: live biometric check.
	live, err := s.extractor.Extract(ctx, image)
	switch {
	case err == nil:
	case errors.Is(err, biometric.ErrNoFace):
		// No face is a non-match, not a fault; it scores zero.
		reason := "Face did not match (no face detected)"
		similarity := 0.0
		return s.deny(ctx, subjectID, reason,
			"Face verification failed", http.StatusUnauthorized, &similarity)
	case errors.Is(err, biometric.ErrExtractTimeout):
		return s.deny(ctx, subjectID, domain.ReasonExtractTimeout,
			"Face verification failed", http.StatusUnauthorized, nil)
	default:
		return s.internalFault(ctx, subjectID, err)
	}

	matched, similarity, err := s.matcher.Matches(live, biometric.Embedding(identity.Embedding))
	if err != nil {
		return s.internalFault(ctx, subjectID, err)
	}

	// Stage 6: decided.
	if !matched {
		reason := fmt.Sprintf("Face did not match (similarity: %.2f)", similarity)
		return s.deny(ctx, subjectID, reason,
			"Face verification failed", http.StatusUnauthorized, &similarity)
	}

	s.audit(ctx, &domain.AuditRecord{
		SubjectID:     subjectID,
		AccessGranted: true,
		Similarity:    &similarity,
		Method:        domain.VerificationMethod,
	})
	s.publish(ctx, events.EventEntryGranted, subjectID, events.EntryDecidedPayload{Similarity: &similarity})
	s.metrics.RecordDecision(true)

	return &domain.EntryDecision{
		AccessGranted: true,
		Message:       fmt.Sprintf("Access granted. Welcome %s", identity.Email),
		Similarity:    &similarity,
		StatusCode:    http.StatusOK,
	}
}

// RegisterBiometrics extracts an embedding from an enrollment photo and
// stores it as the subject's template, replacing any previous one.
func (s *AccessService) RegisterBiometrics(ctx context.Context, subjectID int64, image []byte) error {
	embedding, err := s.extractor.Extract(ctx, image)
	if err != nil {
		if errors.Is(err, biometric.ErrNoFace) {
			return apperrors.NewValidationError("no face detected; make sure the face is well lit", nil)
		}
		return apperrors.NewInternalError(err)
	}

	if err := s.identities.UpdateEmbedding(ctx, subjectID, embedding); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("identity", nil)
		}
		return err
	}

	s.publish(ctx, events.EventBiometricsEnrolled, subjectID,
		events.BiometricsEnrolledPayload{EmbeddingSize: len(embedding)})
	return nil
}

// firstUse consults the replay guard; a guard outage fails open so a redis
// incident cannot lock the door.
func (s *AccessService) firstUse(ctx context.Context, qrToken string) bool {
	fresh, err := s.guard.FirstUse(ctx, qrToken, s.codec.Validity())
	if err != nil {
		s.logger.Warn("replay guard unavailable", zap.Error(err))
		return true
	}
	return fresh
}

func (s *AccessService) deny(ctx context.Context, subjectID int64, reason, message string, status int, similarity *float64) *domain.EntryDecision {
	s.audit(ctx, &domain.AuditRecord{
		SubjectID:     subjectID,
		AccessGranted: false,
		FailureReason: &reason,
		Similarity:    similarity,
		Method:        domain.VerificationMethod,
	})
	s.publish(ctx, events.EventEntryDenied, subjectID, events.EntryDecidedPayload{Reason: reason, Similarity: similarity})
	s.metrics.RecordDecision(false)

	return &domain.EntryDecision{
		AccessGranted: false,
		Message:       message,
		Similarity:    similarity,
		StatusCode:    status,
	}
}

// internalFault converts an unexpected failure into a generic denial. The
// cause lands in the audit record and the operator log, never in the
// response body.
func (s *AccessService) internalFault(ctx context.Context, subjectID int64, cause error) *domain.EntryDecision {
	s.logger.Error("entry verification fault", zap.Int64("subject_id", subjectID), zap.Error(cause))
	reason := fmt.Sprintf("Internal error: %v", cause)
	return s.deny(ctx, subjectID, reason, "Internal server error", http.StatusInternalServerError, nil)
}

// audit appends the single record for this attempt. A sink failure is an
// operational problem, logged but not surfaced to the caller.
func (s *AccessService) audit(ctx context.Context, record *domain.AuditRecord) {
	if err := s.audits.Append(ctx, record); err != nil {
		s.logger.Error("audit append failed",
			zap.Int64("subject_id", record.SubjectID),
			zap.Bool("access_granted", record.AccessGranted),
			zap.Error(err))
	}
}

func (s *AccessService) publish(ctx context.Context, eventType events.EventType, subjectID int64, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
