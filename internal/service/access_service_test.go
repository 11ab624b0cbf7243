package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-access-service/internal/biometric"
	"github.com/spec-kit/gate-access-service/internal/domain"
	"github.com/spec-kit/gate-access-service/internal/token"
)

// --- fakes ---

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeIdentityRepo struct {
	identities map[int64]*domain.Identity
	byEmail    map[string]*domain.Identity
}

func newFakeIdentityRepo(identities ...*domain.Identity) *fakeIdentityRepo {
	repo := &fakeIdentityRepo{
		identities: make(map[int64]*domain.Identity),
		byEmail:    make(map[string]*domain.Identity),
	}
	for _, identity := range identities {
		repo.identities[identity.ID] = identity
		repo.byEmail[identity.Email] = identity
	}
	return repo
}

func (r *fakeIdentityRepo) Create(_ context.Context, identity *domain.Identity) error {
	identity.ID = int64(len(r.identities) + 1)
	identity.CreatedAt = time.Now()
	r.identities[identity.ID] = identity
	r.byEmail[identity.Email] = identity
	return nil
}

func (r *fakeIdentityRepo) GetByID(_ context.Context, id int64) (*domain.Identity, error) {
	identity, ok := r.identities[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return identity, nil
}

func (r *fakeIdentityRepo) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	identity, ok := r.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return identity, nil
}

func (r *fakeIdentityRepo) UpdateEmbedding(_ context.Context, id int64, embedding []float32) error {
	identity, ok := r.identities[id]
	if !ok {
		return pgx.ErrNoRows
	}
	identity.Embedding = embedding
	return nil
}

func (r *fakeIdentityRepo) UpdateExpiry(_ context.Context, id int64, expireTime *time.Time) error {
	identity, ok := r.identities[id]
	if !ok {
		return pgx.ErrNoRows
	}
	identity.ExpireTime = expireTime
	return nil
}

func (r *fakeIdentityRepo) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	identity, ok := r.identities[id]
	if !ok {
		return pgx.ErrNoRows
	}
	identity.PasswordHash = passwordHash
	return nil
}

type fakeAuditRepo struct {
	records   []domain.AuditRecord
	appendErr error
}

func (r *fakeAuditRepo) Append(_ context.Context, record *domain.AuditRecord) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	record.ID = int64(len(r.records) + 1)
	record.CreatedAt = time.Now()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeAuditRepo) ListRecent(_ context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]domain.AuditRecord, limit)
	copy(out, r.records[len(r.records)-limit:])
	return out, nil
}

func (r *fakeAuditRepo) ListBySubject(_ context.Context, subjectID int64, limit int) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	for _, record := range r.records {
		if record.SubjectID == subjectID && len(out) < limit {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) Stats(_ context.Context, since time.Time) (*domain.AuditStats, error) {
	stats := domain.AuditStats{Since: since}
	for _, record := range r.records {
		stats.TotalAttempts++
		if record.AccessGranted {
			stats.GrantedAttempts++
		} else {
			stats.DeniedAttempts++
		}
	}
	return &stats, nil
}

type fakeExtractor struct {
	embedding biometric.Embedding
	err       error
	calls     int
}

func (e *fakeExtractor) Extract(context.Context, []byte) (biometric.Embedding, error) {
	e.calls++
	return e.embedding, e.err
}

type fakeGuard struct {
	fresh bool
	err   error
}

func (g *fakeGuard) FirstUse(context.Context, string, time.Duration) (bool, error) {
	return g.fresh, g.err
}

// --- harness ---

type accessFixture struct {
	service    *AccessService
	codec      *token.Codec
	clock      *fakeClock
	identities *fakeIdentityRepo
	audits     *fakeAuditRepo
	extractor  *fakeExtractor
	guard      *fakeGuard
}

func newAccessFixture(t *testing.T, identities ...*domain.Identity) *accessFixture {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	codec, err := token.NewCodec(token.Config{
		Secret: []byte("test-secret"),
		Clock:  clock,
	})
	require.NoError(t, err)

	fixture := &accessFixture{
		codec:      codec,
		clock:      clock,
		identities: newFakeIdentityRepo(identities...),
		audits:     &fakeAuditRepo{},
		extractor:  &fakeExtractor{},
		guard:      &fakeGuard{fresh: true},
	}
	fixture.service = NewAccessService(AccessDependencies{
		Codec:        codec,
		Matcher:      biometric.NewMatcher(0.5),
		Extractor:    fixture.extractor,
		IdentityRepo: fixture.identities,
		AuditRepo:    fixture.audits,
		ReplayGuard:  fixture.guard,
		Logger:       zap.NewNop(),
	})
	return fixture
}

func activeIdentity(id int64, embedding []float32) *domain.Identity {
	return &domain.Identity{
		ID:        id,
		Email:     "person@example.com",
		Embedding: embedding,
	}
}

func (f *accessFixture) lastAudit(t *testing.T) domain.AuditRecord {
	t.Helper()
	require.NotEmpty(t, f.audits.records)
	return f.audits.records[len(f.audits.records)-1]
}

// --- tests ---

func TestVerifyEntryInvalidToken(t *testing.T) {
	fixture := newAccessFixture(t)

	decision := fixture.service.VerifyEntry(context.Background(), "not|a|token", nil)

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusUnauthorized, decision.StatusCode)

	record := fixture.lastAudit(t)
	assert.Equal(t, int64(0), record.SubjectID)
	assert.False(t, record.AccessGranted)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, domain.ReasonInvalidToken, *record.FailureReason)
	assert.Zero(t, fixture.extractor.calls)
}

func TestVerifyEntryExpiredTokenAuditsEveryAttempt(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))

	tok := fixture.service.IssueToken(7)
	fixture.clock.now = fixture.clock.now.Add(10 * time.Minute)

	first := fixture.service.VerifyEntry(context.Background(), tok, nil)
	second := fixture.service.VerifyEntry(context.Background(), tok, nil)

	assert.False(t, first.AccessGranted)
	assert.False(t, second.AccessGranted)
	// Two independent records, never deduplicated.
	assert.Len(t, fixture.audits.records, 2)
}

func TestVerifyEntryIdentityNotFound(t *testing.T) {
	fixture := newAccessFixture(t)

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, nil)

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusNotFound, decision.StatusCode)

	// The claimed subject id is kept for the audit trail.
	record := fixture.lastAudit(t)
	assert.Equal(t, int64(7), record.SubjectID)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, domain.ReasonIdentityNotFound, *record.FailureReason)
}

func TestVerifyEntryAccountExpired(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	identity := activeIdentity(7, []float32{1, 0})
	identity.ExpireTime = &past
	fixture := newAccessFixture(t, identity)

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, nil)

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusForbidden, decision.StatusCode)

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, domain.ReasonAccountExpired, *record.FailureReason)
	// Status check precedes any biometric work.
	assert.Zero(t, fixture.extractor.calls)
}

func TestVerifyEntryMissingTemplate(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, nil))

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, nil)

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusBadRequest, decision.StatusCode)

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, domain.ReasonNoTemplate, *record.FailureReason)
	assert.Zero(t, fixture.extractor.calls)
}

func TestVerifyEntryNoFaceIsNonMatch(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.extractor.err = biometric.ErrNoFace

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusUnauthorized, decision.StatusCode)

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.Contains(t, *record.FailureReason, "no face detected")
	require.NotNil(t, record.Similarity)
	assert.Equal(t, 0.0, *record.Similarity)
}

func TestVerifyEntryExtractionTimeout(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.extractor.err = biometric.ErrExtractTimeout

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.False(t, decision.AccessGranted)

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, domain.ReasonExtractTimeout, *record.FailureReason)
}

func TestVerifyEntryInternalFault(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.extractor.err = errors.New("model crashed")

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusInternalServerError, decision.StatusCode)
	// The cause stays out of the response body.
	assert.NotContains(t, decision.Message, "model crashed")

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.True(t, strings.HasPrefix(*record.FailureReason, "Internal error:"))
	assert.Contains(t, *record.FailureReason, "model crashed")
}

func TestVerifyEntryFaceMatch(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	// Cosine similarity against the stored template is 0.61.
	fixture.extractor.embedding = biometric.Embedding{0.61, 0.7924}

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.True(t, decision.AccessGranted)
	assert.Equal(t, http.StatusOK, decision.StatusCode)
	require.NotNil(t, decision.Similarity)
	assert.InDelta(t, 0.61, *decision.Similarity, 1e-3)

	record := fixture.lastAudit(t)
	assert.True(t, record.AccessGranted)
	assert.Nil(t, record.FailureReason)
	require.NotNil(t, record.Similarity)
	assert.InDelta(t, 0.61, *record.Similarity, 1e-3)
}

func TestVerifyEntryFaceBelowThreshold(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.extractor.embedding = biometric.Embedding{0.3, 0.9539}

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusUnauthorized, decision.StatusCode)
	require.NotNil(t, decision.Similarity)
	assert.InDelta(t, 0.3, *decision.Similarity, 1e-3)

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.Contains(t, *record.FailureReason, "similarity")
	require.NotNil(t, record.Similarity)
}

func TestVerifyEntryReplayedToken(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.guard.fresh = false

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.False(t, decision.AccessGranted)
	assert.Equal(t, http.StatusUnauthorized, decision.StatusCode)

	record := fixture.lastAudit(t)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, domain.ReasonTokenReplayed, *record.FailureReason)
}

func TestVerifyEntryReplayGuardFailsOpen(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.guard.fresh = false
	fixture.guard.err = errors.New("redis down")
	fixture.extractor.embedding = biometric.Embedding{1, 0}

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.True(t, decision.AccessGranted)
}

func TestVerifyEntryAuditSinkFailureDoesNotChangeDecision(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, []float32{1, 0}))
	fixture.audits.appendErr = errors.New("sink unavailable")
	fixture.extractor.embedding = biometric.Embedding{1, 0}

	tok := fixture.service.IssueToken(7)
	decision := fixture.service.VerifyEntry(context.Background(), tok, []byte("img"))

	assert.True(t, decision.AccessGranted)
}

func TestRegisterBiometrics(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, nil))
	fixture.extractor.embedding = biometric.Embedding{0.1, 0.2, 0.3}

	err := fixture.service.RegisterBiometrics(context.Background(), 7, []byte("img"))
	require.NoError(t, err)

	identity, err := fixture.identities.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, identity.Embedding)
}

func TestRegisterBiometricsNoFace(t *testing.T) {
	fixture := newAccessFixture(t, activeIdentity(7, nil))
	fixture.extractor.err = biometric.ErrNoFace

	err := fixture.service.RegisterBiometrics(context.Background(), 7, []byte("img"))
	require.Error(t, err)
}
