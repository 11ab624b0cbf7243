package biometric

import "context"

// DefaultThreshold is the similarity above which two embeddings count as the
// same person. The gate runs at 0.50; the standalone recognizer historically
// used 0.42.
const DefaultThreshold = 0.50

// Extractor is the external face-detection/embedding capability. Extract
// returns ErrNoFace when the image contains no detectable face. When several
// faces are present the extractor returns the one with the largest detection
// box, a documented rather than necessarily optimal policy.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Embedding, error)
}

// Matcher decides whether a live embedding and a stored template belong to
// the same person. It is stateless and never touches account status.
type Matcher struct {
	threshold float64
}

// NewMatcher builds a matcher; non-positive thresholds fall back to the
// default.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the configured match threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Matches scores the two embeddings and applies a strict-greater threshold:
// similarity exactly at the threshold is a non-match.
func (m *Matcher) Matches(live, stored Embedding) (bool, float64, error) {
	sim, err := Cosine(live, stored)
	if err != nil {
		return false, 0, err
	}
	return sim > m.threshold, sim, nil
}
