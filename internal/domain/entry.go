package domain

// Entry failure reasons recorded in the audit log. The strings are part of
// the reporting surface and must stay stable.
const (
	ReasonInvalidToken     = "Invalid or expired QR token"
	ReasonTokenReplayed    = "Token replayed"
	ReasonIdentityNotFound = "Identity not found"
	ReasonAccountExpired   = "Account expired"
	ReasonNoTemplate       = "No biometric template registered"
	ReasonExtractTimeout   = "biometric extraction timeout"
)

// EntryDecision is the terminal outcome of one verification attempt.
// StatusCode carries the HTTP-equivalent code for the transport layer.
type EntryDecision struct {
	AccessGranted bool
	Message       string
	Similarity    *float64
	StatusCode    int
}
