package dto

// EntryVerifyResponse is returned by the gate verification endpoint.
type EntryVerifyResponse struct {
	AccessGranted bool     `json:"access_granted"`
	Message       string   `json:"message"`
	Similarity    *float64 `json:"similarity,omitempty"`
}

// TokenResponse carries a freshly issued QR credential. The caller renders
// the QR image; only the token string crosses the API.
type TokenResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}
