package types

type OutputLogin struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	ServiceURL string `json:"serviceUrl"`
	// Token authorizes the account routes of every DID logged in on this device
	Token string `json:"token,omitempty"`
}

type OutputAddKey struct {
	DID       string `json:"did"`
	PublicKey string `json:"publicKey"`
	// Recorded is false when the key was published but the account list could not be updated
	Recorded bool   `json:"recorded"`
	Message  string `json:"message,omitempty"`
}

type OutputRetrieveKey struct {
	Key        string `json:"key"`
	PrivateKey string `json:"privateKey"` // hex
}

type OutputAuditLog struct {
	DID     string        `json:"did"`
	Entries []*AuditEntry `json:"entries"`
}
