package types

// KeyMaterial is a rotation keypair. The private half never leaves the secure store
// except through an explicit, gated retrieval.
type KeyMaterial struct {
	PublicIdentifier string `json:"publicIdentifier"` // did:key:z...
	PrivateKeyBytes  []byte `json:"-"`
}

// RotationState tracks the add-key flow for a single DID
type RotationState string

const (
	RotationIdle          RotationState = "idle"
	RotationAwaitingToken RotationState = "awaiting_token"
	RotationTokenEntered  RotationState = "token_entered"
	RotationSubmitting    RotationState = "submitting"
	RotationConfirmed     RotationState = "confirmed"
	RotationFailed        RotationState = "failed"
)

// RecommendedCredentials is the PDS answer to com.atproto.identity.getRecommendedDidCredentials
type RecommendedCredentials struct {
	RotationKeys        []string              `json:"rotationKeys,omitempty"`
	AlsoKnownAs         []string              `json:"alsoKnownAs,omitempty"`
	VerificationMethods map[string]string     `json:"verificationMethods,omitempty"`
	Services            map[string]PlcService `json:"services,omitempty"`
}

// RotationKeyView is a rotation key annotated for display
type RotationKeyView struct {
	Key      string `json:"key"`
	Index    int    `json:"index"`
	IsLocal  bool   `json:"isLocal"`  // private key stored on this device
	IsPDSKey bool   `json:"isPdsKey"` // key held by the PDS
}

// KeysOverview is the rotation key listing for one account
type KeysOverview struct {
	DID       string             `json:"did"`
	Keys      []*RotationKeyView `json:"keys"`
	CanAddKey bool               `json:"canAddKey"`
	MaxKeys   int                `json:"maxKeys"`
	State     RotationState      `json:"state"`
}

// SignPlcOperationInput is the body of com.atproto.identity.signPlcOperation
type SignPlcOperationInput struct {
	Token        string   `json:"token"`
	RotationKeys []string `json:"rotationKeys,omitempty"`
}
