package types

import "errors"

var (
	// ErrResolution is returned when a handle or DID cannot be mapped to an identity
	ErrResolution = errors.New("identity could not be resolved")

	// ErrUnsupportedMethod is returned for any DID method other than did:plc
	ErrUnsupportedMethod = errors.New("unsupported DID method")

	// ErrNoServiceEndpoint is returned when the PLC data has no personal data server
	ErrNoServiceEndpoint = errors.New("found DID document, but it had no associated PDS")

	// ErrAuthentication is returned when the PDS rejects the credentials
	ErrAuthentication = errors.New("invalid identifier or password")

	// ErrSessionExpired is returned when a persisted session can no longer be resumed
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidToken is returned when the one-time PLC operation token is rejected
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrSubmission is returned when a signed operation could not be published
	ErrSubmission = errors.New("failed to submit operation")

	// ErrKeyNotFound is returned by the secure store when no key is held under the identifier
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorage (local persistence failure)
	ErrStorage = errors.New("storage failure")

	// ErrLocalAuthentication is returned when the keystore gate refuses to release a key
	ErrLocalAuthentication = errors.New("local authentication failed")

	// ErrInvalidInput is returned when the caller supplied malformed input
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooManyRotationKeys is returned when the rotation key list is already at capacity
	ErrTooManyRotationKeys = errors.New("rotation key limit reached")

	// ErrInvalidResponse is returned when an upstream response fails validation
	ErrInvalidResponse = errors.New("invalid upstream response")

	// ErrNotFound is returned when the resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the resource conflicts (e.g. update of old revision)
	ErrConflict = errors.New("conflict")

	// ErrBadRequest
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidPublicKey is returned when a did:key cannot be decoded
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when stored key bytes are not a secp256k1 scalar
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrRetrievalDisabled is returned when private keys are requested but no keystore gate is configured
	ErrRetrievalDisabled = errors.New("private key retrieval requires keystore authentication")

	// ErrPrecondition is returned when an operation runs out of order or lacks configuration
	ErrPrecondition = errors.New("precondition failed")

	// ErrUpstreamUnavailable is returned when a PDS or the directory fails with a 5xx or cannot be reached
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrNotRecorded is returned when an operation was published but the local account could not record it
	ErrNotRecorded = errors.New("published but not recorded locally")
)
