package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/metrics"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-kit/log/level"
)

// RotationService adds rotation keys to did:plc identities: a fresh local key is
// prepended to the rotation key list, the PDS signs the operation with the emailed
// token and the signed operation is published. Nothing is retried automatically.
type RotationService struct {
	pds      *PdsClient
	sessions *SessionService
	keys     *KeyMaterialService
	accounts *AccountService
	resolver *IdentityResolverService
	maxKeys  int

	mu     sync.Mutex
	states map[string]types.RotationState
}

func NewRotationService(pds *PdsClient, sessions *SessionService, keys *KeyMaterialService, accounts *AccountService, resolver *IdentityResolverService) *RotationService {
	return &RotationService{
		pds:      pds,
		sessions: sessions,
		keys:     keys,
		accounts: accounts,
		resolver: resolver,
		maxKeys:  global.Conf.Demesne.MaxRotationKeys,
		states:   make(map[string]types.RotationState),
	}
}

// State returns where the add-key flow of did currently is
func (s *RotationService) State(did string) types.RotationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[did]; ok {
		return st
	}
	return types.RotationIdle
}

func (s *RotationService) setState(did string, state types.RotationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[did] = state
}

// acceptsToken reports whether a token was requested for did. A failed attempt
// may be retried with the same or a newly emailed token.
func (s *RotationService) acceptsToken(did string) bool {
	switch s.State(did) {
	case types.RotationAwaitingToken, types.RotationFailed:
		return true
	}
	return false
}

// CanAddKey reports whether the rotation key list has room for another key
func (s *RotationService) CanAddKey(identity *types.Identity) bool {
	return len(identity.RotationKeys) < s.maxKeys
}

// RequestToken asks the PDS to email the one-time operation token
func (s *RotationService) RequestToken(ctx context.Context, did string) error {
	session, err := s.sessions.Session(ctx, did)
	if err != nil {
		return err
	}
	if err := s.pds.RequestPlcOperationSignature(ctx, session.ServiceURL, session.AccessJwt); err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
	}
	s.setState(did, types.RotationAwaitingToken)
	return nil
}

// RecommendedCredentials returns what the PDS would put into the identity
func (s *RotationService) RecommendedCredentials(ctx context.Context, did string) (*types.RecommendedCredentials, error) {
	session, err := s.sessions.Session(ctx, did)
	if err != nil {
		return nil, err
	}
	creds, err := s.pds.GetRecommendedDidCredentials(ctx, session.ServiceURL, session.AccessJwt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
	}
	return creds, nil
}

// AddRotationKey publishes a new locally held rotation key and returns its did:key.
// The capacity check runs before any network call.
func (s *RotationService) AddRotationKey(ctx context.Context, identity *types.Identity, token string) (string, error) {
	if !s.CanAddKey(identity) {
		metrics.RotationFailures.WithLabelValues("capacity").Inc()
		return "", fmt.Errorf("%w: %d of %d", types.ErrTooManyRotationKeys, len(identity.RotationKeys), s.maxKeys)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: token is required", types.ErrInvalidInput)
	}
	did := identity.DID
	if !s.acceptsToken(did) {
		return "", fmt.Errorf("%w: no operation token was requested for %s", types.ErrPrecondition, did)
	}
	s.setState(did, types.RotationTokenEntered)
	start := time.Now()

	session, err := s.sessions.Session(ctx, did)
	if err != nil {
		s.fail(did, "session")
		return "", err
	}

	key, err := s.keys.GenerateKey()
	if err != nil {
		s.fail(did, "keygen")
		return "", err
	}
	if err := s.keys.Store(ctx, key); err != nil {
		s.fail(did, "storage")
		return "", err
	}

	rotationKeys := append([]string{key.PublicIdentifier}, identity.RotationKeys...)
	operation, err := s.pds.SignPlcOperation(ctx, session.ServiceURL, session.AccessJwt, &types.SignPlcOperationInput{
		Token:        token,
		RotationKeys: rotationKeys,
	})
	if err != nil {
		// nothing was signed, the key can never be published
		if dErr := s.keys.Delete(ctx, key.PublicIdentifier); dErr != nil {
			level.Warn(global.Logger).Log("msg", "failed to discard unused rotation key", "did", did, "err", dErr)
		}
		var xrpcErr *XrpcError
		if errors.As(err, &xrpcErr) && (xrpcErr.IsTokenError() || isTokenMessage(xrpcErr.Message)) {
			s.fail(did, "token")
			return "", fmt.Errorf("%w: %s", types.ErrInvalidToken, xrpcErr.Message)
		}
		s.fail(did, "submission")
		return "", fmt.Errorf("%w: %s", types.ErrSubmission, err.Error())
	}

	s.setState(did, types.RotationSubmitting)
	if err := s.pds.SubmitPlcOperation(ctx, session.ServiceURL, session.AccessJwt, operation); err != nil {
		// the private key is kept: a timed out submission may still have been published
		s.fail(did, "submission")
		level.Error(global.Logger).Log("msg", "rotation operation submission failed", "did", did, "key", key.PublicIdentifier, "err", err)
		return "", fmt.Errorf("%w: %s", types.ErrSubmission, err.Error())
	}

	s.setState(did, types.RotationConfirmed)
	s.resolver.Invalidate(ctx, did)
	metrics.RotationKeysAddedMetricsCount.Inc()
	metrics.RotationProcessingLatency.Observe(float64(time.Since(start).Milliseconds()))

	if err := s.accounts.AddLocalKey(ctx, did, key.PublicIdentifier); err != nil {
		level.Error(global.Logger).Log("msg", "rotation key published but not recorded locally", "did", did, "key", key.PublicIdentifier, "err", err)
		return key.PublicIdentifier, fmt.Errorf("%w: %s", types.ErrNotRecorded, err.Error())
	}
	return key.PublicIdentifier, nil
}

// ListKeys annotates the current rotation keys with where their private halves live
func (s *RotationService) ListKeys(ctx context.Context, did string) (*types.KeysOverview, error) {
	identity, err := s.resolver.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Get(ctx, did)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	var pdsKeys []string
	if account != nil {
		creds, cErr := s.RecommendedCredentials(ctx, did)
		if cErr != nil {
			level.Debug(global.Logger).Log("msg", "recommended credentials unavailable", "did", did, "err", cErr)
		} else {
			pdsKeys = creds.RotationKeys
		}
	}

	overview := &types.KeysOverview{
		DID:       did,
		Keys:      BuildKeyViews(identity.RotationKeys, account, pdsKeys),
		CanAddKey: s.CanAddKey(identity),
		MaxKeys:   s.maxKeys,
		State:     s.State(did),
	}
	return overview, nil
}

// BuildKeyViews marks which rotation keys are held locally and which belong to the PDS
func BuildKeyViews(rotationKeys []string, account *types.Account, pdsKeys []string) []*types.RotationKeyView {
	views := make([]*types.RotationKeyView, 0, len(rotationKeys))
	for i, k := range rotationKeys {
		views = append(views, &types.RotationKeyView{
			Key:      k,
			Index:    i,
			IsLocal:  account != nil && account.HasLocalKey(k),
			IsPDSKey: slices.Contains(pdsKeys, k),
		})
	}
	return views
}

func (s *RotationService) fail(did string, reason string) {
	s.setState(did, types.RotationFailed)
	metrics.RotationFailures.WithLabelValues(reason).Inc()
}

// some servers answer a consumed token with a generic InvalidRequest
func isTokenMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "token") && (strings.Contains(m, "invalid") || strings.Contains(m, "expired"))
}
