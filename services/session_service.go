package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// access tokens closer than this to expiry are refreshed up front
const accessTokenLeeway = 30 * time.Second

// SessionService logs in to personal data servers and resumes persisted sessions.
// A session that cannot be resumed is never silently re-created: the caller has to
// log in again.
type SessionService struct {
	pds      *PdsClient
	accounts *AccountService
	validate *validator.Validate

	mu     sync.RWMutex
	active map[string]*types.Session
}

func NewSessionService(pds *PdsClient, accounts *AccountService) *SessionService {
	return &SessionService{
		pds:      pds,
		accounts: accounts,
		validate: validator.New(),
		active:   make(map[string]*types.Session),
	}
}

// Login creates a session with a password. The returned session carries the state
// the caller persists for Resume.
func (s *SessionService) Login(ctx context.Context, endpoint, identifier, password string) (*types.Session, error) {
	body, err := s.pds.CreateSession(ctx, endpoint, identifier, password)
	if err != nil {
		var xrpcErr *XrpcError
		if errors.As(err, &xrpcErr) && isAuthFailure(xrpcErr) {
			return nil, fmt.Errorf("%w: %s", types.ErrAuthentication, xrpcErr.Message)
		}
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
	}
	session, err := s.sessionFromState(endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
	}
	s.remember(session)
	return session, nil
}

// Resume rebuilds a session from persisted state without a password. Tampered or
// stale state fails with types.ErrSessionExpired.
func (s *SessionService) Resume(ctx context.Context, endpoint string, state json.RawMessage) (*types.Session, error) {
	session, err := s.sessionFromState(endpoint, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionExpired, err.Error())
	}

	if !tokenExpired(session.AccessJwt) {
		body, gErr := s.pds.GetSession(ctx, endpoint, session.AccessJwt)
		if gErr == nil {
			var current types.Session
			if uErr := json.Unmarshal(body, &current); uErr != nil || current.DID != session.DID {
				return nil, fmt.Errorf("%w: server answered for another account", types.ErrSessionExpired)
			}
			s.remember(session)
			return session, nil
		}
		var xrpcErr *XrpcError
		if !errors.As(gErr, &xrpcErr) || !isAuthFailure(xrpcErr) {
			return nil, upstreamError(gErr)
		}
	}
	return s.refresh(ctx, session)
}

func (s *SessionService) refresh(ctx context.Context, session *types.Session) (*types.Session, error) {
	if tokenExpired(session.RefreshJwt) {
		return nil, fmt.Errorf("%w: refresh token expired", types.ErrSessionExpired)
	}
	body, err := s.pds.RefreshSession(ctx, session.ServiceURL, session.RefreshJwt)
	if err != nil {
		var xrpcErr *XrpcError
		if errors.As(err, &xrpcErr) && xrpcErr.Status < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", types.ErrSessionExpired, xrpcErr.Error())
		}
		return nil, upstreamError(err)
	}

	merged, err := mergeSessionState(session.State, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionExpired, err.Error())
	}
	refreshed, err := s.sessionFromState(session.ServiceURL, merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionExpired, err.Error())
	}
	if refreshed.DID != session.DID {
		return nil, fmt.Errorf("%w: refreshed session belongs to %s", types.ErrSessionExpired, refreshed.DID)
	}
	s.remember(refreshed)
	return refreshed, nil
}

// ResumeAccount resumes the stored session of an account and persists refreshed state
func (s *SessionService) ResumeAccount(ctx context.Context, did string) (*types.Session, error) {
	account, err := s.accounts.Get(ctx, did)
	if err != nil {
		return nil, err
	}
	if len(account.Session) == 0 {
		return nil, fmt.Errorf("%w: no stored session for %s", types.ErrSessionExpired, did)
	}
	session, err := s.Resume(ctx, account.ServiceURL, account.Session)
	if err != nil {
		if errors.Is(err, types.ErrSessionExpired) {
			s.Forget(did)
		}
		return nil, err
	}
	if string(session.State) != string(account.Session) {
		if uErr := s.accounts.UpdateSession(ctx, did, session.State); uErr != nil {
			return nil, uErr
		}
	}
	return session, nil
}

// Session returns a usable session for did, resuming the stored one when needed
func (s *SessionService) Session(ctx context.Context, did string) (*types.Session, error) {
	s.mu.RLock()
	session, ok := s.active[did]
	s.mu.RUnlock()
	if ok && !tokenExpired(session.AccessJwt) {
		return session, nil
	}
	return s.ResumeAccount(ctx, did)
}

// IsActive reports whether a session for did is held in memory
func (s *SessionService) IsActive(did string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[did]
	return ok
}

// Forget drops the in-memory session of did
func (s *SessionService) Forget(did string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, did)
}

// RefreshStoredSessions resumes every stored session so refresh tokens stay fresh.
// Failures are logged and skipped; it never logs in with a password.
func (s *SessionService) RefreshStoredSessions(ctx context.Context) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		level.Error(global.Logger).Log("msg", "session refresh: failed to list accounts", "err", err)
		return
	}
	for _, account := range accounts {
		if len(account.Session) == 0 {
			continue
		}
		if _, rErr := s.ResumeAccount(ctx, account.DID); rErr != nil {
			level.Warn(global.Logger).Log("msg", "session refresh failed", "did", account.DID, "err", rErr)
		}
	}
}

func (s *SessionService) remember(session *types.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[session.DID] = session
}

// sessionFromState parses and validates session state, dropping the DID document
// the server may include
func (s *SessionService) sessionFromState(endpoint string, state []byte) (*types.Session, error) {
	stripped, err := stripDidDoc(state)
	if err != nil {
		return nil, err
	}
	var session types.Session
	if uErr := json.Unmarshal(stripped, &session); uErr != nil {
		return nil, uErr
	}
	if vErr := s.validate.Struct(session); vErr != nil {
		return nil, vErr
	}
	session.ServiceURL = util.TrimServiceURL(endpoint)
	session.State = stripped
	return &session, nil
}

func stripDidDoc(state []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(state, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("empty session state")
	}
	if _, ok := fields["didDoc"]; !ok {
		return json.RawMessage(state), nil
	}
	delete(fields, "didDoc")
	return json.Marshal(fields)
}

// mergeSessionState overlays the refreshSession answer on the stored state, keeping
// fields the refresh does not return
func mergeSessionState(state json.RawMessage, refreshed []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(state, &fields); err != nil {
		return nil, err
	}
	var update map[string]json.RawMessage
	if err := json.Unmarshal(refreshed, &update); err != nil {
		return nil, err
	}
	for k, v := range update {
		if k == "didDoc" {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

func isAuthFailure(e *XrpcError) bool {
	switch e.Name {
	case "AuthenticationRequired", "AuthFactorTokenRequired", "InvalidToken", "ExpiredToken":
		return true
	}
	return e.Status == http.StatusUnauthorized
}

// upstreamError marks server side and transport failures of the PDS as retryable
func upstreamError(err error) error {
	var xrpcErr *XrpcError
	if errors.As(err, &xrpcErr) && xrpcErr.Status < http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
	}
	return fmt.Errorf("%w: %s", types.ErrUpstreamUnavailable, err.Error())
}

// tokenExpired reads the exp claim without verifying the signature. Tokens that
// do not parse are treated as expired.
func tokenExpired(token string) bool {
	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return true
	}
	exp := tok.Expiration()
	if exp.IsZero() {
		return false
	}
	return time.Now().Add(accessTokenLeeway).After(exp)
}
