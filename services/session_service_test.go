package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/demesne/go-demesne-server/types"
	"github.com/jarcoal/httpmock"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService(t *testing.T) (*SessionService, *AccountService) {
	rc := newMockResty()
	t.Cleanup(httpmock.DeactivateAndReset)
	accounts, _ := newTestAccountService(t)
	return NewSessionService(NewPdsClient(rc), accounts), accounts
}

func TestLoginReturnsSessionForResolvedDID(t *testing.T) {
	sessions, _ := newTestSessionService(t)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sessionJSON(t, time.Now().Add(time.Hour))), &body))
	body["didDoc"] = map[string]interface{}{"id": testDID}
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.createSession",
		func(req *http.Request) (*http.Response, error) {
			var in map[string]string
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				return httpmock.NewStringResponse(400, ""), nil
			}
			if in["identifier"] != testHandle || in["password"] != "app-password" {
				return httpmock.NewStringResponse(401, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`), nil
			}
			return httpmock.NewJsonResponse(200, body)
		})

	session, err := sessions.Login(context.Background(), pdsURL+"/", testHandle, "app-password")
	require.NoError(t, err)
	assert.Equal(t, testDID, session.DID)
	assert.Equal(t, pdsURL, session.ServiceURL)
	assert.NotContains(t, string(session.State), "didDoc")
	assert.Contains(t, string(session.State), "alice@example.com")

	_, err = sessions.Login(context.Background(), pdsURL, testHandle, "wrong")
	assert.ErrorIs(t, err, types.ErrAuthentication)
}

func TestLoginAuthFactorRequired(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.createSession",
		httpmock.NewStringResponder(401, `{"error":"AuthFactorTokenRequired","message":"A sign in code has been sent"}`))

	_, err := sessions.Login(context.Background(), pdsURL, testHandle, "pw")
	assert.ErrorIs(t, err, types.ErrAuthentication)
}

func TestResumeTamperedStateFails(t *testing.T) {
	sessions, _ := newTestSessionService(t)

	for _, state := range []string{
		`garbage`,
		`null`,
		`{"did":"did:plc:abc123"}`,
		`{"did":"did:plc:abc123","accessJwt":"","refreshJwt":""}`,
	} {
		_, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
		assert.ErrorIs(t, err, types.ErrSessionExpired, state)
	}
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestResumeValidSession(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("GET", pdsURL+"/xrpc/com.atproto.server.getSession",
		httpmock.NewStringResponder(200, `{"did":"did:plc:abc123","handle":"alice.example.com"}`))

	session, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	require.NoError(t, err)
	assert.Equal(t, testDID, session.DID)
	assert.JSONEq(t, state, string(session.State))
}

func TestResumeRefreshesExpiredAccessToken(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(-time.Minute))
	newAccess := makeJwt(t, time.Now().Add(2*time.Hour))
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.refreshSession",
		httpmock.NewStringResponder(200, `{"did":"did:plc:abc123","handle":"alice.example.com","accessJwt":"`+newAccess+`","refreshJwt":"`+makeJwt(t, time.Now().Add(48*time.Hour))+`"}`))

	session, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	require.NoError(t, err)
	assert.Equal(t, newAccess, session.AccessJwt)
	// fields the refresh does not return survive
	assert.Equal(t, "alice@example.com", session.Email)
	assert.Equal(t, 0, httpmock.GetCallCountInfo()["GET "+pdsURL+"/xrpc/com.atproto.server.getSession"])
}

func TestResumeRefreshRejected(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(-time.Minute))
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.refreshSession",
		httpmock.NewStringResponder(400, `{"error":"ExpiredToken","message":"Token has been revoked"}`))

	_, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	assert.ErrorIs(t, err, types.ErrSessionExpired)
}

func TestResumeRevokedAccessTokenFallsBackToRefresh(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("GET", pdsURL+"/xrpc/com.atproto.server.getSession",
		httpmock.NewStringResponder(401, `{"error":"InvalidToken","message":"Token could not be verified"}`))
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.refreshSession",
		httpmock.NewStringResponder(401, `{"error":"InvalidToken"}`))

	_, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	assert.ErrorIs(t, err, types.ErrSessionExpired)
}

func TestResumeDIDMismatch(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("GET", pdsURL+"/xrpc/com.atproto.server.getSession",
		httpmock.NewStringResponder(200, `{"did":"did:plc:someoneelse","handle":"bob.test"}`))

	_, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	assert.ErrorIs(t, err, types.ErrSessionExpired)
}

func TestResumeAccountPersistsRefreshedState(t *testing.T) {
	sessions, accounts := newTestSessionService(t)
	ctx := context.Background()
	state := sessionJSON(t, time.Now().Add(-time.Minute))
	require.NoError(t, accounts.UpsertSession(ctx, testDID, pdsURL, json.RawMessage(state)))

	newAccess := makeJwt(t, time.Now().Add(2*time.Hour))
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.refreshSession",
		httpmock.NewStringResponder(200, `{"did":"did:plc:abc123","accessJwt":"`+newAccess+`","refreshJwt":"`+makeJwt(t, time.Now().Add(48*time.Hour))+`"}`))

	session, err := sessions.Session(ctx, testDID)
	require.NoError(t, err)
	assert.Equal(t, newAccess, session.AccessJwt)

	account, err := accounts.Get(ctx, testDID)
	require.NoError(t, err)
	assert.Contains(t, string(account.Session), newAccess)

	// served from memory now
	_, err = sessions.Session(ctx, testDID)
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestResumeAccountWithoutSession(t *testing.T) {
	sessions, accounts := newTestSessionService(t)
	ctx := context.Background()

	_, err := sessions.ResumeAccount(ctx, testDID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, accounts.UpsertSession(ctx, testDID, pdsURL, nil))
	_, err = sessions.ResumeAccount(ctx, testDID)
	assert.ErrorIs(t, err, types.ErrSessionExpired)
}

func TestRefreshStoredSessionsSkipsFailures(t *testing.T) {
	sessions, accounts := newTestSessionService(t)
	ctx := context.Background()
	require.NoError(t, accounts.UpsertSession(ctx, testDID, pdsURL, json.RawMessage(`{"did":"did:plc:abc123"}`)))
	require.NoError(t, accounts.UpsertSession(ctx, "did:plc:nosession", pdsURL, nil))

	sessions.RefreshStoredSessions(ctx)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
	assert.Equal(t, 0, httpmock.GetCallCountInfo()["POST "+pdsURL+"/xrpc/com.atproto.server.createSession"])
}

func TestTokenExpired(t *testing.T) {
	noExpiry := jwt.New()
	require.NoError(t, noExpiry.Set(jwt.SubjectKey, testDID))
	signedNoExpiry, err := jwt.Sign(noExpiry, jwt.WithKey(jwa.HS256, []byte("test-secret")))
	require.NoError(t, err)

	cases := []struct {
		name    string
		token   string
		expired bool
	}{
		{"valid for an hour", makeJwt(t, time.Now().Add(time.Hour)), false},
		{"valid for a day", makeJwt(t, time.Now().Add(24*time.Hour)), false},
		{"without exp claim", string(signedNoExpiry), false},
		{"expired an hour ago", makeJwt(t, time.Now().Add(-time.Hour)), true},
		{"inside the refresh leeway", makeJwt(t, time.Now().Add(10*time.Second)), true},
		{"malformed", "not-a-jwt", true},
		{"empty", "", true},
		{"truncated", strings.Join(strings.Split(makeJwt(t, time.Now().Add(time.Hour)), ".")[:2], "."), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expired, tokenExpired(tc.token))
		})
	}
}

func TestResumeUpstreamFailureIsRetryable(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("GET", pdsURL+"/xrpc/com.atproto.server.getSession",
		httpmock.NewStringResponder(503, `{"error":"ServiceUnavailable"}`))

	_, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, types.ErrSessionExpired)
	assert.Equal(t, 0, httpmock.GetCallCountInfo()["POST "+pdsURL+"/xrpc/com.atproto.server.refreshSession"])
}

func TestRefreshUpstreamFailureIsRetryable(t *testing.T) {
	sessions, accounts := newTestSessionService(t)
	ctx := context.Background()
	state := sessionJSON(t, time.Now().Add(-time.Minute))
	require.NoError(t, accounts.UpsertSession(ctx, testDID, pdsURL, json.RawMessage(state)))
	httpmock.RegisterResponder("POST", pdsURL+"/xrpc/com.atproto.server.refreshSession",
		httpmock.NewStringResponder(503, `{"error":"ServiceUnavailable"}`))

	_, err := sessions.ResumeAccount(ctx, testDID)
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)

	// the stored session survives a transient failure
	account, aErr := accounts.Get(ctx, testDID)
	require.NoError(t, aErr)
	assert.JSONEq(t, state, string(account.Session))
}

func TestResumeNetworkFailureIsRetryable(t *testing.T) {
	sessions, _ := newTestSessionService(t)
	state := sessionJSON(t, time.Now().Add(time.Hour))
	httpmock.RegisterResponder("GET", pdsURL+"/xrpc/com.atproto.server.getSession",
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	_, err := sessions.Resume(context.Background(), pdsURL, json.RawMessage(state))
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}
