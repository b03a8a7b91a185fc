package services

import (
	"context"
	"testing"

	"github.com/demesne/go-demesne-server/types"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHandleToIdentity(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", publicURL+"/xrpc/com.atproto.identity.resolveHandle?handle=alice.example.com",
		httpmock.NewStringResponder(200, `{"did":"did:plc:abc123"}`))
	httpmock.RegisterResponder("GET", plcURL+"/did:plc:abc123/data",
		httpmock.NewStringResponder(200, plcDataJSON(testDID, []string{"did:key:zA", "did:key:zB"}, true)))

	identity, err := newTestResolver(rc).Resolve(context.Background(), "  alice.example.com ")
	require.NoError(t, err)
	assert.Equal(t, testDID, identity.DID)
	assert.Equal(t, pdsURL, identity.PDS)
	assert.Equal(t, testHandle, identity.Handle)
	assert.Equal(t, []string{"did:key:zA", "did:key:zB"}, identity.RotationKeys)
}

func TestResolveDIDSkipsHandleLookup(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", plcURL+"/did:plc:abc123/data",
		httpmock.NewStringResponder(200, plcDataJSON(testDID, []string{"did:key:zA"}, true)))

	identity, err := newTestResolver(rc).Resolve(context.Background(), testDID)
	require.NoError(t, err)
	assert.Equal(t, testDID, identity.DID)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestResolveUnsupportedMethodWithoutNetwork(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	for _, id := range []string{"did:web:example.com", "did:key:zQ3sh", "did:plc:"} {
		_, err := newTestResolver(rc).Resolve(context.Background(), id)
		assert.ErrorIs(t, err, types.ErrUnsupportedMethod, id)
	}
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestResolveRejectsNonHandle(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	_, err := newTestResolver(rc).Resolve(context.Background(), "not a handle")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.ErrorIs(t, err, types.ErrResolution)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestResolveUnknownHandle(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", publicURL+"/xrpc/com.atproto.identity.resolveHandle?handle=nobody.example.com",
		httpmock.NewStringResponder(400, `{"error":"InvalidRequest","message":"Unable to resolve handle"}`))

	_, err := newTestResolver(rc).Resolve(context.Background(), "nobody.example.com")
	assert.ErrorIs(t, err, types.ErrResolution)
}

func TestResolveUnknownDID(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", plcURL+"/did:plc:missing/data",
		httpmock.NewStringResponder(404, `{"message":"DID not registered: did:plc:missing"}`))

	_, err := newTestResolver(rc).Resolve(context.Background(), "did:plc:missing")
	assert.ErrorIs(t, err, types.ErrResolution)
}

func TestResolveWithoutPDS(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", plcURL+"/did:plc:abc123/data",
		httpmock.NewStringResponder(200, plcDataJSON(testDID, []string{"did:key:zA"}, false)))

	_, err := newTestResolver(rc).Resolve(context.Background(), testDID)
	assert.ErrorIs(t, err, types.ErrNoServiceEndpoint)
}

func TestResolveMalformedDirectoryData(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", plcURL+"/did:plc:abc123/data",
		httpmock.NewStringResponder(200, `{"did":"did:plc:abc123","alsoKnownAs":[]}`))

	_, err := newTestResolver(rc).Resolve(context.Background(), testDID)
	assert.ErrorIs(t, err, types.ErrInvalidResponse)
}

func TestInvalidateWithoutCache(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()
	// no redis configured: a no-op
	newTestResolver(rc).Invalidate(context.Background(), testDID)
}
