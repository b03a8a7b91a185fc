package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfilesChunksRequests(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", publicURL+"/xrpc/app.bsky.actor.getProfiles",
		func(req *http.Request) (*http.Response, error) {
			actors := req.URL.Query()["actors"]
			if len(actors) > 25 {
				return httpmock.NewStringResponse(400, `{"error":"InvalidRequest"}`), nil
			}
			profiles := make([]*types.Profile, 0, len(actors))
			for _, a := range actors {
				profiles = append(profiles, &types.Profile{DID: a, Handle: a + ".test"})
			}
			return httpmock.NewJsonResponse(200, map[string]interface{}{"profiles": profiles})
		})

	actors := make([]string, 30)
	for i := range actors {
		actors[i] = fmt.Sprintf("did:plc:user%d", i)
	}
	profiles, err := NewProfileService(rc, queue.NewRequestQueue(5)).GetProfiles(context.Background(), actors)
	require.NoError(t, err)
	assert.Len(t, profiles, 30)
	assert.Equal(t, "did:plc:user29", profiles[29].DID)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestGetProfilesUpstreamFailure(t *testing.T) {
	rc := newMockResty()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("GET", publicURL+"/xrpc/app.bsky.actor.getProfiles",
		httpmock.NewStringResponder(500, `{"error":"InternalServerError"}`))

	_, err := NewProfileService(rc, queue.NewRequestQueue(5)).GetProfiles(context.Background(), []string{testDID})
	assert.ErrorIs(t, err, types.ErrInvalidResponse)
}
