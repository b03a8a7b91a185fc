package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-resty/resty/v2"
)

// app.bsky.actor.getProfiles accepts at most 25 actors per call
const maxProfilesPerRequest = 25

type getProfilesOutput struct {
	Profiles []*types.Profile `json:"profiles"`
}

// ProfileService looks up public profiles of accounts on the AppView
type ProfileService struct {
	restyClient  *resty.Client
	publicApiURL string
	queue        *queue.RequestQueue
}

func NewProfileService(restyClient *resty.Client, rq *queue.RequestQueue) *ProfileService {
	return &ProfileService{
		restyClient:  restyClient,
		publicApiURL: util.TrimServiceURL(global.Conf.Demesne.PublicApiURL),
		queue:        rq,
	}
}

// GetProfiles returns the profiles of actors (DIDs or handles) in request order.
// Unknown actors are left out.
func (s *ProfileService) GetProfiles(ctx context.Context, actors []string) ([]*types.Profile, error) {
	out := make([]*types.Profile, 0, len(actors))
	for _, chunk := range util.Chunk(actors, maxProfilesPerRequest) {
		profiles, err := queue.Run(ctx, s.queue, func(ctx context.Context) ([]*types.Profile, error) {
			resp, err := s.restyClient.R().
				SetContext(ctx).
				SetQueryParamsFromValues(url.Values{"actors": chunk}).
				Get(xrpcURL(s.publicApiURL, "app.bsky.actor.getProfiles"))
			if err != nil {
				return nil, err
			}
			if xErr := parseXrpcError(resp); xErr != nil {
				return nil, xErr
			}
			var result getProfilesOutput
			if uErr := json.Unmarshal(resp.Body(), &result); uErr != nil {
				return nil, uErr
			}
			return result.Profiles, nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
		}
		out = append(out, profiles...)
	}
	return out, nil
}
