package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/metrics"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
)

const (
	plcPrefix           = "did:plc:"
	identityCachePrefix = "demesne:identity:"
)

type resolveHandleOutput struct {
	DID string `json:"did"`
}

// IdentityResolverService maps handles and did:plc identifiers to identities.
// Lookups are read-only and go through the shared request queue.
type IdentityResolverService struct {
	restyClient  *resty.Client
	plc          *PlcClient
	publicApiURL string
	queue        *queue.RequestQueue
	env          *types.Environment
	cacheTTL     time.Duration
	validate     *validator.Validate
}

func NewIdentityResolverService(restyClient *resty.Client, plc *PlcClient, rq *queue.RequestQueue, env *types.Environment) *IdentityResolverService {
	return &IdentityResolverService{
		restyClient:  restyClient,
		plc:          plc,
		publicApiURL: util.TrimServiceURL(global.Conf.Demesne.PublicApiURL),
		queue:        rq,
		env:          env,
		cacheTTL:     time.Duration(global.Conf.Demesne.IdentityCacheSeconds) * time.Second,
		validate:     validator.New(),
	}
}

// ResolveDID turns an identifier into a did:plc without fetching the identity data.
// Other DID methods fail with types.ErrUnsupportedMethod before any network call.
func (s *IdentityResolverService) ResolveDID(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.HasPrefix(identifier, "did:") {
		if !strings.HasPrefix(identifier, plcPrefix) || len(identifier) == len(plcPrefix) {
			return "", fmt.Errorf("%w: %s", types.ErrUnsupportedMethod, util.DIDMethod(identifier))
		}
		return identifier, nil
	}
	if !util.IsProbablyHandle(identifier) {
		return "", fmt.Errorf("%w: %w: %q is neither a handle nor a DID", types.ErrResolution, types.ErrInvalidInput, identifier)
	}
	did, err := s.ResolveHandle(ctx, identifier)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(did, plcPrefix) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedMethod, util.DIDMethod(did))
	}
	return did, nil
}

// Resolve returns the identity behind a handle or did:plc
func (s *IdentityResolverService) Resolve(ctx context.Context, identifier string) (*types.Identity, error) {
	did, err := s.ResolveDID(ctx, identifier)
	if err != nil {
		metrics.IdentityResolutions.WithLabelValues("error").Inc()
		return nil, err
	}

	if cached := s.getFromCache(ctx, did); cached != nil {
		metrics.IdentityResolutions.WithLabelValues("cache").Inc()
		return cached, nil
	}

	data, err := queue.Run(ctx, s.queue, func(ctx context.Context) (*types.PlcData, error) {
		return s.plc.GetData(ctx, did)
	})
	if err != nil {
		metrics.IdentityResolutions.WithLabelValues("error").Inc()
		return nil, err
	}

	pds, ok := data.Services[types.AtprotoPDSServiceID]
	if !ok || pds.Endpoint == "" {
		metrics.IdentityResolutions.WithLabelValues("error").Inc()
		return nil, types.ErrNoServiceEndpoint
	}

	identity := types.NewIdentity(data, pds.Endpoint)
	s.saveToCache(ctx, identity)
	metrics.IdentityResolutions.WithLabelValues("ok").Inc()
	return identity, nil
}

// ResolveHandle maps a handle to its DID using the public AppView
func (s *IdentityResolverService) ResolveHandle(ctx context.Context, handle string) (string, error) {
	return queue.Run(ctx, s.queue, func(ctx context.Context) (string, error) {
		resp, err := s.restyClient.R().
			SetContext(ctx).
			SetQueryParam("handle", handle).
			Get(xrpcURL(s.publicApiURL, "com.atproto.identity.resolveHandle"))
		if err != nil {
			return "", fmt.Errorf("%w: %s", types.ErrInvalidResponse, err.Error())
		}
		if xErr := parseXrpcError(resp); xErr != nil {
			var xrpcErr *XrpcError
			if errors.As(xErr, &xrpcErr) && (xrpcErr.Status == http.StatusBadRequest || xrpcErr.Status == http.StatusNotFound) {
				return "", fmt.Errorf("%w: %s: %s", types.ErrResolution, handle, xrpcErr.Message)
			}
			return "", fmt.Errorf("%w: %s", types.ErrInvalidResponse, xErr.Error())
		}
		var out resolveHandleOutput
		if uErr := json.Unmarshal(resp.Body(), &out); uErr != nil {
			return "", fmt.Errorf("%w: %s", types.ErrInvalidResponse, uErr.Error())
		}
		if out.DID == "" {
			return "", fmt.Errorf("%w: %s has no DID", types.ErrResolution, handle)
		}
		return out.DID, nil
	})
}

// Invalidate drops the cached identity so the next Resolve reads the directory
func (s *IdentityResolverService) Invalidate(ctx context.Context, did string) {
	if s.env == nil || s.env.RedisClient == nil {
		return
	}
	if err := s.env.RedisClient.Del(ctx, identityCachePrefix+did).Err(); err != nil {
		level.Warn(global.Logger).Log("msg", "failed to invalidate identity cache", "did", did, "err", err)
	}
}

func (s *IdentityResolverService) getFromCache(ctx context.Context, did string) *types.Identity {
	if s.env == nil || s.env.RedisClient == nil || s.cacheTTL <= 0 {
		return nil
	}
	val, cErr := s.env.RedisClient.Get(ctx, identityCachePrefix+did).Result()
	if cErr != nil {
		if !errors.Is(cErr, redis.Nil) {
			level.Warn(global.Logger).Log("msg", "identity cache read failed", "did", did, "err", cErr)
		}
		return nil
	}
	var identity types.Identity
	if err := json.Unmarshal([]byte(val), &identity); err != nil {
		level.Warn(global.Logger).Log("msg", "identity cache unmarshal failed", "did", did, "err", err)
		return nil
	}
	if identity.DID != did {
		return nil
	}
	return &identity
}

func (s *IdentityResolverService) saveToCache(ctx context.Context, identity *types.Identity) {
	if s.env == nil || s.env.RedisClient == nil || s.cacheTTL <= 0 {
		return
	}
	encoded, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if cErr := s.env.RedisClient.Set(ctx, identityCachePrefix+identity.DID, encoded, s.cacheTTL).Err(); cErr != nil {
		level.Warn(global.Logger).Log("msg", "identity cache write failed", "did", identity.DID, "err", cErr)
	}
}
