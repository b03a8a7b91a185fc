package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/demesne/go-demesne-server/types"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
)

// PdsClient calls XRPC methods on a personal data server. The service URL is
// passed per call since every identity may live on a different server.
type PdsClient struct {
	restyClient *resty.Client
	validate    *validator.Validate
}

func NewPdsClient(restyClient *resty.Client) *PdsClient {
	return &PdsClient{restyClient: restyClient, validate: validator.New()}
}

func (p *PdsClient) request(ctx context.Context, bearer string) *resty.Request {
	req := p.restyClient.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if bearer != "" {
		req.SetAuthToken(bearer)
	}
	return req
}

// CreateSession returns the raw com.atproto.server.createSession response
func (p *PdsClient) CreateSession(ctx context.Context, serviceURL, identifier, password string) ([]byte, error) {
	resp, err := p.request(ctx, "").
		SetBody(map[string]string{"identifier": identifier, "password": password}).
		Post(xrpcURL(serviceURL, "com.atproto.server.createSession"))
	if err != nil {
		return nil, err
	}
	if xErr := parseXrpcError(resp); xErr != nil {
		return nil, xErr
	}
	return resp.Body(), nil
}

// GetSession returns the raw com.atproto.server.getSession response
func (p *PdsClient) GetSession(ctx context.Context, serviceURL, accessJwt string) ([]byte, error) {
	resp, err := p.request(ctx, accessJwt).Get(xrpcURL(serviceURL, "com.atproto.server.getSession"))
	if err != nil {
		return nil, err
	}
	if xErr := parseXrpcError(resp); xErr != nil {
		return nil, xErr
	}
	return resp.Body(), nil
}

// RefreshSession exchanges the refresh token (sent as bearer) for a new token pair
func (p *PdsClient) RefreshSession(ctx context.Context, serviceURL, refreshJwt string) ([]byte, error) {
	resp, err := p.request(ctx, refreshJwt).Post(xrpcURL(serviceURL, "com.atproto.server.refreshSession"))
	if err != nil {
		return nil, err
	}
	if xErr := parseXrpcError(resp); xErr != nil {
		return nil, xErr
	}
	return resp.Body(), nil
}

func (p *PdsClient) GetRecommendedDidCredentials(ctx context.Context, serviceURL, accessJwt string) (*types.RecommendedCredentials, error) {
	resp, err := p.request(ctx, accessJwt).
		Get(xrpcURL(serviceURL, "com.atproto.identity.getRecommendedDidCredentials"))
	if err != nil {
		return nil, err
	}
	if xErr := parseXrpcError(resp); xErr != nil {
		return nil, xErr
	}
	var creds types.RecommendedCredentials
	if uErr := json.Unmarshal(resp.Body(), &creds); uErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, uErr.Error())
	}
	return &creds, nil
}

// RequestPlcOperationSignature asks the server to email a one-time token to the account holder
func (p *PdsClient) RequestPlcOperationSignature(ctx context.Context, serviceURL, accessJwt string) error {
	resp, err := p.request(ctx, accessJwt).Post(xrpcURL(serviceURL, "com.atproto.identity.requestPlcOperationSignature"))
	if err != nil {
		return err
	}
	return parseXrpcError(resp)
}

type signPlcOperationOutput struct {
	Operation json.RawMessage `json:"operation" validate:"required"`
}

// SignPlcOperation has the server sign an operation with its rotation key. The
// returned operation is passed unchanged to SubmitPlcOperation.
func (p *PdsClient) SignPlcOperation(ctx context.Context, serviceURL, accessJwt string, input *types.SignPlcOperationInput) (json.RawMessage, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: operation input is required", types.ErrInvalidInput)
	}
	resp, err := p.request(ctx, accessJwt).
		SetBody(input).
		Post(xrpcURL(serviceURL, "com.atproto.identity.signPlcOperation"))
	if err != nil {
		return nil, err
	}
	if xErr := parseXrpcError(resp); xErr != nil {
		return nil, xErr
	}
	var out signPlcOperationOutput
	if uErr := json.Unmarshal(resp.Body(), &out); uErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, uErr.Error())
	}
	if vErr := p.validate.Struct(out); vErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, vErr.Error())
	}
	return out.Operation, nil
}

// SubmitPlcOperation publishes a signed operation to the directory through the PDS
func (p *PdsClient) SubmitPlcOperation(ctx context.Context, serviceURL, accessJwt string, operation json.RawMessage) error {
	resp, err := p.request(ctx, accessJwt).
		SetBody(map[string]json.RawMessage{"operation": operation}).
		Post(xrpcURL(serviceURL, "com.atproto.identity.submitPlcOperation"))
	if err != nil {
		return err
	}
	return parseXrpcError(resp)
}

// GetRepo streams the CAR export of the repository. The caller closes the reader.
func (p *PdsClient) GetRepo(ctx context.Context, serviceURL, accessJwt, did string) (io.ReadCloser, error) {
	resp, err := p.request(ctx, accessJwt).
		SetHeader("Accept", "application/vnd.ipld.car").
		SetQueryParam("did", did).
		SetDoNotParseResponse(true).
		Get(xrpcURL(serviceURL, "com.atproto.sync.getRepo"))
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		xerr := &XrpcError{Status: resp.StatusCode()}
		if uErr := json.NewDecoder(body).Decode(xerr); uErr != nil || xerr.Name == "" {
			xerr.Name = resp.Status()
		}
		return nil, xerr
	}
	return body, nil
}
