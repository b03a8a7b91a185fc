package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
)

// PlcClient reads identity data and audit logs from the PLC directory
type PlcClient struct {
	restyClient  *resty.Client
	directoryURL string
	validate     *validator.Validate
}

func NewPlcClient(restyClient *resty.Client, directoryURL string) *PlcClient {
	return &PlcClient{
		restyClient:  restyClient,
		directoryURL: util.TrimServiceURL(directoryURL),
		validate:     validator.New(),
	}
}

func (p *PlcClient) get(ctx context.Context, did string, path string) ([]byte, error) {
	resp, err := p.restyClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(p.directoryURL + "/" + did + path)
	if err != nil {
		return nil, fmt.Errorf("%w: plc directory: %s", types.ErrInvalidResponse, err.Error())
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.Body(), nil
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%w: %s not found in plc directory", types.ErrResolution, did)
	default:
		return nil, fmt.Errorf("%w: plc directory returned %d", types.ErrInvalidResponse, resp.StatusCode())
	}
}

// GetData returns the current state of did (GET /{did}/data)
func (p *PlcClient) GetData(ctx context.Context, did string) (*types.PlcData, error) {
	body, err := p.get(ctx, did, "/data")
	if err != nil {
		return nil, err
	}
	var data types.PlcData
	if uErr := json.Unmarshal(body, &data); uErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, uErr.Error())
	}
	if vErr := p.validate.Struct(data); vErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, vErr.Error())
	}
	if data.DID != did {
		return nil, fmt.Errorf("%w: directory answered for %s instead of %s", types.ErrInvalidResponse, data.DID, did)
	}
	return &data, nil
}

// GetAuditLog returns the full operation log of did, oldest first (GET /{did}/log/audit)
func (p *PlcClient) GetAuditLog(ctx context.Context, did string) ([]*types.AuditRecord, error) {
	body, err := p.get(ctx, did, "/log/audit")
	if err != nil {
		return nil, err
	}
	var records []*types.AuditRecord
	if uErr := json.Unmarshal(body, &records); uErr != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, uErr.Error())
	}
	for _, r := range records {
		if vErr := p.validate.Struct(r); vErr != nil {
			return nil, fmt.Errorf("%w: %s", types.ErrInvalidResponse, vErr.Error())
		}
	}
	return records, nil
}
