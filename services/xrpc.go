package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/demesne/go-demesne-server/util"
	"github.com/go-resty/resty/v2"
)

// XrpcError is the error body returned by atproto XRPC endpoints
type XrpcError struct {
	Status  int    `json:"-"`
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *XrpcError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("xrpc %d %s", e.Status, e.Name)
	}
	return fmt.Sprintf("xrpc %d %s: %s", e.Status, e.Name, e.Message)
}

// IsTokenError reports whether the server rejected an email or JWT token
func (e *XrpcError) IsTokenError() bool {
	return e.Name == "InvalidToken" || e.Name == "ExpiredToken"
}

func xrpcURL(serviceURL string, nsid string) string {
	return util.TrimServiceURL(serviceURL) + "/xrpc/" + nsid
}

// parseXrpcError returns nil for successful responses
func parseXrpcError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	xerr := &XrpcError{Status: resp.StatusCode()}
	if uErr := json.Unmarshal(resp.Body(), xerr); uErr != nil || xerr.Name == "" {
		xerr.Name = strings.TrimSpace(resp.Status())
	}
	return xerr
}
