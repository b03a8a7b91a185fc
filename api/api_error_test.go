package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/tj/assert"
)

func TestStatusFromError(t *testing.T) {
	cases := map[error]int{
		types.ErrInvalidInput:        http.StatusBadRequest,
		types.ErrUnsupportedMethod:   http.StatusBadRequest,
		types.ErrTooManyRotationKeys: http.StatusBadRequest,
		types.ErrAuthentication:      http.StatusUnauthorized,
		types.ErrLocalAuthentication: http.StatusUnauthorized,
		types.ErrInvalidToken:        http.StatusPreconditionFailed,
		types.ErrSessionExpired:      http.StatusPreconditionFailed,
		types.ErrPrecondition:        http.StatusPreconditionFailed,
		types.ErrRetrievalDisabled:   http.StatusForbidden,
		types.ErrResolution:          http.StatusNotFound,
		types.ErrNoServiceEndpoint:   http.StatusNotFound,
		types.ErrNotFound:            http.StatusNotFound,
		queue.ErrSuperseded:          http.StatusConflict,
		types.ErrSubmission:          http.StatusBadGateway,
		types.ErrInvalidResponse:     http.StatusBadGateway,
		types.ErrUpstreamUnavailable: http.StatusBadGateway,
		types.ErrStorage:             http.StatusInternalServerError,
		errors.New("boom"):           http.StatusInternalServerError,
	}
	for err, code := range cases {
		assert.Equal(t, code, statusFromError(fmt.Errorf("%w: wrapped", err)), err.Error())
	}
}
