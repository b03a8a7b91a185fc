package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/types"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
)

type ApiError struct {
	// Code is the HTTP status code
	Code int `json:"code"`
	// Message is the error message
	Message string `json:"message"`
}

func ApiErrorf(c *gin.Context, code int, format string, args ...interface{}) ApiError {
	ar := ApiError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
	c.AbortWithStatusJSON(code, ar)
	return ar
}

func ValidatorErrorToUser(err validator.ValidationErrors) string {
	var errorMessages []string
	for _, err := range err {
		switch err.Tag() {
		case "required":
			errorMessages = append(errorMessages, fmt.Sprintf("%s is required", err.Field()))
		case "url":
			errorMessages = append(errorMessages, fmt.Sprintf("%s is not a valid url", err.Field()))
		case "startswith":
			errorMessages = append(errorMessages, fmt.Sprintf("%s must start with %s", err.Field(), err.Param()))
		default:
			errorMessages = append(errorMessages, fmt.Sprintf("validation failed on field %s", err.Field()))
		}
	}
	return strings.Join(errorMessages, ". ")
}

// statusFromError maps service errors to HTTP status codes
func statusFromError(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrBadRequest),
		errors.Is(err, types.ErrUnsupportedMethod),
		errors.Is(err, types.ErrTooManyRotationKeys),
		errors.Is(err, types.ErrInvalidPublicKey):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrAuthentication),
		errors.Is(err, types.ErrLocalAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrRetrievalDisabled):
		return http.StatusForbidden
	case errors.Is(err, types.ErrInvalidToken),
		errors.Is(err, types.ErrSessionExpired),
		errors.Is(err, types.ErrPrecondition):
		return http.StatusPreconditionFailed
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrResolution),
		errors.Is(err, types.ErrKeyNotFound),
		errors.Is(err, types.ErrNoServiceEndpoint):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConflict),
		errors.Is(err, queue.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, types.ErrSubmission),
		errors.Is(err, types.ErrInvalidResponse),
		errors.Is(err, types.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ApiServiceError aborts the request with the status matching err
func ApiServiceError(c *gin.Context, err error) ApiError {
	code := statusFromError(err)
	if code == http.StatusInternalServerError {
		level.Error(global.Logger).Log("msg", "request failed", "path", c.FullPath(), "requestId", c.GetString("requestId"), "err", err)
		return ApiErrorf(c, code, "internal server error")
	}
	return ApiErrorf(c, code, "%s", err.Error())
}
