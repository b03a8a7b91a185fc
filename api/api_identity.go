package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/demesne/go-demesne-server/api/interceptors"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/services"
	"github.com/demesne/go-demesne-server/types"
	"github.com/gin-gonic/gin"
)

type IdentityApi struct {
	resolver     *services.IdentityResolverService
	auditService *services.AuditService
	lookups      *queue.Debouncer[*types.Identity]
}

func NewIdentityApi(resolver *services.IdentityResolverService, auditService *services.AuditService) *IdentityApi {
	return &IdentityApi{
		resolver:     resolver,
		auditService: auditService,
		lookups:      queue.NewDebouncer[*types.Identity](time.Duration(global.Conf.Demesne.ResolveDebounceMs) * time.Millisecond),
	}
}

// Resolve a handle or did:plc to its identity
// @Summary Resolve identity
// @Description Resolves a handle or did:plc to the current PLC data and PDS
// @Tags Identity
// @Param identifier path string true "handle or DID"
// @Success 200 {object} types.Identity
// @Failure 400 {object} api.ApiError "unsupported DID method or invalid identifier"
// @Failure 404 {object} api.ApiError "identity not found"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Produce json
// @Router /api/v1/identity/{identifier} [get]
func (ia *IdentityApi) Resolve(c *gin.Context) {
	identifier := strings.TrimSpace(c.Param("identifier"))
	if identifier == "" {
		ApiErrorf(c, http.StatusBadRequest, "identifier is required")
		return
	}
	identity, err := ia.resolver.Resolve(c.Request.Context(), identifier)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// Lookup resolves as the user types. Calls from the same client are debounced and
// only the latest one is answered; older ones get 409.
// @Summary Interactive identity lookup
// @Tags Identity
// @Param q query string true "handle or DID"
// @Success 200 {object} types.Identity
// @Failure 409 {object} api.ApiError "superseded by a newer lookup"
// @Produce json
// @Router /api/v1/lookup [get]
func (ia *IdentityApi) Lookup(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		ApiErrorf(c, http.StatusBadRequest, "q is required")
		return
	}
	client := "unknown"
	if ip, err := interceptors.GetIPFromContext(c); err == nil && ip != nil {
		client = *ip
	}
	identity, err := ia.lookups.Do(c.Request.Context(), client, func(ctx context.Context) (*types.Identity, error) {
		return ia.resolver.Resolve(ctx, q)
	})
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// Audit log of an identity
// @Summary Audit log
// @Description Returns the PLC operation log newest first with the changes each operation introduced
// @Tags Identity
// @Param identifier path string true "handle or DID"
// @Success 200 {object} types.OutputAuditLog
// @Failure 400 {object} api.ApiError "unsupported DID method"
// @Failure 404 {object} api.ApiError "identity not found"
// @Produce json
// @Router /api/v1/identity/{identifier}/audit [get]
func (ia *IdentityApi) AuditLog(c *gin.Context) {
	did, err := ia.resolver.ResolveDID(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	report, err := ia.auditService.AuditReport(c.Request.Context(), did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// didParam reads the :did path parameter of account routes
func didParam(c *gin.Context) (string, bool) {
	did := strings.TrimSpace(c.Param("did"))
	if !strings.HasPrefix(did, "did:") {
		ApiServiceError(c, fmt.Errorf("%w: %q is not a DID", types.ErrInvalidInput, did))
		return "", false
	}
	return did, true
}
