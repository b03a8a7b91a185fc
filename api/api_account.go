package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/demesne/go-demesne-server/api/interceptors"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/services"
	"github.com/demesne/go-demesne-server/types"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
)

type AccountApi struct {
	resolver       *services.IdentityResolverService
	sessionService *services.SessionService
	accountService *services.AccountService
	validate       *validator.Validate
}

func NewAccountApi(resolver *services.IdentityResolverService, sessionService *services.SessionService, accountService *services.AccountService) *AccountApi {
	return &AccountApi{
		resolver:       resolver,
		sessionService: sessionService,
		accountService: accountService,
		validate:       validator.New(),
	}
}

// Login with handle (or DID) and password
// @Summary Login
// @Description Creates a session on the PDS of the identity and stores it as an account
// @Tags Account
// @Param login body types.InputLogin true "identifier, password and optional PDS"
// @Success 200 {object} types.OutputLogin
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 401 {object} api.ApiError "invalid identifier or password"
// @Failure 404 {object} api.ApiError "identity not found"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Accept json
// @Produce json
// @Router /api/v1/login [post]
func (aa *AccountApi) Login(c *gin.Context) {
	var input types.InputLogin
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := aa.validate.Struct(input); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			ApiErrorf(c, http.StatusBadRequest, "%s", ValidatorErrorToUser(vErrs))
			return
		}
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}

	ctx := c.Request.Context()
	endpoint := input.PDS
	expectedDID := ""
	if endpoint == "" {
		identity, err := aa.resolver.Resolve(ctx, input.Identifier)
		if err != nil {
			ApiServiceError(c, err)
			return
		}
		endpoint = identity.PDS
		expectedDID = identity.DID
	}

	session, err := aa.sessionService.Login(ctx, endpoint, input.Identifier, input.Password)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	if expectedDID != "" && session.DID != expectedDID {
		aa.sessionService.Forget(session.DID)
		ApiServiceError(c, fmt.Errorf("%w: session belongs to %s, not %s", types.ErrAuthentication, session.DID, expectedDID))
		return
	}
	if err := aa.accountService.UpsertSession(ctx, session.DID, endpoint, session.State); err != nil {
		ApiServiceError(c, err)
		return
	}
	level.Info(global.Logger).Log("msg", "account logged in", "did", session.DID, "pds", endpoint)

	// a still valid token of this caller is extended with the new DID
	dids := []string{session.DID}
	if previous, pErr := interceptors.ParseJWSToken(global.PublicKey, c.GetHeader("Authorization")); pErr == nil {
		for _, did := range previous.DIDs {
			if !slices.Contains(dids, did) {
				dids = append(dids, did)
			}
		}
	}
	token, err := interceptors.GenerateJWSToken(global.PrivateKey, dids)
	if err != nil {
		ApiServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, &types.OutputLogin{
		DID:        session.DID,
		Handle:     session.Handle,
		ServiceURL: endpoint,
		Token:      token,
	})
}

// List the stored accounts covered by the caller's token
// @Summary List accounts
// @Tags Account
// @Success 200 {array} types.OutputAccount
// @Produce json
// @Router /api/v1/accounts [get]
func (aa *AccountApi) ListAccounts(c *gin.Context) {
	accounts, err := aa.accountService.List(c.Request.Context())
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	allowed := interceptors.AccountDIDsFromContext(c)
	out := make([]*types.OutputAccount, 0, len(accounts))
	for _, a := range accounts {
		if !slices.Contains(allowed, a.DID) {
			continue
		}
		localKeys := a.LocalKeys
		if localKeys == nil {
			localKeys = []string{}
		}
		out = append(out, &types.OutputAccount{
			DID:        a.DID,
			ServiceURL: a.ServiceURL,
			LocalKeys:  localKeys,
			HasSession: len(a.Session) > 0,
			Active:     aa.sessionService.IsActive(a.DID),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Remove an account. Locally held private keys are kept.
// @Summary Remove account
// @Tags Account
// @Param did path string true "DID"
// @Success 204
// @Failure 404 {object} api.ApiError "account not found"
// @Router /api/v1/accounts/{did} [delete]
func (aa *AccountApi) DeleteAccount(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	if err := aa.accountService.Remove(c.Request.Context(), did); err != nil {
		ApiServiceError(c, err)
		return
	}
	aa.sessionService.Forget(did)
	c.Status(http.StatusNoContent)
}

// Resume the stored session of an account
// @Summary Resume session
// @Description Resumes (and if needed refreshes) the stored session. Fails with 412 when a new login is required.
// @Tags Account
// @Param did path string true "DID"
// @Success 200 {object} types.OutputLogin
// @Failure 404 {object} api.ApiError "account not found"
// @Failure 412 {object} api.ApiError "session expired"
// @Router /api/v1/accounts/{did}/resume [post]
func (aa *AccountApi) ResumeAccount(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	session, err := aa.sessionService.ResumeAccount(c.Request.Context(), did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, &types.OutputLogin{
		DID:        session.DID,
		Handle:     session.Handle,
		ServiceURL: session.ServiceURL,
	})
}
