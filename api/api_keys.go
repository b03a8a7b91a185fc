package api

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/services"
	"github.com/demesne/go-demesne-server/types"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
)

type KeysApi struct {
	rotationService *services.RotationService
	resolver        *services.IdentityResolverService
	keyService      *services.KeyMaterialService
	accountService  *services.AccountService
	validate        *validator.Validate
}

func NewKeysApi(rotationService *services.RotationService, resolver *services.IdentityResolverService, keyService *services.KeyMaterialService, accountService *services.AccountService) *KeysApi {
	return &KeysApi{
		rotationService: rotationService,
		resolver:        resolver,
		keyService:      keyService,
		accountService:  accountService,
		validate:        validator.New(),
	}
}

// List rotation keys
// @Summary List rotation keys
// @Description Current rotation keys in priority order, marked as held locally or by the PDS
// @Tags Keys
// @Param did path string true "DID"
// @Success 200 {object} types.KeysOverview
// @Router /api/v1/accounts/{did}/keys [get]
func (ka *KeysApi) ListKeys(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	overview, err := ka.rotationService.ListKeys(c.Request.Context(), did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Recommended credentials of the PDS
// @Summary Recommended DID credentials
// @Tags Keys
// @Param did path string true "DID"
// @Success 200 {object} types.RecommendedCredentials
// @Failure 412 {object} api.ApiError "session expired"
// @Router /api/v1/accounts/{did}/credentials [get]
func (ka *KeysApi) RecommendedCredentials(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	creds, err := ka.rotationService.RecommendedCredentials(c.Request.Context(), did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

// Request the emailed operation token
// @Summary Request PLC operation token
// @Description Asks the PDS to email a one-time token needed to add a rotation key
// @Tags Keys
// @Param did path string true "DID"
// @Success 202 {object} types.KeysOverview
// @Failure 412 {object} api.ApiError "session expired"
// @Failure 429 {object} api.ApiError "rate limit exceeded"
// @Router /api/v1/accounts/{did}/keys/request-token [post]
func (ka *KeysApi) RequestToken(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	if err := ka.rotationService.RequestToken(c.Request.Context(), did); err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"did": did, "state": ka.rotationService.State(did)})
}

// Add a new locally held rotation key at the highest priority
// @Summary Add rotation key
// @Tags Keys
// @Param did path string true "DID"
// @Param input body types.InputAddKey true "emailed token"
// @Success 200 {object} types.OutputAddKey
// @Failure 400 {object} api.ApiError "invalid input or rotation key limit reached"
// @Failure 412 {object} api.ApiError "invalid token or session expired"
// @Success 207 {object} types.OutputAddKey "published but not recorded locally"
// @Failure 502 {object} api.ApiError "submission failed"
// @Accept json
// @Produce json
// @Router /api/v1/accounts/{did}/keys [post]
func (ka *KeysApi) AddKey(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	var input types.InputAddKey
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := ka.validate.Struct(input); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			ApiErrorf(c, http.StatusBadRequest, "%s", ValidatorErrorToUser(vErrs))
			return
		}
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}

	ctx := c.Request.Context()
	// the new list is built from the directory's current state
	ka.resolver.Invalidate(ctx, did)
	identity, err := ka.resolver.Resolve(ctx, did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	key, err := ka.rotationService.AddRotationKey(ctx, identity, input.Token)
	if err != nil && key != "" && errors.Is(err, types.ErrNotRecorded) {
		// the directory already lists the key, the caller has to keep its id
		level.Warn(global.Logger).Log("msg", "rotation key added but not recorded", "did", did, "key", key, "err", err)
		c.JSON(http.StatusMultiStatus, &types.OutputAddKey{DID: did, PublicKey: key, Recorded: false, Message: err.Error()})
		return
	}
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, &types.OutputAddKey{DID: did, PublicKey: key, Recorded: true})
}

// Retrieve a locally held private key
// @Summary Retrieve private key
// @Description Releases the private half of a local rotation key after the passcode check
// @Tags Keys
// @Param did path string true "DID"
// @Param input body types.InputRetrieveKey true "key and passcode"
// @Success 200 {object} types.OutputRetrieveKey
// @Failure 401 {object} api.ApiError "passcode rejected"
// @Failure 403 {object} api.ApiError "keystore authentication not configured"
// @Failure 404 {object} api.ApiError "key not held locally"
// @Accept json
// @Produce json
// @Router /api/v1/accounts/{did}/keys/retrieve [post]
func (ka *KeysApi) RetrieveKey(c *gin.Context) {
	did, ok := didParam(c)
	if !ok {
		return
	}
	if !ka.keyService.RetrievalEnabled() {
		ApiServiceError(c, types.ErrRetrievalDisabled)
		return
	}
	var input types.InputRetrieveKey
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := ka.validate.Struct(input); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			ApiErrorf(c, http.StatusBadRequest, "%s", ValidatorErrorToUser(vErrs))
			return
		}
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}

	ctx := c.Request.Context()
	account, err := ka.accountService.Get(ctx, did)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	if !slices.Contains(account.LocalKeys, input.Key) {
		ApiServiceError(c, fmt.Errorf("%w: %s is not held for %s", types.ErrKeyNotFound, input.Key, did))
		return
	}
	privateKey, found, err := ka.keyService.Retrieve(ctx, input.Key, input.Passcode)
	if err != nil {
		ApiServiceError(c, err)
		return
	}
	if !found {
		ApiServiceError(c, fmt.Errorf("%w: %s", types.ErrKeyNotFound, input.Key))
		return
	}
	c.JSON(http.StatusOK, &types.OutputRetrieveKey{Key: input.Key, PrivateKey: hex.EncodeToString(privateKey)})
}
