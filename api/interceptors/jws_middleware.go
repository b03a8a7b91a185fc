package interceptors

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v3"
)

const (
	tokenExpiryHours = 30 * 24 // 30 days
	tokenIssuer      = "demesne"

	// context key holding the DIDs the caller may manage
	AccountDIDsKey = "accountDids"
)

var (
	ErrMissingToken = errors.New("authorization header is missing")
	ErrInvalidJWS   = errors.New("invalid JWS message")
	ErrExpiredJWS   = errors.New("JWS message expired")
)

// AccountClaims is the payload of the tokens handed out at login
type AccountClaims struct {
	Issuer   string   `json:"iss"`
	Subject  string   `json:"sub"`
	Audience string   `json:"aud"`
	IssuedAt int64    `json:"iat"`
	Expiry   int64    `json:"exp"`
	DIDs     []string `json:"dids"`
}

// JWSMiddleware admits requests carrying a token signed by this server. When the
// route has a :did parameter the token has to cover that DID.
func JWSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": ErrMissingToken.Error()})
			return
		}

		claims, err := ParseJWSToken(global.PublicKey, auth)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": err.Error()})
			return
		}

		if did := c.Param("did"); did != "" && !slices.Contains(claims.DIDs, did) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "token does not cover " + did})
			return
		}
		c.Set(AccountDIDsKey, claims.DIDs)
		c.Next()
	}
}

// AccountDIDsFromContext returns the DIDs admitted by JWSMiddleware
func AccountDIDsFromContext(c *gin.Context) []string {
	dids, ok := c.Get(AccountDIDsKey)
	if !ok {
		return nil
	}
	out, _ := dids.([]string)
	return out
}

// ParseJWSToken verifies the compact JWS (optionally prefixed with Bearer) and
// returns its claims
func ParseJWSToken(serverPublicKey ed25519.PublicKey, token string) (*AccountClaims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if len(serverPublicKey) != ed25519.PublicKeySize {
		return nil, errors.New("server signing key not configured")
	}

	object, err := jose.ParseSigned(token)
	if err != nil {
		return nil, ErrInvalidJWS
	}
	payload, err := object.Verify(serverPublicKey)
	if err != nil {
		return nil, errors.New("failed to verify JWS message")
	}

	var claims AccountClaims
	if uErr := json.Unmarshal(payload, &claims); uErr != nil {
		return nil, ErrInvalidJWS
	}
	if claims.Expiry == 0 || claims.Audience != tokenIssuer || len(claims.DIDs) == 0 {
		return nil, ErrInvalidJWS
	}
	if claims.Expiry < time.Now().Unix() {
		return nil, ErrExpiredJWS
	}
	return &claims, nil
}

// GenerateJWSToken signs a token for dids. The first DID becomes the subject.
func GenerateJWSToken(serverPrivateKey ed25519.PrivateKey, dids []string) (string, error) {
	if len(dids) == 0 {
		return "", errors.New("token needs at least one DID")
	}
	now := time.Now()
	return signClaims(serverPrivateKey, &AccountClaims{
		Issuer:   tokenIssuer,
		Subject:  dids[0],
		Audience: tokenIssuer,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(time.Hour * tokenExpiryHours).Unix(),
		DIDs:     dids,
	})
}

func signClaims(serverPrivateKey ed25519.PrivateKey, pl *AccountClaims) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: serverPrivateKey}, nil)
	if err != nil {
		return "", err
	}

	plBytes, plErr := json.Marshal(pl)
	if plErr != nil {
		return "", plErr
	}
	object, err := signer.Sign(plBytes)
	if err != nil {
		return "", err
	}

	return object.CompactSerialize()
}
