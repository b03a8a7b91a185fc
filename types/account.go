package types

import (
	"encoding/json"
	"slices"
)

// AccountsNamespace is the fixed document id under which the account list is stored
const AccountsNamespace = "demesne-accounts"

// Account is the local record of a user's relationship to an identity
type Account struct {
	DID        string          `json:"did" validate:"required"`
	ServiceURL string          `json:"serviceUrl" validate:"required"`
	LocalKeys  []string        `json:"localKeys"`
	Session    json.RawMessage `json:"session,omitempty"` // opaque, only round-tripped
}

// HasLocalKey reports whether the private half of key is held on this device
func (a *Account) HasLocalKey(key string) bool {
	return slices.Contains(a.LocalKeys, key)
}

// AccountList is the single persisted document holding all accounts in order
type AccountList struct {
	BaseDocument `json:",inline"`
	Accounts     []*Account `json:"accounts" validate:"dive"`
}

// Find returns the index of the account with the given did or -1
func (al *AccountList) Find(did string) int {
	return slices.IndexFunc(al.Accounts, func(a *Account) bool {
		return a.DID == did
	})
}

// Session is an authenticated session against a PDS
type Session struct {
	DID        string `json:"did" validate:"required"`
	Handle     string `json:"handle"`
	Email      string `json:"email,omitempty"`
	AccessJwt  string `json:"accessJwt" validate:"required"`
	RefreshJwt string `json:"refreshJwt" validate:"required"`
	Active     *bool  `json:"active,omitempty"`

	ServiceURL string          `json:"-"`
	State      json.RawMessage `json:"-"` // serializable state for a later resume
}

// OutputAccount is the public view of an account (session state is never exposed)
type OutputAccount struct {
	DID        string   `json:"did"`
	ServiceURL string   `json:"serviceUrl"`
	LocalKeys  []string `json:"localKeys"`
	HasSession bool     `json:"hasSession"`
	Active     bool     `json:"active"`
}
