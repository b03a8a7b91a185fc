package types

// for login
type InputLogin struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	PDS        string `json:"pds,omitempty" validate:"omitempty,url"` // resolved from identifier when empty
}

// for adding a rotation key
type InputAddKey struct {
	Token string `json:"token" validate:"required"`
}

// for retrieving a locally held private key
type InputRetrieveKey struct {
	Key      string `json:"key" validate:"required,startswith=did:key:"`
	Passcode string `json:"passcode"`
}
