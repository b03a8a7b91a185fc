package types

import "strings"

const (
	// AtprotoPDSServiceID is the key of the PDS entry in PLC services
	AtprotoPDSServiceID = "atproto_pds"
	// AtprotoPDSServiceType is the type of the PDS entry in PLC services
	AtprotoPDSServiceType = "AtprotoPersonalDataServer"
)

// PlcService is a single entry of the PLC services map
type PlcService struct {
	Type     string `json:"type" validate:"required"`
	Endpoint string `json:"endpoint" validate:"required"`
}

// PlcData is the current state of a did:plc identity as returned by the
// directory at GET /{did}/data
type PlcData struct {
	DID                 string                `json:"did" validate:"required"`
	VerificationMethods map[string]string     `json:"verificationMethods,omitempty"`
	RotationKeys        []string              `json:"rotationKeys" validate:"required,dive,required"`
	AlsoKnownAs         []string              `json:"alsoKnownAs"`
	Services            map[string]PlcService `json:"services,omitempty" validate:"omitempty,dive"`
}

// Identity is a resolved decentralized identity
type Identity struct {
	DID          string   `json:"did"`
	PDS          string   `json:"pds"`
	Handle       string   `json:"handle,omitempty"`
	RotationKeys []string `json:"rotationKeys"`
	AlsoKnownAs  []string `json:"alsoKnownAs"`
	PlcData      *PlcData `json:"plcData"`
}

// NewIdentity builds an Identity from validated PLC data
func NewIdentity(data *PlcData, pds string) *Identity {
	identity := &Identity{
		DID:          data.DID,
		PDS:          pds,
		RotationKeys: data.RotationKeys,
		AlsoKnownAs:  data.AlsoKnownAs,
		PlcData:      data,
	}
	if len(data.AlsoKnownAs) > 0 {
		identity.Handle = strings.TrimPrefix(data.AlsoKnownAs[0], "at://")
	}
	return identity
}

// Profile is the public profile of an account (app.bsky.actor.defs#profileViewDetailed subset)
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
}
