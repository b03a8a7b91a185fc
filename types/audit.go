package types

import (
	"encoding/json"
	"time"
)

const (
	OperationTypeCreate    = "create"
	OperationTypePlc       = "plc_operation"
	OperationTypeTombstone = "plc_tombstone"
)

// Operation is a PLC operation. Type selects which of the field groups is populated:
// signingKey/recoveryKey/handle/service for create, rotationKeys/alsoKnownAs/services
// for plc_operation and none for plc_tombstone.
type Operation struct {
	Type string  `json:"type" validate:"required,oneof=create plc_operation plc_tombstone"`
	Sig  string  `json:"sig"`
	Prev *string `json:"prev"`

	// create (legacy genesis)
	SigningKey  string `json:"signingKey,omitempty"`
	RecoveryKey string `json:"recoveryKey,omitempty"`
	Handle      string `json:"handle,omitempty"`
	Service     string `json:"service,omitempty"`

	// plc_operation
	RotationKeys        []string              `json:"rotationKeys,omitempty"`
	AlsoKnownAs         []string              `json:"alsoKnownAs,omitempty"`
	Services            map[string]PlcService `json:"services,omitempty"`
	VerificationMethods map[string]string     `json:"verificationMethods,omitempty"`

	// Raw is the operation exactly as served by the directory
	Raw json.RawMessage `json:"-"`
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	type plain Operation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Operation(p)
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// PrimaryAlias returns alsoKnownAs[0] or the empty string
func (o *Operation) PrimaryAlias() string {
	if len(o.AlsoKnownAs) == 0 {
		return ""
	}
	return o.AlsoKnownAs[0]
}

// AuditRecord is one entry of the directory audit log (GET /{did}/log/audit)
type AuditRecord struct {
	DID       string    `json:"did" validate:"required"`
	Operation Operation `json:"operation"`
	CID       string    `json:"cid" validate:"required"`
	Nullified bool      `json:"nullified"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleChange is a change of the primary alias
type HandleChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChangeSet is the difference between a record and the record it points to with prev.
// Each field is independent; an empty ChangeSet means the state was re-signed unchanged.
type ChangeSet struct {
	Genesis         bool                  `json:"genesis,omitempty"`
	Initial         *Operation            `json:"initial,omitempty"`
	AddedKeys       []string              `json:"addedKeys,omitempty"`
	RemovedKeys     []string              `json:"removedKeys,omitempty"`
	HandleChange    *HandleChange         `json:"handleChange,omitempty"`
	ServicesChanged bool                  `json:"servicesChanged,omitempty"`
	Services        map[string]PlcService `json:"services,omitempty"`
	Tombstone       bool                  `json:"tombstone,omitempty"`
	Inconsistent    string                `json:"inconsistent,omitempty"`
}

// IsEmpty reports whether no change was detected
func (c *ChangeSet) IsEmpty() bool {
	return !c.Genesis && !c.Tombstone && c.Inconsistent == "" &&
		len(c.AddedKeys) == 0 && len(c.RemovedKeys) == 0 &&
		c.HandleChange == nil && !c.ServicesChanged
}

// AuditEntry is an audit record with the changes it introduced
type AuditEntry struct {
	Record      *AuditRecord `json:"record"`
	Changes     *ChangeSet   `json:"changes"`
	CIDVerified *bool        `json:"cidVerified,omitempty"`
}
