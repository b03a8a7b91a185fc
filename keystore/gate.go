package keystore

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
)

// Gate is the local authentication step run before a private key is released
type Gate interface {
	Authenticate(ctx context.Context, passcode string) error
}

// AllowAllGate is used when keystore.requireAuthentication is off
type AllowAllGate struct{}

func (AllowAllGate) Authenticate(ctx context.Context, passcode string) error {
	return nil
}

// PasscodeGate compares the passcode against a stored scrypt hash
type PasscodeGate struct {
	hash []byte
	salt []byte
}

func NewPasscodeGate(hashHex, saltHex string) (*PasscodeGate, error) {
	hash, err := hex.DecodeString(hashHex)
	if err != nil || len(hash) == 0 {
		return nil, fmt.Errorf("invalid passcode hash")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("invalid passcode salt")
	}
	return &PasscodeGate{hash: hash, salt: salt}, nil
}

func (g *PasscodeGate) Authenticate(ctx context.Context, passcode string) error {
	if passcode == "" {
		return types.ErrLocalAuthentication
	}
	ok, err := util.PasscodeMatches(passcode, g.salt, g.hash)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrLocalAuthentication
	}
	return nil
}
