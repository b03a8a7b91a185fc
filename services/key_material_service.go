package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/keystore"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/go-kit/log/level"
)

// KeyMaterialService creates rotation keys and keeps their private halves in the secure store
type KeyMaterialService struct {
	store                 keystore.SecureStore
	gate                  keystore.Gate
	requireAuthentication bool
}

func NewKeyMaterialService(store keystore.SecureStore, gate keystore.Gate, requireAuthentication bool) *KeyMaterialService {
	if gate == nil {
		gate = keystore.AllowAllGate{}
	}
	return &KeyMaterialService{store: store, gate: gate, requireAuthentication: requireAuthentication}
}

// GenerateKey creates a secp256k1 keypair identified by its did:key
func (s *KeyMaterialService) GenerateKey() (*types.KeyMaterial, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &types.KeyMaterial{
		PublicIdentifier: util.EncodeSecp256k1DIDKey(priv.PubKey()),
		PrivateKeyBytes:  priv.Serialize(),
	}, nil
}

// Store writes the private key (hex) under the identifier with the did:key: prefix stripped
func (s *KeyMaterialService) Store(ctx context.Context, key *types.KeyMaterial) error {
	if err := s.store.Set(ctx, util.KeyStorageID(key.PublicIdentifier), hex.EncodeToString(key.PrivateKeyBytes)); err != nil {
		level.Error(global.Logger).Log("msg", "failed to store private key", "key", key.PublicIdentifier, "err", err)
		return fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
	}
	return nil
}

// RetrievalEnabled reports whether private keys may leave the store at all. It
// needs keystore.requireAuthentication and a gate that actually checks something.
func (s *KeyMaterialService) RetrievalEnabled() bool {
	if !s.requireAuthentication {
		return false
	}
	_, open := s.gate.(keystore.AllowAllGate)
	return !open
}

// Retrieve returns the private key bytes. found is false (with a nil error) when
// this device holds no key for the identifier.
func (s *KeyMaterialService) Retrieve(ctx context.Context, publicIdentifier string, passcode string) (privateKey []byte, found bool, err error) {
	if !s.RetrievalEnabled() {
		return nil, false, types.ErrRetrievalDisabled
	}
	if gErr := s.gate.Authenticate(ctx, passcode); gErr != nil {
		if errors.Is(gErr, types.ErrLocalAuthentication) {
			return nil, false, gErr
		}
		return nil, false, fmt.Errorf("%w: %s", types.ErrLocalAuthentication, gErr.Error())
	}

	stored, err := s.store.Get(ctx, util.KeyStorageID(publicIdentifier))
	if errors.Is(err, types.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to read private key", "key", publicIdentifier, "err", err)
		return nil, false, fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
	}

	privateKey, err = hex.DecodeString(stored)
	if err != nil || len(privateKey) != secp256k1.PrivKeyBytesLen {
		return nil, false, types.ErrInvalidPrivateKey
	}
	// the stored key must still belong to the identifier it is filed under
	derived := util.EncodeSecp256k1DIDKey(secp256k1.PrivKeyFromBytes(privateKey).PubKey())
	if util.KeyStorageID(derived) != util.KeyStorageID(publicIdentifier) {
		return nil, false, types.ErrInvalidPrivateKey
	}
	return privateKey, true, nil
}

// Delete removes a key that never got published
func (s *KeyMaterialService) Delete(ctx context.Context, publicIdentifier string) error {
	if err := s.store.Delete(ctx, util.KeyStorageID(publicIdentifier)); err != nil {
		level.Error(global.Logger).Log("msg", "failed to delete private key", "key", publicIdentifier, "err", err)
		return fmt.Errorf("%w: %s", types.ErrStorage, err.Error())
	}
	return nil
}
