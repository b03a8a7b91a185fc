package services

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/demesne/go-demesne-server/keystore"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, id string) (string, error) { return "", errDiskFull }
func (brokenStore) Set(ctx context.Context, id, v string) error        { return errDiskFull }
func (brokenStore) Delete(ctx context.Context, id string) error        { return errDiskFull }

type denyGate struct{}

func (denyGate) Authenticate(ctx context.Context, passcode string) error {
	if passcode == "1234" {
		return nil
	}
	return errors.New("biometric prompt dismissed")
}

func TestGenerateStoreRetrieve(t *testing.T) {
	store := keystore.NewMemorySecureStore()
	keys := NewKeyMaterialService(store, denyGate{}, true)
	ctx := context.Background()

	key, err := keys.GenerateKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key.PublicIdentifier, "did:key:zQ3s"))

	pub, err := util.ParseSecp256k1DIDKey(key.PublicIdentifier)
	require.NoError(t, err)
	assert.NotNil(t, pub)

	require.NoError(t, keys.Store(ctx, key))

	// stored under the identifier without did:key:
	raw, err := store.Get(ctx, strings.TrimPrefix(key.PublicIdentifier, "did:key:"))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(key.PrivateKeyBytes), raw)

	priv, found, err := keys.Retrieve(ctx, key.PublicIdentifier, "1234")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, key.PrivateKeyBytes, priv)
}

func TestRetrieveMissingKeyIsNotAnError(t *testing.T) {
	keys := NewKeyMaterialService(keystore.NewMemorySecureStore(), denyGate{}, true)
	priv, found, err := keys.Retrieve(context.Background(), "did:key:zQ3shsomewhereelse", "1234")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, priv)
}

func TestRetrieveRunsGateWhenRequired(t *testing.T) {
	store := keystore.NewMemorySecureStore()
	keys := NewKeyMaterialService(store, denyGate{}, true)
	ctx := context.Background()
	key, err := keys.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, keys.Store(ctx, key))

	_, _, err = keys.Retrieve(ctx, key.PublicIdentifier, "0000")
	assert.ErrorIs(t, err, types.ErrLocalAuthentication)

	_, found, err := keys.Retrieve(ctx, key.PublicIdentifier, "1234")
	assert.NoError(t, err)
	assert.True(t, found)

}

func TestRetrieveRefusedWithoutGate(t *testing.T) {
	store := keystore.NewMemorySecureStore()
	ctx := context.Background()
	key, err := NewKeyMaterialService(store, nil, false).GenerateKey()
	require.NoError(t, err)
	require.NoError(t, NewKeyMaterialService(store, nil, false).Store(ctx, key))

	for name, keys := range map[string]*KeyMaterialService{
		"authentication off":            NewKeyMaterialService(store, denyGate{}, false),
		"no gate":                       NewKeyMaterialService(store, nil, true),
		"allow all gate":                NewKeyMaterialService(store, keystore.AllowAllGate{}, true),
		"allow all gate, auth disabled": NewKeyMaterialService(store, keystore.AllowAllGate{}, false),
	} {
		assert.False(t, keys.RetrievalEnabled(), name)
		priv, found, rErr := keys.Retrieve(ctx, key.PublicIdentifier, "1234")
		assert.ErrorIs(t, rErr, types.ErrRetrievalDisabled, name)
		assert.False(t, found, name)
		assert.Nil(t, priv, name)
	}
}

func TestRetrieveRejectsMismatchedKey(t *testing.T) {
	store := keystore.NewMemorySecureStore()
	keys := NewKeyMaterialService(store, denyGate{}, true)
	ctx := context.Background()
	a, _ := keys.GenerateKey()
	b, _ := keys.GenerateKey()
	require.NoError(t, store.Set(ctx, util.KeyStorageID(a.PublicIdentifier), hex.EncodeToString(b.PrivateKeyBytes)))

	_, _, err := keys.Retrieve(ctx, a.PublicIdentifier, "1234")
	assert.ErrorIs(t, err, types.ErrInvalidPrivateKey)

	require.NoError(t, store.Set(ctx, util.KeyStorageID(a.PublicIdentifier), "not-hex"))
	_, _, err = keys.Retrieve(ctx, a.PublicIdentifier, "1234")
	assert.ErrorIs(t, err, types.ErrInvalidPrivateKey)
}

func TestKeyStorageFailuresSurface(t *testing.T) {
	keys := NewKeyMaterialService(brokenStore{}, denyGate{}, true)
	ctx := context.Background()
	key, _ := keys.GenerateKey()

	assert.ErrorIs(t, keys.Store(ctx, key), types.ErrStorage)
	_, _, err := keys.Retrieve(ctx, key.PublicIdentifier, "1234")
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.ErrorIs(t, keys.Delete(ctx, key.PublicIdentifier), types.ErrStorage)
}
