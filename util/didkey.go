package util

import (
	"bytes"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/demesne/go-demesne-server/types"
	"github.com/mr-tron/base58"
)

const (
	DIDKeyPrefix = "did:key:"
	// multibase prefix for base58btc
	base58btcPrefix = "z"
)

// multicodec varint for secp256k1-pub
var secp256k1PubCodec = []byte{0xe7, 0x01}

// EncodeSecp256k1DIDKey returns the did:key identifier of a compressed secp256k1 public key
func EncodeSecp256k1DIDKey(pub *secp256k1.PublicKey) string {
	buf := make([]byte, 0, len(secp256k1PubCodec)+secp256k1.PubKeyBytesLenCompressed)
	buf = append(buf, secp256k1PubCodec...)
	buf = append(buf, pub.SerializeCompressed()...)
	return DIDKeyPrefix + base58btcPrefix + base58.Encode(buf)
}

// ParseSecp256k1DIDKey decodes a did:key identifier back into the public key
func ParseSecp256k1DIDKey(id string) (*secp256k1.PublicKey, error) {
	if !strings.HasPrefix(id, DIDKeyPrefix+base58btcPrefix) {
		return nil, types.ErrInvalidPublicKey
	}
	decoded, err := base58.Decode(strings.TrimPrefix(id, DIDKeyPrefix+base58btcPrefix))
	if err != nil {
		return nil, types.ErrInvalidPublicKey
	}
	if !bytes.HasPrefix(decoded, secp256k1PubCodec) {
		return nil, types.ErrInvalidPublicKey
	}
	pub, err := secp256k1.ParsePubKey(decoded[len(secp256k1PubCodec):])
	if err != nil {
		return nil, types.ErrInvalidPublicKey
	}
	return pub, nil
}

// KeyStorageID is the secure store key for a public identifier (did:key: stripped)
func KeyStorageID(publicIdentifier string) string {
	return strings.TrimPrefix(publicIdentifier, DIDKeyPrefix)
}
