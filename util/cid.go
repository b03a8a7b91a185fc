package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// CIDv1 header: version 1, dag-cbor codec, sha2-256 multihash of 32 bytes
var cidV1DagCborSha256 = []byte{0x01, 0x71, 0x12, 0x20}

var lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

var dagCborMode cbor.EncMode

func init() {
	var err error
	// dag-cbor orders map keys by length first, then bytewise
	dagCborMode, err = cbor.EncOptions{Sort: cbor.SortLengthFirst}.EncMode()
	if err != nil {
		panic(err)
	}
}

// OperationCID computes the CID (base32 multibase) of a PLC operation given its JSON form
func OperationCID(rawOperation []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(rawOperation))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return "", err
	}
	normalized, err := normalizeForCbor(generic)
	if err != nil {
		return "", err
	}
	encoded, err := dagCborMode.Marshal(normalized)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(encoded)
	cid := append(append([]byte{}, cidV1DagCborSha256...), digest[:]...)
	return "b" + lowerBase32.EncodeToString(cid), nil
}

// VerifyOperationCID reports whether cid matches the operation
func VerifyOperationCID(rawOperation []byte, cid string) (bool, error) {
	computed, err := OperationCID(rawOperation)
	if err != nil {
		return false, err
	}
	return computed == strings.ToLower(cid), nil
}

// json numbers become integers, dag-cbor has no use for floats in PLC operations
func normalizeForCbor(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			n, err := normalizeForCbor(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			n, err := normalizeForCbor(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s in operation", t.String())
		}
		return i, nil
	default:
		return t, nil
	}
}
