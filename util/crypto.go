package util

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/scrypt"
)

var (
	scryptN   = 32768 // N = CPU/memory cost parameter (suitable as of 2017)
	scryptR   = 8     // r and p must satisfy r * p < 2^30
	scryptP   = 1
	scryptLen = 32 // 32 bytes long
)

// ScryptPasscode derives the passcode hash used by the local authentication gate
func ScryptPasscode(passcode string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passcode), salt, scryptN, scryptR, scryptP, scryptLen)
}

// PasscodeMatches compares a passcode against its stored scrypt hash in constant time
func PasscodeMatches(passcode string, salt []byte, hash []byte) (bool, error) {
	dk, err := ScryptPasscode(passcode, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(dk, hash) == 1, nil
}

// RandomBytes returns n bytes from crypto/rand
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
