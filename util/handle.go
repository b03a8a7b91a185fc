package util

import (
	"regexp"
	"strings"
)

// domain shaped: labels of 1-63 alphanumerics/hyphens, no hyphen at label edges,
// at least one dot, top-level label starting with a letter
var handleRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// IsProbablyHandle reports whether identifier looks like an atproto handle
func IsProbablyHandle(identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	return identifier != "" &&
		strings.Contains(identifier, ".") &&
		handleRegex.MatchString(identifier) &&
		!strings.HasPrefix(identifier, "-") &&
		!strings.HasSuffix(identifier, "-")
}

// DIDMethod returns the method of a DID (plc for did:plc:abc) or the empty string
func DIDMethod(did string) string {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) < 3 || parts[0] != "did" {
		return ""
	}
	return parts[1]
}
