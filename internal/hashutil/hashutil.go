// Package hashutil provides content fingerprinting for dedup and cache
// keys. Digests are md5 hex: fast, deterministic, and collision-resistant
// enough for content addressing. This is not a security boundary.
package hashutil

import (
	"crypto/md5" //nolint:gosec // content addressing, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
)

var digestPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Sum returns the hex digest of raw content.
func Sum(content string) string {
	h := md5.Sum([]byte(content)) //nolint:gosec
	return hex.EncodeToString(h[:])
}

// SumStrings digests a sequence of strings as their concatenation.
// Order is significant.
func SumStrings(parts []string) string {
	h := md5.New() //nolint:gosec
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SumJSON digests an arbitrary composite value through its canonical
// JSON serialization, so that key derivation is stable across runs.
func SumJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize for hashing: %w", err)
	}
	return Sum(string(b)), nil
}

// IsDigest reports whether s looks like a content hash. The cache
// garbage collector uses this to tell content keys from bookkeeping keys.
func IsDigest(s string) bool {
	return digestPattern.MatchString(s)
}
