package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key joins namespace parts with ':', e.g. Key("job", id) -> "job:<id>".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashKey is the hex SHA-256 of data, for keys derived from large payloads.
func HashKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
