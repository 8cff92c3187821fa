package util

import (
	"crypto/sha256"
	"fmt"
	"strconv"
)

// ResolutionKey returns the storage key for a resolved query. The property
// query is hashed so arbitrary quoting never leaks into the keyspace.
func ResolutionKey(ns, op string, id int, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("res:%s:%s:%s:%x", ns, op, strconv.Itoa(id), sum[:8])
}

// GenKey returns the generation key for an operation kind.
func GenKey(ns, op string) string {
	return "op:" + ns + ":" + op
}
