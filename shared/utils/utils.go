package utils

import (
	"bytes"
	"encoding/hex"
	"slices"

	"qvcs/shared/types"

	"golang.org/x/crypto/sha3"
)

// Hasher turns bytes into a digest string
type Hasher func(content []byte) string

// Hash is the default Hasher: SHA3-256, lowercase hex
func Hash(content []byte) string {
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ContentHash fingerprints an ordered change list: path and delta of every
// change, concatenated in order. Reordering the changes changes the digest.
func ContentHash(hash Hasher, changes []shared.FileChange) string {
	if hash == nil {
		hash = Hash
	}
	var buf bytes.Buffer
	for _, c := range changes {
		buf.WriteString(c.Path)
		buf.Write(c.ContentDelta)
	}
	return hash(buf.Bytes())
}

// SortedKeys returns map keys in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
