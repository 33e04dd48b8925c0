package graph

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// NodeID returns the deterministic identifier for a structural path within
// this environment: <name>:<diffID>:<structuralPath>.
func (e Environment) NodeID(structuralPath string) string {
	return e.Name + ":" + e.DiffID + ":" + structuralPath
}

// HashID returns the 32-hex-character xxh3-128 digest of an id. This is the
// externally visible primary key; it is a pure function of the id and never
// depends on file content.
func HashID(id string) string {
	sum := xxh3.HashString128(id).Bytes()
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the 16-hex-character xxh3 digest of a definition's
// raw text. Used by the diff builder to detect in-place edits.
func ContentHash(text string) string {
	var buf [8]byte
	sum := xxh3.HashString(text)
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}
