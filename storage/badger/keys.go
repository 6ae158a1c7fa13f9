package badger

import (
	"encoding/binary"

	"github.com/poiesic/capsearch/core"
)

// Key prefixes for different data types
const (
	capabilityPrefix    = "capab"
	keyElementPrefix    = "kelem"
	capabilityTagPrefix = "capkel"
)

// makeCapabilityKey generates a key for a capability by ID.
func makeCapabilityKey(id string) []byte {
	return []byte(capabilityPrefix + ":" + id)
}

// capabilityIDFromKey strips the capability prefix from a primary key.
func capabilityIDFromKey(key []byte) string {
	return string(key[len(capabilityPrefix)+1:])
}

// tagID derives the key element entity id for a normalized tag.
func tagID(tag string) core.ID {
	return core.IDFromContent(tag)
}

// makeKeyElementKey generates a key for a key element entity.
// Format: prefix:tagID
func makeKeyElementKey(id core.ID) []byte {
	prefix := []byte(keyElementPrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeCapabilityTagKey generates a composite key for the tag edge index.
// Format: prefix:tagID:capabilityID
func makeCapabilityTagKey(id core.ID, capabilityID string) []byte {
	prefix := makePartialCapabilityTagKey(id)
	buf := make([]byte, len(prefix)+len(capabilityID))
	offset := copy(buf, prefix)
	copy(buf[offset:], capabilityID)
	return buf
}

// makePartialCapabilityTagKey generates a partial key for tag queries.
// Format: prefix:tagID:
func makePartialCapabilityTagKey(id core.ID) []byte {
	prefix := []byte(capabilityTagPrefix + ":")
	totalSize := len(prefix) + 8 + 1 // 8 bytes for tagID + separator
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	buf[totalSize-1] = ':'
	return buf
}
