package badger

import (
	"encoding/binary"
)

const (
	documentPrefix = "doc"
	chunkPrefix    = "dchunk"
)

func makeDocumentKey(id string) []byte {
	return []byte(documentPrefix + ":" + id)
}

func makeDocumentPrefix() []byte {
	return []byte(documentPrefix + ":")
}

// makeChunkPrefix returns the key prefix shared by all chunks of a document.
// The id is length-prefixed so no id can be a prefix of another's keys.
func makeChunkPrefix(documentID string) []byte {
	prefix := chunkPrefix + ":"
	buf := make([]byte, len(prefix)+2+len(documentID))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(documentID)))
	offset += 2
	copy(buf[offset:], documentID)
	return buf
}

func makeChunkKey(documentID string, ordinal int) []byte {
	prefix := makeChunkPrefix(documentID)
	buf := make([]byte, len(prefix)+8) // 8 bytes for ordinal
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows ordinal order
	binary.BigEndian.PutUint64(buf[offset:], uint64(ordinal))
	return buf
}
