package models

import (
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

// idCounter disambiguates detections minted within the same millisecond.
// No ULID library appears anywhere in the retrieval pack, and the format
// here is deliberately small: an 8-byte millisecond timestamp followed by
// a 4-byte atomic counter, both big-endian so the hex string sorts
// lexicographically in generation order, which is all a "ULID-like
// monotonic" id (spec §3) requires.
var idCounter uint32

// NewDetectionID mints a lexicographically sortable detection id.
func NewDetectionID() string {
	ms := uint64(time.Now().UnixMilli())
	seq := atomic.AddUint32(&idCounter, 1)

	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], ms)
	binary.BigEndian.PutUint32(buf[8:], seq)
	return hex.EncodeToString(buf)
}
