// Package localid provides identifier generation for offline-created
// records.
package localid

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var counter atomic.Int64

// NewProvisional returns a provisional local id for a record created while
// offline. The id is negative so it can never collide with a server-assigned
// id, and combines wall-clock milliseconds with a per-process monotonic
// counter so two writes in the same clock tick stay distinct.
func NewProvisional() int64 {
	millis := time.Now().UnixMilli()
	n := counter.Add(1) % 1000
	return -(millis*1000 + n)
}

// NewRequestID returns a UUID v4 sent as the X-Request-ID header so a
// request can be correlated in backend logs. A fresh id is generated per
// attempt; replay safety comes from the natural-key conflict handling in
// the sync layer, not from this header.
func NewRequestID() string {
	return uuid.New().String()
}
