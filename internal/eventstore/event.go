package eventstore

import "time"

// Record is one persisted history row.
type Record struct {
	ID        int64
	BuildID   string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}
