package db

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("db: entry not found")

// KVEntry represents a row in the kv_entries table. Value holds raw JSON.
type KVEntry struct {
	Key        string    `json:"key"`
	Value      []byte    `json:"value"`
	Revision   int64     `json:"revision"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
	ModifiedBy string    `json:"modified_by"`
}
