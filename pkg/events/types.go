// Package events defines storage change events and the publishers that
// announce them.
package events

// Storage operations reported in StorageChangedEvent.Operation.
const (
	OperationSet    = "set"
	OperationRemove = "remove"
)

// StorageChangedEvent is emitted after a storage entry was written or removed.
type StorageChangedEvent struct {
	Key       string `json:"key"`
	Operation string `json:"operation"`
	Revision  int64  `json:"revision"`
	// Origin is the sender that caused the change, when known.
	Origin    string `json:"origin,omitempty"`
	Timestamp string `json:"timestamp"`
}
