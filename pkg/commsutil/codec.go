package commsutil

import "github.com/morezero/scoped-messaging/pkg/jsoncodec"

// EncodePayload serializes a value for a COMMS message body.
func EncodePayload(v any) ([]byte, error) {
	return jsoncodec.Marshal(v)
}

// DecodePayload deserializes a COMMS message body into target.
func DecodePayload(data []byte, target any) error {
	return jsoncodec.Unmarshal(data, target)
}
