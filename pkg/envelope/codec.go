package envelope

import (
	"fmt"

	"github.com/morezero/scoped-messaging/pkg/jsoncodec"
)

const codecLogPrefix = "envelope:codec"

// MarshalRequest serializes a request envelope for transit.
func MarshalRequest(r *Request) ([]byte, error) {
	data, err := jsoncodec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode request %s/%s: %w", codecLogPrefix, r.Scope, r.Name, err)
	}
	return data, nil
}

// UnmarshalRequest parses a request envelope.
func UnmarshalRequest(data []byte) (*Request, error) {
	var r Request
	if err := jsoncodec.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s - failed to decode request: %w", codecLogPrefix, err)
	}
	return &r, nil
}

// MarshalResponse serializes a response envelope for transit.
func MarshalResponse(r *Response) ([]byte, error) {
	data, err := jsoncodec.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode response: %w", codecLogPrefix, err)
	}
	return data, nil
}

// UnmarshalResponse parses a response envelope. It does not validate the shape.
func UnmarshalResponse(data []byte) (*Response, error) {
	var r Response
	if err := jsoncodec.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s - failed to decode response: %w", codecLogPrefix, err)
	}
	return &r, nil
}

// CloneRequest copies r through the wire codec, so nothing but structure survives.
func CloneRequest(r *Request) (*Request, error) {
	data, err := MarshalRequest(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalRequest(data)
}

// CloneResponse copies r through the wire codec.
func CloneResponse(r *Response) (*Response, error) {
	data, err := MarshalResponse(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(data)
}
