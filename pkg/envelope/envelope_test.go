package envelope

import (
	"errors"
	"reflect"
	"testing"

	"github.com/morezero/scoped-messaging/pkg/msgerr"
	"github.com/morezero/scoped-messaging/pkg/result"
)

const envelopeTestPrefix = "envelope:envelope_test"

// roundTrip encodes v, ships it through the wire codec, and decodes the reply.
func roundTrip(t *testing.T, v any) result.Result {
	t.Helper()
	resp, err := CloneResponse(EncodeResult(v))
	if err != nil {
		t.Fatalf("%s - clone failed: %v", envelopeTestPrefix, err)
	}
	if err := resp.Validate(); err != nil {
		t.Fatalf("%s - Validate failed: %v", envelopeTestPrefix, err)
	}
	if resp.IsError() {
		t.Fatalf("%s - unexpected error envelope", envelopeTestPrefix)
	}
	return DecodeResponse(resp)
}

func TestEncodeRequest_WireShape(t *testing.T) {
	tests := []struct {
		name string
		req  any
		want string
	}{
		{"absent req is omitted", nil, `{"scope":"storage","name":"get"}`},
		{"object req", map[string]any{"key": "a"}, `{"scope":"storage","name":"get","req":{"key":"a"}}`},
		{"zero number is kept", 0, `{"scope":"storage","name":"get","req":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalRequest(EncodeRequest("storage", "get", tt.req))
			if err != nil {
				t.Fatalf("%s - MarshalRequest failed: %v", envelopeTestPrefix, err)
			}
			if string(data) != tt.want {
				t.Errorf("%s - got %s, want %s", envelopeTestPrefix, data, tt.want)
			}
		})
	}
}

func TestEncodeResult_WireShape(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"success without payload", result.Success(), `{"success":true}`},
		{"nil handler value", nil, `{"success":true}`},
		{"success with payload", result.SuccessOf("x"), `{"success":true,"data":"x"}`},
		{"raw value", map[string]any{"n": 1}, `{"success":true,"data":{"n":1}}`},
		{"false payload is kept", false, `{"success":true,"data":false}`},
		{"failure", result.Failure("nope"), `{"success":false,"message":"nope"}`},
		{"failure with empty message", result.Failure(""), `{"success":false,"message":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalResponse(EncodeResult(tt.v))
			if err != nil {
				t.Fatalf("%s - MarshalResponse failed: %v", envelopeTestPrefix, err)
			}
			if string(data) != tt.want {
				t.Errorf("%s - got %s, want %s", envelopeTestPrefix, data, tt.want)
			}
		})
	}
}

func TestErrorResponse_WireShape(t *testing.T) {
	data, err := MarshalResponse(ErrorResponse("no handler for get"))
	if err != nil {
		t.Fatalf("%s - MarshalResponse failed: %v", envelopeTestPrefix, err)
	}
	if string(data) != `{"error":"no handler for get"}` {
		t.Errorf("%s - got %s", envelopeTestPrefix, data)
	}
}

func TestRoundTrip_SuccessPayloads(t *testing.T) {
	payloads := []any{
		"hello",
		int64(42),
		int64(1<<62 + 3),
		float64(0.25),
		true,
		false,
		int64(0),
		"",
		[]any{"a", int64(1)},
		map[string]any{"nested": map[string]any{"k": []any{true}}},
	}

	for _, x := range payloads {
		got := roundTrip(t, result.SuccessOf(x))
		if !result.IsSuccess(got) {
			t.Errorf("%s - %v decoded as failure", envelopeTestPrefix, x)
			continue
		}
		if !reflect.DeepEqual(got.Data(), x) {
			t.Errorf("%s - payload = %#v, want %#v", envelopeTestPrefix, got.Data(), x)
		}
	}
}

func TestRoundTrip_StructPayloadBecomesStructure(t *testing.T) {
	type tab struct {
		ID  int    `json:"id"`
		URL string `json:"url"`
	}
	got := roundTrip(t, tab{ID: 7, URL: "https://example.com"})

	want := map[string]any{"id": int64(7), "url": "https://example.com"}
	if !reflect.DeepEqual(got.Data(), want) {
		t.Errorf("%s - payload = %#v, want %#v", envelopeTestPrefix, got.Data(), want)
	}
}

func TestRoundTrip_SuccessWithoutPayload(t *testing.T) {
	got := roundTrip(t, result.Success())
	if !got.IsSuccess() {
		t.Fatalf("%s - Success() decoded as failure", envelopeTestPrefix)
	}
	if got.HasData() {
		t.Errorf("%s - Success() decoded with payload %v", envelopeTestPrefix, got.Data())
	}
}

func TestRoundTrip_Failure(t *testing.T) {
	for _, m := range []string{"", "boom", "unicode ✓", `quoted "text"`} {
		got := roundTrip(t, result.Failure(m))
		if !result.IsFailure(got) {
			t.Errorf("%s - failure(%q) decoded as success", envelopeTestPrefix, m)
			continue
		}
		if got.Message() != m {
			t.Errorf("%s - Message() = %q, want %q", envelopeTestPrefix, got.Message(), m)
		}
	}
}

func TestDecodeResponse_FailureMessageDefaults(t *testing.T) {
	f := false
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{"absent message", &Response{Success: &f}, ""},
		{"non-string message", &Response{Success: &f, Message: float64(3)}, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeResponse(tt.resp)
			if !got.IsFailure() || got.Message() != tt.want {
				t.Errorf("%s - got %v, want Failure(%q)", envelopeTestPrefix, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"success", `{"success":true}`, false},
		{"failure", `{"success":false}`, false},
		{"error", `{"error":"boom"}`, false},
		{"error wins over success", `{"error":"boom","success":true}`, false},
		{"missing discriminant", `{"data":1}`, true},
		{"empty object", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := UnmarshalResponse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("%s - UnmarshalResponse failed: %v", envelopeTestPrefix, err)
			}
			err = resp.Validate()
			if tt.wantErr {
				if !errors.Is(err, msgerr.ErrProtocol) {
					t.Errorf("%s - Validate() = %v, want ErrProtocol", envelopeTestPrefix, err)
				}
				return
			}
			if err != nil {
				t.Errorf("%s - unexpected error: %v", envelopeTestPrefix, err)
			}
		})
	}

	var nilResp *Response
	if err := nilResp.Validate(); !errors.Is(err, msgerr.ErrProtocol) {
		t.Errorf("%s - nil response Validate() = %v", envelopeTestPrefix, err)
	}
}

func TestErrorAccessors(t *testing.T) {
	resp := ErrorResponse("boom")
	if !resp.IsError() || resp.ErrorMessage() != "boom" {
		t.Errorf("%s - accessors = %v, %q", envelopeTestPrefix, resp.IsError(), resp.ErrorMessage())
	}
	ok := EncodeResult(nil)
	if ok.IsError() || ok.ErrorMessage() != "" {
		t.Errorf("%s - success envelope reported as error", envelopeTestPrefix)
	}
}

func TestUnmarshalRequest(t *testing.T) {
	req, err := UnmarshalRequest([]byte(`{"scope":"tabs","name":"create","req":{"url":"a"}}`))
	if err != nil {
		t.Fatalf("%s - UnmarshalRequest failed: %v", envelopeTestPrefix, err)
	}
	if req.Scope != "tabs" || req.Name != "create" {
		t.Errorf("%s - address = %s/%s", envelopeTestPrefix, req.Scope, req.Name)
	}
	if !reflect.DeepEqual(req.Req, map[string]any{"url": "a"}) {
		t.Errorf("%s - req = %#v", envelopeTestPrefix, req.Req)
	}

	if _, err := UnmarshalRequest([]byte(`not json`)); err == nil {
		t.Errorf("%s - expected error for invalid JSON", envelopeTestPrefix)
	}
}
