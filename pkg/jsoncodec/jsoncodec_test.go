package jsoncodec

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

const codecTestPrefix = "jsoncodec:jsoncodec_test"

func TestMarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		{name: "simple map", input: map[string]string{"key": "value"}, want: `{"key":"value"}`},
		{name: "struct", input: struct{ Name string }{Name: "test"}, want: `{"Name":"test"}`},
		{name: "int", input: 42, want: "42"},
		{name: "string", input: "hello", want: `"hello"`},
		{name: "nil", input: nil, want: "null"},
		{name: "slice", input: []int{1, 2, 3}, want: "[1,2,3]"},
		{name: "channel is not serializable", input: make(chan int), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error but got nil", codecTestPrefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
			}
			if got := string(data); got != tt.want {
				t.Errorf("%s - Marshal() = %q, want %q", codecTestPrefix, got, tt.want)
			}
		})
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	for _, data := range []string{`{invalid}`, ""} {
		var v map[string]any
		if err := Unmarshal([]byte(data), &v); err == nil {
			t.Errorf("%s - expected error for %q", codecTestPrefix, data)
		}
	}
}

func TestConvert(t *testing.T) {
	type item struct {
		Key   string `json:"key"`
		Count int    `json:"count"`
	}

	var got item
	src := map[string]any{"key": "a", "count": float64(3)}
	if err := Convert(src, &got); err != nil {
		t.Fatalf("%s - Convert failed: %v", codecTestPrefix, err)
	}
	if got.Key != "a" || got.Count != 3 {
		t.Errorf("%s - Convert() = %+v, want {a 3}", codecTestPrefix, got)
	}
}

func TestClone_DropsIdentity(t *testing.T) {
	type payload struct {
		Tags []string `json:"tags"`
	}
	orig := &payload{Tags: []string{"x"}}

	cloned, err := Clone(orig)
	if err != nil {
		t.Fatalf("%s - Clone failed: %v", codecTestPrefix, err)
	}
	want := map[string]any{"tags": []any{"x"}}
	if !reflect.DeepEqual(cloned, want) {
		t.Errorf("%s - Clone() = %#v, want %#v", codecTestPrefix, cloned, want)
	}

	orig.Tags[0] = "mutated"
	if !reflect.DeepEqual(cloned, want) {
		t.Errorf("%s - clone changed after mutating the original", codecTestPrefix)
	}
}

func TestClone_Numbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "small int", in: 42, want: int64(42)},
		{name: "beyond 2^53", in: int64(1<<60 + 1), want: int64(1<<60 + 1)},
		{name: "negative", in: int64(-9007199254740993), want: int64(-9007199254740993)},
		{name: "fraction", in: 2.5, want: float64(2.5)},
		{name: "nested", in: map[string]any{"ids": []int64{1<<62 + 3}}, want: map[string]any{"ids": []any{int64(1<<62 + 3)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clone(tt.in)
			if err != nil {
				t.Fatalf("%s - Clone failed: %v", codecTestPrefix, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s - Clone(%v) = %#v, want %#v", codecTestPrefix, tt.in, got, tt.want)
			}
		})
	}
}

func TestConvert_KeepsLargeIntegers(t *testing.T) {
	type record struct {
		ID uint64 `json:"id"`
	}
	cloned, err := Clone(record{ID: 1<<60 + 1})
	if err != nil {
		t.Fatal(err)
	}
	var got record
	if err := Convert(cloned, &got); err != nil {
		t.Fatalf("%s - Convert failed: %v", codecTestPrefix, err)
	}
	if got.ID != 1<<60+1 {
		t.Errorf("%s - ID = %d, want %d", codecTestPrefix, got.ID, uint64(1<<60+1))
	}
}

func TestClone_Nil(t *testing.T) {
	got, err := Clone(nil)
	if err != nil || got != nil {
		t.Errorf("%s - Clone(nil) = %v, %v; want nil, nil", codecTestPrefix, got, err)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, map[string]bool{"ok": true}); err != nil {
		t.Fatalf("%s - Encode failed: %v", codecTestPrefix, err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"ok":true}` {
		t.Errorf("%s - Encode() = %q", codecTestPrefix, got)
	}
}
