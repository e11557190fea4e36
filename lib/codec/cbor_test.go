// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleHeader struct {
	Sender string `cbor:"sender"`
	Body   string `cbor:"body,omitempty"`
	Size   int64  `cbor:"size"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleHeader{Sender: "alice", Body: "hello", Size: 42}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleHeader
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	header := sampleHeader{Sender: "bob", Body: "hi", Size: 7}

	first, err := Marshal(header)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(header)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	headers := []sampleHeader{
		{Sender: "alice", Body: "one", Size: 1},
		{Sender: "bob", Body: "two", Size: 2},
		{Sender: "carol", Size: 0},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, header := range headers {
		if err := encoder.Encode(header); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range headers {
		var got sampleHeader
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode item %d: %v", i, err)
		}
		if got != want {
			t.Errorf("item %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var header sampleHeader
	if err := Unmarshal([]byte{0xff, 0x00, 0x13}, &header); err == nil {
		t.Fatal("expected error decoding invalid CBOR")
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"sender": "a", "sender": "b"}
	data := []byte{
		0xa2,
		0x66, 's', 'e', 'n', 'd', 'e', 'r', 0x61, 'a',
		0x66, 's', 'e', 'n', 'd', 'e', 'r', 0x61, 'b',
	}
	var header sampleHeader
	if err := Unmarshal(data, &header); err == nil {
		t.Fatal("expected error for duplicate map key")
	}
}
