package common

import (
	"bytes"
	"testing"
)

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x1f, 0xab, 0xff}

	s := EncodeToString(data)
	if s != "0X001FABFF" {
		t.Fatalf("expected 0X001FABFF, got %s", s)
	}

	back, err := DecodeFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, data) {
		t.Fatalf("expected %v, got %v", data, back)
	}

	if _, err := DecodeFromString("0x001f"); err != nil {
		t.Fatalf("lower case prefix should be accepted: %v", err)
	}

	if _, err := DecodeFromString("001F"); err == nil {
		t.Fatalf("missing prefix should fail")
	}
}

func TestHash64(t *testing.T) {
	// FNV-1a offset basis
	if h := Hash64(nil); h != 14695981039346656037 {
		t.Fatalf("empty input should hash to the offset basis, got %d", h)
	}

	if Hash64([]byte("host:1337")) == Hash64([]byte("host:1338")) {
		t.Fatalf("different seeds should not collide here")
	}
}

func TestPositiveID(t *testing.T) {
	for _, seed := range []string{"", "a", "host:1337:/tmp", "host:1338:/tmp"} {
		id := PositiveID([]byte(seed))
		if id <= 0 {
			t.Fatalf("PositiveID(%q) = %d", seed, id)
		}
		if id != PositiveID([]byte(seed)) {
			t.Fatalf("PositiveID should be deterministic")
		}
	}
}
