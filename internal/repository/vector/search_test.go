package vector

import (
	"bytes"
	"testing"
)

func TestVectorToBytes(t *testing.T) {
	got := vectorToBytes([]float32{1.0, -2.5})

	// 1.0 = 0x3f800000, -2.5 = 0xc0200000, little-endian per element.
	want := []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x20, 0xc0}
	if !bytes.Equal(got, want) {
		t.Errorf("vectorToBytes = % x, want % x", got, want)
	}
}

func TestVectorToBytes_Empty(t *testing.T) {
	if got := vectorToBytes(nil); len(got) != 0 {
		t.Errorf("expected empty buffer, got % x", got)
	}
}

func TestEscapeQuery(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"red shoes", "red shoes"},
		{"@title:{hack}", "title  hack"},
		{"price>100 | sale*", "price 100   sale"},
		{"(a) [b] \"c\"", "a   b   c"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := escapeQuery(tc.in); got != tc.want {
			t.Errorf("escapeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
