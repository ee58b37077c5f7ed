package pathcodec

import (
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]string{
		nil,
		{},
		{"hello"},
		{"hello", "world"},
		{"apple", "banana", "cherry", "date", "elderberry"},
		{""},
		{"new york", "hello"},
	}
	for _, path := range cases {
		encoded := Encode(path)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%v)) returned error: %v", path, err)
		}
		if len(decoded) != len(path) {
			// nil and {} both decode to empty/nil slices of length 0
			if len(path) != 0 {
				t.Fatalf("Decode(Encode(%v)) = %v", path, decoded)
			}
			continue
		}
		for i := range path {
			if decoded[i] != path[i] {
				t.Fatalf("Decode(Encode(%v)) = %v", path, decoded)
			}
		}
	}
}

func TestPrefixLaw(t *testing.T) {
	ancestor := []string{"hello"}
	descendant := []string{"hello", "world"}
	unrelated := []string{"goodbye"}

	encAncestor := Encode(ancestor)
	encDescendant := Encode(descendant)
	encUnrelated := Encode(unrelated)

	if !IsPrefix(encAncestor, encDescendant) {
		t.Error("encode(ancestor) should be a byte-prefix of encode(descendant)")
	}
	if IsPrefix(encAncestor, encUnrelated) {
		t.Error("encode(ancestor) should not be a byte-prefix of an unrelated path")
	}
	if IsPrefix(encDescendant, encAncestor) {
		t.Error("a descendant's key must not be a prefix of its ancestor's key")
	}
}

func TestDecodeCorruptKey(t *testing.T) {
	cases := [][]byte{
		{1, 2, 3},                         // truncated length prefix
		{5, 0, 0, 0, 0, 0, 0, 0, 'h', 'i'}, // length says 5, only 2 bytes follow
	}
	for _, c := range cases {
		if _, err := Decode(c); err == nil {
			t.Errorf("Decode(%v) should have failed with ErrCorruptKey", c)
		}
	}
}

func TestSiblingsNotPrefixes(t *testing.T) {
	// Components are length-prefixed, so "ab"+"c" must not collide with "a"+"bc".
	a := Encode([]string{"ab", "c"})
	b := Encode([]string{"a", "bc"})
	if string(a) == string(b) {
		t.Error("length-prefixed encoding must distinguish different component splits")
	}
}
