// Package pathcodec encodes a path (a sequence of name components) into a
// flat byte key that preserves ancestor/descendant prefix relationships.
//
// Each component is encoded as {u64 length, little-endian}{raw bytes}.
// Concatenating encoded components makes an ancestor's key a strict byte
// prefix of any descendant's key, which is exactly what the storage
// layer's prefix-watch primitive needs. There is no escaping: lengths
// delimit component boundaries unambiguously, so encoding is total and
// injective over the set of all path values.
package pathcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorruptKey is returned by Decode when the input is not a byte string
// produced by Encode — a truncated length prefix or a length that runs
// past the end of the buffer.
var ErrCorruptKey = errors.New("corrupt key")

const lenSize = 8

// Encode concatenates the length-prefixed encoding of each component in
// path. It is total, deterministic, and injective: Decode(Encode(p)) == p
// for every path p, and Encode(a) is a byte-prefix of Encode(b) exactly
// when a is an ancestor of b.
func Encode(path []string) []byte {
	size := 0
	for _, c := range path {
		size += lenSize + len(c)
	}
	out := make([]byte, 0, size)
	var lenBuf [lenSize]byte
	for _, c := range path {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(c)))
		out = append(out, lenBuf[:]...)
		out = append(out, c...)
	}
	return out
}

// Decode reverses Encode. It is total over outputs of Encode; malformed
// input (a truncated length or a length that overruns the buffer) fails
// with ErrCorruptKey.
func Decode(encoded []byte) ([]string, error) {
	var path []string
	idx := 0
	for idx < len(encoded) {
		if idx+lenSize > len(encoded) {
			return nil, fmt.Errorf("%w: truncated length prefix at offset %d", ErrCorruptKey, idx)
		}
		n := binary.LittleEndian.Uint64(encoded[idx : idx+lenSize])
		idx += lenSize
		end := idx + int(n)
		if n > uint64(len(encoded)) || end < idx || end > len(encoded) {
			return nil, fmt.Errorf("%w: component length %d overruns buffer at offset %d", ErrCorruptKey, n, idx)
		}
		path = append(path, string(encoded[idx:end]))
		idx = end
	}
	return path, nil
}

// IsPrefix reports whether encoded path a is a byte-prefix of encoded
// path b, i.e. whether a is an ancestor of (or equal to) b. The
// prefix-watch registry uses this to decide which subscriptions a
// committed key matches.
func IsPrefix(a, b []byte) bool {
	if len(a) > len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
