package symcache

import (
	"errors"
	"testing"
)

func TestDecodeTruncatedHeaderIsMalformed(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	var derr *Error
	if !errors.As(err, &derr) || derr.Kind != ErrMalformedBuffer {
		t.Fatalf("got %v, want ErrMalformedBuffer", err)
	}
}

func TestDecodeTruncatedRangesIsMalformed(t *testing.T) {
	orig := buildTwoDeepInlineCache()
	buf := orig.Encode()

	// Truncate right after the header (an 8-byte offset and six 4-byte
	// counts) plus one of the two range entries, before the range table is
	// fully written.
	const headerSize = 8 + 6*4
	truncated := buf[:headerSize+4]
	_, err := Decode(truncated)
	if err == nil {
		t.Fatalf("expected an error decoding a truncated buffer")
	}
}

func TestDecodeEmptyBufferIsMalformed(t *testing.T) {
	_, err := Decode(nil)
	if err == nil {
		t.Fatalf("expected an error decoding an empty buffer")
	}
}
