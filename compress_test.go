package mgo

import "testing"

func TestNegotiateCompressorPrefersSnappy(t *testing.T) {
	if got := negotiateCompressor([]string{"zlib", "snappy"}); got != compressorSnappy {
		t.Fatalf("negotiateCompressor = %v, want snappy", got)
	}
}

func TestNegotiateCompressorFallsBackToZlib(t *testing.T) {
	if got := negotiateCompressor([]string{"zlib"}); got != compressorZlib {
		t.Fatalf("negotiateCompressor = %v, want zlib", got)
	}
}

func TestNegotiateCompressorNoneWhenUnsupported(t *testing.T) {
	if got := negotiateCompressor([]string{"zstd"}); got != compressorNone {
		t.Fatalf("negotiateCompressor = %v, want none", got)
	}
}

func TestWrapUnwrapCompressedRoundTrip(t *testing.T) {
	msg := frame(1, 0, opQuery, []byte("hello world, this is a test payload"))

	for _, c := range []Compressor{compressorSnappy, compressorZlib} {
		wrapped, err := wrapCompressed(msg, c)
		if err != nil {
			t.Fatalf("wrapCompressed(%v): %v", c, err)
		}
		h := decodeHeader(wrapped[:16])
		if h.OpCode != opCompressed {
			t.Fatalf("wrapped opcode = %d, want opCompressed", h.OpCode)
		}

		gotOpcode, payload, err := unwrapCompressed(wrapped[16:])
		if err != nil {
			t.Fatalf("unwrapCompressed(%v): %v", c, err)
		}
		if gotOpcode != opQuery {
			t.Fatalf("unwrapped opcode = %d, want opQuery", gotOpcode)
		}
		if string(payload) != string(msg[16:]) {
			t.Fatalf("payload mismatch for %v: got %q, want %q", c, payload, msg[16:])
		}
	}
}

func TestWrapCompressedNoneIsPassthrough(t *testing.T) {
	msg := frame(1, 0, opQuery, []byte("payload"))
	wrapped, err := wrapCompressed(msg, compressorNone)
	if err != nil {
		t.Fatalf("wrapCompressed: %v", err)
	}
	if string(wrapped) != string(msg) {
		t.Fatalf("compressorNone should not modify the message")
	}
}
