package wire

import (
	"bytes"
	"math"
	"testing"
)

func mustDecode(t *testing.T, b []byte) (Header, []byte) {
	t.Helper()
	h, p, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return h, p
}

func TestEntryHeaderAndPayload(t *testing.T) {
	cases := []struct {
		h       Header
		payload []byte
	}{
		{Header{}, nil},
		{Header{Version: 42, WrittenMs: 1000, AccessedMs: 1500, LifespanMs: 60000, MaxIdleMs: 3000}, []byte("hello")},
		{Header{Version: math.MaxUint64, LifespanMs: -1, MaxIdleMs: -1}, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		h, p := mustDecode(t, EncodeEntry(tc.h, tc.payload))
		if h != tc.h {
			t.Fatalf("header mismatch: got %+v want %+v", h, tc.h)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry(Header{Version: 7}, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestEntryCorruptHeaders(t *testing.T) {
	enc := EncodeEntry(Header{Version: 1}, []byte("abc"))

	cases := map[string][]byte{
		"empty":     nil,
		"short":     enc[:10],
		"truncated": enc[:len(enc)-1],
	}
	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	cases["magic"] = badMagic
	badVersion := append([]byte(nil), enc...)
	badVersion[4] = 99
	cases["version"] = badVersion
	badKind := append([]byte(nil), enc...)
	badKind[5] = 7
	cases["kind"] = badKind

	for name, b := range cases {
		if _, _, err := DecodeEntry(b); err != ErrCorrupt {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestHeaderExpired(t *testing.T) {
	h := Header{WrittenMs: 1000, AccessedMs: 5000, LifespanMs: 10000, MaxIdleMs: 2000}
	if h.Expired(6999) {
		t.Fatalf("not expired before idle window ends")
	}
	if !h.Expired(7000) {
		t.Fatalf("expired once idle window ends")
	}
	h.MaxIdleMs = 0
	if h.Expired(10999) || !h.Expired(11000) {
		t.Fatalf("lifespan boundary wrong")
	}
	if (Header{LifespanMs: -1, MaxIdleMs: -1}).Expired(math.MaxInt64) {
		t.Fatalf("unbounded entry must never expire")
	}
}

func TestTouchUpdatesAccessedOnly(t *testing.T) {
	in := Header{Version: 3, WrittenMs: 10, AccessedMs: 10, LifespanMs: 100, MaxIdleMs: 50}
	enc := EncodeEntry(in, []byte("p"))
	if err := Touch(enc, 77); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	h, p := mustDecode(t, enc)
	in.AccessedMs = 77
	if h != in || string(p) != "p" {
		t.Fatalf("after touch got %+v %q", h, p)
	}
	if err := Touch([]byte("nope"), 1); err != ErrCorrupt {
		t.Fatalf("Touch on garbage: %v", err)
	}
}
