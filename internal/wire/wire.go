package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1

	headerLen = 4 + 1 + 1 + 8 + 8*4 + 4
)

var (
	ErrCorrupt = errors.New("sessiontx: corrupt entry")
	magic4     = [...]byte{'S', 'T', 'X', 'E'}
)

// Header is the per-entry metadata a byte store keeps next to the payload.
// Times are unix milliseconds; LifespanMs/MaxIdleMs <= 0 mean unbounded.
type Header struct {
	Version    uint64
	WrittenMs  int64
	AccessedMs int64
	LifespanMs int64
	MaxIdleMs  int64
}

// Expired reports whether the entry is past its lifespan or idle window at nowMs.
func (h Header) Expired(nowMs int64) bool {
	if h.LifespanMs > 0 && nowMs >= h.WrittenMs+h.LifespanMs {
		return true
	}
	if h.MaxIdleMs > 0 && nowMs >= h.AccessedMs+h.MaxIdleMs {
		return true
	}
	return false
}

// Entry: magic(4) | ver(1) | kind(1) | version(u64 be) | written(i64 be) |
// accessed(i64 be) | lifespan(i64 be) | maxIdle(i64 be) | vlen(u32 be) | payload(vlen)
func EncodeEntry(h Header, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	for _, v := range [...]uint64{h.Version, uint64(h.WrittenMs), uint64(h.AccessedMs), uint64(h.LifespanMs), uint64(h.MaxIdleMs)} {
		binary.BigEndian.PutUint64(u8[:], v)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEntry(b []byte) (Header, []byte, error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version || b[5] != kindEntry {
		return Header{}, nil, ErrCorrupt
	}

	off := 6
	next := func() uint64 {
		v := binary.BigEndian.Uint64(b[off : off+8])
		off += 8
		return v
	}

	var h Header
	h.Version = next()
	h.WrittenMs = int64(next())
	h.AccessedMs = int64(next())
	h.LifespanMs = int64(next())
	h.MaxIdleMs = int64(next())

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off { // exact: no trailing bytes
		return Header{}, nil, ErrCorrupt
	}
	return h, b[off:], nil
}

// Touch rewrites the accessed time of an encoded entry in place.
func Touch(b []byte, nowMs int64) error {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) {
		return ErrCorrupt
	}
	binary.BigEndian.PutUint64(b[6+8+8:6+8+8+8], uint64(nowMs))
	return nil
}
