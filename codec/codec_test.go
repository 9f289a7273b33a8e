package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

type rec struct {
	ID    string            `msgpack:"id" json:"id" cbor:"1,keyasint"`
	Count int64             `msgpack:"n" json:"n" cbor:"2,keyasint"`
	Notes map[string]string `msgpack:"notes" json:"notes" cbor:"3,keyasint"`
}

func TestCodecsRoundTrip(t *testing.T) {
	in := rec{ID: "a", Count: 42, Notes: map[string]string{"b": "2", "a": "1"}}
	codecs := map[string]Codec[rec]{
		"json":    JSON[rec]{},
		"msgpack": Msgpack[rec]{},
		"cbor":    MustCBOR[rec](),
		"limit":   Limit[rec]{Inner: Msgpack[rec]{}, MaxDecode: 1 << 10},
	}
	for name, c := range codecs {
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if out.ID != in.ID || out.Count != in.Count || len(out.Notes) != 2 || out.Notes["a"] != "1" {
			t.Fatalf("%s: got %+v", name, out)
		}
	}
}

func TestMsgpackCompactInts(t *testing.T) {
	small, _ := Msgpack[int64]{}.Encode(7)
	if len(small) != 1 {
		t.Fatalf("small int should be a single fixint byte, got %d bytes", len(small))
	}
}

// Deterministic CBOR gives equal bytes for equal maps regardless of
// insertion order.
func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]string]()
	a := map[string]string{}
	b := map[string]string{}
	for _, k := range []string{"x", "y", "z", "w"} {
		a[k] = k
	}
	for _, k := range []string{"w", "z", "y", "x"} {
		b[k] = k
	}
	ea, _ := c.Encode(a)
	eb, _ := c.Encode(b)
	if !bytes.Equal(ea, eb) {
		t.Fatalf("encodings differ")
	}
}

func TestLimitRejectsLargePayload(t *testing.T) {
	c := Limit[rec]{Inner: JSON[rec]{}, MaxDecode: 8}
	b, err := c.Encode(rec{ID: strings.Repeat("x", 32)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := c.Decode(b); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	off := Limit[rec]{Inner: JSON[rec]{}}
	if _, err := off.Decode(b); err != nil {
		t.Fatalf("MaxDecode 0 must not limit: %v", err)
	}
}

func TestProtobufStruct(t *testing.T) {
	c := NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
	in, err := structpb.NewStruct(map[string]any{"id": "a", "n": 3.0})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Fields["id"].GetStringValue() != "a" || out.Fields["n"].GetNumberValue() != 3 {
		t.Fatalf("got %v", out)
	}
	if _, err := c.Decode([]byte{0xff, 0xff}); err == nil {
		t.Fatalf("expected error on garbage")
	}
}
