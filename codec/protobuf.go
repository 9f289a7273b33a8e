package codec

import "google.golang.org/protobuf/proto"

var (
	pbMarshal   = proto.MarshalOptions{Deterministic: true}
	pbUnmarshal = proto.UnmarshalOptions{DiscardUnknown: true}
)

// Protobuf carries generated messages. Equal messages encode to equal bytes,
// and fields added by a newer peer are dropped on decode.
type Protobuf[T proto.Message] struct {
	alloc func() T
}

// NewProtobuf takes the allocator for T, e.g.
// func() *structpb.Struct { return &structpb.Struct{} }.
func NewProtobuf[T proto.Message](alloc func() T) Protobuf[T] {
	return Protobuf[T]{alloc: alloc}
}

func (p Protobuf[T]) Encode(v T) ([]byte, error) { return pbMarshal.Marshal(v) }

func (p Protobuf[T]) Decode(b []byte) (T, error) {
	m := p.alloc()
	if err := pbUnmarshal.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
