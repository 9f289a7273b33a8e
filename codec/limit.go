package codec

import (
	"errors"
	"fmt"
)

var ErrTooLarge = errors.New("codec: payload too large")

// Limit caps the bytes handed to Inner on decode, so a corrupt or hostile
// entry written by another node cannot force a huge allocation.
// MaxDecode <= 0 turns the cap off. Encoding is not limited.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (l Limit[V]) Encode(v V) ([]byte, error) { return l.Inner.Encode(v) }

func (l Limit[V]) Decode(b []byte) (V, error) {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), l.MaxDecode)
	}
	return l.Inner.Decode(b)
}
