package remote

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	c "github.com/unkn0wn-root/sessiontx/codec"
)

// ProtoCodec encodes envelopes as a protobuf Struct, for secondary sites
// that consume with generic protobuf tooling rather than msgpack.
// The entity bytes travel base64-encoded.
type ProtoCodec struct {
	pb c.Protobuf[*structpb.Struct]
}

var _ c.Codec[Envelope] = ProtoCodec{}

func NewProtoCodec() ProtoCodec {
	return ProtoCodec{pb: c.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })}
}

func (p ProtoCodec) Encode(env Envelope) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"realm":  env.Realm,
		"cache":  env.Cache,
		"key":    env.Key,
		"op":     env.Operation,
		"ver":    fmt.Sprint(env.Version), // uint64 does not fit a float64 exactly
		"ls":     float64(env.LifespanMs),
		"mi":     float64(env.MaxIdleMs),
		"entity": base64.StdEncoding.EncodeToString(env.Entity),
		"at":     float64(env.SentAtMs),
	})
	if err != nil {
		return nil, err
	}
	return p.pb.Encode(s)
}

func (p ProtoCodec) Decode(b []byte) (Envelope, error) {
	s, err := p.pb.Decode(b)
	if err != nil {
		return Envelope{}, err
	}
	f := s.GetFields()
	env := Envelope{
		Realm:      f["realm"].GetStringValue(),
		Cache:      f["cache"].GetStringValue(),
		Key:        f["key"].GetStringValue(),
		Operation:  f["op"].GetStringValue(),
		LifespanMs: int64(f["ls"].GetNumberValue()),
		MaxIdleMs:  int64(f["mi"].GetNumberValue()),
		SentAtMs:   int64(f["at"].GetNumberValue()),
	}
	if _, err := fmt.Sscan(f["ver"].GetStringValue(), &env.Version); err != nil {
		return Envelope{}, fmt.Errorf("remote: envelope version: %w", err)
	}
	if e := f["entity"].GetStringValue(); e != "" {
		if env.Entity, err = base64.StdEncoding.DecodeString(e); err != nil {
			return Envelope{}, fmt.Errorf("remote: envelope entity: %w", err)
		}
	}
	return env, nil
}
