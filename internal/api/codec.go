// Package api exposes the daemon to zppctl and zpptui over gRPC.
package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// CodecName is the gRPC content subtype both ends must use.
const CodecName = "zpp-struct"

// structCodec carries Go request and response structs as protobuf Struct
// frames. Values pass through their JSON form, so numbers are float64 on the
// wire and must stay within 2^53.
type structCodec struct{}

func init() {
	encoding.RegisterCodec(structCodec{})
}

func (structCodec) Name() string { return CodecName }

func (structCodec) Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %T: not an object: %w", v, err)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return proto.Marshal(s)
}

func (structCodec) Unmarshal(data []byte, v any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
