package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// protoMarshal is replaceable in tests.
var protoMarshal = proto.Marshal

// ProtoCodec encodes proto.Message bodies in the Protocol Buffers binary format.
type ProtoCodec struct{}

// ContentType returns the protobuf media type.
func (c *ProtoCodec) ContentType() string {
	return "application/x-protobuf"
}

// Marshal encodes v, which must implement proto.Message.
func (c *ProtoCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: %T does not implement proto.Message", v)
	}
	return protoMarshal(msg)
}

// NewProtoCodec creates a new ProtoCodec instance.
func NewProtoCodec() *ProtoCodec {
	return &ProtoCodec{}
}
