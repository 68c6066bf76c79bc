package codec

import (
	msgpack "github.com/hashicorp/go-msgpack/v2/codec"
)

// MsgpackCodec encodes the envelope with MessagePack. The payload stays JSON;
// only the envelope fields are packed.
type MsgpackCodec struct {
	handle *msgpack.MsgpackHandle
}

func NewMsgpackCodec() *MsgpackCodec {
	h := &msgpack.MsgpackHandle{}
	h.RawToString = true
	return &MsgpackCodec{handle: h}
}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	var out []byte
	if err := msgpack.NewEncoderBytes(&out, c.handle).Encode(v); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	return msgpack.NewDecoderBytes(data, c.handle).Decode(v)
}

func (c *MsgpackCodec) Type() CodecType {
	return CodecTypeMsgpack
}
