package codec

import (
	"encoding/binary"
	"errors"
	"remote-module/message"
)

var errShortBuffer = errors.New("BinaryCodec: truncated message")

// BinaryCodec lays the envelope out as length-prefixed fields:
//
//	u16 len | ServiceMethod | u16 len | RequestID | u32 len | Payload | u16 len | Error
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return nil, errors.New("BinaryCodec: v must be *RPCMessage")
	}
	if len(msg.ServiceMethod) > 0xFFFF || len(msg.RequestID) > 0xFFFF || len(msg.Error) > 0xFFFF {
		return nil, errors.New("BinaryCodec: string field longer than 65535 bytes")
	}

	total := 2 + len(msg.ServiceMethod) + 2 + len(msg.RequestID) + 4 + len(msg.Payload) + 2 + len(msg.Error)
	buf := make([]byte, total)

	offset := putString16(buf, 0, msg.ServiceMethod)
	offset = putString16(buf, offset, msg.RequestID)

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(msg.Payload)))
	offset += 4
	copy(buf[offset:offset+len(msg.Payload)], msg.Payload)
	offset += len(msg.Payload)

	putString16(buf, offset, msg.Error)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return errors.New("BinaryCodec: v must be *RPCMessage")
	}

	var err error
	offset := 0
	if msg.ServiceMethod, offset, err = readString16(data, offset); err != nil {
		return err
	}
	if msg.RequestID, offset, err = readString16(data, offset); err != nil {
		return err
	}

	if len(data) < offset+4 {
		return errShortBuffer
	}
	payloadLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if len(data) < offset+payloadLen {
		return errShortBuffer
	}
	msg.Payload = make([]byte, payloadLen)
	copy(msg.Payload, data[offset:offset+payloadLen])
	offset += payloadLen

	msg.Error, _, err = readString16(data, offset)
	return err
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func putString16(buf []byte, offset int, s string) int {
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(s)))
	offset += 2
	copy(buf[offset:offset+len(s)], s)
	return offset + len(s)
}

func readString16(data []byte, offset int) (string, int, error) {
	if len(data) < offset+2 {
		return "", offset, errShortBuffer
	}
	n := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if len(data) < offset+n {
		return "", offset, errShortBuffer
	}
	return string(data[offset : offset+n]), offset + n, nil
}
