package codec

import (
	"remote-module/message"
	"testing"
)

func sampleMessage() *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: "Worker.Forward",
		RequestID:     "req-42",
		Payload:       []byte(`{"name":"m","input":{"args":[2]}}`),
		Error:         "",
	}
}

func assertSameMessage(t *testing.T, want, got *message.RPCMessage) {
	t.Helper()
	if want.ServiceMethod != got.ServiceMethod {
		t.Errorf("ServiceMethod mismatch: got %s, want %s", got.ServiceMethod, want.ServiceMethod)
	}
	if want.RequestID != got.RequestID {
		t.Errorf("RequestID mismatch: got %s, want %s", got.RequestID, want.RequestID)
	}
	if string(want.Payload) != string(got.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(got.Payload), string(want.Payload))
	}
	if want.Error != got.Error {
		t.Errorf("Error mismatch: got %s, want %s", got.Error, want.Error)
	}
}

func TestCodecsRoundTripEnvelope(t *testing.T) {
	for _, ct := range []CodecType{CodecTypeJSON, CodecTypeBinary, CodecTypeMsgpack} {
		t.Run(ct.String(), func(t *testing.T) {
			cdc, err := GetCodec(ct)
			if err != nil {
				t.Fatal(err)
			}
			if cdc.Type() != ct {
				t.Fatalf("Type mismatch: got %v, want %v", cdc.Type(), ct)
			}

			original := sampleMessage()
			original.Error = "no module named \"m\""

			data, err := cdc.Encode(original)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			var decoded message.RPCMessage
			if err := cdc.Decode(data, &decoded); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			assertSameMessage(t, original, &decoded)
		})
	}
}

func TestBinaryCodecRejectsTruncatedInput(t *testing.T) {
	cdc := &BinaryCodec{}
	data, err := cdc.Encode(sampleMessage())
	if err != nil {
		t.Fatal(err)
	}

	var decoded message.RPCMessage
	if err := cdc.Decode(data[:len(data)-8], &decoded); err == nil {
		t.Fatal("expect error for truncated input")
	}
}

func TestBinaryCodecRejectsForeignValue(t *testing.T) {
	cdc := &BinaryCodec{}
	if _, err := cdc.Encode("not a message"); err == nil {
		t.Fatal("expect error when encoding a non-RPCMessage value")
	}
}

func TestGetCodecUnknownType(t *testing.T) {
	if _, err := GetCodec(CodecType(9)); err == nil {
		t.Fatal("expect error for unknown codec type")
	}
}

func TestParseCodecType(t *testing.T) {
	cases := map[string]CodecType{
		"":        CodecTypeJSON,
		"json":    CodecTypeJSON,
		"binary":  CodecTypeBinary,
		"msgpack": CodecTypeMsgpack,
	}
	for name, want := range cases {
		got, err := ParseCodecType(name)
		if err != nil {
			t.Fatalf("ParseCodecType(%q) error: %v", name, err)
		}
		if got != want {
			t.Errorf("ParseCodecType(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseCodecType("xml"); err == nil {
		t.Error("expect error for unknown codec name")
	}
}
