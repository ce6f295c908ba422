package packet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/beachbev/beachbev-site/pkg/packet"
	"github.com/beachbev/beachbev-site/pkg/packets"
)

// sampleFields fills every field of md with a non-zero value.
func sampleFields(t *testing.T, md protoreflect.MessageDescriptor) packet.Fields {
	t.Helper()
	out := packet.Fields{}
	fds := md.Fields()
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		name := string(fd.Name())
		if fd.IsList() {
			require.Equal(t, protoreflect.Uint64Kind, fd.Kind(), "repeated %s", name)
			out[name] = []uint64{1, uint64(i) + 300, 1 << 63}
			continue
		}
		switch fd.Kind() {
		case protoreflect.StringKind:
			out[name] = "value of " + name
		case protoreflect.BoolKind:
			out[name] = true
		case protoreflect.Uint32Kind:
			out[name] = uint32(i + 7)
		case protoreflect.Uint64Kind:
			out[name] = uint64(1<<40 + i)
		default:
			t.Fatalf("no sample for %s kind %s", name, fd.Kind())
		}
	}
	return out
}

func TestRoundTripEveryBuiltinSchema(t *testing.T) {
	reg := packets.Registry()
	codec := packet.NewCodec(reg)

	keys := reg.Keys()
	require.NotEmpty(t, keys)

	for _, key := range keys {
		t.Run(string(key), func(t *testing.T) {
			md, ok := reg.Schema(key)
			require.True(t, ok)
			fields := sampleFields(t, md)

			payload, err := codec.Encode(md.FullName(), fields)
			require.NoError(t, err)

			got, err := codec.Decode(md.FullName(), payload)
			require.NoError(t, err)
			assert.Equal(t, fields, got)

			byKey, err := codec.DecodeKey(packet.Inbound{Key: key, Payload: payload})
			require.NoError(t, err)
			assert.Equal(t, fields, byKey)
		})
	}
}

func TestEmptyMessageRoundTrip(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())

	payload, err := codec.Encode(packets.SchemaName("D0"), nil)
	require.NoError(t, err)
	assert.Empty(t, payload)

	got, err := codec.Decode(packets.SchemaName("D0"), payload)
	require.NoError(t, err)
	assert.Equal(t, packet.Fields{}, got)
}

func TestEncodeAcceptsWiderIntegers(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())

	payload, err := codec.Encode(packets.SchemaName("E2"), packet.Fields{"eID": 12, "aState": 1})
	require.NoError(t, err)

	got, err := codec.Decode(packets.SchemaName("E2"), payload)
	require.NoError(t, err)
	assert.Equal(t, packet.Fields{"eID": uint64(12), "aState": uint32(1)}, got)
}

func TestEncodeMismatch(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())

	tests := []struct {
		name   string
		key    packet.Key
		fields packet.Fields
		field  string
	}{
		{"unknown field", "B0", packet.Fields{"mail": "a@b.c"}, "mail"},
		{"wrong scalar type", "B0", packet.Fields{"email": 5}, "email"},
		{"negative unsigned", "E2", packet.Fields{"eID": -1}, "eID"},
		{"uint32 overflow", "E2", packet.Fields{"aState": uint64(1 << 40)}, "aState"},
		{"list for scalar", "E1", packet.Fields{"acceptedEIDs": uint64(3)}, "acceptedEIDs"},
		{"bad list element", "E1", packet.Fields{"acceptedEIDs": []string{"x"}}, "acceptedEIDs"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Encode(packets.SchemaName(tc.key), tc.fields)
			var sm *packet.SchemaMismatchError
			require.ErrorAs(t, err, &sm)
			assert.Equal(t, packets.SchemaName(tc.key), sm.Schema)
			assert.Equal(t, tc.field, sm.Field)
		})
	}
}

func TestEncodeUnknownSchema(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())
	_, err := codec.Encode("ProtobufPackets.PackZ9", nil)
	var us *packet.UnknownSchemaError
	assert.ErrorAs(t, err, &us)
}

func TestDecodeMismatch(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())

	a1, err := codec.Encode(packets.SchemaName("A1"), packet.Fields{"pwdToken": "tok", "msg": "hi"})
	require.NoError(t, err)

	var unknownField []byte
	unknownField = protowire.AppendTag(unknownField, 99, protowire.VarintType)
	unknownField = protowire.AppendVarint(unknownField, 1)

	tests := []struct {
		name    string
		key     packet.Key
		payload []byte
	}{
		{"truncated", "B1", []byte{0x12, 0x05, 'a'}},
		{"garbage tag", "B1", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"other schema", "E2", a1},
		{"unknown field number", "D4", unknownField},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.DecodeKey(packet.Inbound{Key: tc.key, Payload: tc.payload})
			var sm *packet.SchemaMismatchError
			require.ErrorAs(t, err, &sm)
			assert.Equal(t, tc.key, sm.Key)
			assert.Equal(t, packets.SchemaName(tc.key), sm.Schema)
		})
	}
}

func TestDecodeKeyUnbound(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())
	_, err := codec.DecodeKey(packet.Inbound{Key: "Z9"})
	assert.ErrorIs(t, err, packet.ErrUnboundKey)
}

func TestDecodeInto(t *testing.T) {
	codec := packet.NewCodec(packets.Registry())
	payload, err := codec.EncodeMessage(&packets.E3{Success: true, EID: 77, Msg: "accepted"})
	require.NoError(t, err)

	var m packets.E3
	require.NoError(t, codec.DecodeInto(packet.Inbound{Key: "E3", Payload: payload}, &m))
	assert.Equal(t, packets.E3{Success: true, EID: 77, Msg: "accepted"}, m)

	var wrong packets.B1
	err = codec.DecodeInto(packet.Inbound{Key: "E3", Payload: payload}, &wrong)
	var sm *packet.SchemaMismatchError
	require.ErrorAs(t, err, &sm)
}

func TestFieldsAccessors(t *testing.T) {
	f := packet.Fields{
		"s":  "x",
		"b":  true,
		"u":  uint64(3),
		"u3": uint32(4),
		"l":  []uint64{1},
		"n":  map[string]any{"k": "v"},
	}
	assert.True(t, f.Has("s"))
	assert.Equal(t, "x", f.String("s"))
	assert.True(t, f.Bool("b"))
	assert.Equal(t, uint64(3), f.Uint64("u"))
	assert.Equal(t, uint32(4), f.Uint32("u3"))
	assert.Equal(t, []uint64{1}, f.Uint64s("l"))
	assert.Equal(t, "v", f.Message("n").String("k"))

	assert.Empty(t, f.String("missing"))
	assert.Zero(t, f.Uint64("s"))
	assert.Nil(t, f.Message("s"))
}
