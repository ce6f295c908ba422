package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"empty packet", Frame{Type: FramePacket}},
		{"reliable packet", Frame{Type: FramePacket, Flags: FlagReliable, Payload: []byte("abc")}},
		{"control", Frame{Type: FrameControl, Payload: []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 7}}},
		{"max payload", Frame{Type: FramePacket, Payload: bytes.Repeat([]byte{0xAB}, MaxPayloadSize)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.frame.Encode()
			require.NoError(t, err)
			require.Len(t, data, FrameHeaderSize+len(tc.frame.Payload))

			got, err := DecodeFrame(data)
			require.NoError(t, err)
			assert.Equal(t, tc.frame.Type, got.Type)
			assert.Equal(t, tc.frame.Flags, got.Flags)
			assert.Equal(t, len(tc.frame.Payload), len(got.Payload))
			assert.True(t, bytes.Equal(tc.frame.Payload, got.Payload))
		})
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	f := &Frame{Type: FramePacket, Flags: FlagReliable, Payload: make([]byte, 0x0102)}
	data, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x01, 0x02}, data[:FrameHeaderSize])
}

func TestFrameTooLarge(t *testing.T) {
	f := NewFrame(FramePacket, make([]byte, MaxPayloadSize+1))
	_, err := f.Encode()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{0x01, 0x00}, io.ErrUnexpectedEOF},
		{"unknown type", []byte{0x09, 0x00, 0x00, 0x00}, ErrInvalidFrameType},
		{"truncated payload", []byte{0x01, 0x00, 0x00, 0x05, 0x01}, io.ErrUnexpectedEOF},
		{"trailing bytes", []byte{0x01, 0x00, 0x00, 0x01, 0x01, 0x02}, ErrTrailingBytes},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFrame(tc.data)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFrameTypeString(t *testing.T) {
	assert.Equal(t, "Packet", FramePacket.String())
	assert.Equal(t, "Control", FrameControl.String())
	assert.Equal(t, "Unknown", FrameType(0xFF).String())
}

func TestFrameFlagsHas(t *testing.T) {
	assert.True(t, FlagReliable.Has(FlagReliable))
	assert.False(t, FrameFlags(0).Has(FlagReliable))
}
