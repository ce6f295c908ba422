package protocol

import (
	"errors"
	"fmt"
)

// ErrEmptyKey is returned when an envelope carries no packet key.
var ErrEmptyKey = errors.New("protocol: empty packet key")

// Envelope is the decoded body of a FramePacket frame.
type Envelope struct {
	Key      string
	Reliable bool
	Route    []uint32
	Data     []byte
}

// EncodeEnvelope encodes an envelope into a complete packet frame.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	if env.Key == "" {
		return nil, ErrEmptyKey
	}
	if len(env.Key) > MaxKeyLen {
		return nil, fmt.Errorf("protocol: key %q: %w", env.Key, ErrAllocationTooLarge)
	}
	if len(env.Route) > MaxRouteHops {
		return nil, ErrCollectionTooLarge
	}

	e := NewEncoderWithCap(len(env.Key) + len(env.Data) + 8)
	e.WriteString(env.Key)
	e.WriteUvarint(uint64(len(env.Route)))
	for _, hop := range env.Route {
		e.WriteUvarint(uint64(hop))
	}
	e.WriteLenBytes(env.Data)

	f := NewFrame(FramePacket, e.Bytes())
	if env.Reliable {
		f.Flags |= FlagReliable
	}
	return f.Encode()
}

// DecodeEnvelope decodes the payload of a FramePacket frame.
func DecodeEnvelope(f *Frame) (*Envelope, error) {
	if f.Type != FramePacket {
		return nil, ErrInvalidFrameType
	}
	d := NewDecoder(f.Payload)

	key, err := d.ReadString(MaxKeyLen)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	hops, err := d.ReadCollectionCount(MaxRouteHops)
	if err != nil {
		return nil, err
	}
	var route []uint32
	if hops > 0 {
		route = make([]uint32, hops)
		for i := range route {
			v, err := d.ReadUvarint()
			if err != nil {
				return nil, err
			}
			if v > 0xFFFFFFFF {
				return nil, ErrVarintOverflow
			}
			route[i] = uint32(v)
		}
	}

	data, err := d.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	if !d.EOF() {
		return nil, ErrTrailingBytes
	}

	return &Envelope{
		Key:      key,
		Reliable: f.Flags.Has(FlagReliable),
		Route:    route,
		Data:     data,
	}, nil
}
