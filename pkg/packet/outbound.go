package packet

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/beachbev/beachbev-site/pkg/protocol"
)

// DefaultRoute addresses the server directly.
var DefaultRoute = []uint32{0}

// Outbound is an encoded packet ready to send. It is immutable: accessors
// return copies.
type Outbound struct {
	key      Key
	reliable bool
	route    []uint32
	payload  []byte
	schema   protoreflect.FullName
}

// MakeOutbound encodes fields with schema and packages the result with key,
// reliable and route. When key is bound in the codec's registry, schema must
// be the bound schema.
func MakeOutbound(c *Codec, key Key, reliable bool, route []uint32, fields Fields, schema protoreflect.FullName) (Outbound, error) {
	if !key.Valid() {
		return Outbound{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if md, ok := c.reg.Schema(key); ok && md.FullName() != schema {
		return Outbound{}, &SchemaMismatchError{
			Key:    key,
			Schema: schema,
			Reason: fmt.Sprintf("key is bound to %s", md.FullName()),
		}
	}
	payload, err := c.Encode(schema, fields)
	if err != nil {
		return Outbound{}, withSchema(err, key, schema)
	}
	return Outbound{
		key:      key,
		reliable: reliable,
		route:    append([]uint32(nil), route...),
		payload:  payload,
		schema:   schema,
	}, nil
}

// MakeOutboundMessage builds an Outbound from a typed message.
func MakeOutboundMessage(c *Codec, key Key, reliable bool, route []uint32, m Message) (Outbound, error) {
	return MakeOutbound(c, key, reliable, route, m.MarshalFields(), m.Schema())
}

// Key returns the packet key.
func (o Outbound) Key() Key { return o.key }

// Reliable reports whether the packet asked for reliable delivery.
func (o Outbound) Reliable() bool { return o.reliable }

// Schema returns the schema the payload was encoded with.
func (o Outbound) Schema() protoreflect.FullName { return o.schema }

// Route returns a copy of the routing hops.
func (o Outbound) Route() []uint32 {
	return append([]uint32(nil), o.route...)
}

// Payload returns a copy of the encoded payload.
func (o Outbound) Payload() []byte {
	return append([]byte(nil), o.payload...)
}

// Frame encodes the packet as a complete wire frame.
func (o Outbound) Frame() ([]byte, error) {
	return protocol.EncodeEnvelope(&protocol.Envelope{
		Key:      string(o.key),
		Reliable: o.reliable,
		Route:    o.route,
		Data:     o.payload,
	})
}

// Inbound is a received packet. It is consumed once by dispatch.
type Inbound struct {
	Key     Key
	Payload []byte
}

// InboundFromEnvelope converts a decoded wire envelope.
func InboundFromEnvelope(env *protocol.Envelope) Inbound {
	return Inbound{Key: Key(env.Key), Payload: env.Data}
}
