package packet

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Message is a typed packet body that converts to and from Fields.
type Message interface {
	Schema() protoreflect.FullName
	MarshalFields() Fields
	UnmarshalFields(Fields) error
}

// Codec encodes and decodes packet payloads against a Registry.
type Codec struct {
	reg *Registry
}

// NewCodec creates a codec over reg.
func NewCodec(reg *Registry) *Codec {
	return &Codec{reg: reg}
}

// Registry returns the codec's schema registry.
func (c *Codec) Registry() *Registry {
	return c.reg
}

// Encode encodes fields with the named schema. Unknown field names and
// values of the wrong type yield a *SchemaMismatchError.
func (c *Codec) Encode(schema protoreflect.FullName, fields Fields) ([]byte, error) {
	md, err := c.reg.Descriptor(schema)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(md)
	if err := populate(msg, fields); err != nil {
		return nil, withSchema(err, "", schema)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, &SchemaMismatchError{Schema: schema, Reason: "marshal", Err: err}
	}
	return b, nil
}

// Decode decodes payload with the named schema. Malformed bytes, wire types
// that disagree with the schema and unknown fields all yield a
// *SchemaMismatchError.
func (c *Codec) Decode(schema protoreflect.FullName, payload []byte) (Fields, error) {
	md, err := c.reg.Descriptor(schema)
	if err != nil {
		return nil, err
	}
	return c.decode("", md, payload)
}

// DecodeKey decodes an inbound packet with its key's bound schema.
func (c *Codec) DecodeKey(in Inbound) (Fields, error) {
	md, ok := c.reg.Schema(in.Key)
	if !ok {
		return nil, &SchemaMismatchError{Key: in.Key, Reason: "no schema bound", Err: ErrUnboundKey}
	}
	return c.decode(in.Key, md, in.Payload)
}

// EncodeMessage encodes a typed message.
func (c *Codec) EncodeMessage(m Message) ([]byte, error) {
	return c.Encode(m.Schema(), m.MarshalFields())
}

// DecodeInto decodes in into m. The key's bound schema must be m's schema.
func (c *Codec) DecodeInto(in Inbound, m Message) error {
	md, ok := c.reg.Schema(in.Key)
	if !ok {
		return &SchemaMismatchError{Key: in.Key, Schema: m.Schema(), Reason: "no schema bound", Err: ErrUnboundKey}
	}
	if md.FullName() != m.Schema() {
		return &SchemaMismatchError{
			Key:    in.Key,
			Schema: m.Schema(),
			Reason: fmt.Sprintf("key is bound to %s", md.FullName()),
		}
	}
	fields, err := c.decode(in.Key, md, in.Payload)
	if err != nil {
		return err
	}
	if err := m.UnmarshalFields(fields); err != nil {
		return withSchema(err, in.Key, m.Schema())
	}
	return nil
}

func (c *Codec) decode(key Key, md protoreflect.MessageDescriptor, payload []byte) (Fields, error) {
	msg := dynamicpb.NewMessage(md)
	if err := (proto.UnmarshalOptions{}).Unmarshal(payload, msg); err != nil {
		return nil, &SchemaMismatchError{Key: key, Schema: md.FullName(), Reason: "malformed payload", Err: err}
	}
	fields, err := readFields(msg)
	if err != nil {
		return nil, withSchema(err, key, md.FullName())
	}
	return fields, nil
}

func withSchema(err error, key Key, schema protoreflect.FullName) error {
	var sm *SchemaMismatchError
	if errors.As(err, &sm) {
		if sm.Schema == "" {
			sm.Schema = schema
		}
		if sm.Key == "" {
			sm.Key = key
		}
		return sm
	}
	return &SchemaMismatchError{Key: key, Schema: schema, Err: err}
}
