package packet

import "context"

// Typed adapts a callback taking a decoded message into a Handler. The
// inbound packet is decoded with its key's bound schema, which must be the
// schema of M.
//
//	table.Register("E1", packet.Typed(codec, func(ctx context.Context, m *packets.E1) error {
//		return nil
//	}), "master", "candidate lists")
func Typed[T any, M interface {
	*T
	Message
}](c *Codec, fn func(context.Context, M) error) Handler {
	return func(ctx context.Context, in Inbound) error {
		m := M(new(T))
		if err := c.DecodeInto(in, m); err != nil {
			return err
		}
		return fn(ctx, m)
	}
}

// Func adapts a callback taking decoded Fields into a Handler.
func Func(c *Codec, fn func(context.Context, Fields) error) Handler {
	return func(ctx context.Context, in Inbound) error {
		fields, err := c.DecodeKey(in)
		if err != nil {
			return err
		}
		return fn(ctx, fields)
	}
}
