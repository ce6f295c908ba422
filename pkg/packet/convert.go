package packet

import (
	"fmt"
	"math"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// populate copies fields into msg. Errors carry the field but not the
// schema; the codec fills that in.
func populate(msg protoreflect.Message, fields Fields) error {
	md := msg.Descriptor()
	for name, v := range fields {
		fd := md.Fields().ByName(protoreflect.Name(name))
		if fd == nil {
			fd = md.Fields().ByJSONName(name)
		}
		if fd == nil {
			return &SchemaMismatchError{Field: name, Reason: "unknown field"}
		}
		if v == nil {
			continue
		}
		if fd.IsMap() {
			return &SchemaMismatchError{Field: name, Reason: "map fields are not supported"}
		}

		if fd.IsList() {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Slice {
				return &SchemaMismatchError{Field: name, Reason: fmt.Sprintf("want list, got %T", v)}
			}
			list := msg.Mutable(fd).List()
			for i := 0; i < rv.Len(); i++ {
				elem := rv.Index(i).Interface()
				if fd.Message() != nil {
					nested, ok := asFields(elem)
					if !ok {
						return &SchemaMismatchError{Field: name, Reason: fmt.Sprintf("element %d: want message fields, got %T", i, elem)}
					}
					ev := list.NewElement()
					if err := populate(ev.Message(), nested); err != nil {
						return nestedMismatch(name, err)
					}
					list.Append(ev)
					continue
				}
				ev, ok := scalarValue(fd, elem)
				if !ok {
					return &SchemaMismatchError{Field: name, Reason: fmt.Sprintf("element %d: %T is not a %s", i, elem, fd.Kind())}
				}
				list.Append(ev)
			}
			continue
		}

		if fd.Message() != nil {
			nested, ok := asFields(v)
			if !ok {
				return &SchemaMismatchError{Field: name, Reason: fmt.Sprintf("want message fields, got %T", v)}
			}
			child := msg.NewField(fd)
			if err := populate(child.Message(), nested); err != nil {
				return nestedMismatch(name, err)
			}
			msg.Set(fd, child)
			continue
		}

		val, ok := scalarValue(fd, v)
		if !ok {
			return &SchemaMismatchError{Field: name, Reason: fmt.Sprintf("%T is not a %s", v, fd.Kind())}
		}
		msg.Set(fd, val)
	}
	return nil
}

func asFields(v any) (Fields, bool) {
	switch x := v.(type) {
	case Fields:
		return x, true
	case map[string]any:
		return Fields(x), true
	}
	return nil, false
}

func nestedMismatch(parent string, err error) error {
	if sm, ok := err.(*SchemaMismatchError); ok {
		sm.Field = parent + "." + sm.Field
		return sm
	}
	return err
}

// scalarValue converts a Go value into a protoreflect value of fd's kind.
// Integer inputs of any width are accepted when they fit.
func scalarValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, bool) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		b, ok := v.(bool)
		return protoreflect.ValueOfBool(b), ok
	case protoreflect.StringKind:
		s, ok := v.(string)
		return protoreflect.ValueOfString(s), ok
	case protoreflect.BytesKind:
		b, ok := v.([]byte)
		return protoreflect.ValueOfBytes(b), ok
	case protoreflect.EnumKind:
		switch x := v.(type) {
		case protoreflect.EnumNumber:
			return protoreflect.ValueOfEnum(x), true
		case string:
			ev := fd.Enum().Values().ByName(protoreflect.Name(x))
			if ev == nil {
				return protoreflect.Value{}, false
			}
			return protoreflect.ValueOfEnum(ev.Number()), true
		}
		n, ok := toInt64(v, math.MinInt32, math.MaxInt32)
		return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), ok
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, ok := toInt64(v, math.MinInt32, math.MaxInt32)
		return protoreflect.ValueOfInt32(int32(n)), ok
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, ok := toInt64(v, math.MinInt64, math.MaxInt64)
		return protoreflect.ValueOfInt64(n), ok
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, ok := toUint64(v, math.MaxUint32)
		return protoreflect.ValueOfUint32(uint32(n)), ok
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		n, ok := toUint64(v, math.MaxUint64)
		return protoreflect.ValueOfUint64(n), ok
	case protoreflect.FloatKind:
		switch x := v.(type) {
		case float32:
			return protoreflect.ValueOfFloat32(x), true
		case float64:
			return protoreflect.ValueOfFloat32(float32(x)), true
		}
	case protoreflect.DoubleKind:
		switch x := v.(type) {
		case float64:
			return protoreflect.ValueOfFloat64(x), true
		case float32:
			return protoreflect.ValueOfFloat64(float64(x)), true
		}
	}
	return protoreflect.Value{}, false
}

func toInt64(v any, min, max int64) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	default:
		return 0, false
	}
	return n, n >= min && n <= max
}

func toUint64(v any, max uint64) (uint64, bool) {
	var n uint64
	switch x := v.(type) {
	case uint:
		n = uint64(x)
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	default:
		s, ok := toInt64(v, 0, math.MaxInt64)
		if !ok {
			return 0, false
		}
		n = uint64(s)
	}
	return n, n <= max
}

// readFields converts a decoded message into Fields. Unknown fields at any
// depth are reported as a mismatch.
func readFields(msg protoreflect.Message) (Fields, error) {
	if len(msg.GetUnknown()) > 0 {
		return nil, &SchemaMismatchError{Reason: fmt.Sprintf("unknown fields in %s", msg.Descriptor().FullName())}
	}

	out := Fields{}
	var err error
	msg.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		name := string(fd.Name())
		switch {
		case fd.IsMap():
			err = &SchemaMismatchError{Field: name, Reason: "map fields are not supported"}
		case fd.IsList():
			out[name], err = listOut(fd, v.List())
		case fd.Message() != nil:
			var nested Fields
			if nested, err = readFields(v.Message()); err == nil {
				out[name] = nested
			} else {
				err = nestedMismatch(name, err)
			}
		default:
			out[name] = scalarOut(fd, v)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scalarOut(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return append([]byte(nil), v.Bytes()...)
	case protoreflect.EnumKind:
		return int32(v.Enum())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	}
	return v.Interface()
}

func collect[T any](l protoreflect.List, conv func(protoreflect.Value) T) []T {
	out := make([]T, l.Len())
	for i := range out {
		out[i] = conv(l.Get(i))
	}
	return out
}

func listOut(fd protoreflect.FieldDescriptor, l protoreflect.List) (any, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return collect(l, protoreflect.Value.Bool), nil
	case protoreflect.StringKind:
		return collect(l, protoreflect.Value.String), nil
	case protoreflect.BytesKind:
		return collect(l, func(v protoreflect.Value) []byte { return append([]byte(nil), v.Bytes()...) }), nil
	case protoreflect.EnumKind:
		return collect(l, func(v protoreflect.Value) int32 { return int32(v.Enum()) }), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return collect(l, func(v protoreflect.Value) int32 { return int32(v.Int()) }), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return collect(l, protoreflect.Value.Int), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return collect(l, func(v protoreflect.Value) uint32 { return uint32(v.Uint()) }), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return collect(l, protoreflect.Value.Uint), nil
	case protoreflect.FloatKind:
		return collect(l, func(v protoreflect.Value) float32 { return float32(v.Float()) }), nil
	case protoreflect.DoubleKind:
		return collect(l, protoreflect.Value.Float), nil
	}

	out := make([]Fields, l.Len())
	for i := range out {
		nested, err := readFields(l.Get(i).Message())
		if err != nil {
			return nil, nestedMismatch(string(fd.Name()), err)
		}
		out[i] = nested
	}
	return out, nil
}
