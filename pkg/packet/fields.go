package packet

// Fields is a plain field-name to value mapping for one message.
//
// Decoded values use exact Go types: bool, string, []byte, int32 (also
// enums), int64, uint32, uint64, float32, float64, Fields for nested
// messages, and typed slices ([]uint64, []string, []Fields, ...) for
// repeated fields. Fields left at their zero value are absent.
type Fields map[string]any

// Has reports whether name is present.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// String returns the string field name, or "" when absent.
func (f Fields) String(name string) string {
	v, _ := f[name].(string)
	return v
}

// Bool returns the bool field name, or false when absent.
func (f Fields) Bool(name string) bool {
	v, _ := f[name].(bool)
	return v
}

// Bytes returns the bytes field name, or nil when absent.
func (f Fields) Bytes(name string) []byte {
	v, _ := f[name].([]byte)
	return v
}

// Int32 returns the int32 field name, or 0 when absent.
func (f Fields) Int32(name string) int32 {
	v, _ := f[name].(int32)
	return v
}

// Int64 returns the int64 field name, or 0 when absent.
func (f Fields) Int64(name string) int64 {
	v, _ := f[name].(int64)
	return v
}

// Uint32 returns the uint32 field name, or 0 when absent.
func (f Fields) Uint32(name string) uint32 {
	v, _ := f[name].(uint32)
	return v
}

// Uint64 returns the uint64 field name, or 0 when absent.
func (f Fields) Uint64(name string) uint64 {
	v, _ := f[name].(uint64)
	return v
}

// Uint64s returns the repeated uint64 field name, or nil when absent.
func (f Fields) Uint64s(name string) []uint64 {
	v, _ := f[name].([]uint64)
	return v
}

// Strings returns the repeated string field name, or nil when absent.
func (f Fields) Strings(name string) []string {
	v, _ := f[name].([]string)
	return v
}

// Message returns the nested message field name, or nil when absent.
func (f Fields) Message(name string) Fields {
	switch v := f[name].(type) {
	case Fields:
		return v
	case map[string]any:
		return Fields(v)
	}
	return nil
}
