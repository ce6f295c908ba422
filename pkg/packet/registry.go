package packet

import (
	"fmt"
	"os"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Registry binds packet keys to protobuf message descriptors.
//
// A Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	files    *protoregistry.Files
	bindings map[Key]protoreflect.MessageDescriptor
	keys     []Key
}

// NewRegistry builds a registry from file descriptors and a key binding
// table. Every binding is resolved immediately; the first key whose schema
// is not defined by files yields an *UnknownSchemaError.
func NewRegistry(bindings map[Key]protoreflect.FullName, files ...protoreflect.FileDescriptor) (*Registry, error) {
	fr := new(protoregistry.Files)
	for _, fd := range files {
		if err := fr.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("packet: register %s: %w", fd.Path(), err)
		}
	}
	return bind(fr, bindings)
}

// LoadRegistry reads a serialized FileDescriptorSet (as written by
// `protoc --include_imports -o`) and binds keys against it.
func LoadRegistry(path string, bindings map[Key]protoreflect.FullName) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("packet: read descriptor set: %w", err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("packet: parse descriptor set %s: %w", path, err)
	}
	fr, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("packet: build descriptors from %s: %w", path, err)
	}
	return bind(fr, bindings)
}

func bind(fr *protoregistry.Files, bindings map[Key]protoreflect.FullName) (*Registry, error) {
	r := &Registry{
		files:    fr,
		bindings: make(map[Key]protoreflect.MessageDescriptor, len(bindings)),
		keys:     make([]Key, 0, len(bindings)),
	}
	for key := range bindings {
		r.keys = append(r.keys, key)
	}
	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })

	for _, key := range r.keys {
		if !key.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		name := bindings[key]
		md, err := r.lookup(name)
		if err != nil {
			return nil, &UnknownSchemaError{Key: key, Schema: name}
		}
		r.bindings[key] = md
	}
	return r, nil
}

func (r *Registry) lookup(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	d, err := r.files.FindDescriptorByName(name)
	if err != nil {
		return nil, err
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, protoregistry.NotFound
	}
	return md, nil
}

// Descriptor returns the message descriptor with the given full name.
func (r *Registry) Descriptor(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	md, err := r.lookup(name)
	if err != nil {
		return nil, &UnknownSchemaError{Schema: name}
	}
	return md, nil
}

// Schema returns the message descriptor bound to key.
func (r *Registry) Schema(key Key) (protoreflect.MessageDescriptor, bool) {
	md, ok := r.bindings[key]
	return md, ok
}

// Bound reports whether key has a schema.
func (r *Registry) Bound(key Key) bool {
	_, ok := r.bindings[key]
	return ok
}

// KeyFor returns the first key (in sorted order) bound to name.
func (r *Registry) KeyFor(name protoreflect.FullName) (Key, bool) {
	for _, key := range r.keys {
		if r.bindings[key].FullName() == name {
			return key, true
		}
	}
	return "", false
}

// Keys returns the bound keys in sorted order.
func (r *Registry) Keys() []Key {
	out := make([]Key, len(r.keys))
	copy(out, r.keys)
	return out
}
