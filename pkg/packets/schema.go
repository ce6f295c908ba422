package packets

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/beachbev/beachbev-site/pkg/packet"
)

// Package is the protobuf package of every BeachBev packet message.
const Package = "ProtobufPackets"

// FileName is the path of the built-in schema file.
const FileName = "beachbev/packets.proto"

type fieldSpec struct {
	name     string
	typ      descriptorpb.FieldDescriptorProto_Type
	repeated bool
}

func str(name string) fieldSpec { return fieldSpec{name: name, typ: descriptorpb.FieldDescriptorProto_TYPE_STRING} }
func flag(name string) fieldSpec { return fieldSpec{name: name, typ: descriptorpb.FieldDescriptorProto_TYPE_BOOL} }
func u32(name string) fieldSpec { return fieldSpec{name: name, typ: descriptorpb.FieldDescriptorProto_TYPE_UINT32} }
func u64(name string) fieldSpec { return fieldSpec{name: name, typ: descriptorpb.FieldDescriptorProto_TYPE_UINT64} }
func u64s(name string) fieldSpec {
	f := u64(name)
	f.repeated = true
	return f
}

// messages lists every packet body by key. Field numbers follow slice order
// starting at 1.
var messages = []struct {
	key    packet.Key
	fields []fieldSpec
}{
	{"A0", []fieldSpec{str("name"), str("email"), str("pwd")}},
	{"A1", []fieldSpec{str("pwdToken"), u64("eID"), u32("deviceID"), str("msg")}},
	{"A2", []fieldSpec{u64("eID"), u32("deviceID"), str("pwdToken")}},
	{"A3", []fieldSpec{str("name"), str("pwd"), u32("deviceID")}},
	{"A4", []fieldSpec{str("email")}},
	{"A5", []fieldSpec{flag("success"), str("msg")}},
	{"A6", []fieldSpec{str("pwdResetToken")}},
	{"A7", []fieldSpec{flag("success"), str("msg")}},
	{"A8", []fieldSpec{str("pwdResetToken"), str("pwd")}},
	{"A9", []fieldSpec{str("pwdToken"), u64("eID"), u32("deviceID"), str("msg")}},
	{"B0", []fieldSpec{str("email")}},
	{"B1", []fieldSpec{flag("success"), str("msg")}},
	{"B4", []fieldSpec{str("emailToken")}},
	{"B5", []fieldSpec{str("verifiedEmail"), str("unverifiedEmail")}},
	{"C0", []fieldSpec{u64("eID")}},
	{"C1", []fieldSpec{str("name")}},
	{"C2", nil},
	{"C3", []fieldSpec{str("name")}},
	{"D0", nil},
	{"D1", []fieldSpec{str("folderObjKey"), str("accessKeyID"), str("accessKey"), str("sessionKey"), str("msg")}},
	{"D2", nil},
	{"D3", nil},
	{"D4", []fieldSpec{flag("hasResume")}},
	{"E0", nil},
	{"E1", []fieldSpec{flag("success"), u64s("acceptedEIDs"), u64s("unacceptedEIDs"), str("msg")}},
	{"E2", []fieldSpec{u64("eID"), u32("aState")}},
	{"E3", []fieldSpec{flag("success"), u64("eID"), str("msg")}},
}

// SchemaName returns the full message name bound to key, e.g.
// "ProtobufPackets.PackE1".
func SchemaName(key packet.Key) protoreflect.FullName {
	return protoreflect.FullName(Package + ".Pack" + string(key))
}

// FileDescriptorProto returns the built-in schema as a descriptor proto.
func FileDescriptorProto() *descriptorpb.FileDescriptorProto {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(FileName),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
	}
	for _, m := range messages {
		dp := &descriptorpb.DescriptorProto{Name: proto.String("Pack" + string(m.key))}
		for i, f := range m.fields {
			label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
			if f.repeated {
				label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
			}
			dp.Field = append(dp.Field, &descriptorpb.FieldDescriptorProto{
				Name:     proto.String(f.name),
				JsonName: proto.String(f.name),
				Number:   proto.Int32(int32(i + 1)),
				Label:    label.Enum(),
				Type:     f.typ.Enum(),
			})
		}
		fdp.MessageType = append(fdp.MessageType, dp)
	}
	return fdp
}

// Bindings returns the key to message binding of the built-in schema.
func Bindings() map[packet.Key]protoreflect.FullName {
	b := make(map[packet.Key]protoreflect.FullName, len(messages))
	for _, m := range messages {
		b[m.key] = SchemaName(m.key)
	}
	return b
}

// NewRegistry builds a fresh registry of the built-in schema.
func NewRegistry() (*packet.Registry, error) {
	fd, err := protodesc.NewFile(FileDescriptorProto(), nil)
	if err != nil {
		return nil, fmt.Errorf("packets: build schema: %w", err)
	}
	return packet.NewRegistry(Bindings(), fd)
}

var (
	builtinOnce sync.Once
	builtin     *packet.Registry
)

// Registry returns the shared built-in registry. It panics if the built-in
// schema does not build, which only a broken message table can cause.
func Registry() *packet.Registry {
	builtinOnce.Do(func() {
		reg, err := NewRegistry()
		if err != nil {
			panic(err)
		}
		builtin = reg
	})
	return builtin
}
