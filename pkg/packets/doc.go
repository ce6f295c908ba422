// Package packets defines the BeachBev packet schema.
//
// Every message lives in the "ProtobufPackets" protobuf package and is
// named after its key: key "E1" is bound to ProtobufPackets.PackE1. The
// schema is built in code, so no generated sources or protoc run are needed;
// Registry returns it bound and validated. Typed bodies for the packets the
// client managers exchange are provided as Go structs implementing
// packet.Message.
package packets
