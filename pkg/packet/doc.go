// Package packet implements keyed packet dispatch.
//
// A Registry binds short keys ("B0", "E1") to protobuf message schemas. A
// Codec encodes Fields or typed Messages with those schemas and decodes
// strictly: anything that does not conform to the key's schema is a
// *SchemaMismatchError. Outbound packets are built with MakeOutbound and
// inbound packets are routed through a Table to every handler registered
// for their key.
package packet
