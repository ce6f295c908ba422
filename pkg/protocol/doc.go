// Package protocol implements the binary wire envelope spoken between the
// BeachBev client runtime and the packet server.
//
// Every websocket message carries exactly one frame with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FramePacket (0x01): a keyed application packet
//   - FrameControl (0x03): ping, pong and close
//
// # Packets
//
// A packet frame payload is the envelope {key, route, data}:
//
//	[Key: len-prefixed string][Hops: varint count][Hop: varint]...[Data: len-prefixed bytes]
//
// The data bytes are opaque here; they are protobuf messages whose schema is
// chosen by the key (see package packet). FlagReliable on the frame marks a
// packet the sender wants delivered with the reliable channel.
//
// # Encoding
//
//   - Varint: compact encoding for small integers (protobuf-style)
//   - Length-prefixed: strings and byte arrays prefixed with varint length
//   - Big-endian: fixed-width integers
package protocol
