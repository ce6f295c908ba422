// Package client maintains the packet connection to the BeachBev server.
//
// A Connection moves through these states:
//
//	Disconnected → Connecting → Open → Closed → Reopening → Open ...
//	                                              Reopening → GaveUp
//
// Close returns to Disconnected from any state. Illegal transitions fail
// with ErrInvalidTransition and change nothing.
//
// Feature managers attach to a Connection to receive lifecycle hooks and
// register packet handlers:
//
//	conn := client.New("wss://beachbev.com:8443/", codec, client.WithLogger(logger))
//	conn.Attach(email)
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	defer conn.Close()
//
// OnProto fires once per manager before its first open, OnOpen after the
// first connect and OnReopen after every reconnect. OnClose fires for the
// managers opened on a connection when it closes, carrying a
// *TransportError for drops.
package client
