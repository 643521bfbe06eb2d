// Package devnode exposes a globalmem module over a websocket, the way a
// device node exposes a driver to processes.
//
// Every frame is a msgpack-encoded Request or Response carried in a binary
// websocket message. A connection is a session: handles returned by open
// are private to it and are released when the connection ends. Requests
// on one session run concurrently, so a read blocked waiting for a write
// does not stall other requests. A client that gives up on a request sends
// a cancel frame naming it, which interrupts the wait on the server.
//
// Errors cross the wire as codes. The client turns them back into
// *RemoteError values that unwrap to the same sentinels the in-process API
// returns:
//
//	_, err := f.Read(ctx, 5000, p)
//	if errors.Is(err, globalmem.ErrOffsetOutOfRange) {
//		...
//	}
package devnode
