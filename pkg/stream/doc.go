// Package stream is the client side of the chat route: it decodes the
// event stream relayed by the gateway and folds the events into transcript
// snapshots.
//
// Decoding keeps one rolling buffer. Each chunk is appended, complete lines
// are parsed and the trailing fragment waits for the next chunk, so the
// events produced do not depend on where the transport split the bytes.
// Only lines starting with "data: " carrying a JSON object are events;
// anything else is dropped without ending the stream.
//
// A Session accepts one query at a time. Submit returns a channel of
// immutable Transcript snapshots, one per applied event, closed when the
// transport reports the end of the stream. A "done" event records metadata
// but does not end the stream.
package stream
