// Package transfer receives image sets from a stereolink capture device.
//
// Session owns one TCP connection: handshake, frame reassembly, integrity
// validation, liveness. A session that loses its connection becomes Faulted
// and stays that way; retrying means constructing a new session.
//
// AsyncClient wraps session construction in a background goroutine that
// receives continuously and reconnects on faults. Callers poll the most
// recent complete image set through CollectReceivedImageSet; an unclaimed
// set is overwritten by the next arrival, never queued. Transport health is
// never surfaced through the poll path — an unreachable device just looks
// like repeated "no frame yet".
package transfer
