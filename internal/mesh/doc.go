// Package mesh implements the core link/session protocol of the LoRa mesh
// stack: the framed-packet codec, the four-step session-reset handshake,
// per-peer session/counter state, the transmit duty-cycle governor, the
// reset scheduler, and the dispatcher that pumps them from a single
// cooperatively polled event loop.
package mesh
