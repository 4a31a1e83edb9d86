// Package anymsg provides an in-process, per-goroutine typed message
// dispatcher. Transmitters exchange packets at flush boundaries within a
// [Zone], delivering to weakly-held receivers keyed by method id and address
// mask.
//
// # Architecture
//
// A [Transmitter] is pinned to the goroutine that constructed it; all
// operations other than the zone-side exchange must be invoked from that
// goroutine. Posting a message ([Transmitter.PostMessage],
// [Transmitter.PostZonalMessage]) only enqueues a packet; the actual delivery
// happens asynchronously via [Zone.Flush] followed by [Transmitter.Flush] on
// each owning goroutine. [Transmitter.SendLocalMessage] bypasses the queues
// and delivers synchronously to the local receiver registry.
//
// Receivers are tracked by weak reference only: the registrant keeps the sole
// strong reference to a [Receiver], and dropping it unsubscribes implicitly.
// Dead registry entries are compacted lazily at flush.
//
// # Thread Safety
//
//   - Register/unregister and the zone exchange are safe from any goroutine.
//   - Post, send-local, and flush operations are restricted to the owning
//     goroutine; calling them elsewhere is a contract violation that no-ops
//     and reports false.
//   - [Zone.Flush] may run on any goroutine, conventionally a coordinator.
//     It serialises the cross-transmitter exchange under a single mutex.
package anymsg
