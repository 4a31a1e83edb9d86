package anymsg

import (
	"weak"

	"github.com/joeycumines/logiface"
	"github.com/petermattis/goid"
)

type (
	// TransmitterConfig models configuration for NewTransmitter.
	TransmitterConfig struct {
		// Allocator builds the packets this transmitter enqueues.
		// Defaults to plain heap allocation, if nil.
		Allocator PacketAllocator

		// Logger receives structured diagnostics (compaction counts,
		// contract violations). May be nil.
		Logger *logiface.Logger[logiface.Event]

		// Address is this transmitter's send/receive address. Must be
		// non-zero; it never changes after construction.
		Address uint32
	}

	// Transmitter is a per-goroutine message endpoint: it owns a receiver
	// registry, an outbound queue, an inbound queue, and a delivery buffer.
	// Instances must be initialized using the NewTransmitter factory, on the
	// goroutine that will operate them.
	Transmitter struct {
		logger *logiface.Logger[logiface.Event]
		alloc  PacketAllocator

		// receivers is a multimap from method id to weak receiver entries.
		// It may contain dead entries; compaction happens at flush. Guarded
		// by lock, like the export and import queues. The delivery queue is
		// only touched by the owning goroutine, after a lock-guarded swap.
		receivers map[uint32][]weak.Pointer[Receiver]
		exports   []*Packet
		imports   []*Packet
		delivery  []*Packet

		goroutineID int64
		lock        spinlock
		address     uint32
	}
)

// queueRetainMax is the queue size below which clearing retains capacity
// unconditionally, damping allocation thrash for typical loads.
const queueRetainMax = 16

// NewTransmitter constructs a transmitter bound to the calling goroutine.
// Only that goroutine may post, send, or flush; registration and the zone
// exchange are unrestricted. A zero address panics.
func NewTransmitter(config *TransmitterConfig) *Transmitter {
	if config == nil || config.Address == 0 {
		panic(`anymsg: transmitter requires a non-zero address`)
	}
	x := Transmitter{
		logger:      config.Logger,
		alloc:       config.Allocator,
		receivers:   make(map[uint32][]weak.Pointer[Receiver]),
		goroutineID: goid.Get(),
		address:     config.Address,
	}
	if x.alloc == nil {
		x.alloc = heapAllocator{}
	}
	return &x
}

// Address returns this transmitter's send/receive address.
func (x *Transmitter) Address() uint32 { return x.address }

// GoroutineID returns the id of the goroutine this transmitter is bound to.
func (x *Transmitter) GoroutineID() int64 { return x.goroutineID }

// MakeReceiverTag builds a tag for messages sent from this transmitter,
// targeting receiverAddress under receiverMask.
func (x *Transmitter) MakeReceiverTag(receiverAddress, receiverMask uint32) Tag {
	return Tag{
		SenderAddress:   x.address,
		ReceiverAddress: receiverAddress,
		ReceiverMask:    receiverMask,
	}
}

// RegisterReceiver subscribes receiver under method. Duplicates are accepted.
// The transmitter holds the receiver weakly; keep a strong reference for as
// long as it should stay subscribed.
func (x *Transmitter) RegisterReceiver(method uint32, receiver *Receiver) {
	if receiver == nil {
		panic(`anymsg: nil receiver`)
	}
	ref := weak.Make(receiver)
	x.lock.lock()
	defer x.lock.unlock()
	x.receivers[method] = append(x.receivers[method], ref)
}

// UnregisterReceiver clears every registry entry holding receiver, matched by
// identity, across all methods. The registry does not shrink here; compaction
// happens at the next flush.
func (x *Transmitter) UnregisterReceiver(receiver *Receiver) {
	if receiver == nil {
		return
	}
	x.lock.lock()
	defer x.lock.unlock()
	for _, entries := range x.receivers {
		for i, entry := range entries {
			if entry.Value() == receiver {
				entries[i] = weak.Pointer[Receiver]{}
			}
		}
	}
}

// UnregisterMethodReceiver clears the first registry entry under method
// holding receiver, matched by identity. See UnregisterReceiver.
func (x *Transmitter) UnregisterMethodReceiver(method uint32, receiver *Receiver) {
	if receiver == nil {
		return
	}
	x.lock.lock()
	defer x.lock.unlock()
	for i, entry := range x.receivers[method] {
		if entry.Value() == receiver {
			x.receivers[method][i] = weak.Pointer[Receiver]{}
			return
		}
	}
}

// PostMessage builds a packet with no parameter and reserves it for delivery
// both within and past the zone boundary. Delivery happens asynchronously, at
// the next Zone.Flush followed by Flush on each receiving transmitter's
// goroutine. Reports false if called off the owning goroutine, or if packet
// allocation fails.
func (x *Transmitter) PostMessage(tag Tag, call Call) bool {
	return x.export(newPacket(x.alloc, FlavorExternal, tag, call, nil))
}

// PostMessageValue is PostMessage with a parameter.
func (x *Transmitter) PostMessageValue(tag Tag, call Call, parameter any) bool {
	return x.export(newPacket(x.alloc, FlavorExternal, tag, call, parameter))
}

// PostZonalMessage builds a packet with no parameter and reserves it for
// delivery within the zone only. See PostMessage for the delivery model.
func (x *Transmitter) PostZonalMessage(tag Tag, call Call) bool {
	return x.export(newPacket(x.alloc, FlavorInternal, tag, call, nil))
}

// PostZonalMessageValue is PostZonalMessage with a parameter.
func (x *Transmitter) PostZonalMessageValue(tag Tag, call Call, parameter any) bool {
	return x.export(newPacket(x.alloc, FlavorInternal, tag, call, parameter))
}

// SendLocalMessage builds a packet with no parameter and synchronously
// delivers it to this transmitter's matching receivers, without enqueueing.
// Reports false if called off the owning goroutine.
func (x *Transmitter) SendLocalMessage(tag Tag, call Call) bool {
	return x.SendLocalPacket(newPacket(x.alloc, FlavorInternal, tag, call, nil))
}

// SendLocalMessageValue is SendLocalMessage with a parameter.
func (x *Transmitter) SendLocalMessageValue(tag Tag, call Call, parameter any) bool {
	return x.SendLocalPacket(newPacket(x.alloc, FlavorInternal, tag, call, parameter))
}

// SendLocalPacket synchronously delivers packet to this transmitter's
// matching receivers, blocking until the receiver callables return. Reports
// false if called off the owning goroutine, or if packet is nil.
func (x *Transmitter) SendLocalPacket(packet *Packet) bool {
	if !x.checkGoroutine(`send local`) {
		return false
	}
	if packet == nil {
		return false
	}
	x.deliver(packet)
	return true
}

// Flush compacts the receiver registry, claims the packets imported since the
// previous flush, and delivers them to matching receivers. Call Zone.Flush
// and then Flush on each transmitter's goroutine, periodically, to keep
// messages circulating. Reports false if called off the owning goroutine.
func (x *Transmitter) Flush() bool {
	if !x.checkGoroutine(`flush`) {
		return false
	}

	x.lock.lock()
	removed := x.compactReceivers()
	x.delivery, x.imports = x.imports, x.delivery
	x.lock.unlock()

	if removed > 0 {
		x.logger.Debug().
			Uint64(`address`, uint64(x.address)).
			Int(`removed`, removed).
			Log(`anymsg: receiver registry compacted`)
	}

	for _, p := range x.delivery {
		x.deliver(p)
	}
	x.delivery = reclaimQueue(x.delivery)
	return true
}

// export reserves packet for the next zone exchange.
func (x *Transmitter) export(packet *Packet) bool {
	if !x.checkGoroutine(`post`) {
		return false
	}
	if packet == nil {
		return false
	}
	x.lock.lock()
	defer x.lock.unlock()
	x.exports = append(x.exports, packet)
	return true
}

// collect moves the export queue into the zone's aggregate. Called by
// Zone.Flush, under the zone mutex.
func (x *Transmitter) collect(aggregate *[]*Packet) {
	x.lock.lock()
	defer x.lock.unlock()
	*aggregate = append(*aggregate, x.exports...)
	x.exports = reclaimQueue(x.exports)
}

// receive appends distributed packets to the import queue. Called by
// Zone.Flush, under the zone mutex.
func (x *Transmitter) receive(packets []*Packet) {
	x.lock.lock()
	defer x.lock.unlock()
	x.imports = append(x.imports, packets...)
}

// deliver invokes every live receiver registered under the packet's method
// whose address agrees with the packet's tag, in registration order. The
// candidate set is snapshotted under lock first, so receiver callables may
// freely register and unregister.
func (x *Transmitter) deliver(packet *Packet) {
	method := packet.call.Method

	// snapshotted locally, not into a reused buffer: a callable may send
	// again, re-entering deliver
	x.lock.lock()
	entries := append([]weak.Pointer[Receiver](nil), x.receivers[method]...)
	x.lock.unlock()

	for _, entry := range entries {
		receiver := entry.Value()
		if receiver == nil {
			// dead entry; compacted at the next flush
			continue
		}
		if packet.tag.AgreeReceiverAddress(receiver.Address()) {
			receiver.receive(packet)
		}
	}
}

// compactReceivers erases dead registry entries. Caller holds the lock.
func (x *Transmitter) compactReceivers() (removed int) {
	for method, entries := range x.receivers {
		live := entries[:0]
		for _, entry := range entries {
			if entry.Value() != nil {
				live = append(live, entry)
			}
		}
		removed += len(entries) - len(live)
		if len(live) == 0 {
			delete(x.receivers, method)
		} else {
			x.receivers[method] = live
		}
	}
	return removed
}

func (x *Transmitter) checkGoroutine(op string) bool {
	id := goid.Get()
	if id == x.goroutineID {
		return true
	}
	x.logger.Warning().
		Uint64(`address`, uint64(x.address)).
		Str(`op`, op).
		Int64(`goroutine`, id).
		Int64(`bound`, x.goroutineID).
		Log(`anymsg: operation invoked off the owning goroutine`)
	return false
}

// reclaimQueue empties q. Small queues, and queues whose capacity is already
// within twice the drained size, keep their backing array; anything larger is
// replaced by one of twice the drained size.
func reclaimQueue(q []*Packet) []*Packet {
	n := len(q)
	if n < queueRetainMax || cap(q) < n*2 {
		clear(q)
		return q[:0]
	}
	return make([]*Packet, 0, n*2)
}
