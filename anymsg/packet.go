package anymsg

type (
	// Tag is the address triple attached to every packet. A receiver matches
	// a tag iff its address, masked by ReceiverMask, equals ReceiverAddress.
	Tag struct {
		// SenderAddress is the address of the posting transmitter.
		SenderAddress uint32
		// ReceiverAddress is the masked address packets are targeted at.
		ReceiverAddress uint32
		// ReceiverMask selects the address bits that must agree.
		ReceiverMask uint32
	}

	// Call describes the method a packet invokes.
	Call struct {
		// Sequence is an opaque ordering value, carried verbatim.
		Sequence uint32
		// Method selects the receivers the packet is delivered to.
		Method uint32
	}

	// Flavor distinguishes packets that stay within the originating zone from
	// packets that are additionally exported past the zone boundary.
	Flavor uint8

	// Packet is an immutable unit carrying a tag, a call descriptor, and an
	// optional parameter. Packets are shared by reference; the lifetime is
	// that of the longest holder.
	Packet struct {
		parameter any
		tag       Tag
		call      Call
		flavor    Flavor
	}

	// PacketAllocator constructs the packets a [Transmitter] enqueues.
	// Implementations may pool. Returning nil is treated as
	// allocation failure: the message is not enqueued, and the post operation
	// reports false.
	PacketAllocator interface {
		Allocate() *Packet
	}

	heapAllocator struct{}
)

const (
	// FlavorInternal packets are delivered only within the originating zone.
	FlavorInternal Flavor = iota
	// FlavorExternal packets are also handed to the zone's exporter.
	FlavorExternal
)

// AgreeReceiverAddress reports whether a receiver at addr is targeted by the
// tag.
func (x Tag) AgreeReceiverAddress(addr uint32) bool {
	return addr&x.ReceiverMask == x.ReceiverAddress
}

// AgreeSenderAddress reports whether the tag's sender address, masked, equals
// addr. Hosts use this to filter exported packets by origin.
func (x Tag) AgreeSenderAddress(addr uint32, mask uint32) bool {
	return x.SenderAddress&mask == addr
}

// Tag returns the packet's address triple.
func (x *Packet) Tag() Tag { return x.tag }

// Call returns the packet's call descriptor.
func (x *Packet) Call() Call { return x.call }

// Parameter returns the packet's parameter, nil if the packet carries none.
func (x *Packet) Parameter() any { return x.parameter }

// Flavor returns whether the packet is zone-internal or exported.
func (x *Packet) Flavor() Flavor { return x.flavor }

func (x heapAllocator) Allocate() *Packet { return new(Packet) }

// newPacket builds a packet via alloc, returning nil on allocation failure.
// The same path serves both flavors so a single allocator can back
// zone-scoped and zone-crossing transport alike.
func newPacket(alloc PacketAllocator, flavor Flavor, tag Tag, call Call, parameter any) *Packet {
	p := alloc.Allocate()
	if p == nil {
		return nil
	}
	*p = Packet{
		parameter: parameter,
		tag:       tag,
		call:      call,
		flavor:    flavor,
	}
	return p
}
