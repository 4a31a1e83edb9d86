package anymsg

// Receiver subscribes to packets under a (method, address) pair. Transmitters
// hold receivers weakly; the registrant owns the only strong reference, and
// dropping it unsubscribes the receiver as of the owning transmitter's next
// flush.
type Receiver struct {
	callable func(*Packet)
	address  uint32
}

// NewReceiver constructs a receiver at the given address. A nil callable
// panics.
func NewReceiver(address uint32, callable func(*Packet)) *Receiver {
	if callable == nil {
		panic(`anymsg: nil callable`)
	}
	return &Receiver{
		callable: callable,
		address:  address,
	}
}

// Address returns the receiver's address, in the same space as tag addresses.
func (x *Receiver) Address() uint32 { return x.address }

func (x *Receiver) receive(p *Packet) { x.callable(p) }
