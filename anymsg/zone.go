package anymsg

import (
	"sync"

	"github.com/joeycumines/logiface"
)

type (
	// ZoneConfig models configuration for NewZone.
	ZoneConfig struct {
		// Exporter receives the external-flavored packets collected by each
		// Flush, for forwarding past the zone boundary. The slice is only
		// valid for the duration of the call, which happens under the flush
		// mutex: the exporter must not call back into the zone. May be nil,
		// in which case external packets are still delivered within the zone
		// but nothing leaves it.
		Exporter func(packets []*Packet)

		// Logger receives structured diagnostics. May be nil.
		Logger *logiface.Logger[logiface.Event]
	}

	// Zone is a set of transmitters that exchange packets at flush
	// boundaries. Every transmitter in a zone has a distinct non-zero
	// address. The cross-transmitter exchange is serialised under a single
	// mutex; transmitter-local state stays under each transmitter's own
	// spinlock, acquired briefly inside the exchange and never the other way
	// around.
	Zone struct {
		exporter     func([]*Packet)
		logger       *logiface.Logger[logiface.Event]
		byAddress    map[uint32]*Transmitter
		transmitters []*Transmitter // attach order; fixes the flush traversal
		aggregate    []*Packet
		distribution []*Packet
		externals    []*Packet
		mu           sync.Mutex
	}
)

// NewZone constructs an empty zone. The config may be nil.
func NewZone(config *ZoneConfig) *Zone {
	x := Zone{
		byAddress: make(map[uint32]*Transmitter),
	}
	if config != nil {
		x.exporter = config.Exporter
		x.logger = config.Logger
	}
	return &x
}

// Attach adds transmitter to the zone. Reports false if the zone already
// holds a transmitter at the same address.
func (x *Zone) Attach(transmitter *Transmitter) bool {
	if transmitter == nil {
		panic(`anymsg: nil transmitter`)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.byAddress[transmitter.Address()]; ok {
		x.logger.Warning().
			Uint64(`address`, uint64(transmitter.Address())).
			Log(`anymsg: duplicate transmitter address`)
		return false
	}
	x.byAddress[transmitter.Address()] = transmitter
	x.transmitters = append(x.transmitters, transmitter)
	return true
}

// Detach removes transmitter from the zone. Packets it has already exported
// remain queued on the other transmitters. Reports false if the transmitter
// is not attached.
func (x *Zone) Detach(transmitter *Transmitter) bool {
	if transmitter == nil {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.byAddress[transmitter.Address()] != transmitter {
		return false
	}
	delete(x.byAddress, transmitter.Address())
	for i, t := range x.transmitters {
		if t == transmitter {
			x.transmitters = append(x.transmitters[:i], x.transmitters[i+1:]...)
			break
		}
	}
	return true
}

// Transmitter returns the attached transmitter at address, nil if none.
func (x *Zone) Transmitter(address uint32) *Transmitter {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.byAddress[address]
}

// Flush exchanges packets between the zone's transmitters. Three phases,
// under the zone mutex:
//
//  1. Collect: every transmitter's export queue is drained into a zone-local
//     aggregate, in attach order. The attach order is stable across ticks,
//     so packets posted from multiple transmitters to one target are
//     serialised identically every flush.
//  2. Partition: external-flavored packets are handed to the exporter.
//  3. Distribute: every collected packet is appended to the import queue of
//     every transmitter in the zone, the originator included; imports become
//     visible to receivers at each transmitter's own Flush.
//
// Flush may run on any goroutine.
func (x *Zone) Flush() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.aggregate = x.aggregate[:0]
	for _, t := range x.transmitters {
		t.collect(&x.aggregate)
	}
	if len(x.aggregate) == 0 {
		return
	}

	x.externals = x.externals[:0]
	x.distribution = append(x.distribution[:0], x.aggregate...)
	for _, p := range x.aggregate {
		if p.flavor == FlavorExternal {
			x.externals = append(x.externals, p)
		}
	}
	if x.exporter != nil && len(x.externals) > 0 {
		x.exporter(x.externals)
	}

	for _, t := range x.transmitters {
		t.receive(x.distribution)
	}

	x.logger.Debug().
		Int(`packets`, len(x.distribution)).
		Int(`external`, len(x.externals)).
		Int(`transmitters`, len(x.transmitters)).
		Log(`anymsg: zone flushed`)

	x.aggregate = reclaimQueue(x.aggregate)
	x.distribution = reclaimQueue(x.distribution)
	x.externals = reclaimQueue(x.externals)
}
