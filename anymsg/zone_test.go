package anymsg

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func TestZone_duplicateAddress(t *testing.T) {
	zone := NewZone(nil)
	t1 := NewTransmitter(&TransmitterConfig{Address: 0x10})
	t2 := NewTransmitter(&TransmitterConfig{Address: 0x10})
	if !zone.Attach(t1) {
		t.Fatal(`expected first attach to succeed`)
	}
	if zone.Attach(t2) {
		t.Fatal(`expected duplicate address to be refused`)
	}
	if zone.Transmitter(0x10) != t1 {
		t.Fatal(`expected the first transmitter to stay attached`)
	}
}

func TestZone_fanOut(t *testing.T) {
	zone := NewZone(nil)
	t1 := NewTransmitter(&TransmitterConfig{Address: 0x10})
	t2 := NewTransmitter(&TransmitterConfig{Address: 0x20})
	zone.Attach(t1)
	zone.Attach(t2)

	var at1, at2 int
	r1 := NewReceiver(0x10, func(*Packet) { at1++ })
	r2 := NewReceiver(0x20, func(*Packet) { at2++ })
	t1.RegisterReceiver(1, r1)
	t2.RegisterReceiver(1, r2)

	// targeted at t2's address only
	if !t1.PostZonalMessage(t1.MakeReceiverTag(0x20, 0xff), Call{Method: 1}) {
		t.Fatal(`expected post to succeed`)
	}
	zone.Flush()
	t1.Flush()
	t2.Flush()

	if at1 != 0 {
		t.Fatalf(`t1 receiver invoked %d times, want 0`, at1)
	}
	if at2 != 1 {
		t.Fatalf(`t2 receiver invoked %d times, want 1`, at2)
	}

	// broadcast: zero mask matches every address, the originator included
	if !t1.PostZonalMessage(t1.MakeReceiverTag(0, 0), Call{Method: 1}) {
		t.Fatal(`expected post to succeed`)
	}
	zone.Flush()
	t1.Flush()
	t2.Flush()

	if at1 != 1 || at2 != 2 {
		t.Fatalf(`broadcast delivered (%d, %d), want (1, 2)`, at1, at2)
	}
	runtime.KeepAlive(r1)
	runtime.KeepAlive(r2)
}

func TestZone_detach(t *testing.T) {
	zone := NewZone(nil)
	t1 := NewTransmitter(&TransmitterConfig{Address: 0x10})
	t2 := NewTransmitter(&TransmitterConfig{Address: 0x20})
	zone.Attach(t1)
	zone.Attach(t2)

	invoked := 0
	r2 := NewReceiver(0x20, func(*Packet) { invoked++ })
	t2.RegisterReceiver(1, r2)

	if !zone.Detach(t2) {
		t.Fatal(`expected detach to succeed`)
	}
	if zone.Detach(t2) {
		t.Fatal(`expected a second detach to fail`)
	}

	t1.PostZonalMessage(t1.MakeReceiverTag(0x20, 0xff), Call{Method: 1})
	zone.Flush()
	t1.Flush()
	t2.Flush()
	if invoked != 0 {
		t.Fatalf(`detached transmitter received %d packets, want 0`, invoked)
	}
	runtime.KeepAlive(r2)
}

func TestZone_exporter(t *testing.T) {
	var exported []*Packet
	zone := NewZone(&ZoneConfig{Exporter: func(packets []*Packet) {
		exported = append(exported, packets...)
	}})
	tr := NewTransmitter(&TransmitterConfig{Address: 0x10})
	zone.Attach(tr)

	invoked := 0
	r := NewReceiver(0x10, func(*Packet) { invoked++ })
	tr.RegisterReceiver(1, r)

	tr.PostMessage(tr.MakeReceiverTag(0x10, 0xff), Call{Method: 1})      // external
	tr.PostZonalMessage(tr.MakeReceiverTag(0x10, 0xff), Call{Method: 1}) // internal
	zone.Flush()
	tr.Flush()

	if len(exported) != 1 {
		t.Fatalf(`exported %d packets, want 1`, len(exported))
	}
	if exported[0].Flavor() != FlavorExternal {
		t.Fatal(`exported packet is not external`)
	}
	// both flavors are delivered within the zone
	if invoked != 2 {
		t.Fatalf(`invoked %d times, want 2`, invoked)
	}
	runtime.KeepAlive(r)
}

func TestZone_crossGoroutine(t *testing.T) {
	zone := NewZone(nil)
	t1 := NewTransmitter(&TransmitterConfig{Address: 0x10})
	zone.Attach(t1)

	ready := make(chan *Transmitter)
	flushed := make(chan struct{})
	done := make(chan int)
	go func() {
		t2 := NewTransmitter(&TransmitterConfig{Address: 0x20})
		invoked := 0
		r := NewReceiver(0x20, func(*Packet) { invoked++ })
		t2.RegisterReceiver(1, r)
		ready <- t2

		<-flushed
		t2.Flush()
		runtime.KeepAlive(r)
		done <- invoked
	}()

	t2 := <-ready
	zone.Attach(t2)

	if !t1.PostZonalMessage(t1.MakeReceiverTag(0x20, 0xff), Call{Method: 1}) {
		t.Fatal(`expected post to succeed`)
	}
	zone.Flush()
	close(flushed)

	if invoked := <-done; invoked != 1 {
		t.Fatalf(`invoked %d times, want 1`, invoked)
	}
}

func TestZone_flushLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()

	zone := NewZone(&ZoneConfig{Logger: logger})
	tr := NewTransmitter(&TransmitterConfig{Address: 0x10, Logger: logger})
	zone.Attach(tr)

	tr.PostZonalMessage(tr.MakeReceiverTag(0x10, 0xff), Call{Method: 1})
	zone.Flush()
	tr.Flush()

	if !bytes.Contains(buf.Bytes(), []byte(`zone flushed`)) {
		t.Fatalf(`expected a flush log entry, got %q`, buf.String())
	}
}
