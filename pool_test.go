package mgo

import "testing"

func newTestSlot(addr string) *poolSlot {
	s := newPoolSlot(nil, Replica{Host: addr})
	s.negotiated = true
	return s
}

func TestTryAcquireRoundRobinsFromLastUsed(t *testing.T) {
	p := &pool{slots: []*poolSlot{newTestSlot("a"), newTestSlot("b"), newTestSlot("c")}}

	first, err := p.tryAcquire()
	if err != nil {
		t.Fatalf("tryAcquire: %v", err)
	}
	if first != p.slots[0] {
		t.Fatalf("first acquired slot should be index 0")
	}

	second, err := p.tryAcquire()
	if err != nil {
		t.Fatalf("tryAcquire: %v", err)
	}
	if second != p.slots[1] {
		t.Fatalf("second acquired slot should be index 1 (round robin from last used)")
	}
}

func TestTryAcquireSkipsDeadAndInuseSlots(t *testing.T) {
	dead := newTestSlot("dead")
	dead.dead = true
	busy := newTestSlot("busy")
	busy.inuse = true
	free := newTestSlot("free")

	p := &pool{slots: []*poolSlot{dead, busy, free}}
	got, err := p.tryAcquire()
	if err != nil {
		t.Fatalf("tryAcquire: %v", err)
	}
	if got != free {
		t.Fatalf("tryAcquire should skip dead/inuse slots and return the free one")
	}
}

func TestTryAcquireReturnsNilWhenAllBusy(t *testing.T) {
	a, b := newTestSlot("a"), newTestSlot("b")
	a.inuse, b.inuse = true, true
	p := &pool{slots: []*poolSlot{a, b}}

	got, err := p.tryAcquire()
	if err != nil {
		t.Fatalf("tryAcquire: %v", err)
	}
	if got != nil {
		t.Fatalf("tryAcquire should return nil when every slot is in use")
	}
}

func TestReleaseClearsInuse(t *testing.T) {
	p := &pool{}
	slot := newTestSlot("a")
	slot.inuse = true

	if err := p.release(slot); err != nil {
		t.Fatalf("release: %v", err)
	}
	if slot.inuse {
		t.Fatalf("release should clear inuse")
	}
}

func TestDoubleReleaseFailsWithInvalidState(t *testing.T) {
	p := &pool{}
	slot := newTestSlot("a")

	err := p.release(slot)
	if _, ok := err.(*InvalidStateError); !ok {
		t.Fatalf("release of a free slot should fail with *InvalidStateError, got %v", err)
	}
}

func TestTryAcquireNoSlotsFailsWithCommunicationError(t *testing.T) {
	p := &pool{}
	_, err := p.tryAcquire()
	if _, ok := err.(*CommunicationError); !ok {
		t.Fatalf("tryAcquire on an empty pool should fail with *CommunicationError, got %v", err)
	}
}
