package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arjunsahu/corekernel/internal/core"
)

func TestInsertLookupRoundTripsByPage(t *testing.T) {
	s := NewSPT()
	e := &SPTEntry{
		Addr:     0x4000_1234,
		Location: core.LocationZero,
		Origin:   core.LocationZero,
	}
	s.Insert(e)

	got := s.Lookup(0x4000_1234)
	if got == nil {
		t.Fatal("Lookup returned nil for inserted entry")
	}
	if got.Addr != PageAlign(0x4000_1234) {
		t.Fatalf("got.Addr = %#x, want %#x", got.Addr, PageAlign(0x4000_1234))
	}

	// Any address within the same page must resolve to the same entry.
	if s.Lookup(0x4000_1fff) != got {
		t.Fatal("Lookup at a different offset within the same page returned a different entry")
	}
}

func TestInsertOverwritesSameAddress(t *testing.T) {
	s := NewSPT()
	s.Insert(&SPTEntry{
		Addr:       0x3000,
		Location:   core.LocationDisk,
		Origin:     core.LocationDisk,
		FileOffset: 512,
		PageBytes:  512,
		Writable:   true,
	})
	want := &SPTEntry{
		Addr:       0x3000,
		Location:   core.LocationMmap,
		Origin:     core.LocationMmap,
		FileOffset: 1024,
		PageBytes:  256,
	}
	s.Insert(want)

	if diff := cmp.Diff(want, s.Lookup(0x3000)); diff != "" {
		t.Fatalf("Lookup after re-Insert returned stale entry (-want +got):\n%s", diff)
	}
}

func TestLookupMissReturnsNil(t *testing.T) {
	s := NewSPT()
	if s.Lookup(0x1000) != nil {
		t.Fatal("Lookup on empty table should return nil")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := NewSPT()
	e := &SPTEntry{Addr: 0x2000, Location: core.LocationZero, Origin: core.LocationZero}
	s.Insert(e)
	s.Delete(0x2000)
	if s.Lookup(0x2000) != nil {
		t.Fatal("entry still present after Delete")
	}
}

func TestDeleteAllClearsTable(t *testing.T) {
	s := NewSPT()
	for _, addr := range []uintptr{0x1000, 0x2000, 0x3000} {
		s.Insert(&SPTEntry{Addr: addr, Location: core.LocationZero, Origin: core.LocationZero})
	}
	s.DeleteAll()
	for _, addr := range []uintptr{0x1000, 0x2000, 0x3000} {
		if s.Lookup(addr) != nil {
			t.Fatalf("entry at %#x survived DeleteAll", addr)
		}
	}
}

func TestPageAlignRoundsDown(t *testing.T) {
	if got := PageAlign(0x4fff); got != 0x4000 {
		t.Fatalf("PageAlign(0x4fff) = %#x, want 0x4000", got)
	}
	if got := PageAlign(0x4000); got != 0x4000 {
		t.Fatalf("PageAlign(0x4000) = %#x, want 0x4000", got)
	}
}
