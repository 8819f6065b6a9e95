package freemap

import (
	"testing"

	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/cache"
	"github.com/arjunsahu/corekernel/internal/core"
)

func TestFormatReservesWellKnownSectors(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	c := cache.New(dev)
	defer c.Close()

	fm, reg, err := Format(c, dev.SectorCount())
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	defer fm.Close()
	_ = reg

	s, err := fm.AllocateSector()
	if err != nil {
		t.Fatalf("AllocateSector: %v", err)
	}
	if s == core.FreeMapSector || s == core.RootDirSector {
		t.Fatalf("AllocateSector returned reserved sector %d", s)
	}
}

func TestAllocateAndFreeRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	c := cache.New(dev)
	defer c.Close()

	fm, _, err := Format(c, dev.SectorCount())
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	defer fm.Close()

	s, err := fm.AllocateSector()
	if err != nil {
		t.Fatalf("AllocateSector: %v", err)
	}
	if err := fm.FreeSector(s); err != nil {
		t.Fatalf("FreeSector: %v", err)
	}

	again, err := fm.AllocateSector()
	if err != nil {
		t.Fatalf("AllocateSector after free: %v", err)
	}
	if again != s {
		t.Fatalf("expected freed sector %d to be reused, got %d", s, again)
	}
}

func TestAllocateExhaustion(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	c := cache.New(dev)
	defer c.Close()

	fm, _, err := Format(c, dev.SectorCount())
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	defer fm.Close()

	count := 0
	for {
		if _, err := fm.AllocateSector(); err != nil {
			if !core.IsOutOfSpace(err) {
				t.Fatalf("expected ErrOutOfSpace, got %v", err)
			}
			break
		}
		count++
		if count > int(dev.SectorCount())+1 {
			t.Fatal("AllocateSector never reported exhaustion")
		}
	}
}

func TestReopenKeepsAllocatedSectors(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	c := cache.New(dev)
	defer c.Close()

	fm, _, err := Format(c, dev.SectorCount())
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	s, err := fm.AllocateSector()
	if err != nil {
		t.Fatalf("AllocateSector: %v", err)
	}
	if err := fm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, _, err := Open(c, dev.SectorCount())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	again, err := reopened.AllocateSector()
	if err != nil {
		t.Fatalf("AllocateSector: %v", err)
	}
	if again == s {
		t.Fatalf("reopened free-map handed out already-allocated sector %d", s)
	}
}
