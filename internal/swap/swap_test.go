package swap

import (
	"bytes"
	"testing"

	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/core"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(core.SectorsPerPage * 4)
	a := New(dev)

	page := make([]byte, core.PageSize)
	for i := range page {
		page[i] = byte(i)
	}

	idx, err := a.WritePage(page)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, core.PageSize)
	if err := a.ReadPage(got, idx); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, page) {
		t.Fatal("ReadPage returned different bytes than were written")
	}
}

func TestReadPageFreesSlotForReuse(t *testing.T) {
	dev := blockdev.NewMemDevice(core.SectorsPerPage * 2)
	a := New(dev)

	page := make([]byte, core.PageSize)
	idx, err := a.WritePage(page)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := a.ReadPage(make([]byte, core.PageSize), idx); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}

	again, err := a.WritePage(page)
	if err != nil {
		t.Fatalf("WritePage after read: %v", err)
	}
	if again != idx {
		t.Fatalf("expected freed slot %d to be reused, got %d", idx, again)
	}
}

func TestFreeWithoutReadReleasesSlot(t *testing.T) {
	dev := blockdev.NewMemDevice(core.SectorsPerPage * 2)
	a := New(dev)

	page := make([]byte, core.PageSize)
	idx, err := a.WritePage(page)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	a.Free(idx)

	again, err := a.WritePage(page)
	if err != nil {
		t.Fatalf("WritePage after Free: %v", err)
	}
	if again != idx {
		t.Fatalf("expected freed slot %d to be reused, got %d", idx, again)
	}
}

func TestWriteExhaustion(t *testing.T) {
	dev := blockdev.NewMemDevice(core.SectorsPerPage)
	a := New(dev)

	page := make([]byte, core.PageSize)
	if _, err := a.WritePage(page); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if _, err := a.WritePage(page); !core.IsOutOfSpace(err) {
		t.Fatalf("expected ErrOutOfSpace, got %v", err)
	}
}

func TestWrongSizeBufferRejected(t *testing.T) {
	dev := blockdev.NewMemDevice(core.SectorsPerPage)
	a := New(dev)

	if _, err := a.WritePage(make([]byte, core.PageSize-1)); err == nil {
		t.Fatal("expected error for undersized page buffer")
	}
	if err := a.ReadPage(make([]byte, core.PageSize+1), 0); err == nil {
		t.Fatal("expected error for oversized page buffer")
	}
}
