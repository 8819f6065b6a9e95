package mmap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const sectorSize = 512

func writeImage(t *testing.T, sectors int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, make([]byte, sectors*sectorSize), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSectorWriteReachesImage(t *testing.T) {
	const sectors = 16
	path := writeImage(t, sectors)

	m, err := MapImage(path, sectors*sectorSize)
	if err != nil {
		t.Fatalf("MapImage: %v", err)
	}
	if m.Size() != sectors*sectorSize {
		t.Fatalf("Size() = %d, want %d", m.Size(), sectors*sectorSize)
	}

	want := bytes.Repeat([]byte{0xa5}, sectorSize)
	copy(m.Data()[3*sectorSize:4*sectorSize], want)
	if err := m.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(img[3*sectorSize:4*sectorSize], want) {
		t.Fatal("sector written through the mapping did not reach the image")
	}
	for i, b := range img[:3*sectorSize] {
		if b != 0 {
			t.Fatalf("neighboring sector byte %d = %#x, want 0", i, b)
		}
	}
}

func TestWriteSurvivesRemap(t *testing.T) {
	const sectors = 4
	path := writeImage(t, sectors)

	m, err := MapImage(path, sectors*sectorSize)
	if err != nil {
		t.Fatalf("MapImage: %v", err)
	}
	m.Data()[sectorSize] = 0x42
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	again, err := MapImage(path, sectors*sectorSize)
	if err != nil {
		t.Fatalf("MapImage reopen: %v", err)
	}
	defer again.Close()
	if got := again.Data()[sectorSize]; got != 0x42 {
		t.Fatalf("byte written before Close reads back %#x after remap, want 0x42", got)
	}
}

func TestMapImageRejectsWrongSize(t *testing.T) {
	path := writeImage(t, 4)
	if _, err := MapImage(path, 8*sectorSize); err == nil {
		t.Fatal("expected an error mapping with the wrong image size")
	}
}

func TestMapImageMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.img")
	if _, err := MapImage(path, sectorSize); err == nil {
		t.Fatal("expected an error mapping a missing image")
	}
}

func TestCloseTwiceIsHarmless(t *testing.T) {
	path := writeImage(t, 2)
	m, err := MapImage(path, 2*sectorSize)
	if err != nil {
		t.Fatalf("MapImage: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := m.Sync(); err != nil {
		t.Fatalf("Sync after Close: %v", err)
	}
}
