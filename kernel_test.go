package corekernel

import "testing"

func TestBootWithInMemoryDevicesFormatsFresh(t *testing.T) {
	k, err := Boot(Config{
		DiskSectors: 64,
		SwapSectors: 16,
		NumFrames:   4,
	})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer k.Shutdown()

	if k.Disk.SectorCount() != 64 {
		t.Fatalf("Disk.SectorCount() = %d, want 64", k.Disk.SectorCount())
	}
	if k.Frames.NumFrames() != 4 {
		t.Fatalf("Frames.NumFrames() = %d, want 4", k.Frames.NumFrames())
	}

	s, err := k.FreeMap.AllocateSector()
	if err != nil {
		t.Fatalf("AllocateSector: %v", err)
	}
	if s == FreeMapSector || s == RootDirSector {
		t.Fatalf("AllocateSector returned reserved sector %d", s)
	}
}

func TestBootDerivesFrameCountFromCacheSize(t *testing.T) {
	k, err := Boot(Config{DiskSectors: 64, SwapSectors: 16})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer k.Shutdown()

	if got, want := k.Frames.NumFrames(), CacheSize*defaultFrameMultiplier; got != want {
		t.Fatalf("Frames.NumFrames() = %d, want %d", got, want)
	}
}

func TestShutdownClosesDevicesCleanly(t *testing.T) {
	k, err := Boot(Config{DiskSectors: 32, SwapSectors: 8, NumFrames: 2})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := k.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
