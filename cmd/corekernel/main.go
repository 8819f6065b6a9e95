// Command corekernel is the thin boot shim around the kernel core: it
// parses flags and environment
// overrides into a corekernel.Config and calls Boot. It implements no
// shell, ELF loader, or syscall surface of its own.
package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"

	"github.com/arjunsahu/corekernel"
)

type envOverrides struct {
	DiskPath string `envconfig:"disk_path"`
	SwapPath string `envconfig:"swap_path"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "corekernel:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("corekernel", pflag.ContinueOnError)
	diskPath := flags.String("disk", "disk.img", "path to the disk image")
	swapPath := flags.String("swap", "swap.img", "path to the swap image")
	diskSectors := flags.Uint32("disk-sectors", 8192, "disk image size in sectors (an existing image must match)")
	swapSectors := flags.Uint32("swap-sectors", 2048, "swap image size in sectors (an existing image must match)")
	numFrames := flags.Int("frames", 0, "physical frame table size (0 = derive from cache size)")
	mlfqs := flags.Bool("mlfqs", false, "use the multi-level feedback queue scheduler (disables priority donation)")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Println(corekernel.Version())
		return nil
	}

	var env envOverrides
	if err := envconfig.Process("corekernel", &env); err != nil {
		return err
	}
	if env.DiskPath != "" {
		*diskPath = env.DiskPath
	}
	if env.SwapPath != "" {
		*swapPath = env.SwapPath
	}

	k, err := corekernel.Boot(corekernel.Config{
		DiskPath:    *diskPath,
		DiskSectors: *diskSectors,
		SwapPath:    *swapPath,
		SwapSectors: *swapSectors,
		NumFrames:   *numFrames,
		MLFQS:       *mlfqs,
	})
	if err != nil {
		return err
	}
	defer k.Shutdown()

	fmt.Printf("corekernel booted: disk=%s (%d sectors), swap=%s (%d sectors), frames=%d\n",
		*diskPath, k.Disk.SectorCount(), *swapPath, k.SwapDisk.SectorCount(), k.Frames.NumFrames())
	return nil
}
