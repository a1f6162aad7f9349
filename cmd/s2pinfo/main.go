// Command s2pinfo is a small diagnostic tool: given a property-file
// configuration it dumps the attached targets and LUNs, and can also dump
// the opcode metadata table every controller dispatches against.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/uweseimet/scsi2pi-go/bus"
	"github.com/uweseimet/scsi2pi-go/config"
	"github.com/uweseimet/scsi2pi-go/scsi"
	"github.com/uweseimet/scsi2pi-go/target"
)

func main() {
	configPath := flag.String("config", "", "path to the target/LUN property file")
	dumpOpcodes := flag.Bool("opcodes", false, "dump the CDB metadata table instead of a configuration")
	flag.Parse()

	if *dumpOpcodes {
		dumpOpcodeTable()
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "s2pinfo: -config is required unless -opcodes is given")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "s2pinfo: %v\n", err)
		os.Exit(1)
	}

	b := bus.NewInProcessBus()
	log := logrus.NewEntry(logrus.StandardLogger())
	dispatcher := target.NewDispatcher(b, log)
	controllers, err := config.Attach(cfg, b, dispatcher, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "s2pinfo: %v\n", err)
		os.Exit(1)
	}

	for _, t := range cfg.Targets {
		fmt.Printf("target %d (sasi=%v):\n", t.ID, t.Sasi)
		for _, l := range t.Luns {
			fmt.Printf("  lun %d: %s\n", l.Lun, lunSummary(l))
		}
	}
	fmt.Println()
	spew.Dump(controllers)
}

func lunSummary(l config.LunConfig) string {
	switch l.Type {
	case "generic":
		return fmt.Sprintf("generic device=%s", l.Device)
	default:
		return fmt.Sprintf("disk image=%s blocksize=%d", l.Image, l.BlockSize)
	}
}

func dumpOpcodeTable() {
	for op := 0; op < 256; op++ {
		name := scsi.CommandName(scsi.Opcode(op))
		if name == "" {
			continue
		}
		meta := scsi.MetaData(scsi.Opcode(op))
		fmt.Printf("%#02x %-28s len=%-3d", op, name, scsi.CdbLength(scsi.Opcode(op)))
		if meta.HasDataOut {
			fmt.Print(" data-out")
		}
		if meta.AllocationLengthSize > 0 || meta.AllocationLengthOffset < 0 {
			fmt.Print(" data-in")
		}
		fmt.Println()
	}
}
