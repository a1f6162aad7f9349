// Package config loads the flat key=value property file that describes
// which targets and LUNs s2pd should attach at startup, and builds the
// corresponding target.Controller/device.LogicalUnit graph from it.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/uweseimet/scsi2pi-go/bus"
	"github.com/uweseimet/scsi2pi-go/device"
	"github.com/uweseimet/scsi2pi-go/target"
)

// LunConfig describes one logical unit to attach under a target.
type LunConfig struct {
	Lun       int
	Type      string // "disk" or "generic"
	Image     string // disk: backing file path
	BlockSize int    // disk: bytes per block, default 512
	Device    string // generic: /dev/sg* path
	Removable bool
	Vendor    string
	Product   string
	Revision  string
}

// TargetConfig describes one SCSI ID and the LUNs attached under it.
type TargetConfig struct {
	ID   int
	Sasi bool
	Luns []LunConfig
}

// Config is the parsed property file: one entry per target ID, each with
// its attached LUNs.
type Config struct {
	Targets []TargetConfig
}

// Load reads and parses path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a property file of the form:
//
//	# comment
//	target.0.lun.0.type=disk
//	target.0.lun.0.image=/srv/images/hd0.hda
//	target.0.lun.0.blocksize=512
//	target.0.lun.1.type=generic
//	target.0.lun.1.device=/dev/sg3
//
// Keys not recognized for a given target/LUN are rejected with an error
// naming the offending line, matching the original project's strict
// Properties::ParseParams behavior rather than silently ignoring typos.
func Parse(r io.Reader) (*Config, error) {
	targets := map[int]*TargetConfig{}
	luns := map[[2]int]*LunConfig{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: line %d: missing '=': %q", lineNo, line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if err := apply(targets, luns, key, value); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	cfg := &Config{}
	for _, id := range ids {
		t := targets[id]
		lunNums := make([]int, 0, len(t.Luns))
		seen := map[int]bool{}
		for k := range luns {
			if k[0] == id && !seen[k[1]] {
				seen[k[1]] = true
				lunNums = append(lunNums, k[1])
			}
		}
		sort.Ints(lunNums)
		for _, ln := range lunNums {
			t.Luns = append(t.Luns, *luns[[2]int{id, ln}])
		}
		cfg.Targets = append(cfg.Targets, *t)
	}
	return cfg, nil
}

func apply(targets map[int]*TargetConfig, luns map[[2]int]*LunConfig, key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) < 3 || parts[0] != "target" {
		return fmt.Errorf("unrecognized key %q", key)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid target id in %q", key)
	}
	t, ok := targets[id]
	if !ok {
		t = &TargetConfig{ID: id}
		targets[id] = t
	}

	switch {
	case len(parts) == 3 && parts[2] == "sasi":
		t.Sasi = value == "true" || value == "1"
		return nil
	case len(parts) >= 5 && parts[2] == "lun":
		lun, err := strconv.Atoi(parts[3])
		if err != nil {
			return fmt.Errorf("invalid lun number in %q", key)
		}
		k := [2]int{id, lun}
		l, ok := luns[k]
		if !ok {
			l = &LunConfig{Lun: lun, BlockSize: 512}
			luns[k] = l
		}
		field := parts[4]
		switch field {
		case "type":
			l.Type = value
		case "image":
			l.Image = value
		case "blocksize":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid blocksize in %q", key)
			}
			l.BlockSize = n
		case "device":
			l.Device = value
		case "removable":
			l.Removable = value == "true" || value == "1"
		case "vendor":
			l.Vendor = value
		case "product":
			l.Product = value
		case "revision":
			l.Revision = value
		default:
			return fmt.Errorf("unrecognized LUN field %q", field)
		}
		return nil
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
}

// buildLun constructs the LogicalUnit lc describes.
func buildLun(lc LunConfig) (target.LogicalUnit, error) {
	switch lc.Type {
	case "disk", "":
		f, err := os.OpenFile(lc.Image, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("config: open %s: %w", lc.Image, err)
		}
		fi, err := f.Stat()
		if err != nil {
			return nil, err
		}
		blockSize := lc.BlockSize
		if blockSize == 0 {
			blockSize = 512
		}
		blockCount := fi.Size() / int64(blockSize)
		d := device.NewDisk(lc.Lun, f, blockSize, blockCount, lc.Removable)
		if lc.Vendor != "" || lc.Product != "" || lc.Revision != "" {
			if err := d.SetProductData(orDefault(lc.Vendor, "S2PGO"), orDefault(lc.Product, "DISK"), orDefault(lc.Revision, "1.0")); err != nil {
				return nil, err
			}
		}
		return d, nil
	case "generic":
		return device.NewGeneric(lc.Lun, lc.Device)
	default:
		return nil, fmt.Errorf("config: unknown LUN type %q", lc.Type)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Attach builds every configured target's Controller, attaches its LUNs and
// registers it with d, returning the constructed controllers in target-ID
// order so the caller can also wire them to a Tracer if desired.
func Attach(cfg *Config, b bus.Bus, d *target.Dispatcher, log *logrus.Entry) ([]*target.Controller, error) {
	var controllers []*target.Controller
	for _, t := range cfg.Targets {
		c := target.NewController(b, t.ID, t.Sasi, log)
		for _, lc := range t.Luns {
			lun, err := buildLun(lc)
			if err != nil {
				return nil, fmt.Errorf("config: target %d lun %d: %w", t.ID, lc.Lun, err)
			}
			if err := c.AddDevice(lun); err != nil {
				return nil, fmt.Errorf("config: target %d lun %d: %w", t.ID, lc.Lun, err)
			}
		}
		d.Attach(c)
		controllers = append(controllers, c)
	}
	return controllers, nil
}
