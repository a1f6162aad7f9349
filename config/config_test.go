package config

import (
	"strings"
	"testing"
)

func TestParseBuildsTargetsAndLunsInOrder(t *testing.T) {
	src := `
# a comment, and a blank line follow

target.0.lun.0.type=disk
target.0.lun.0.image=/srv/images/hd0.hda
target.0.lun.0.blocksize=1024
target.0.lun.1.type=generic
target.0.lun.1.device=/dev/sg3
target.1.sasi=true
target.1.lun.0.image=/srv/images/hd1.hda
`
	cfg, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(cfg.Targets))
	}

	t0 := cfg.Targets[0]
	if t0.ID != 0 || t0.Sasi {
		t.Errorf("target 0 = %+v, want ID 0, sasi false", t0)
	}
	if len(t0.Luns) != 2 {
		t.Fatalf("target 0 has %d LUNs, want 2", len(t0.Luns))
	}
	if t0.Luns[0].Image != "/srv/images/hd0.hda" || t0.Luns[0].BlockSize != 1024 {
		t.Errorf("target 0 LUN 0 = %+v", t0.Luns[0])
	}
	if t0.Luns[1].Type != "generic" || t0.Luns[1].Device != "/dev/sg3" {
		t.Errorf("target 0 LUN 1 = %+v", t0.Luns[1])
	}

	t1 := cfg.Targets[1]
	if t1.ID != 1 || !t1.Sasi {
		t.Errorf("target 1 = %+v, want ID 1, sasi true", t1)
	}
}

func TestParseDefaultsBlockSizeTo512(t *testing.T) {
	cfg, err := Parse(strings.NewReader("target.0.lun.0.image=/srv/images/hd0.hda\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Targets[0].Luns[0].BlockSize != 512 {
		t.Errorf("BlockSize = %d, want 512", cfg.Targets[0].Luns[0].BlockSize)
	}
}

func TestParseRejectsLineWithoutEquals(t *testing.T) {
	_, err := Parse(strings.NewReader("target.0.type disk\n"))
	if err == nil {
		t.Fatal("expected an error for a line missing '='")
	}
}

func TestParseRejectsUnrecognizedLunField(t *testing.T) {
	_, err := Parse(strings.NewReader("target.0.lun.0.bogus=1\n"))
	if err == nil {
		t.Fatal("expected an error for an unrecognized LUN field")
	}
}

func TestParseRejectsInvalidBlockSize(t *testing.T) {
	_, err := Parse(strings.NewReader("target.0.lun.0.blocksize=notanumber\n"))
	if err == nil {
		t.Fatal("expected an error for a non-numeric blocksize")
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault("", "fallback"); got != "fallback" {
		t.Errorf("orDefault empty = %q, want fallback", got)
	}
	if got := orDefault("explicit", "fallback"); got != "explicit" {
		t.Errorf("orDefault non-empty = %q, want explicit", got)
	}
}
