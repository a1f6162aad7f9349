package bus

import "testing"

func TestGetPhaseFor(t *testing.T) {
	tests := []struct {
		name                 string
		sel, bsy, msg, cd, io bool
		want                 Phase
	}{
		{"bus free", false, false, false, false, false, PhaseBusFree},
		{"selection", true, false, false, false, false, PhaseSelection},
		{"msg in", false, true, false, false, false, PhaseMsgIn},
		{"status", false, true, false, false, true, PhaseStatus},
		{"data in", false, true, false, true, true, PhaseDataIn},
		{"msg out", false, true, true, false, false, PhaseMsgOut},
		{"command", false, true, true, false, true, PhaseCommand},
		{"data out", false, true, true, true, true, PhaseDataOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPhaseFor(tt.sel, tt.bsy, tt.msg, tt.cd, tt.io)
			if got != tt.want {
				t.Errorf("GetPhaseFor(%v,%v,%v,%v,%v) = %s, want %s", tt.sel, tt.bsy, tt.msg, tt.cd, tt.io, got, tt.want)
			}
		})
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseDataIn.String() != "DATA IN" {
		t.Errorf("PhaseDataIn.String() = %q, want DATA IN", PhaseDataIn.String())
	}
	if Phase(99).String() != "RESERVED" {
		t.Errorf("Phase(99).String() = %q, want RESERVED", Phase(99).String())
	}
}
