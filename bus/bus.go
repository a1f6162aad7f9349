// Package bus defines the SCSI bus line model and the REQ/ACK handshake
// primitives that operate on it. The only implementation this module ships
// is an in-process loopback bus; a physical GPIO driver is an external
// collaborator that would implement the same Bus interface.
package bus

import "time"

// Pin identifies one SCSI control or data line.
type Pin int

const (
	PinBsy Pin = iota
	PinSel
	PinAtn
	PinAck
	PinRst
	PinMsg
	PinCd
	PinIo
	PinReq
	pinCount
)

// Phase is one of the protocol states a SCSI bus cycle passes through,
// derived from the SEL/BSY/MSG/C-D/I-O control lines.
type Phase int

const (
	PhaseBusFree Phase = iota
	PhaseArbitration
	PhaseSelection
	PhaseReselection
	PhaseCommand
	PhaseDataIn
	PhaseDataOut
	PhaseStatus
	PhaseMsgIn
	PhaseMsgOut
	PhaseReserved
)

func (p Phase) String() string {
	switch p {
	case PhaseBusFree:
		return "BUS FREE"
	case PhaseArbitration:
		return "ARBITRATION"
	case PhaseSelection:
		return "SELECTION"
	case PhaseReselection:
		return "RESELECTION"
	case PhaseCommand:
		return "COMMAND"
	case PhaseDataIn:
		return "DATA IN"
	case PhaseDataOut:
		return "DATA OUT"
	case PhaseStatus:
		return "STATUS"
	case PhaseMsgIn:
		return "MSG IN"
	case PhaseMsgOut:
		return "MSG OUT"
	default:
		return "RESERVED"
	}
}

// HandshakeTimeout is the maximum time a handshake primitive busy-waits for
// a REQ/ACK transition before giving up, per spec §4.2/§8.
const HandshakeTimeout = 3 * time.Second

// Bus is the capability set the target engine and initiator tooling consume
// from whatever drives the physical or in-process SCSI lines. Implementors
// use positive logic (true == asserted) even though the physical wire uses
// negative logic; that inversion, if any, is the implementation's concern.
type Bus interface {
	// Acquire refreshes the cached signal snapshot; subsequent getters in
	// this cycle read from it rather than re-sampling the lines.
	Acquire()

	GetSignal(pin Pin) bool
	SetSignal(pin Pin, state bool)

	SetDAT(b byte)
	GetDAT() byte

	// GetPhase derives the current bus phase from the last Acquire'd
	// snapshot; it must not block or re-sample.
	GetPhase() Phase
	IsPhase(p Phase) bool

	// WaitForSelection blocks (target side) until the local ID has been
	// selected, waking early on RST.
	WaitForSelection() bool

	// WaitHandshake polls pin until it reaches state, the 3s timeout
	// elapses, or RST asserts, whichever first.
	WaitHandshake(pin Pin, state bool) bool

	Reset()

	// SetDir configures line direction; input controls whether DAT is
	// driven by this side (false) or read from it (true).
	SetDir(input bool)

	IsTarget() bool
}

// GetPhaseFor computes the Phase a Bus implementation should report for a
// given signal snapshot, per spec §4.1. Implementations of GetPhase are
// expected to delegate to this so the decode table lives in one place.
func GetPhaseFor(sel, bsy, msg, cd, io bool) Phase {
	if !bsy && !sel {
		return PhaseBusFree
	}
	if sel {
		return PhaseSelection
	}
	switch {
	case !msg && !cd && !io:
		return PhaseMsgIn
	case !msg && !cd && io:
		return PhaseStatus
	case !msg && cd && io:
		return PhaseDataIn
	case msg && !cd && !io:
		return PhaseMsgOut
	case msg && !cd && io:
		return PhaseCommand
	case msg && cd && io:
		return PhaseDataOut
	default:
		return PhaseReserved
	}
}
