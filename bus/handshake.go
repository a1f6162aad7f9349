package bus

import (
	"time"

	"github.com/uweseimet/scsi2pi-go/scsi"
)

// These are free functions rather than Bus methods: any Bus implementation
// gets the handshake protocol for free, and the functions only depend on the
// narrow Bus interface rather than a concrete type. This mirrors
// SPEC_FULL.md's instruction to tighten the controller/device coupling with
// narrow interfaces rather than a deep class hierarchy.

// TargetReceiveHandshake reads n bytes into buf, target side, during
// DATA_OUT or MSG_OUT. It returns the number of bytes actually read; fewer
// than n indicates an ACK timeout or RST.
func TargetReceiveHandshake(b Bus, buf []byte, n int) int {
	for i := 0; i < n; i++ {
		b.SetSignal(PinReq, true)
		if !b.WaitHandshake(PinAck, true) {
			b.SetSignal(PinReq, false)
			return i
		}
		buf[i] = b.GetDAT()
		b.SetSignal(PinReq, false)
		if !b.WaitHandshake(PinAck, false) {
			return i
		}
	}
	return n
}

// TargetSendHandshake writes n bytes from buf, target side, during DATA_IN,
// STATUS or MSG_IN. delay, if non-zero, inserts a short pause after byte
// index delay, a workaround one historical initiator driver requires; most
// callers pass 0.
func TargetSendHandshake(b Bus, buf []byte, n int, delay int) int {
	for i := 0; i < n; i++ {
		b.SetDAT(buf[i])
		b.SetSignal(PinReq, true)
		if !b.WaitHandshake(PinAck, true) {
			b.SetSignal(PinReq, false)
			return i
		}
		b.SetSignal(PinReq, false)
		if !b.WaitHandshake(PinAck, false) {
			return i
		}
		if delay > 0 && i == delay {
			time.Sleep(100 * time.Microsecond)
		}
	}
	return n
}

// TargetCommandHandshake reads one CDB, target side, during COMMAND. It
// transparently discards a leading Atari ICD $1F prefix byte and determines
// the actual CDB length from the opcode table using the (possibly second)
// byte. It returns the number of CDB bytes placed in buf.
func TargetCommandHandshake(b Bus, buf []byte) int {
	if len(buf) < 1 {
		return 0
	}

	if n := TargetReceiveHandshake(b, buf[:1], 1); n != 1 {
		return n
	}

	op := scsi.Opcode(buf[0])
	if op == 0x1f {
		if n := TargetReceiveHandshake(b, buf[:1], 1); n != 1 {
			return 0
		}
		op = scsi.Opcode(buf[0])
	}

	length := scsi.CdbLength(op)
	if length <= 1 || length > len(buf) {
		return 1
	}

	rest := TargetReceiveHandshake(b, buf[1:length], length-1)
	return 1 + rest
}

// InitiatorReceiveHandshake reads n bytes into buf, initiator side, mirror
// of TargetSendHandshake. It stops early (returning fewer than n) if the
// phase changes underneath it, observed as a REQ that never asserts.
func InitiatorReceiveHandshake(b Bus, buf []byte, n int) int {
	for i := 0; i < n; i++ {
		if !b.WaitHandshake(PinReq, true) {
			return i
		}
		buf[i] = b.GetDAT()
		b.SetSignal(PinAck, true)
		if !b.WaitHandshake(PinReq, false) {
			b.SetSignal(PinAck, false)
			return i + 1
		}
		b.SetSignal(PinAck, false)
	}
	return n
}

// InitiatorSendHandshake writes n bytes from buf, initiator side, mirror of
// TargetReceiveHandshake. It deasserts ATN after the last byte of a MSG OUT
// sequence, per spec §4.2's edge cases; callers outside MSG OUT simply never
// have ATN asserted to begin with.
func InitiatorSendHandshake(b Bus, buf []byte, n int) int {
	for i := 0; i < n; i++ {
		if !b.WaitHandshake(PinReq, true) {
			return i
		}
		b.SetDAT(buf[i])
		b.SetSignal(PinAck, true)
		if i == n-1 {
			b.SetSignal(PinAtn, false)
		}
		if !b.WaitHandshake(PinReq, false) {
			b.SetSignal(PinAck, false)
			return i + 1
		}
		b.SetSignal(PinAck, false)
	}
	return n
}

// InitiatorMsgInHandshake reads one MSG IN byte, initiator side. If the
// message is not COMMAND COMPLETE it asserts ATN to request a follow-up
// MESSAGE OUT (conventionally used to send MESSAGE REJECT). It returns -1 on
// timeout.
func InitiatorMsgInHandshake(b Bus) int {
	buf := make([]byte, 1)
	if InitiatorReceiveHandshake(b, buf, 1) != 1 {
		return -1
	}
	if buf[0] != byte(scsi.MsgCommandComplete) {
		b.SetSignal(PinAtn, true)
	}
	return int(buf[0])
}
