package bus

import (
	"fmt"

	plog "github.com/prometheus/common/log"
)

var pinNames = map[Pin]string{
	PinBsy: "BSY", PinSel: "SEL", PinAtn: "ATN", PinAck: "ACK", PinRst: "RST",
	PinMsg: "MSG", PinCd: "C/D", PinIo: "I/O", PinReq: "REQ",
}

// DelegatingBus wraps another Bus and traces every signal get/set at debug
// level, skipping ACK/REQ (which fire once per byte and would otherwise
// drown out everything else). It composes rather than subclasses the
// wrapped bus, replacing the original project's multi-inheritance
// "delegating bus that also logs" pattern with plain composition, per
// SPEC_FULL.md's Design Notes.
type DelegatingBus struct {
	Bus
	name string
}

// NewDelegatingBus wraps b, logging signal activity under name.
func NewDelegatingBus(b Bus, name string) *DelegatingBus {
	return &DelegatingBus{Bus: b, name: name}
}

func (d *DelegatingBus) signalName(pin Pin) string {
	if n, ok := pinNames[pin]; ok {
		return n
	}
	return fmt.Sprintf("pin%d", pin)
}

func (d *DelegatingBus) GetSignal(pin Pin) bool {
	state := d.Bus.GetSignal(pin)
	if pin != PinAck && pin != PinReq {
		plog.Debugf("[%s] getting %s: %v", d.name, d.signalName(pin), state)
	}
	return state
}

func (d *DelegatingBus) SetSignal(pin Pin, state bool) {
	if pin != PinAck && pin != PinReq {
		plog.Debugf("[%s] setting %s to %v", d.name, d.signalName(pin), state)
	}
	d.Bus.SetSignal(pin, state)
}

func (d *DelegatingBus) Reset() {
	plog.Debugf("[%s] resetting bus", d.name)
	d.Bus.Reset()
}
