package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// InProcessBus is a loopback Bus shared between a target goroutine and an
// initiator goroutine within the same process, used for tests and the
// bundled command-line tools. Grounded on the original project's
// InProcessBus: a mutex around signal writes, and an atomic flag the
// initiator side polls to learn the target side is ready.
//
// Unlike a physical bus, InProcessBus state is per-value rather than a
// process-wide global, so independent tests can each construct their own.
type InProcessBus struct {
	mu      sync.Mutex
	signals [pinCount]bool
	dat     byte

	target        bool
	targetEnabled atomic.Bool
}

// NewInProcessBus constructs a bus with all signals deasserted.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{}
}

// Init mirrors the original InProcessBus::Init: the target side is ready
// immediately, the initiator side busy-waits up to 1s for the target to
// call CleanUp.
func (b *InProcessBus) Init(target bool) bool {
	b.target = target
	if target {
		return true
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.targetEnabled.Load() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// CleanUp signals initiator-side Init that the target is ready, mirroring
// the original's use of CleanUp as a readiness handshake.
func (b *InProcessBus) CleanUp() {
	if b.target {
		b.targetEnabled.Store(true)
	}
}

func (b *InProcessBus) IsTarget() bool { return b.target }

func (b *InProcessBus) Acquire() {}

func (b *InProcessBus) GetSignal(pin Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signals[pin]
}

func (b *InProcessBus) SetSignal(pin Pin, state bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals[pin] = state
}

func (b *InProcessBus) SetDAT(v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dat = v
}

func (b *InProcessBus) GetDAT() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dat
}

func (b *InProcessBus) GetPhase() Phase {
	return GetPhaseFor(b.GetSignal(PinSel), b.GetSignal(PinBsy), b.GetSignal(PinMsg), b.GetSignal(PinCd), b.GetSignal(PinIo))
}

func (b *InProcessBus) IsPhase(p Phase) bool {
	return b.GetPhase() == p
}

// WaitForSelection busy-waits in 10ms increments, the one place this module
// keeps a literal nanosleep: there is no interrupt to block on in an
// in-process loopback, and the original source documents this exact
// tradeoff for the same reason.
func (b *InProcessBus) WaitForSelection() bool {
	ts := unix.NsecToTimespec(10_000_000)
	for {
		if err := unix.Nanosleep(&ts, nil); err != nil {
			time.Sleep(10 * time.Millisecond)
		}
		if b.GetSignal(PinSel) || b.GetSignal(PinRst) {
			return true
		}
	}
}

func (b *InProcessBus) WaitHandshake(pin Pin, state bool) bool {
	deadline := time.Now().Add(HandshakeTimeout)
	for time.Now().Before(deadline) {
		if b.GetSignal(PinRst) {
			return false
		}
		if b.GetSignal(pin) == state {
			return true
		}
		time.Sleep(100 * time.Microsecond)
	}
	return false
}

func (b *InProcessBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = [pinCount]bool{}
	b.dat = 0
}

func (b *InProcessBus) SetDir(bool) {}
