package device_test

import (
	"testing"

	"github.com/uweseimet/scsi2pi-go/device"
	"github.com/uweseimet/scsi2pi-go/scsi"
	"github.com/uweseimet/scsi2pi-go/target"
)

// fakeCtx is a minimal target.DeviceContext, used to unit test Base/Disk
// command handlers without a real Controller or bus.
type fakeCtx struct {
	cdb         []byte
	buf         []byte
	curLength   int
	xferLen     int
	xferSize    int
	initiatorID int
	lunMissing  bool

	phase string

	errKey    scsi.SenseKey
	errAsc    scsi.Asc
	errStatus scsi.Status
	errCalled bool
}

func newFakeCtx(cdb []byte) *fakeCtx {
	return &fakeCtx{cdb: cdb, buf: make([]byte, 512)}
}

func (f *fakeCtx) GetCdb() []byte    { return f.cdb }
func (f *fakeCtx) GetBuffer() []byte { return f.buf }

func (f *fakeCtx) SetCurrentLength(n int)          { f.curLength = n }
func (f *fakeCtx) SetTransferSize(length, size int) { f.xferLen, f.xferSize = length, size }

func (f *fakeCtx) StatusPhase()  { f.phase = "status" }
func (f *fakeCtx) DataInPhase()  { f.phase = "data-in" }
func (f *fakeCtx) DataOutPhase() { f.phase = "data-out" }

func (f *fakeCtx) GetInitiatorID() int      { return f.initiatorID }
func (f *fakeCtx) EffectiveLunMissing() bool { return f.lunMissing }

func (f *fakeCtx) Error(key scsi.SenseKey, asc scsi.Asc, status scsi.Status) {
	f.errCalled = true
	f.errKey, f.errAsc, f.errStatus = key, asc, status
	f.phase = "status"
}

func TestBaseTestUnitReadyHappyPath(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)
	ctx := newFakeCtx([]byte{0x00, 0, 0, 0, 0, 0})

	if err := b.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ctx.phase != "status" {
		t.Errorf("phase = %q, want status", ctx.phase)
	}
}

func TestBaseTestUnitReadyReportsUnitAttentionAfterReset(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)
	b.SetReset(true)
	ctx := newFakeCtx([]byte{0x00, 0, 0, 0, 0, 0})

	err := b.Dispatch(ctx)
	var se *scsi.Error
	if err == nil {
		t.Fatal("expected an error after SetReset(true)")
	}
	if se, _ = err.(*scsi.Error); se == nil {
		t.Fatalf("error is not *scsi.Error: %v", err)
	}
	if se.SenseKey != scsi.SenseUnitAttention {
		t.Errorf("sense key = %v, want SenseUnitAttention", se.SenseKey)
	}

	// The pending reset is consumed; a second TEST UNIT READY succeeds.
	ctx2 := newFakeCtx([]byte{0x00, 0, 0, 0, 0, 0})
	if err := b.Dispatch(ctx2); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
}

func TestBaseInquiryFillsProductFields(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, true)
	if err := b.SetProductData("acme", "disk", "1.0"); err != nil {
		t.Fatalf("SetProductData: %v", err)
	}
	cdb := []byte{0x12, 0, 0, 0, 36, 0}
	ctx := newFakeCtx(cdb)

	if err := b.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ctx.phase != "data-in" {
		t.Errorf("phase = %q, want data-in", ctx.phase)
	}
	if ctx.buf[0] != byte(scsi.DeviceTypeDirectAccess) {
		t.Errorf("peripheral device type = %#02x, want %#02x", ctx.buf[0], scsi.DeviceTypeDirectAccess)
	}
	if ctx.buf[1]&0x80 == 0 {
		t.Error("RMB bit should be set for a removable device")
	}
	if got := string(ctx.buf[8:16]); got != "ACME    " {
		t.Errorf("vendor field = %q, want %q", got, "ACME    ")
	}
}

func TestBaseInquiryReportsLun7fWhenLunMissing(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)
	cdb := []byte{0x12, 0, 0, 0, 36, 0}
	ctx := newFakeCtx(cdb)
	ctx.lunMissing = true

	if err := b.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ctx.buf[0] != 0x7f {
		t.Errorf("peripheral device type = %#02x, want 0x7f", ctx.buf[0])
	}
}

func TestBaseReportLunsWithoutControllerReturnsOwnLun(t *testing.T) {
	b := device.NewBase(5, scsi.DeviceTypeDirectAccess, false)
	cdb := []byte{0xa0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0, 0}
	ctx := newFakeCtx(cdb)

	if err := b.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ctx.buf[3] != 8 {
		t.Errorf("LUN list length low byte = %d, want 8 (one LUN)", ctx.buf[3])
	}
	if ctx.buf[8+7] != 5 {
		t.Errorf("reported LUN = %d, want 5", ctx.buf[8+7])
	}
}

// fakeLunController stands in for a target.Controller exposing a fixed set
// of attached LUNs, to exercise REPORT LUNS with more than one descriptor.
type fakeLunController struct{ luns map[int]bool }

func (f *fakeLunController) GetDeviceForLun(lun int) (target.LogicalUnit, bool) {
	return nil, f.luns[lun]
}

func (f *fakeLunController) GetLunCount() int { return len(f.luns) }

func TestBaseReportLunsWithControllerListsAllAttachedLuns(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)
	b.SetController(&fakeLunController{luns: map[int]bool{0: true, 2: true}})

	cdb := []byte{0xa0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0, 0}
	ctx := newFakeCtx(cdb)

	if err := b.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ctx.buf[3] != 16 {
		t.Errorf("LUN list length low byte = %d, want 16 (two LUNs)", ctx.buf[3])
	}
	if ctx.buf[8] != 0 || ctx.buf[8+7] != 0 {
		t.Errorf("first descriptor at offset 8 = %#v, want all zero", ctx.buf[8:16])
	}
	if ctx.buf[16+7] != 2 {
		t.Errorf("second descriptor LUN byte at offset 23 = %d, want 2", ctx.buf[16+7])
	}
}

func TestBaseReserveThenReleaseReservation(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)

	reserveCtx := newFakeCtx([]byte{0x16, 0, 0, 0, 0, 0})
	reserveCtx.initiatorID = 3
	if err := b.Dispatch(reserveCtx); err != nil {
		t.Fatalf("RESERVE(6): %v", err)
	}

	if b.CheckReservation(4, scsi.TestUnitReady, []byte{0x00}) {
		t.Error("a different initiator should be denied while reserved")
	}
	if !b.CheckReservation(3, scsi.TestUnitReady, []byte{0x00}) {
		t.Error("the reserving initiator should still be permitted")
	}
	if !b.CheckReservation(4, scsi.Inquiry, []byte{0x12}) {
		t.Error("INQUIRY should always be permitted regardless of reservation")
	}

	releaseCtx := newFakeCtx([]byte{0x17, 0, 0, 0, 0, 0})
	releaseCtx.initiatorID = 3
	if err := b.Dispatch(releaseCtx); err != nil {
		t.Fatalf("RELEASE(6): %v", err)
	}
	if !b.CheckReservation(4, scsi.TestUnitReady, []byte{0x00}) {
		t.Error("reservation should be gone after RELEASE(6)")
	}
}

func TestBaseDispatchUnknownOpcodeIsInvalidCommand(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)
	ctx := newFakeCtx([]byte{0xc0, 0, 0, 0, 0, 0})

	err := b.Dispatch(ctx)
	se, ok := err.(*scsi.Error)
	if !ok {
		t.Fatalf("error is not *scsi.Error: %v", err)
	}
	if se.SenseKey != scsi.SenseIllegalRequest || se.Asc != scsi.AscInvalidCommandOperationCode {
		t.Errorf("got sense %v/%v, want IllegalRequest/InvalidCommandOperationCode", se.SenseKey, se.Asc)
	}
}

func TestBaseRequestSenseClearsSenseAfterRead(t *testing.T) {
	b := device.NewBase(0, scsi.DeviceTypeDirectAccess, false)
	b.SetSense(scsi.SenseMediumError, scsi.AscUnrecoveredReadError)

	ctx := newFakeCtx([]byte{0x03, 0, 0, 0, 18, 0})
	if err := b.Dispatch(ctx); err != nil {
		t.Fatalf("REQUEST SENSE: %v", err)
	}
	if ctx.buf[2] != byte(scsi.SenseMediumError) {
		t.Errorf("sense key in response = %#02x, want %#02x", ctx.buf[2], scsi.SenseMediumError)
	}

	// A second REQUEST SENSE should now report NO SENSE, since ResetStatus
	// is called after the first read.
	ctx2 := newFakeCtx([]byte{0x03, 0, 0, 0, 18, 0})
	if err := b.Dispatch(ctx2); err != nil {
		t.Fatalf("second REQUEST SENSE: %v", err)
	}
	if ctx2.buf[2] != byte(scsi.SenseNoSense) {
		t.Errorf("sense key after clear = %#02x, want %#02x", ctx2.buf[2], scsi.SenseNoSense)
	}
}
