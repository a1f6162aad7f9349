// Package device implements LogicalUnit personalities: the shared
// PrimaryDevice-equivalent base (command table, reservation, sense state)
// plus concrete device types built on top of it.
package device

import (
	"fmt"
	"strings"

	"github.com/uweseimet/scsi2pi-go/scsi"
	"github.com/uweseimet/scsi2pi-go/target"
)

const notReserved = -2

// CommandFunc handles one opcode dispatch for a device built on Base. It
// returns a *scsi.Error for sense exceptions, any other error for a fatal
// condition, or nil on success (the handler is responsible for calling
// ctx.StatusPhase/DataInPhase/DataOutPhase as appropriate before returning).
type CommandFunc func(d *Base, ctx target.DeviceContext) error

// Base is the composed state every LogicalUnit personality embeds, replacing
// the Device -> PrimaryDevice inheritance chain of the original
// implementation with composition, per SPEC_FULL.md's Design Notes. Grounded
// on _examples/original_source/cpp/base/{device.h,primary_device.cpp}.
type Base struct {
	lun        int
	deviceType scsi.DeviceType
	scsiLevel  scsi.ScsiLevel

	vendor   string
	product  string
	revision string

	ready bool
	reset bool
	attn  bool

	protectable    bool
	writeProtected bool
	readOnly       bool

	removable bool
	removed   bool
	locked    bool
	stoppable bool
	stopped   bool

	sense scsi.SenseData

	reservingInitiator int

	params map[string]string

	commands [256]CommandFunc

	controller lunController
}

// lunController is the subset of target.Controller a Base needs at
// attachment time to learn how many LUNs exist for REPORT LUNS; it is set
// by whatever owns the Base (normally via SetController, called by
// target.Controller.AddDevice's caller).
type lunController interface {
	GetDeviceForLun(lun int) (target.LogicalUnit, bool)
	GetLunCount() int
}

// NewBase constructs the shared state for a LogicalUnit at the given LUN
// and device type, with the mandatory command set already registered.
func NewBase(lun int, deviceType scsi.DeviceType, removable bool) *Base {
	b := &Base{
		lun:                lun,
		deviceType:         deviceType,
		scsiLevel:          scsi.ScsiLevelSpc3,
		ready:              true,
		removable:          removable,
		reservingInitiator: notReserved,
		params:             make(map[string]string),
	}
	b.registerBaseCommands()
	return b
}

func (b *Base) registerBaseCommands() {
	b.commands[scsi.TestUnitReady] = (*Base).testUnitReady
	b.commands[scsi.Inquiry] = (*Base).inquiry
	b.commands[scsi.RequestSense] = (*Base).requestSense
	b.commands[scsi.ReportLuns] = (*Base).reportLuns
	b.commands[scsi.Reserve6] = (*Base).reserve6
	b.commands[scsi.Release6] = (*Base).release6
	b.commands[scsi.SendDiagnostic] = (*Base).sendDiagnostic
}

// AddCommand registers (or overrides) the handler for opcode. Concrete
// device types call this from their constructor to extend the 256-entry
// table, per spec §4.4's "derived devices add further opcodes".
func (b *Base) AddCommand(op scsi.Opcode, fn CommandFunc) {
	b.commands[op] = fn
}

func (b *Base) SetController(c lunController) { b.controller = c }

// --- LogicalUnit interface ---

func (b *Base) Lun() int                     { return b.lun }
func (b *Base) DeviceType() scsi.DeviceType  { return b.deviceType }
func (b *Base) Removable() bool              { return b.removable }
func (b *Base) Ready() bool                  { return b.ready }
func (b *Base) SetReset(v bool)              { b.reset = v }
func (b *Base) SetAttn(v bool)               { b.attn = v }
func (b *Base) DiscardReservation()          { b.reservingInitiator = notReserved }
func (b *Base) CleanUp()                     {}

func (b *Base) Init() error { return nil }

// On Base, ReadData/WriteData/ModeSelect reject with INVALID COMMAND
// OPERATION CODE and FlushCache is a no-op; concrete device types (Disk,
// Generic) embed Base and shadow the ones they support.
func (b *Base) ReadData([]byte) (int, error) { return 0, scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidCommandOperationCode) }
func (b *Base) WriteData([]byte, []byte, int, int) (int, error) {
	return 0, scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidCommandOperationCode)
}
func (b *Base) ModeSelect([]byte, []byte, int) error {
	return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidCommandOperationCode)
}
func (b *Base) FlushCache() error { return nil }

// Dispatch looks opcode up in the command table and invokes it. An empty
// slot is INVALID_COMMAND_OPERATION_CODE, matching spec §7's protocol-error
// category.
func (b *Base) Dispatch(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	op := scsi.Opcode(cdb[0])
	fn := b.commands[op]
	if fn == nil {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidCommandOperationCode)
	}
	return fn(b, ctx)
}

// SetSense satisfies the unexported senseSetter interface target.Controller
// uses to record sense data without importing this package.
func (b *Base) SetSense(key scsi.SenseKey, asc scsi.Asc) {
	b.sense = scsi.SenseData{Key: key, Asc: asc, Valid: false}
}

func (b *Base) ResetStatus() {
	b.sense = scsi.SenseData{}
}

// SetProductData validates and stores the INQUIRY vendor/product/revision
// identity, per spec §3 ("vendor ≤8 chars, product ≤16 chars, revision ≤4
// chars") grounded on primary_device.cpp's SetProductData.
func (b *Base) SetProductData(vendor, product, revision string) error {
	if len(vendor) > 8 {
		return fmt.Errorf("device: vendor %q exceeds 8 characters", vendor)
	}
	if len(product) > 16 {
		return fmt.Errorf("device: product %q exceeds 16 characters", product)
	}
	if len(revision) > 4 {
		return fmt.Errorf("device: revision %q exceeds 4 characters", revision)
	}
	b.vendor, b.product, b.revision = vendor, product, revision
	return nil
}

// --- mandatory command handlers ---

// checkReady implements spec §4.4's CheckReady semantics, in priority
// order: a pending reset, then a pending attention, then not-ready.
func (b *Base) checkReady() error {
	if b.reset {
		b.reset = false
		return scsi.NewError(scsi.SenseUnitAttention, scsi.AscPowerOnOrReset)
	}
	if b.attn {
		b.attn = false
		return scsi.NewError(scsi.SenseUnitAttention, scsi.AscNotReadyToReadyTransition)
	}
	if !b.ready {
		return scsi.NewError(scsi.SenseNotReady, scsi.AscMediumNotPresent)
	}
	return nil
}

func (b *Base) testUnitReady(ctx target.DeviceContext) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	ctx.StatusPhase()
	return nil
}

func (b *Base) inquiry(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	if cdb[1]&0x1f != 0 || cdb[2] != 0 {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInCdb)
	}

	allocationLength := int(cdb[3])<<8 | int(cdb[4])
	if allocationLength > 36 {
		allocationLength = 36
	}

	data := make([]byte, 36)
	if ctx.EffectiveLunMissing() {
		data[0] = 0x7f
	} else {
		data[0] = byte(b.deviceType)
	}
	if b.removable {
		data[1] = 0x80
	}
	data[2] = byte(b.scsiLevel)
	data[3] = 0x02 // response data format

	copy(data[8:16], padField(b.vendor, 8))
	copy(data[16:32], padField(b.product, 16))
	copy(data[32:36], padField(b.revision, 4))

	buf := ctx.GetBuffer()
	copy(buf, data[:allocationLength])
	ctx.SetCurrentLength(allocationLength)
	ctx.SetTransferSize(allocationLength, allocationLength)
	ctx.DataInPhase()
	return nil
}

func padField(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, strings.ToUpper(s))
	return out
}

func (b *Base) requestSense(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	if cdb[1]&0x01 != 0 {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInCdb)
	}

	sense := b.sense
	switch {
	case ctx.EffectiveLunMissing():
		sense = scsi.SenseData{Key: scsi.SenseIllegalRequest, Asc: scsi.AscLogicalUnitNotSupported}
	case sense.Key == scsi.SenseNoSense && !b.ready:
		sense = scsi.SenseData{Key: scsi.SenseNotReady, Asc: scsi.AscMediumNotPresent}
	}

	allocationLength := int(cdb[4])
	var data []byte
	if b.scsiLevel == scsi.ScsiLevelScsi1Ccs && allocationLength < 4 {
		if allocationLength == 0 {
			allocationLength = 4
		}
		data = scsi.FormatScsi1(sense)
		if allocationLength < len(data) {
			data = data[:allocationLength]
		}
	} else {
		if allocationLength == 0 || allocationLength > 18 {
			allocationLength = 18
		}
		data = scsi.FormatExtended(sense, allocationLength)
	}

	buf := ctx.GetBuffer()
	copy(buf, data)
	ctx.SetCurrentLength(len(data))
	ctx.SetTransferSize(len(data), len(data))
	b.ResetStatus()
	ctx.DataInPhase()
	return nil
}

// HandleRequestSense exposes the 18-byte sense buffer construction
// independent of the command table, for the controller's deferred-sense
// synthesis path (spec §4.3's COMMAND handler special case uses the
// controller-owned deferred values instead, but other callers -- tests,
// initiator tooling -- use this directly).
func (b *Base) HandleRequestSense(cdb []byte) []byte {
	return scsi.FormatExtended(b.sense, 18)
}

func (b *Base) reportLuns(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	if cdb[2] != 0 {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInCdb)
	}

	allocationLength := int(cdb[6])<<24 | int(cdb[7])<<16 | int(cdb[8])<<8 | int(cdb[9])

	var luns []int
	if b.controller != nil {
		for l := 0; l <= 31; l++ {
			if _, ok := b.controller.GetDeviceForLun(l); ok {
				luns = append(luns, l)
			}
		}
	} else {
		luns = []int{b.lun}
	}

	total := 8 + 8*len(luns)
	data := make([]byte, total)
	listLength := uint32(8 * len(luns))
	data[0] = byte(listLength >> 24)
	data[1] = byte(listLength >> 16)
	data[2] = byte(listLength >> 8)
	data[3] = byte(listLength)

	for i, l := range luns {
		data[8+i*8+7] = byte(l)
	}

	if allocationLength <= 0 || allocationLength > total {
		allocationLength = total
	}

	buf := ctx.GetBuffer()
	copy(buf, data[:allocationLength])
	ctx.SetCurrentLength(allocationLength)
	ctx.SetTransferSize(allocationLength, allocationLength)
	ctx.DataInPhase()
	return nil
}

func (b *Base) reserve6(ctx target.DeviceContext) error {
	b.reservingInitiator = ctx.GetInitiatorID()
	ctx.StatusPhase()
	return nil
}

func (b *Base) release6(ctx target.DeviceContext) error {
	b.reservingInitiator = notReserved
	ctx.StatusPhase()
	return nil
}

func (b *Base) sendDiagnostic(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	if cdb[3] != 0 || cdb[4] != 0 {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInCdb)
	}
	ctx.StatusPhase()
	return nil
}

// CheckReservation implements spec §4.4's permit list: INQUIRY, REQUEST
// SENSE and RELEASE(6) always pass; PREVENT ALLOW MEDIUM REMOVAL passes
// when the prevent bit is clear; everything else is denied while another
// initiator holds the reservation.
func (b *Base) CheckReservation(initiatorID int, opcode scsi.Opcode, cdb []byte) bool {
	if b.reservingInitiator == notReserved || b.reservingInitiator == initiatorID {
		return true
	}
	switch opcode {
	case scsi.Inquiry, scsi.RequestSense, scsi.Release6:
		return true
	case scsi.PreventAllowMediumRemoval:
		return len(cdb) > 4 && cdb[4]&0x01 == 0
	default:
		return false
	}
}
