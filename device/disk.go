package device

import (
	"io"

	"github.com/uweseimet/scsi2pi-go/scsi"
	"github.com/uweseimet/scsi2pi-go/target"
)

// ReadWriterAt is the block-image backing store a Disk reads and writes
// through. An *os.File, or anything wrapping one, satisfies it.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Disk is a block-addressed, image-file-backed LogicalUnit: the read/write
// family of opcodes plus MODE SENSE/SELECT and READ CAPACITY, grounded on
// _examples/original_source/cpp/devices/disk.cpp and this module's own
// teacher's EmulateRead/EmulateWrite/EmulateModeSense/EmulateModeSelect/
// EmulateReadCapacity16 (cmd_handler.go). Unlike the teacher, which hands the
// whole command to a single handler taking an io.ReaderAt/io.WriterAt, a
// Disk registers one CommandFunc per opcode on its embedded Base, using
// scsi.MetaData to locate each CDB's LBA and transfer-length fields instead
// of hand-parsing every variant.
type Disk struct {
	*Base

	rw         ReadWriterAt
	blockSize  int
	blockCount int64

	wce        bool  // write cache enabled, reported in the caching mode page
	pendingLba int64 // byte offset recorded by write(), consumed by WriteData()
}

// NewDisk constructs a direct-access Disk of blockCount blocks of blockSize
// bytes, backed by rw.
func NewDisk(lun int, rw ReadWriterAt, blockSize int, blockCount int64, removable bool) *Disk {
	d := &Disk{
		Base:       NewBase(lun, scsi.DeviceTypeDirectAccess, removable),
		rw:         rw,
		blockSize:  blockSize,
		blockCount: blockCount,
	}
	// CommandFunc is declared as func(*Base, DeviceContext) error, since that
	// is the receiver every mandatory handler in registerBaseCommands uses.
	// A Disk handler needs Disk's own fields (rw, blockSize, ...), so each
	// entry here is a closure over d rather than a (*Disk) method
	// expression -- the Base argument is unused but kept to satisfy
	// CommandFunc.
	bind := func(fn func(*Disk, target.DeviceContext) error) CommandFunc {
		return func(_ *Base, ctx target.DeviceContext) error { return fn(d, ctx) }
	}
	d.AddCommand(scsi.Read6, bind((*Disk).read))
	d.AddCommand(scsi.Read10, bind((*Disk).read))
	d.AddCommand(scsi.Read12, bind((*Disk).read))
	d.AddCommand(scsi.Read16, bind((*Disk).read))
	d.AddCommand(scsi.Write6, bind((*Disk).write))
	d.AddCommand(scsi.Write10, bind((*Disk).write))
	d.AddCommand(scsi.Write12, bind((*Disk).write))
	d.AddCommand(scsi.Write16, bind((*Disk).write))
	d.AddCommand(scsi.ModeSense6, bind((*Disk).modeSense))
	d.AddCommand(scsi.ModeSense10, bind((*Disk).modeSense))
	d.AddCommand(scsi.ModeSelect6, bind((*Disk).modeSelectCmd))
	d.AddCommand(scsi.ModeSelect10, bind((*Disk).modeSelectCmd))
	d.AddCommand(scsi.ReadCapacity10, bind((*Disk).readCapacity10))
	d.AddCommand(scsi.ServiceActionIn16, bind((*Disk).serviceActionIn16))
	d.AddCommand(scsi.SynchronizeCache10, bind((*Disk).synchronizeCache))
	d.AddCommand(scsi.SynchronizeCache16, bind((*Disk).synchronizeCache))
	return d
}

// blockCountField reads a CDB's transfer-length field using meta's
// allocation-length descriptor, which doubles as the block count for the
// read/write family. Zero in a 6-byte command's one-byte field means 256
// blocks, the SCSI-1 convention the original project preserves.
func blockCountField(cdb []byte, op scsi.Opcode, meta scsi.CdbMetaData) uint64 {
	n := cdbUint(cdb, meta.AllocationLengthOffset, meta.AllocationLengthSize)
	if n == 0 && (op == scsi.Read6 || op == scsi.Write6) {
		return 256
	}
	return n
}

func (d *Disk) checkRange(lba, blocks uint64) error {
	if blocks == 0 {
		return nil
	}
	if lba+blocks > uint64(d.blockCount) {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscLbaOutOfRange)
	}
	return nil
}

func (d *Disk) read(ctx target.DeviceContext) error {
	if err := d.checkReady(); err != nil {
		return err
	}

	cdb := ctx.GetCdb()
	op := scsi.Opcode(cdb[0])
	meta := scsi.MetaData(op)

	lba := cdbUint(cdb, meta.BlockOffset, meta.BlockSize)
	blocks := blockCountField(cdb, op, meta)
	if err := d.checkRange(lba, blocks); err != nil {
		return err
	}

	length := int(blocks) * d.blockSize
	ctx.SetCurrentLength(length)
	buf := ctx.GetBuffer()
	if length > 0 {
		if _, err := d.rw.ReadAt(buf[:length], int64(lba)*int64(d.blockSize)); err != nil {
			return scsi.NewError(scsi.SenseMediumError, scsi.AscUnrecoveredReadError)
		}
	}
	ctx.SetTransferSize(length, length)
	ctx.DataInPhase()
	return nil
}

func (d *Disk) write(ctx target.DeviceContext) error {
	if err := d.checkReady(); err != nil {
		return err
	}
	if d.writeProtected {
		return scsi.NewError(scsi.SenseDataProtect, scsi.AscWriteProtected)
	}

	cdb := ctx.GetCdb()
	op := scsi.Opcode(cdb[0])
	meta := scsi.MetaData(op)

	lba := cdbUint(cdb, meta.BlockOffset, meta.BlockSize)
	blocks := blockCountField(cdb, op, meta)
	if err := d.checkRange(lba, blocks); err != nil {
		return err
	}

	length := int(blocks) * d.blockSize
	ctx.SetCurrentLength(length)
	ctx.SetTransferSize(length, length)
	d.pendingLba = int64(lba) * int64(d.blockSize)
	ctx.DataOutPhase()
	return nil
}

// WriteData is called by the controller once the DATA OUT bytes for the
// write in progress have been collected, per spec §4.3's TransferFromHost
// step. It writes exactly offset bytes -- the number actually received --
// starting at the LBA write() recorded.
func (d *Disk) WriteData(cdb []byte, buf []byte, offset, length int) (int, error) {
	if offset == 0 {
		return 0, nil
	}
	n, err := d.rw.WriteAt(buf[:offset], d.pendingLba)
	if err != nil {
		return n, scsi.NewError(scsi.SenseMediumError, scsi.AscWriteFault)
	}
	return n, nil
}

func (d *Disk) synchronizeCache(ctx target.DeviceContext) error {
	if err := d.FlushCache(); err != nil {
		return err
	}
	ctx.StatusPhase()
	return nil
}

// FlushCache is a no-op: this Disk always writes through, so there is
// nothing buffered to flush.
func (d *Disk) FlushCache() error { return nil }

func (d *Disk) readCapacity10(ctx target.DeviceContext) error {
	lastLba := uint64(d.blockCount) - 1
	if d.blockCount == 0 {
		lastLba = 0
	}
	data := make([]byte, 8)
	data[0] = byte(lastLba >> 24)
	data[1] = byte(lastLba >> 16)
	data[2] = byte(lastLba >> 8)
	data[3] = byte(lastLba)
	bs := uint32(d.blockSize)
	data[4] = byte(bs >> 24)
	data[5] = byte(bs >> 16)
	data[6] = byte(bs >> 8)
	data[7] = byte(bs)

	ctx.SetCurrentLength(len(data))
	copy(ctx.GetBuffer(), data)
	ctx.SetTransferSize(len(data), len(data))
	ctx.DataInPhase()
	return nil
}

func (d *Disk) serviceActionIn16(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	if cdb[1]&0x1f != scsi.SaiReadCapacity16 {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInCdb)
	}

	data := make([]byte, 32)
	lastLba := uint64(d.blockCount) - 1
	if d.blockCount == 0 {
		lastLba = 0
	}
	for i := 0; i < 8; i++ {
		data[7-i] = byte(lastLba >> (8 * uint(i)))
	}
	bs := uint32(d.blockSize)
	data[8] = byte(bs >> 24)
	data[9] = byte(bs >> 16)
	data[10] = byte(bs >> 8)
	data[11] = byte(bs)

	meta := scsi.MetaData(scsi.ServiceActionIn16)
	allocationLength := int(cdbUint(cdb, meta.AllocationLengthOffset, meta.AllocationLengthSize))
	if allocationLength <= 0 || allocationLength > len(data) {
		allocationLength = len(data)
	}

	ctx.SetCurrentLength(allocationLength)
	copy(ctx.GetBuffer(), data[:allocationLength])
	ctx.SetTransferSize(allocationLength, allocationLength)
	ctx.DataInPhase()
	return nil
}

// cachingModePage builds the one mode page this Disk supports, matching the
// teacher's CachingModePage helper in shape if not in byte layout (SCSI mode
// pages share the same [page code][page length][flags...] envelope
// regardless of device type).
func (d *Disk) cachingModePage() []byte {
	buf := make([]byte, 20)
	buf[0] = 0x08
	buf[1] = 0x12
	if d.wce {
		buf[2] |= 0x04
	}
	return buf
}

func (d *Disk) modeSense(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	op := scsi.Opcode(cdb[0])
	page := cdb[2] & 0x3f

	var pageData []byte
	if page == 0x3f || page == 0x08 {
		pageData = d.cachingModePage()
	}

	var header []byte
	if op == scsi.ModeSense6 {
		header = make([]byte, 4)
		header[0] = byte(len(pageData) + 3)
		if d.writeProtected {
			header[2] = 0x80
		}
	} else {
		header = make([]byte, 8)
		total := len(pageData) + 6
		header[0] = byte(total >> 8)
		header[1] = byte(total)
		if d.writeProtected {
			header[3] = 0x80
		}
	}
	data := append(header, pageData...)

	meta := scsi.MetaData(op)
	allocationLength := int(cdbUint(cdb, meta.AllocationLengthOffset, meta.AllocationLengthSize))
	if allocationLength <= 0 || allocationLength > len(data) {
		allocationLength = len(data)
	}

	ctx.SetCurrentLength(allocationLength)
	copy(ctx.GetBuffer(), data[:allocationLength])
	ctx.SetTransferSize(allocationLength, allocationLength)
	ctx.DataInPhase()
	return nil
}

// modeSelectCmd requests the parameter list via DATA OUT; the actual
// validation happens in ModeSelect once the controller has collected it.
func (d *Disk) modeSelectCmd(ctx target.DeviceContext) error {
	cdb := ctx.GetCdb()
	op := scsi.Opcode(cdb[0])
	meta := scsi.MetaData(op)
	length := int(cdbUint(cdb, meta.AllocationLengthOffset, meta.AllocationLengthSize))

	ctx.SetCurrentLength(length)
	ctx.SetTransferSize(length, length)
	ctx.DataOutPhase()
	return nil
}

// ModeSelect validates the caching mode page the initiator sent and adopts
// its Write Cache Enable bit; any other page is rejected, matching the
// teacher's EmulateModeSelect which only ever recognizes the page it itself
// advertises via MODE SENSE.
func (d *Disk) ModeSelect(cdb []byte, buf []byte, length int) error {
	op := scsi.Opcode(cdb[0])
	hdrLen := 4
	if op == scsi.ModeSelect10 {
		hdrLen = 8
	}
	if length <= hdrLen {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInParameterList)
	}

	page := buf[hdrLen] & 0x3f
	if page != 0x08 {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInParameterList)
	}
	pageLen := int(buf[hdrLen+1])
	if hdrLen+2+pageLen > length {
		return scsi.NewError(scsi.SenseIllegalRequest, scsi.AscInvalidFieldInParameterList)
	}

	d.wce = buf[hdrLen+2]&0x04 != 0
	return nil
}
