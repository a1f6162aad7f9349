// Package scsi holds the protocol-level constants and tables shared by the
// bus, target and device packages: opcodes, status codes, sense keys and
// ASC/ASCQ values, device type codes, message codes and the per-opcode CDB
// metadata table.
package scsi

// Opcode is a SCSI command operation code, the first byte of every CDB.
type Opcode byte

// SCSI opcodes. Values and names follow the original project's scsi_command
// enumeration and command_meta_data.cpp table in full; this module's device
// command tables dispatch a subset of these, the rest carry only a name and
// a CDB length so logging and initiator-side tooling can still identify and
// size commands this target doesn't itself implement.
const (
	TestUnitReady             Opcode = 0x00
	RezeroUnit                Opcode = 0x01
	ReadBlockLimits           Opcode = 0x05
	RequestSense              Opcode = 0x03
	FormatUnit                Opcode = 0x04
	ReassignBlocks            Opcode = 0x07
	Read6                     Opcode = 0x08
	Write6                    Opcode = 0x0a
	Seek6                     Opcode = 0x0b
	ReadReverse6              Opcode = 0x0f
	SynchronizeBuffer         Opcode = 0x10
	Space6                    Opcode = 0x11
	Inquiry                   Opcode = 0x12
	ModeSelect6               Opcode = 0x15
	Reserve6                  Opcode = 0x16
	Release6                  Opcode = 0x17
	Erase6                    Opcode = 0x19
	ModeSense6                Opcode = 0x1a
	StartStop                 Opcode = 0x1b
	ReceiveDiagnostic         Opcode = 0x1c
	SendDiagnostic            Opcode = 0x1d
	PreventAllowMediumRemoval Opcode = 0x1e
	ReadFormatCapacities      Opcode = 0x23
	ReadCapacity10            Opcode = 0x25
	Read10                    Opcode = 0x28
	Write10                   Opcode = 0x2a
	Seek10                    Opcode = 0x2b
	Erase10                   Opcode = 0x2c
	WriteAndVerify10          Opcode = 0x2e
	Verify10                  Opcode = 0x2f
	ReadPosition              Opcode = 0x34
	SynchronizeCache10        Opcode = 0x35
	ReadDefectData10          Opcode = 0x37
	MediumScan                Opcode = 0x38
	WriteBuffer               Opcode = 0x3b
	ReadBuffer10              Opcode = 0x3c
	ReadLong10                Opcode = 0x3e
	WriteLong10               Opcode = 0x3f
	WriteSame10               Opcode = 0x41
	ReadSubChannel            Opcode = 0x42
	ReadToc                   Opcode = 0x43
	ReadHeader                Opcode = 0x44
	PlayAudio10               Opcode = 0x45
	GetConfiguration          Opcode = 0x46
	PlayAudioMsf              Opcode = 0x47
	PlayAudioTrackIndex       Opcode = 0x48
	GetEventStatusNotification Opcode = 0x4a
	PauseResume               Opcode = 0x4b
	LogSelect                 Opcode = 0x4c
	LogSense                  Opcode = 0x4d
	ReadDiscInformation       Opcode = 0x51
	ReadTrackInformation      Opcode = 0x52
	ModeSelect10              Opcode = 0x55
	Reserve10                 Opcode = 0x56
	Release10                 Opcode = 0x57
	ModeSense10               Opcode = 0x5a
	CloseTrackSession         Opcode = 0x5b
	ReadBufferCapacity        Opcode = 0x5c
	PersistentReserveIn       Opcode = 0x5e
	PersistentReserveOut      Opcode = 0x5f
	WriteFilemarks16          Opcode = 0x80
	RebuildReadReverse16      Opcode = 0x81
	Read16                    Opcode = 0x88
	Write16                   Opcode = 0x8a
	WriteAndVerify16          Opcode = 0x8e
	Verify16                  Opcode = 0x8f
	SynchronizeCache16        Opcode = 0x91
	Locate16                  Opcode = 0x92
	EraseWriteSame16          Opcode = 0x93
	ReadBuffer16              Opcode = 0x9b
	ServiceActionIn16         Opcode = 0x9e
	WriteLong16               Opcode = 0x9f
	ReportLuns                Opcode = 0xa0
	Blank                     Opcode = 0xa1
	PlayAudio12               Opcode = 0xa5
	Read12                    Opcode = 0xa8
	Write12                   Opcode = 0xaa
	Erase12                   Opcode = 0xac
	ReadDvdStructure          Opcode = 0xad
	WriteAndVerify12          Opcode = 0xae
	Verify12                  Opcode = 0xaf
	SendVolumeTag             Opcode = 0xb2
	ReadDefectData12          Opcode = 0xb7
	ReadCdMsf                 Opcode = 0xb9
	SetCdSpeed                Opcode = 0xbb
	PlayCd                    Opcode = 0xbc
	ReadCd                    Opcode = 0xbe
	ExecuteOperation          Opcode = 0xc0
	ReceiveOperationResults   Opcode = 0xc1
)

// Service-action codes used with ServiceActionIn16.
const (
	SaiReadCapacity16 = 0x10
)

// DeviceType is the PERIPHERAL DEVICE TYPE field of an INQUIRY response,
// also used as PrimaryDevice's identity discriminator.
type DeviceType byte

const (
	DeviceTypeDirectAccess    DeviceType = 0x00
	DeviceTypeSequentialAccess DeviceType = 0x01
	DeviceTypePrinter         DeviceType = 0x02
	DeviceTypeProcessor       DeviceType = 0x03
	DeviceTypeCdRom           DeviceType = 0x05
	DeviceTypeOpticalMemory   DeviceType = 0x07
)

// Status is a SCSI status byte, returned in the STATUS phase.
type Status byte

const (
	StatusGood                     Status = 0x00
	StatusCheckCondition           Status = 0x02
	StatusConditionMet             Status = 0x04
	StatusBusy                     Status = 0x08
	StatusIntermediate             Status = 0x10
	StatusIntermediateConditionMet Status = 0x14
	StatusReservationConflict      Status = 0x18
	StatusCommandTerminated        Status = 0x22
	StatusQueueFull                Status = 0x28
)

// SenseKey is the SENSE KEY nibble of REQUEST SENSE data.
type SenseKey byte

const (
	SenseNoSense        SenseKey = 0x00
	SenseRecoveredError SenseKey = 0x01
	SenseNotReady       SenseKey = 0x02
	SenseMediumError    SenseKey = 0x03
	SenseHardwareError  SenseKey = 0x04
	SenseIllegalRequest SenseKey = 0x05
	SenseUnitAttention  SenseKey = 0x06
	SenseDataProtect    SenseKey = 0x07
	SenseBlankCheck     SenseKey = 0x08
	SenseAbortedCommand SenseKey = 0x0b
	SenseVolumeOverflow SenseKey = 0x0d
	SenseMiscompare     SenseKey = 0x0e
)

// Asc is the ADDITIONAL SENSE CODE byte of REQUEST SENSE data.
type Asc byte

const (
	AscNoAdditionalSenseInformation  Asc = 0x00
	AscUnrecoveredReadError          Asc = 0x11
	AscWriteFault                    Asc = 0x03
	AscInvalidCommandOperationCode   Asc = 0x20
	AscLbaOutOfRange                 Asc = 0x21
	AscInvalidFieldInCdb             Asc = 0x24
	AscLogicalUnitNotSupported       Asc = 0x25
	AscInvalidFieldInParameterList   Asc = 0x26
	AscWriteProtected                Asc = 0x27
	AscNotReadyToReadyTransition     Asc = 0x28
	AscPowerOnOrReset                Asc = 0x29
	AscMediumNotPresent              Asc = 0x3a
	AscCommandPhaseError             Asc = 0x4a
	AscDataPhaseError                Asc = 0x4b
	AscInternalTargetFailure         Asc = 0x44
)

// Ascq is the ADDITIONAL SENSE CODE QUALIFIER byte of REQUEST SENSE data.
type Ascq byte

// MessageCode identifies a one-byte SCSI message exchanged during MSG IN/OUT.
type MessageCode byte

const (
	MsgCommandComplete           MessageCode = 0x00
	MsgExtendedMessage           MessageCode = 0x01
	MsgAbort                     MessageCode = 0x06
	MsgMessageReject             MessageCode = 0x07
	MsgLinkedCommandComplete     MessageCode = 0x0a
	MsgLinkedCommandCompleteFlag MessageCode = 0x0b
	MsgBusDeviceReset            MessageCode = 0x0c
	MsgIdentifyMin               MessageCode = 0x80
)

// ScsiLevel enumerates the SCSI standard revision a device claims.
type ScsiLevel byte

const (
	ScsiLevelScsi1Ccs ScsiLevel = 1
	ScsiLevelScsi2    ScsiLevel = 2
	ScsiLevelSpc      ScsiLevel = 3
	ScsiLevelSpc2     ScsiLevel = 4
	ScsiLevelSpc3     ScsiLevel = 5
	ScsiLevelSpc4     ScsiLevel = 6
	ScsiLevelSpc5     ScsiLevel = 7
	ScsiLevelSpc6     ScsiLevel = 8
)
