package scsi

import "testing"

func TestFormatExtended(t *testing.T) {
	sense := SenseData{Key: SenseIllegalRequest, Asc: AscInvalidCommandOperationCode, Valid: true}
	data := FormatExtended(sense, 18)
	if len(data) != 18 {
		t.Fatalf("len = %d, want 18", len(data))
	}
	if data[0] != 0xf0 {
		t.Errorf("response code byte = %#02x, want 0xf0 (valid bit set)", data[0])
	}
	if data[2] != byte(SenseIllegalRequest) {
		t.Errorf("sense key = %#02x, want %#02x", data[2], SenseIllegalRequest)
	}
	if data[12] != byte(AscInvalidCommandOperationCode) {
		t.Errorf("ASC = %#02x, want %#02x", data[12], AscInvalidCommandOperationCode)
	}
}

func TestFormatExtendedTruncates(t *testing.T) {
	data := FormatExtended(SenseData{}, 4)
	if len(data) != 4 {
		t.Fatalf("len = %d, want 4", len(data))
	}
}

func TestFormatExtendedValidBitNotSetWhenNotValid(t *testing.T) {
	data := FormatExtended(SenseData{Key: SenseNoSense}, 18)
	if data[0] != 0x70 {
		t.Errorf("response code byte = %#02x, want 0x70 (valid bit clear)", data[0])
	}
}

func TestFormatScsi1(t *testing.T) {
	sense := SenseData{Key: SenseMediumError, Valid: true}
	data := FormatScsi1(sense)
	if len(data) != 4 {
		t.Fatalf("len = %d, want 4", len(data))
	}
	if data[0] != byte(SenseMediumError)|0x80 {
		t.Errorf("byte 0 = %#02x, want sense key with valid bit set", data[0])
	}
}

func TestFormatScsi1ValidBitNotSetWhenNotValid(t *testing.T) {
	data := FormatScsi1(SenseData{Key: SenseNotReady})
	if data[0]&0x80 != 0 {
		t.Errorf("byte 0 = %#02x, valid bit should be clear", data[0])
	}
	if data[0] != byte(SenseNotReady) {
		t.Errorf("byte 0 = %#02x, want sense key alone", data[0])
	}
}
