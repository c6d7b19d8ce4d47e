package elf

import "testing"

func validHeader() HeaderCommon {
	return HeaderCommon{
		Magic:         Magic,
		Class:         Class64,
		Data:          LittleEndian,
		Type:          TypeExecutable,
		Machine:       MachineX86_64,
		HeaderVersion: CurrentVersion,
	}
}

func TestValidateAcceptsWellFormedHeader(t *testing.T) {
	h := validHeader()
	if err := h.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateChecksFieldsInOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*HeaderCommon)
		wantErr error
	}{
		{"bad magic", func(h *HeaderCommon) { h.Magic[0] = 0 }, ErrInvalidMagic},
		{"bad class", func(h *HeaderCommon) { h.Class = Class32 }, ErrInvalidClass},
		{"bad endianness", func(h *HeaderCommon) { h.Data = BigEndian }, ErrInvalidEndianness},
		{"bad type", func(h *HeaderCommon) { h.Type = TypeRelocatable }, ErrInvalidType},
		{"bad machine", func(h *HeaderCommon) { h.Machine = 0 }, ErrInvalidMachine},
		{"bad version", func(h *HeaderCommon) { h.HeaderVersion = 0 }, ErrInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validHeader()
			tt.mutate(&h)
			if err := h.Validate(); err != tt.wantErr {
				t.Errorf("expected %v; got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	h := validHeader()
	h.Magic[0] = 0
	h.Class = Class32

	if err := h.Validate(); err != ErrInvalidMagic {
		t.Errorf("expected magic to be reported before class; got %v", err)
	}
}

func TestIsLoad(t *testing.T) {
	load := ProgramHeader64{Type: PTLoad}
	if !load.IsLoad() {
		t.Error("expected PTLoad header to report IsLoad")
	}

	dynamic := ProgramHeader64{Type: PTDynamic}
	if dynamic.IsLoad() {
		t.Error("expected PTDynamic header to not report IsLoad")
	}
}
