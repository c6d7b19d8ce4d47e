package uefi

import "testing"

func TestStatusIsError(t *testing.T) {
	specs := []struct {
		status Status
		isErr  bool
	}{
		{StatusSuccess, false},
		{StatusLoadError, true},
		{StatusInvalidParameter, true},
		{StatusBufferTooSmall, true},
		{StatusAborted, true},
	}

	for _, spec := range specs {
		if got := spec.status.IsError(); got != spec.isErr {
			t.Errorf("Status(%#x).IsError(): expected %v; got %v", uintptr(spec.status), spec.isErr, got)
		}
	}
}

func TestStatusErrorStrings(t *testing.T) {
	specs := []struct {
		status Status
		want   string
	}{
		{StatusSuccess, "efi: success"},
		{StatusNotFound, "efi: not found"},
		{StatusUnsupported, "efi: unsupported"},
	}

	for _, spec := range specs {
		if got := spec.status.Error(); got != spec.want {
			t.Errorf("expected %q; got %q", spec.want, got)
		}
	}
}

func TestStatusErrorUnknownFallsBackToHex(t *testing.T) {
	got := Status(0x2a).Error()
	want := "efi: status 0x2a"
	if got != want {
		t.Errorf("expected %q; got %q", want, got)
	}
}
