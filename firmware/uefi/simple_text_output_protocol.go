package uefi

// SimpleTextOutputProtocol wraps EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL. Nothing
// in this codebase prints through it directly — kernel/kfmt/early's
// serial sink covers every early-boot diagnostic — so it's kept as a bare
// handle, exposed only so callers that need the firmware console pointer
// for completeness's sake (e.g. to hand to a debugger) can get at it.
type SimpleTextOutputProtocol struct {
	ptr *simpleTextOutputProtocol
}

func newSimpleTextOutputProtocol(ptr *simpleTextOutputProtocol) SimpleTextOutputProtocol {
	return SimpleTextOutputProtocol{ptr: ptr}
}
