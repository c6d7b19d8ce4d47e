// Package serial drives the COM1 UART for early diagnostic output, before
// the screen console or any other logging sink exists.
package serial

import "boot64/kernel/cpu"

// com1Port is the conventional I/O port base address for the first serial
// port on PC-compatible hardware.
const com1Port = 0x3F8

const (
	regData        = com1Port + 0
	regDivisorLow  = com1Port + 0
	regDivisorHigh = com1Port + 1
	regIntEnable   = com1Port + 1
	regFIFOCtrl    = com1Port + 2
	regLineCtrl    = com1Port + 3
	regModemCtrl   = com1Port + 4
	regLineStatus  = com1Port + 5
)

const (
	lineCtrl8N1       = 0x03
	lineCtrlDivisorOn = 0x80
	fifoEnableClear   = 0xC7
	modemCtrlReady    = 0x0B
	lineStatusTxEmpty = 0x20
)

// Init configures COM1 at 115200 baud (divisor 1), 8 data bits, no
// parity, one stop bit, with its FIFO enabled.
func Init() {
	cpu.Outb(regIntEnable, 0x00)
	cpu.Outb(regLineCtrl, lineCtrlDivisorOn)
	cpu.Outb(regDivisorLow, 0x01)
	cpu.Outb(regDivisorHigh, 0x00)
	cpu.Outb(regLineCtrl, lineCtrl8N1)
	cpu.Outb(regFIFOCtrl, fifoEnableClear)
	cpu.Outb(regModemCtrl, modemCtrlReady)
}

func transmitReady() bool {
	return cpu.Inb(regLineStatus)&lineStatusTxEmpty != 0
}

// WriteByte blocks until the transmit holding register is empty, then
// sends b. It always succeeds; the error return exists only to satisfy
// io.ByteWriter.
func WriteByte(b byte) error {
	for !transmitReady() {
	}
	cpu.Outb(regData, b)
	return nil
}

// Write sends every byte of p in order and returns len(p), nil, matching
// io.Writer's contract without depending on the io package.
func Write(p []byte) (int, error) {
	for _, b := range p {
		_ = WriteByte(b)
	}
	return len(p), nil
}

// WriteString sends s byte by byte.
func WriteString(s string) {
	for i := 0; i < len(s); i++ {
		_ = WriteByte(s[i])
	}
}

// Port is a package-level io.Writer/io.ByteWriter over COM1, for callers
// that want the interface rather than the bare functions.
var Port port

type port struct{}

func (port) Write(p []byte) (int, error)  { return Write(p) }
func (port) WriteByte(b byte) error       { return WriteByte(b) }
