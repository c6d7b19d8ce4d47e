package kernel

import (
	"bytes"
	"testing"

	"boot64/kernel/cpu"
	"boot64/kernel/kfmt/early"
)

// bufSink is a minimal io.Writer/io.ByteWriter double used to capture
// early.Printf output without any real hardware sink.
type bufSink struct {
	bytes.Buffer
}

func (b *bufSink) WriteByte(c byte) error {
	return b.Buffer.WriteByte(c)
}

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
	}()

	prevSink := early.Sink
	defer early.SetSink(prevSink)

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	t.Run("with error", func(t *testing.T) {
		cpuHaltCalled = false
		sink := &bufSink{}
		early.SetSink(sink)
		err := &Error{Module: "test", Message: "panic test"}

		Panic(err)

		exp := "\n-----------------------------------\n[test] unrecoverable error: panic test\n*** boot64 halted: handoff cannot continue ***\n-----------------------------------\n"

		if got := sink.String(); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}

		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})

	t.Run("without error", func(t *testing.T) {
		cpuHaltCalled = false
		sink := &bufSink{}
		early.SetSink(sink)

		Panic(nil)

		exp := "\n-----------------------------------\n*** boot64 halted: handoff cannot continue ***\n-----------------------------------\n"

		if got := sink.String(); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}

		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})
}
