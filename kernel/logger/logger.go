// Package logger is the kernel's dual-sink diagnostic log: every line goes
// to early.Printf's sink (the COM1 serial port unless redirected), colored
// with ANSI escapes, and — once a screen
// console has been set up — to the framebuffer, colored per severity.
// Either sink can be absent: serial is always present once InitSerial has
// run, but the screen console only exists after graphics mode has been
// negotiated with the firmware, so early boot logging is serial-only.
package logger

import (
	"boot64/kernel/bootcfg"
	"boot64/kernel/font"
	"boot64/kernel/graphics"
	"boot64/kernel/kfmt/early"
	"boot64/kernel/serial"
)

// Level orders log severities, from least to most urgent.
type Level = bootcfg.LogLevel

const (
	Debug    = bootcfg.LogDebug
	Info     = bootcfg.LogInfo
	Warn     = bootcfg.LogWarn
	Error    = bootcfg.LogError
	Critical = bootcfg.LogCritical
)

const serialColorReset = "\x1b[0;0;0m"

var (
	defaultForeground = graphics.ColorGreen
	defaultBackground = graphics.ColorBlack
)

var (
	display *font.Renderer
	console *graphics.Console
)

// InitSerial brings up the COM1 UART. It must run before any call to
// Print or Log.
func InitSerial() {
	serial.Init()
}

// InitDisplay wires a framebuffer and font together into the screen
// console every subsequent Log/Print call writes to in addition to
// serial. fb and f must both be non-nil; until InitDisplay runs, logging
// is serial-only.
func InitDisplay(fb *graphics.FrameBuffer, f *font.Font) {
	display = font.NewRenderer(f, fb)
	display.Foreground, display.Background = defaultForeground, defaultBackground
	console = graphics.NewConsole(fb, display.GlyphWidth(), display.GlyphHeight(), display.DrawGlyph)
}

// Print writes format unconditionally, uncolored, to every active sink.
// It is the logger's equivalent of a bare Printf, used for banner text
// that isn't really a leveled log line (version strings, ASCII art).
func Print(format string, args ...interface{}) {
	early.Printf(format, args...)

	if console != nil {
		prev := early.Sink
		early.SetSink(console)
		early.Printf(format, args...)
		early.SetSink(prev)
	}
}

// Log writes format at the given severity to every sink whose configured
// minimum level it meets, with ANSI color on serial and tinted glyphs on
// the screen console.
func Log(level Level, format string, args ...interface{}) {
	logLine(level, format, args...)
}

// Logf is Log with a module tag prepended, e.g. "[vmm] ".
func Logf(level Level, module, format string, args ...interface{}) {
	logLine(level, "["+module+"] "+format, args...)
}

func logLine(level Level, format string, args ...interface{}) {
	if level >= bootcfg.MinSerialLogLevel {
		if bootcfg.SerialColorsEnabled {
			early.Printf(serialColor(level))
		}
		if bootcfg.OutputLogLevels {
			early.Printf("[%s] ", levelPrefix(level))
		}
		early.Printf(format, args...)
		if bootcfg.SerialColorsEnabled {
			early.Printf(serialColorReset)
		}
		early.Printf("\n")
	}

	if level >= bootcfg.MinDisplayLogLevel && console != nil {
		fg, bg := displayColor(level)
		display.Foreground, display.Background = fg, bg

		prev := early.Sink
		early.SetSink(console)
		if bootcfg.OutputLogLevels {
			early.Printf("[%s] ", levelPrefix(level))
		}
		early.Printf(format, args...)
		early.Printf("\n")
		early.SetSink(prev)

		display.Foreground, display.Background = defaultForeground, defaultBackground
	}
}

func serialColor(level Level) string {
	switch level {
	case Debug:
		return "\x1b[2;37m"
	case Info:
		return "\x1b[37m"
	case Warn:
		return "\x1b[1;33m"
	case Error:
		return "\x1b[1;31m"
	case Critical:
		return "\x1b[1;37;41m"
	default:
		return serialColorReset
	}
}

func displayColor(level Level) (fg, bg graphics.Color) {
	switch level {
	case Debug:
		return halve(defaultForeground), defaultBackground
	case Info:
		return defaultForeground, defaultBackground
	case Warn:
		return graphics.NewColor(0xCCCC00), defaultBackground
	case Error:
		return graphics.NewColor(0xCC0000), defaultBackground
	case Critical:
		return graphics.NewColor(0xFFFFFF), graphics.NewColor(0xBB0000)
	default:
		return defaultForeground, defaultBackground
	}
}

func halve(c graphics.Color) graphics.Color {
	return graphics.Color{R: c.R / 2, G: c.G / 2, B: c.B / 2}
}

func levelPrefix(level Level) string {
	switch level {
	case Debug:
		return "D"
	case Info:
		return "I"
	case Warn:
		return "W"
	case Error:
		return "E"
	case Critical:
		return "C"
	default:
		return "?"
	}
}
