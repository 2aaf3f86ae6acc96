// Package output provides output formatting utilities for CLI commands.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/offlog/ulog/internal/logger"
)

// Printer handles formatted output to a writer, with ANSI color applied
// to Success/Error/Warning when color is enabled. DefaultPrinter and
// ErrPrinter enable it only when their stream is a terminal.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter creates a new Printer with the given options.
func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{out: out, color: color}
}

// DefaultPrinter creates a Printer that writes to stdout, with color
// enabled only when stdout is a terminal.
func DefaultPrinter() *Printer {
	return NewPrinter(os.Stdout, logger.IsTerminal(os.Stdout))
}

// ErrPrinter creates a Printer that writes to stderr, with color enabled
// only when stderr is a terminal.
func ErrPrinter() *Printer {
	return NewPrinter(os.Stderr, logger.IsTerminal(os.Stderr))
}

// Writer returns the printer's output writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Println prints a message followed by a newline.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Printf prints a formatted message.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Success prints a success message.
func (p *Printer) Success(msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[32m%s\033[0m\n", msg)
	} else {
		_, _ = fmt.Fprintln(p.out, msg)
	}
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[31m%s\033[0m\n", msg)
	} else {
		_, _ = fmt.Fprintln(p.out, msg)
	}
}

// Warning prints a warning message.
func (p *Printer) Warning(msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[33m%s\033[0m\n", msg)
	} else {
		_, _ = fmt.Fprintln(p.out, msg)
	}
}
