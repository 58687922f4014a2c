package output

import (
	"bufio"
	"fmt"
	"io"
)

// Summarizer is implemented by results that know how to describe
// themselves to a person.
type Summarizer interface {
	Summary() []string
}

// TextWriter prints human-readable lines as items arrive.
type TextWriter struct {
	w *bufio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write prints item's summary, or its default formatting.
func (t *TextWriter) Write(data any) error {
	lines := []string{fmt.Sprint(data)}
	if s, ok := data.(Summarizer); ok {
		lines = s.Summary()
	}
	for _, line := range lines {
		if _, err := t.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return t.w.Flush()
}

// WriteAll prints every item.
func (t *TextWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := t.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (t *TextWriter) Flush() error {
	return t.w.Flush()
}

// Close flushes the writer.
func (t *TextWriter) Close() error {
	return t.Flush()
}
