package output

import (
	"bufio"
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// DocumentWriter buffers items and writes them as one JSON or YAML
// document on Flush. A single item is written bare, anything else as a list.
type DocumentWriter struct {
	w      *bufio.Writer
	items  []any
	encode func(w io.Writer, v any) error
}

// NewJSONWriter creates a JSON document writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *DocumentWriter {
	return &DocumentWriter{
		w: bufio.NewWriter(w),
		encode: func(w io.Writer, v any) error {
			enc := json.NewEncoder(w)
			enc.SetEscapeHTML(false)
			if pretty {
				enc.SetIndent("", indent)
			}
			return enc.Encode(v)
		},
	}
}

// NewYAMLWriter creates a YAML document writer.
func NewYAMLWriter(w io.Writer) *DocumentWriter {
	return &DocumentWriter{
		w: bufio.NewWriter(w),
		encode: func(w io.Writer, v any) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// Write buffers a single item.
func (d *DocumentWriter) Write(data any) error {
	d.items = append(d.items, data)
	return nil
}

// WriteAll buffers multiple items.
func (d *DocumentWriter) WriteAll(data []any) error {
	d.items = append(d.items, data...)
	return nil
}

// Flush writes the buffered items and empties the buffer.
func (d *DocumentWriter) Flush() error {
	var doc any = d.items
	switch len(d.items) {
	case 0:
		doc = []any{}
	case 1:
		doc = d.items[0]
	}
	d.items = nil

	if err := d.encode(d.w, doc); err != nil {
		return err
	}
	return d.w.Flush()
}

// Close flushes the writer.
func (d *DocumentWriter) Close() error {
	return d.Flush()
}
