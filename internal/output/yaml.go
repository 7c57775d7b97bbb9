package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter buffers records and writes them as one YAML document.
type YAMLWriter struct {
	w     *bufio.Writer
	items []Record
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w:     bufio.NewWriter(w),
		items: make([]Record, 0),
	}
}

// Write buffers a single record.
func (w *YAMLWriter) Write(rec Record) error {
	w.items = append(w.items, rec)
	return nil
}

// Flush writes the buffered records as YAML.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	if err := encoder.Encode(w.items); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	return w.w.Flush()
}
