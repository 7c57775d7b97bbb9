// Package output serialises batch results for the CLI.
package output

import (
	"fmt"
	"io"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Record pairs one input with its completion.
type Record struct {
	Index  int    `json:"index" yaml:"index"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Result string `json:"result" yaml:"result"`
}

// Writer serialises records to an output stream.
type Writer interface {
	// Write outputs a single record.
	Write(rec Record) error

	// Flush ensures all buffered records are written.
	Flush() error
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(w), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
