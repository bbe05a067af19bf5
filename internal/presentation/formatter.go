package presentation

import (
	"encoding/json"
	"io"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatApply prints the result of applying a plan.
func (f *Formatter) FormatApply(result ApplyResultDTO) error {
	return f.encode(result)
}

// FormatQuery prints matching names and optionally their values.
func (f *Formatter) FormatQuery(result QueryResultDTO) error {
	if result.Names == nil {
		result.Names = []string{}
	}
	return f.encode(result)
}

// FormatTypes prints the type catalog.
func (f *Formatter) FormatTypes(types TypesDTO) error {
	return f.encode(types)
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
