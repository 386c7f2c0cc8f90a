// Package render formats tabular command output in the styles the CLI
// supports: aligned tables for humans, JSON for machines, and plain
// tab-separated rows for shell pipelines.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatPlain = "plain"
)

var (
	errUnsupportedFormat = errors.New("unsupported output format")

	titleCaser = cases.Title(language.English)
)

// ErrUnsupportedFormat reports a format outside the supported set.
func ErrUnsupportedFormat() error {
	return errUnsupportedFormat
}

// Table is a rectangular result set with named columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Document couples the human-readable table with an optional structured
// payload. When Payload is nil the JSON output is derived from the rows.
type Document struct {
	Table   Table
	Payload any
}

// Renderer writes documents to a single output stream.
type Renderer struct {
	out    io.Writer
	styles Styles
}

// New returns a renderer writing to out with the given styles.
func New(out io.Writer, styles Styles) *Renderer {
	return &Renderer{out: out, styles: styles}
}

// Heading writes a styled section heading followed by a newline.
func (r *Renderer) Heading(text string) {
	fmt.Fprintln(r.out, r.styles.Heading.Sprint(text))
}

// Render writes the document in the requested format.
func (r *Renderer) Render(format string, doc Document) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return r.renderTable(doc.Table)
	case FormatJSON:
		return r.renderJSON(doc)
	case FormatPlain:
		return r.renderPlain(doc.Table)
	default:
		return fmt.Errorf("%w %q", errUnsupportedFormat, format)
	}
}

func (r *Renderer) renderTable(table Table) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	headers := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		headers[i] = titleCaser.String(column)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range table.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	_, err := r.out.Write(buf.Bytes())
	return err
}

func (r *Renderer) renderJSON(doc Document) error {
	payload := doc.Payload
	if payload == nil {
		payload = rowsAsObjects(doc.Table)
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(r.out, string(encoded))
	return err
}

func (r *Renderer) renderPlain(table Table) error {
	for _, row := range table.Rows {
		if _, err := fmt.Fprintln(r.out, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func rowsAsObjects(table Table) []map[string]string {
	keys := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		keys[i] = jsonKey(column)
	}

	objects := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		object := make(map[string]string, len(keys))
		for i, key := range keys {
			if i < len(row) {
				object[key] = row[i]
			}
		}
		objects = append(objects, object)
	}
	return objects
}

func jsonKey(column string) string {
	return strings.ReplaceAll(strings.ToLower(column), " ", "_")
}
