// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"

	"github.com/staranto/geocache/internal/config"
)

// Formats lists the supported --output values. The first is the default.
var Formats = []string{"text", "json", "yaml"}

var ErrUnknownFormat = errors.New("unknown output format")

// Options controls text rendering.
type Options struct {
	Titles bool
	Color  bool
}

// Row is one record keyed by column name.
type Row map[string]interface{}

// Object renders a single record: an object in json/yaml, one table row in
// text.
func Object(w io.Writer, format string, columns []string, row Row, opts Options) error {
	switch format {
	case "json":
		return writeJSON(w, row)
	case "yaml":
		return writeYAML(w, ordered(columns, row))
	case "text", "":
		TableWriter(w, columns, []Row{row}, opts)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// List renders many records: an array in json/yaml, a table in text.
func List(w io.Writer, format string, columns []string, rows []Row, opts Options) error {
	switch format {
	case "json":
		if rows == nil {
			rows = []Row{}
		}
		return writeJSON(w, rows)
	case "yaml":
		docs := make([]yaml.MapSlice, 0, len(rows))
		for _, r := range rows {
			docs = append(docs, ordered(columns, r))
		}
		return writeYAML(w, docs)
	case "text", "":
		TableWriter(w, columns, rows, opts)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func writeYAML(w io.Writer, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal yaml: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// ordered keeps yaml keys in column order rather than sorted.
func ordered(columns []string, row Row) yaml.MapSlice {
	ms := make(yaml.MapSlice, 0, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			ms = append(ms, yaml.MapItem{Key: c, Value: v})
		}
	}
	return ms
}

// TableWriter renders rows as an aligned, borderless table.
func TableWriter(w io.Writer, columns []string, rows []Row, opts Options) {
	if len(rows) == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	pad, _ := config.GetInt("padding", 0)
	log.Debugf("padding: %v", pad)

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cell := make([]string, 0, len(columns))
		for _, c := range columns {
			cell = append(cell, InterfaceToString(r[c], "-"))
		}
		cells = append(cells, cell)
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(pad)
			}

			return style
		}).
		Headers().
		Rows(cells...)

	if opts.Titles {
		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(columns...).BorderHeader(false)
	}
	fmt.Fprintln(w, t)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// getColors returns configured color values for table rendering.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(fmt.Sprintf("%s.title", key), "#f6be00")
	even, _ = config.GetString(fmt.Sprintf("%s.even", key), "#ffffff")
	odd, _ = config.GetString(fmt.Sprintf("%s.odd", key), "#00c8f0")
	return
}

// InterfaceToString converts a cell value to text. Counters are grouped with
// commas and floats keep their full precision. A custom empty value may be
// provided for nil and empty strings.
func InterfaceToString(value interface{}, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	if value == nil {
		return emptyValue[0]
	}

	switch value := value.(type) {
	case string:
		if value == "" {
			return emptyValue[0]
		}
		return value
	case int:
		return humanize.Comma(int64(value))
	case int64:
		return humanize.Comma(value)
	case uint64:
		return humanize.Comma(int64(value)) //nolint:gosec
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case fmt.Stringer:
		return value.String()
	default:
		if reflect.ValueOf(value).IsZero() {
			return emptyValue[0]
		}
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}
