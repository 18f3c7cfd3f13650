// Package export writes analysis tables as JSON, YAML or CSV.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
)

// Format is an output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user supplied format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q (supported: json, yaml, csv)", name)
}

// Extension returns the file extension for f, without the dot
func (f Format) Extension() string {
	return string(f)
}

// Document is the single-stream form of an analysis run
type Document struct {
	SnapshotID string              `json:"snapshot_id,omitempty"`
	LoadedAt   time.Time           `json:"loaded_at"`
	Tables     []analytics.Table   `json:"tables"`
	Anomalies  []analytics.Anomaly `json:"anomalies"`
}

// WriteDocument encodes doc to w. CSV has no single-stream form.
func WriteDocument(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		return writeYAML(w, doc)
	}
	return fmt.Errorf("format %q needs an output directory", format)
}

// WriteDir writes one file per table into dir and returns the paths written
func WriteDir(dir string, format Format, tables []analytics.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(dir, table.Name+"."+format.Extension())
		if err := writeTableFile(path, format, table); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeTableFile(path string, format Format, table analytics.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}()

	switch format {
	case FormatCSV:
		err = WriteCSV(f, table.Rows)
	case FormatJSON:
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(table.Rows)
	case FormatYAML:
		err = writeYAML(f, table.Rows)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to write table %s: %w", table.Name, err)
	}
	return nil
}

// writeYAML encodes v through its JSON form so field names and order match
// the JSON output
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	resetStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// resetStyle turns the flow style inherited from JSON into block style.
// Strings keep their quoting so values like "007" stay strings.
func resetStyle(n *yaml.Node) {
	if n.Kind != yaml.ScalarNode {
		n.Style = 0
	} else if n.Style&yaml.DoubleQuotedStyle != 0 && !needsQuoting(n.Value) {
		n.Style = 0
	}
	for _, c := range n.Content {
		resetStyle(c)
	}
}

// needsQuoting reports whether an unquoted plain scalar would resolve to
// something other than the original string
func needsQuoting(s string) bool {
	var probe any
	if err := yaml.Unmarshal([]byte(s), &probe); err != nil {
		return true
	}
	str, ok := probe.(string)
	return !ok || str != s
}
