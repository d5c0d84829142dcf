package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"seat-checkin-backend/internal/identity"
)

// LoadFile reads a roster file and resolves its rows.
func LoadFile(path string, resolver *identity.Resolver) (*Roster, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	return FromRows(rows, resolver), nil
}

// ReadRows reads raw rows from .xlsx, .csv, .json, .yaml or .yml files.
func ReadRows(path string) ([]identity.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".json", ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadDocument(f)
	default:
		return nil, fmt.Errorf("unsupported roster format %q", filepath.Ext(path))
	}
}

func readXLSX(path string) ([]identity.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return tableRows(cells), nil
}

// ReadCSV reads a header row followed by data rows.
func ReadCSV(r io.Reader) ([]identity.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	cells, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return tableRows(cells), nil
}

// ReadDocument reads a JSON or YAML list of objects.
func ReadDocument(r io.Reader) ([]identity.Row, error) {
	var raw []map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode roster document: %w", err)
	}
	rows := make([]identity.Row, 0, len(raw))
	for _, m := range raw {
		rows = append(rows, identity.Row(m))
	}
	return rows, nil
}

// tableRows turns a header + rows grid into keyed rows, skipping blank lines.
// Short rows are allowed; spreadsheet exports drop trailing empty cells.
func tableRows(cells [][]string) []identity.Row {
	if len(cells) == 0 {
		return nil
	}
	header := cells[0]
	rows := make([]identity.Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		row := make(identity.Row, len(header))
		blank := true
		for i, key := range header {
			if key == "" || i >= len(line) {
				continue
			}
			row[key] = line[i]
			if strings.TrimSpace(line[i]) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}
