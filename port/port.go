// Package port imports and exports track lists as CSV or XLSX files
// with Title, Artist, and URL columns.
package port

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// Row is one track in an imported or exported list. Only the URL is
// required.
type Row struct {
	Title  string
	Artist string
	URL    string
}

// Import reads a track list, dispatching on the file extension.
func Import(path string) ([]Row, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return importCSV(path)
	case "xlsx":
		return importXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported import format: %s", filepath.Ext(path))
	}
}

// Export writes a track list, dispatching on the file extension.
func Export(path string, rows []Row) error {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return exportCSV(path, rows)
	case "xlsx":
		return exportXLSX(path, rows)
	default:
		return fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}
}

// CreateSampleXLSX writes a one-row example workbook into dir and
// returns its path. The filename carries a UUID so concurrent requests
// never clobber each other.
func CreateSampleXLSX(dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("Sample-%s.xlsx", uuid.New()))
	rows := []Row{{
		Title:  "Example Title",
		Artist: "Example Artist",
		URL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}}
	if err := exportXLSX(path, rows); err != nil {
		return "", err
	}
	return path, nil
}

// headerMap locates the Title, Artist, and URL columns. Files without a
// header row fall back to positional columns.
type headerMap struct {
	title  int
	artist int
	url    int
}

func defaultHeaderMap() headerMap {
	return headerMap{title: 0, artist: 1, url: 2}
}

// looksLikeHeader reports whether a row is a header rather than data.
func looksLikeHeader(cells []string) bool {
	for _, cell := range cells {
		normalized := strings.ToLower(cell)
		if strings.Contains(normalized, "url") ||
			strings.Contains(normalized, "title") ||
			strings.Contains(normalized, "artist") {
			return true
		}
	}
	return false
}

func headerMapFrom(cells []string) headerMap {
	m := defaultHeaderMap()
	for idx, cell := range cells {
		normalized := strings.ToLower(cell)
		switch {
		case strings.Contains(normalized, "title"):
			m.title = idx
		case strings.Contains(normalized, "artist"):
			m.artist = idx
		case strings.Contains(normalized, "url"):
			m.url = idx
		}
	}
	return m
}

// rowFromCells builds a Row, or reports false when the URL cell is
// empty or missing.
func rowFromCells(cells []string, m headerMap) (Row, bool) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	url := cell(m.url)
	if url == "" {
		return Row{}, false
	}
	return Row{
		Title:  cell(m.title),
		Artist: cell(m.artist),
		URL:    url,
	}, true
}

func importCSV(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsFromRecords(records), nil
}

func importXLSX(path string) ([]Row, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx contains no sheets")
	}

	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rowsFromRecords(records), nil
}

// rowsFromRecords applies header detection and converts the remaining
// records.
func rowsFromRecords(records [][]string) []Row {
	rows := []Row{}
	if len(records) == 0 {
		return rows
	}

	m := defaultHeaderMap()
	start := 0
	if looksLikeHeader(records[0]) {
		m = headerMapFrom(records[0])
		start = 1
	}

	for _, record := range records[start:] {
		if row, ok := rowFromCells(record, m); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func exportCSV(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Title", "Artist", "YouTube URL"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Title, row.Artist, row.URL}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func exportXLSX(path string, rows []Row) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	header := []string{"Title", "Artist", "YouTube URL"}
	for col, value := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("build xlsx header: %w", err)
		}
		if err := file.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("write xlsx header: %w", err)
		}
	}

	for i, row := range rows {
		values := []string{row.Title, row.Artist, row.URL}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("build xlsx cell: %w", err)
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write xlsx cell: %w", err)
			}
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
