// Package export writes test-case records to downloadable artifacts.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/feichai0017/testcase-generator/internal/models"
)

// SheetName is the single sheet of every spreadsheet export.
const SheetName = "Test Cases"

// Exporter 定义导出器接口
type Exporter interface {
	Export(records []models.TestCaseRecord) ([]byte, error)
	// Extension includes the leading dot.
	Extension() string
	ContentType() string
}

// NewExporter returns the exporter for format, defaulting to xlsx.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "", "xlsx":
		return XLSXExporter{}, nil
	case "json":
		return JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// XLSXExporter writes a header row followed by one row per record, in order.
type XLSXExporter struct{}

func (XLSXExporter) Extension() string { return ".xlsx" }

func (XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXExporter) Export(records []models.TestCaseRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(models.Columns))
	for i, c := range models.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		values := r.Values()
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Document is the JSON export envelope.
type Document struct {
	Sheet      string                  `json:"sheet"`
	Columns    []string                `json:"columns"`
	TestCases  []models.TestCaseRecord `json:"testCases"`
	Count      int                     `json:"count"`
	ExportedAt time.Time               `json:"exportedAt"`
}

type JSONExporter struct{}

func (JSONExporter) Extension() string   { return ".json" }
func (JSONExporter) ContentType() string { return "application/json" }

func (JSONExporter) Export(records []models.TestCaseRecord) ([]byte, error) {
	if records == nil {
		records = []models.TestCaseRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	err := enc.Encode(Document{
		Sheet:      SheetName,
		Columns:    models.Columns,
		TestCases:  records,
		Count:      len(records),
		ExportedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return buf.Bytes(), nil
}
