package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Renderer turns a fetched row set into opaque artifact bytes. Rendering is
// pure and CPU-bound; it performs no I/O beyond returning the bytes.
type Renderer interface {
	Render(rows []ProductRow) ([]byte, error)
}

// ExcelRenderer produces an .xlsx workbook with one header row followed by
// one row per record, using the configured column layout.
type ExcelRenderer struct {
	schema ReportSchema
}

func NewExcelRenderer(schema ReportSchema) *ExcelRenderer {
	return &ExcelRenderer{schema: schema}
}

func (r *ExcelRenderer) Render(rows []ProductRow) ([]byte, error) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := r.schema.Sheet
	index, err := workbook.NewSheet(sheet)
	if err != nil {
		return nil, Permanent(KindRender, fmt.Errorf("creating sheet %q: %w", sheet, err))
	}
	workbook.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := workbook.DeleteSheet("Sheet1"); err != nil {
			return nil, Permanent(KindRender, fmt.Errorf("removing default sheet: %w", err))
		}
	}

	header := make([]interface{}, len(r.schema.Columns))
	for i, col := range r.schema.Columns {
		header[i] = col.Header
	}
	if err := writeRow(workbook, sheet, 1, header); err != nil {
		return nil, err
	}

	for i, row := range rows {
		values := make([]interface{}, len(r.schema.Columns))
		for j, col := range r.schema.Columns {
			extract, ok := fieldExtractors[col.Field]
			if !ok {
				return nil, Permanent(KindRender, fmt.Errorf("row field %q has no extractor", col.Field))
			}
			values[j] = extract(row)
		}
		if err := writeRow(workbook, sheet, i+2, values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, Permanent(KindRender, fmt.Errorf("serializing workbook: %w", err))
	}
	return buf.Bytes(), nil
}

func writeRow(workbook *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return Permanent(KindRender, fmt.Errorf("computing cell for row %d: %w", rowNum, err))
	}
	if err := workbook.SetSheetRow(sheet, cell, &values); err != nil {
		return Permanent(KindRender, fmt.Errorf("writing row %d: %w", rowNum, err))
	}
	return nil
}
