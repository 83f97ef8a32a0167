package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExcelRendererWritesHeaderAndRows(t *testing.T) {
	renderer := NewExcelRenderer(DefaultSchema())

	data, err := renderer.Render(threeRows())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty artifact")
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("rendered artifact is not a readable workbook: %v", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows("Report")
	if err != nil {
		t.Fatalf("reading sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 data rows, got %d rows", len(rows))
	}
	if rows[0][0] != "Product ID" || rows[0][1] != "Name" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}
	if rows[1][1] != "widget" {
		t.Fatalf("expected first data row to contain widget, got %v", rows[1])
	}
}

func TestExcelRendererEmptyRowSetRendersHeaderOnly(t *testing.T) {
	renderer := NewExcelRenderer(DefaultSchema())

	data, err := renderer.Render(nil)
	if err != nil {
		t.Fatalf("empty result sets are not an error: %v", err)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows("Report")
	if err != nil {
		t.Fatalf("reading sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d rows", len(rows))
	}
}

func TestExcelRendererHonorsCustomSchema(t *testing.T) {
	renderer := NewExcelRenderer(ReportSchema{
		Sheet: "Inventory",
		Columns: []Column{
			{Header: "SKU Name", Field: "name"},
			{Header: "On Hand", Field: "stock_quantity"},
		},
	})

	data, err := renderer.Render(threeRows()[:1])
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows("Inventory")
	if err != nil {
		t.Fatalf("reading sheet: %v", err)
	}
	if len(rows) != 2 || len(rows[0]) != 2 {
		t.Fatalf("expected 2x2 sheet, got %v", rows)
	}
	if rows[0][0] != "SKU Name" || rows[1][0] != "widget" {
		t.Fatalf("unexpected sheet contents: %v", rows)
	}
}
