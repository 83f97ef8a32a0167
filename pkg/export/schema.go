package export

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Column maps a spreadsheet header to a ProductRow field name.
type Column struct {
	Header string `yaml:"header" json:"header"`
	Field  string `yaml:"field" json:"field"`
}

type ReportSchema struct {
	Sheet   string   `yaml:"sheet" json:"sheet"`
	Columns []Column `yaml:"columns" json:"columns"`
}

// LoadSchema reads a report column layout from a YAML file. An empty path
// selects the built-in default layout.
func LoadSchema(path string) (ReportSchema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return ReportSchema{}, err
	}

	var schema ReportSchema
	if err := yaml.Unmarshal(content, &schema); err != nil {
		return ReportSchema{}, err
	}

	if len(schema.Columns) == 0 {
		return ReportSchema{}, errors.New("report schema defines no columns")
	}
	if schema.Sheet == "" {
		schema.Sheet = "Report"
	}
	for _, col := range schema.Columns {
		if col.Header == "" || col.Field == "" {
			return ReportSchema{}, errors.New("report schema column is missing header or field")
		}
		if _, ok := fieldExtractors[col.Field]; !ok {
			return ReportSchema{}, errors.New("report schema references unknown field " + col.Field)
		}
	}

	return schema, nil
}

func DefaultSchema() ReportSchema {
	return ReportSchema{
		Sheet: "Report",
		Columns: []Column{
			{Header: "Product ID", Field: "product_id"},
			{Header: "Name", Field: "name"},
			{Header: "Category", Field: "category"},
			{Header: "Price", Field: "price"},
			{Header: "Stock Quantity", Field: "stock_quantity"},
			{Header: "Created At", Field: "created_at"},
		},
	}
}

// fieldExtractors maps schema field names onto row values. The renderer uses
// this table so a schema file can reorder or drop columns without code
// changes.
var fieldExtractors = map[string]func(ProductRow) interface{}{
	"product_id":     func(r ProductRow) interface{} { return r.ProductID },
	"name":           func(r ProductRow) interface{} { return r.Name },
	"category":       func(r ProductRow) interface{} { return r.Category },
	"price":          func(r ProductRow) interface{} { return r.Price },
	"stock_quantity": func(r ProductRow) interface{} { return r.StockQuantity },
	"created_at":     func(r ProductRow) interface{} { return r.CreatedAt.UTC().Format("2006-01-02 15:04:05") },
}
