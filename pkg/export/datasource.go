package export

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DataSource fetches the row set an export request refers to. An empty result
// is not an error; empty reports render an artifact with only the header row.
type DataSource interface {
	Fetch(ctx context.Context, params ReportParams) ([]ProductRow, error)
}

// ProductSource queries the products table by creation date range and an
// optional category filter.
type ProductSource struct {
	db *gorm.DB
}

func NewProductSource(db *gorm.DB) *ProductSource {
	return &ProductSource{db: db}
}

func (s *ProductSource) Fetch(ctx context.Context, params ReportParams) ([]ProductRow, error) {
	query := s.db.WithContext(ctx).
		Where("created_at BETWEEN ? AND ?", params.StartDate, params.EndDate)
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}

	var rows []ProductRow
	if err := query.Order("created_at").Find(&rows).Error; err != nil {
		return nil, Transient(KindFetch, fmt.Errorf("querying product rows: %w", err))
	}
	return rows, nil
}
