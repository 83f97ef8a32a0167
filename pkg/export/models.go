package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Orchestration states. DONE, FAILED and SKIPPED_DUPLICATE are terminal.
const (
	StateReceived         = "RECEIVED"
	StateFetching         = "FETCHING"
	StateRendering        = "RENDERING"
	StateStoring          = "STORING"
	StateUpdatingStatus   = "UPDATING_STATUS"
	StateNotifying        = "NOTIFYING"
	StateDone             = "DONE"
	StateFailed           = "FAILED"
	StateSkippedDuplicate = "SKIPPED_DUPLICATE"
)

// ReportParams are the query parameters carried by an export request.
type ReportParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Category  string    `json:"category,omitempty"`
}

// ExportRequest is the decoded form of one stream message. It is immutable
// once received; the same request id may arrive more than once under
// at-least-once delivery.
type ExportRequest struct {
	RequestID   uuid.UUID    `json:"request_id"`
	Dataset     string       `json:"dataset"`
	Params      ReportParams `json:"params"`
	OutputHint  string       `json:"output_hint,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

type wireRequest struct {
	RequestID   string       `json:"request_id"`
	Dataset     string       `json:"dataset"`
	Params      ReportParams `json:"params"`
	OutputHint  string       `json:"output_hint,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// DecodeRequest parses a raw message payload. Any failure here is a
// DecodeError: the message can never become processable and must be skipped,
// not retried.
func DecodeRequest(payload []byte) (*ExportRequest, error) {
	var wire wireRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, Permanent(KindDecode, fmt.Errorf("unmarshaling export request: %w", err))
	}

	if wire.RequestID == "" {
		return nil, Permanent(KindDecode, fmt.Errorf("export request is missing request_id"))
	}
	id, err := uuid.Parse(wire.RequestID)
	if err != nil {
		return nil, Permanent(KindDecode, fmt.Errorf("parsing request_id %q: %w", wire.RequestID, err))
	}
	if wire.Params.StartDate.IsZero() || wire.Params.EndDate.IsZero() {
		return nil, Permanent(KindDecode, fmt.Errorf("export request %s is missing report date range", id))
	}
	if wire.Params.EndDate.Before(wire.Params.StartDate) {
		return nil, Permanent(KindDecode, fmt.Errorf("export request %s has end_date before start_date", id))
	}

	return &ExportRequest{
		RequestID:   id,
		Dataset:     wire.Dataset,
		Params:      wire.Params,
		OutputHint:  wire.OutputHint,
		SubmittedAt: wire.SubmittedAt,
	}, nil
}

// StatusRecord is the durable per-request status row. Exactly one row exists
// per request id; every write is an upsert keyed on request_id.
type StatusRecord struct {
	RequestID         string            `json:"request_id" gorm:"primaryKey;column:request_id"`
	State             string            `json:"state" gorm:"column:state"`
	ArtifactReference string            `json:"artifact_reference,omitempty" gorm:"column:artifact_reference"`
	ErrorDetail       string            `json:"error_detail,omitempty" gorm:"column:error_detail"`
	AttemptCount      int               `json:"attempt_count" gorm:"column:attempt_count"`
	Params            datatypes.JSONMap `json:"params" gorm:"column:params"`
	NotificationSent  bool              `json:"notification_sent" gorm:"column:notification_sent"`
	CreatedAt         time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (StatusRecord) TableName() string {
	return "export_status"
}

// Outcome is the transient result of one orchestration, used to build the
// notification payload. It is not persisted separately from the StatusRecord.
type Outcome struct {
	RequestID         uuid.UUID `json:"request_id"`
	State             string    `json:"state"`
	ArtifactReference string    `json:"artifact_reference,omitempty"`
	FileURL           string    `json:"file_url,omitempty"`
	ErrorDetail       string    `json:"error_detail,omitempty"`
}

// ProductRow is the row shape fetched for a report.
type ProductRow struct {
	ProductID     int64     `json:"product_id" gorm:"column:product_id"`
	Name          string    `json:"name" gorm:"column:name"`
	Category      string    `json:"category" gorm:"column:category"`
	Price         float64   `json:"price" gorm:"column:price"`
	StockQuantity int       `json:"stock_quantity" gorm:"column:stock_quantity"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at"`
}

func (ProductRow) TableName() string {
	return "products"
}
