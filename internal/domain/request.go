package domain

import (
	"errors"
	"time"
)

// RequestStatus enumerates the lifecycle of an analyze request.
type RequestStatus string

const (
	StatusCreated  RequestStatus = "status_created"
	StatusFinished RequestStatus = "status_finished"
	StatusError    RequestStatus = "status_error"
)

// ErrRequestNotFound signals that no analyze request exists for an id.
var ErrRequestNotFound = errors.New("analyze request not found")

// AnalyzeRequest tracks one report URL from intake to a terminal status.
// ReportDate and LLMResult stay nil until the corresponding pipeline step
// succeeds.
type AnalyzeRequest struct {
	ID         int64
	Status     RequestStatus
	ReportURL  string
	ReportDate *time.Time
	LLMResult  *string
}

// LineItem is one product row extracted from a sales report, owned by
// exactly one analyze request.
type LineItem struct {
	ID        int64
	RequestID int64
	Name      string
	Quantity  int
	Price     float64
	Category  string
}

// ParsedReport is the transient output of the report parser: the business
// date the report covers plus the line items that survived validation.
// It is consumed immediately by the pipeline and never persisted as-is.
type ParsedReport struct {
	Date  time.Time
	Items []LineItem
}

// CategoryQuantity is one row of the category distribution aggregate.
type CategoryQuantity struct {
	Category string
	Quantity int
}
