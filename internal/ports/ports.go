package ports

import (
	"context"

	"SalesReportAnalyzer/internal/domain"
)

// ReportFetcher downloads the raw report document from a URL.
// Every transport-level failure is reported as an error; a returned
// document and an error are mutually exclusive.
type ReportFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ReportParser decodes raw report text into a dated list of line items.
// A structural failure (bad markup, wrong root, bad date) yields an error
// and no items; individually malformed items are skipped, not fatal.
type ReportParser interface {
	Parse(report string) (domain.ParsedReport, error)
}

// NarrativeClient submits an analysis prompt to the text-generation service
// and returns the generated narrative.
type NarrativeClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RequestRepository persists analyze requests, their line items, and serves
// the read-only aggregates the pipeline reports on.
type RequestRepository interface {
	CreateRequest(ctx context.Context, reportURL string) (*domain.AnalyzeRequest, error)
	GetRequest(ctx context.Context, id int64) (*domain.AnalyzeRequest, error)

	// SaveReport stores the parsed report date and replaces the request's
	// line items in a single transaction.
	SaveReport(ctx context.Context, requestID int64, report domain.ParsedReport) error

	SetStatus(ctx context.Context, requestID int64, status domain.RequestStatus) error

	// FinishRequest stores the narrative and marks the request finished.
	FinishRequest(ctx context.Context, requestID int64, llmResult string) error

	TotalRevenue(ctx context.Context, requestID int64) (float64, error)
	TopProductsByQuantity(ctx context.Context, requestID int64, limit int) ([]domain.LineItem, error)
	CategoryDistribution(ctx context.Context, requestID int64) ([]domain.CategoryQuantity, error)
}

// Dispatcher hands a request id to the asynchronous pipeline trigger.
// Delivery is fire-and-forget and at-least-once; the pipeline tolerates
// redelivery of the same id.
type Dispatcher interface {
	Dispatch(requestID int64)
}
