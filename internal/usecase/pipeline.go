package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SalesReportAnalyzer/internal/domain"
	"SalesReportAnalyzer/internal/ports"
)

const topProductsLimit = 3

// PipelineDeps wires all driven adapters into the analysis pipeline.
type PipelineDeps struct {
	Repository ports.RequestRepository
	Fetcher    ports.ReportFetcher
	Parser     ports.ReportParser
	Narrative  ports.NarrativeClient
	Logger     *slog.Logger
}

// Pipeline drives one analyze request from status_created to a terminal
// status: fetch, parse, persist, aggregate, narrate, finalize. Steps run
// strictly in order; each content failure commits status_error and stops.
type Pipeline struct {
	repository ports.RequestRepository
	fetcher    ports.ReportFetcher
	parser     ports.ReportParser
	narrative  ports.NarrativeClient
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		repository: deps.Repository,
		fetcher:    deps.Fetcher,
		parser:     deps.Parser,
		narrative:  deps.Narrative,
		logger:     logger,
	}
}

// Run executes one pipeline run for the given request id. A nil return
// means a terminal status was committed (or there was no request to mark);
// a non-nil return means the run could not commit its outcome and the
// delivery should be retried by the dispatch layer.
//
// Line items persisted before a later step fails are kept for inspection;
// only the status reflects the failure.
func (p *Pipeline) Run(ctx context.Context, requestID int64) error {
	request, err := p.repository.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			p.logger.Warn("no analyze request found", "request_id", requestID)
			return nil
		}
		return fmt.Errorf("load request %d: %w", requestID, err)
	}

	report, err := p.fetcher.Fetch(ctx, request.ReportURL)
	if err != nil {
		p.logger.Warn("error download report", "request_id", requestID, "error", err)
		return p.markError(ctx, requestID)
	}

	parsed, err := p.parser.Parse(report)
	if err != nil {
		p.logger.Warn("error parse report", "request_id", requestID, "error", err)
		return p.markError(ctx, requestID)
	}

	if err := p.repository.SaveReport(ctx, requestID, parsed); err != nil {
		return fmt.Errorf("save report for request %d: %w", requestID, err)
	}

	totalRevenue, err := p.repository.TotalRevenue(ctx, requestID)
	if err != nil {
		return fmt.Errorf("total revenue for request %d: %w", requestID, err)
	}

	topProducts, err := p.repository.TopProductsByQuantity(ctx, requestID, topProductsLimit)
	if err != nil {
		return fmt.Errorf("top products for request %d: %w", requestID, err)
	}

	categories, err := p.repository.CategoryDistribution(ctx, requestID)
	if err != nil {
		return fmt.Errorf("category distribution for request %d: %w", requestID, err)
	}

	prompt := buildPrompt(parsed.Date, totalRevenue, renderTopProducts(topProducts), renderCategories(categories))

	narrative, err := p.narrative.Generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("error getting claude result", "request_id", requestID, "error", err)
		return p.markError(ctx, requestID)
	}

	if err := p.repository.FinishRequest(ctx, requestID, narrative); err != nil {
		return fmt.Errorf("finish request %d: %w", requestID, err)
	}

	p.logger.Info("analyze request finished", "request_id", requestID)
	return nil
}

func (p *Pipeline) markError(ctx context.Context, requestID int64) error {
	if err := p.repository.SetStatus(ctx, requestID, domain.StatusError); err != nil {
		return fmt.Errorf("mark request %d failed: %w", requestID, err)
	}
	return nil
}

// buildPrompt renders the fixed analysis prompt; values are embedded
// verbatim so the same aggregates always produce the same prompt.
func buildPrompt(reportDate time.Time, totalRevenue float64, topProducts, categories string) string {
	return fmt.Sprintf(
		"Analyze the sales data for %s:\n"+
			"1. Total revenue: %v\n"+
			"2. Top-3 products by sales: %s\n"+
			"3. Category distribution: %s\n"+
			"Write a short analytical report with conclusions and recommendations.",
		reportDate.Format("2006-01-02"),
		totalRevenue,
		topProducts,
		categories,
	)
}

func renderTopProducts(items []domain.LineItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

func renderCategories(distribution []domain.CategoryQuantity) string {
	parts := make([]string, 0, len(distribution))
	for _, row := range distribution {
		parts = append(parts, fmt.Sprintf("%s: %d pcs", row.Category, row.Quantity))
	}
	return strings.Join(parts, ", ")
}
