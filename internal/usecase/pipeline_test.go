package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"SalesReportAnalyzer/internal/domain"
)

type fakeRepository struct {
	requests map[int64]*domain.AnalyzeRequest
	items    map[int64][]domain.LineItem
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		requests: map[int64]*domain.AnalyzeRequest{},
		items:    map[int64][]domain.LineItem{},
	}
}

func (f *fakeRepository) addRequest(id int64, url string) {
	f.requests[id] = &domain.AnalyzeRequest{ID: id, Status: domain.StatusCreated, ReportURL: url}
}

func (f *fakeRepository) CreateRequest(ctx context.Context, reportURL string) (*domain.AnalyzeRequest, error) {
	id := int64(len(f.requests) + 1)
	f.addRequest(id, reportURL)
	return f.requests[id], nil
}

func (f *fakeRepository) GetRequest(ctx context.Context, id int64) (*domain.AnalyzeRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	copied := *request
	return &copied, nil
}

func (f *fakeRepository) SaveReport(ctx context.Context, requestID int64, report domain.ParsedReport) error {
	date := report.Date
	f.requests[requestID].ReportDate = &date
	items := make([]domain.LineItem, len(report.Items))
	copy(items, report.Items)
	for i := range items {
		items[i].ID = int64(i + 1)
		items[i].RequestID = requestID
	}
	f.items[requestID] = items
	return nil
}

func (f *fakeRepository) SetStatus(ctx context.Context, requestID int64, status domain.RequestStatus) error {
	f.requests[requestID].Status = status
	return nil
}

func (f *fakeRepository) FinishRequest(ctx context.Context, requestID int64, llmResult string) error {
	f.requests[requestID].LLMResult = &llmResult
	f.requests[requestID].Status = domain.StatusFinished
	return nil
}

func (f *fakeRepository) TotalRevenue(ctx context.Context, requestID int64) (float64, error) {
	var total float64
	for _, item := range f.items[requestID] {
		total += item.Price * float64(item.Quantity)
	}
	return total, nil
}

func (f *fakeRepository) TopProductsByQuantity(ctx context.Context, requestID int64, limit int) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, len(f.items[requestID]))
	copy(items, f.items[requestID])
	sort.SliceStable(items, func(i, j int) bool { return items[i].Quantity > items[j].Quantity })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeRepository) CategoryDistribution(ctx context.Context, requestID int64) ([]domain.CategoryQuantity, error) {
	totals := map[string]int{}
	var order []string
	for _, item := range f.items[requestID] {
		if _, seen := totals[item.Category]; !seen {
			order = append(order, item.Category)
		}
		totals[item.Category] += item.Quantity
	}
	distribution := make([]domain.CategoryQuantity, 0, len(order))
	for _, category := range order {
		distribution = append(distribution, domain.CategoryQuantity{Category: category, Quantity: totals[category]})
	}
	return distribution, nil
}

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.body, f.err
}

type fakeParser struct {
	report domain.ParsedReport
	err    error
}

func (f *fakeParser) Parse(report string) (domain.ParsedReport, error) {
	return f.report, f.err
}

type fakeNarrative struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeNarrative) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func sampleReport() domain.ParsedReport {
	return domain.ParsedReport{
		Date: time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		Items: []domain.LineItem{
			{Name: "Laptop", Quantity: 5, Price: 10.0, Category: "Electronics"},
			{Name: "Mouse", Quantity: 10, Price: 15.0, Category: "Electronics"},
			{Name: "Desk", Quantity: 3, Price: 20.0, Category: "Furniture"},
			{Name: "Lamp", Quantity: 8, Price: 5.0, Category: "Furniture"},
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.addRequest(1, "http://example.org/report.xml")
	narrative := &fakeNarrative{text: "Sales grew."}

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{body: "<xml>"},
		Parser:     &fakeParser{report: sampleReport()},
		Narrative:  narrative,
	})

	if err := pipeline.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	request := repo.requests[1]
	if request.Status != domain.StatusFinished {
		t.Fatalf("unexpected status: %s", request.Status)
	}
	if request.ReportDate == nil || request.ReportDate.Format("2006-01-02") != "2024-01-15" {
		t.Fatalf("unexpected report date: %v", request.ReportDate)
	}
	if request.LLMResult == nil || *request.LLMResult != "Sales grew." {
		t.Fatalf("unexpected llm result: %v", request.LLMResult)
	}
	if len(repo.items[1]) != 4 {
		t.Fatalf("expected 4 persisted items, got %d", len(repo.items[1]))
	}

	if len(narrative.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(narrative.prompts))
	}
	prompt := narrative.prompts[0]
	for _, fragment := range []string{
		"2024-01-15",
		"Total revenue: 300",
		"Mouse, Lamp, Laptop",
		"Electronics: 15 pcs, Furniture: 11 pcs",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestRunFetchFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.addRequest(1, "http://example.org/report.xml")

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{err: fmt.Errorf("connection refused")},
		Parser:     &fakeParser{},
		Narrative:  &fakeNarrative{},
	})

	if err := pipeline.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	request := repo.requests[1]
	if request.Status != domain.StatusError {
		t.Fatalf("unexpected status: %s", request.Status)
	}
	if request.ReportDate != nil {
		t.Fatalf("report date must stay empty, got %v", request.ReportDate)
	}
	if len(repo.items[1]) != 0 {
		t.Fatalf("no items must be persisted, got %d", len(repo.items[1]))
	}
}

func TestRunParseFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.addRequest(1, "http://example.org/report.xml")

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{body: "not xml"},
		Parser:     &fakeParser{err: fmt.Errorf("invalid root element")},
		Narrative:  &fakeNarrative{},
	})

	if err := pipeline.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if repo.requests[1].Status != domain.StatusError {
		t.Fatalf("unexpected status: %s", repo.requests[1].Status)
	}
	if len(repo.items[1]) != 0 {
		t.Fatalf("no items must be persisted, got %d", len(repo.items[1]))
	}
}

func TestRunNarrativeFailureKeepsItems(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.addRequest(1, "http://example.org/report.xml")

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{body: "<xml>"},
		Parser:     &fakeParser{report: sampleReport()},
		Narrative:  &fakeNarrative{err: fmt.Errorf("claude returned no content")},
	})

	if err := pipeline.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	request := repo.requests[1]
	if request.Status != domain.StatusError {
		t.Fatalf("unexpected status: %s", request.Status)
	}
	if request.LLMResult != nil {
		t.Fatalf("llm result must stay empty, got %v", request.LLMResult)
	}
	if len(repo.items[1]) != 4 {
		t.Fatalf("items must remain persisted after narrative failure, got %d", len(repo.items[1]))
	}
}

func TestRunEmptyReportStillFinishes(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.addRequest(1, "http://example.org/report.xml")

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{body: "<xml>"},
		Parser: &fakeParser{report: domain.ParsedReport{
			Date: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		}},
		Narrative: &fakeNarrative{text: "Nothing sold."},
	})

	if err := pipeline.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if repo.requests[1].Status != domain.StatusFinished {
		t.Fatalf("unexpected status: %s", repo.requests[1].Status)
	}
}

func TestRunUnknownRequestMutatesNothing(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	fetcher := &fakeFetcher{body: "<xml>"}

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    fetcher,
		Parser:     &fakeParser{},
		Narrative:  &fakeNarrative{},
	})

	if err := pipeline.Run(context.Background(), 42); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(repo.requests) != 0 || len(repo.items) != 0 {
		t.Fatal("nothing must be created for an unknown request id")
	}
}

func TestRunIsIdempotentAtStatusLevel(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.addRequest(1, "http://example.org/report.xml")

	pipeline := NewPipeline(PipelineDeps{
		Repository: repo,
		Fetcher:    &fakeFetcher{body: "<xml>"},
		Parser:     &fakeParser{report: sampleReport()},
		Narrative:  &fakeNarrative{text: "Same outcome."},
	})

	for i := 0; i < 2; i++ {
		if err := pipeline.Run(context.Background(), 1); err != nil {
			t.Fatalf("Run %d returned error: %v", i, err)
		}
		if repo.requests[1].Status != domain.StatusFinished {
			t.Fatalf("run %d: unexpected status %s", i, repo.requests[1].Status)
		}
	}

	if len(repo.items[1]) != 4 {
		t.Fatalf("redelivery must not duplicate items, got %d", len(repo.items[1]))
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(
		time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		300.0,
		"Mouse, Lamp, Laptop",
		"Electronics: 15 pcs, Furniture: 11 pcs",
	)

	want := "Analyze the sales data for 2024-01-15:\n" +
		"1. Total revenue: 300\n" +
		"2. Top-3 products by sales: Mouse, Lamp, Laptop\n" +
		"3. Category distribution: Electronics: 15 pcs, Furniture: 11 pcs\n" +
		"Write a short analytical report with conclusions and recommendations."
	if prompt != want {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}
}
