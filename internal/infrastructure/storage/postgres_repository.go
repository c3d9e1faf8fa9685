package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"SalesReportAnalyzer/internal/domain"
	"SalesReportAnalyzer/internal/ports"
)

const (
	requestsTable = "analyze_request"
	productsTable = "product"
)

// PostgresRepository persists analyze requests and line items in Postgres.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.RequestRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return newRepository(db, sq.Dollar)
}

// newRepository lets tests swap the placeholder format for other drivers.
func newRepository(db *sql.DB, placeholders sq.PlaceholderFormat) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholders),
	}
}

// EnsureSchema creates the tables on startup when they do not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS analyze_request (
			id BIGSERIAL PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'status_created',
			report_url TEXT NOT NULL,
			report_date DATE,
			llm_result TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS product (
			id BIGSERIAL PRIMARY KEY,
			request_id BIGINT NOT NULL REFERENCES analyze_request(id),
			name TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			category TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

// CreateRequest inserts a new request in status_created.
func (r *PostgresRepository) CreateRequest(ctx context.Context, reportURL string) (*domain.AnalyzeRequest, error) {
	var id int64
	err := r.sb.
		Insert(requestsTable).
		Columns("status", "report_url").
		Values(string(domain.StatusCreated), reportURL).
		Suffix("RETURNING id").
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	return &domain.AnalyzeRequest{
		ID:        id,
		Status:    domain.StatusCreated,
		ReportURL: reportURL,
	}, nil
}

// GetRequest loads one request by id, or domain.ErrRequestNotFound.
func (r *PostgresRepository) GetRequest(ctx context.Context, id int64) (*domain.AnalyzeRequest, error) {
	row := r.sb.
		Select("id", "status", "report_url", "report_date", "llm_result").
		From(requestsTable).
		Where(sq.Eq{"id": id}).
		RunWith(r.db).
		QueryRowContext(ctx)

	var (
		request    domain.AnalyzeRequest
		status     string
		reportDate sql.NullTime
		llmResult  sql.NullString
	)
	if err := row.Scan(&request.ID, &status, &request.ReportURL, &reportDate, &llmResult); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("query request: %w", err)
	}

	request.Status = domain.RequestStatus(status)
	if reportDate.Valid {
		date := reportDate.Time
		request.ReportDate = &date
	}
	if llmResult.Valid {
		result := llmResult.String
		request.LLMResult = &result
	}

	return &request, nil
}

// SaveReport stores the report date and replaces the request's line items in
// one transaction, so a redelivered run cannot accumulate duplicate items.
func (r *PostgresRepository) SaveReport(ctx context.Context, requestID int64, report domain.ParsedReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = r.sb.
		Update(requestsTable).
		Set("report_date", report.Date).
		Where(sq.Eq{"id": requestID}).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set report date: %w", err)
	}

	_, err = r.sb.
		Delete(productsTable).
		Where(sq.Eq{"request_id": requestID}).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("clear prior items: %w", err)
	}

	if len(report.Items) > 0 {
		insert := r.sb.
			Insert(productsTable).
			Columns("request_id", "name", "quantity", "price", "category")
		for _, item := range report.Items {
			insert = insert.Values(requestID, item.Name, item.Quantity, item.Price, item.Category)
		}
		if _, err := insert.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}

	return nil
}

// SetStatus commits a status transition.
func (r *PostgresRepository) SetStatus(ctx context.Context, requestID int64, status domain.RequestStatus) error {
	_, err := r.sb.
		Update(requestsTable).
		Set("status", string(status)).
		Where(sq.Eq{"id": requestID}).
		RunWith(r.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	return nil
}

// FinishRequest stores the narrative and marks the request finished.
func (r *PostgresRepository) FinishRequest(ctx context.Context, requestID int64, llmResult string) error {
	_, err := r.sb.
		Update(requestsTable).
		Set("llm_result", llmResult).
		Set("status", string(domain.StatusFinished)).
		Where(sq.Eq{"id": requestID}).
		RunWith(r.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("finish request: %w", err)
	}

	return nil
}

// TotalRevenue sums price*quantity over the request's items; 0 when empty.
func (r *PostgresRepository) TotalRevenue(ctx context.Context, requestID int64) (float64, error) {
	var total float64
	err := r.sb.
		Select("COALESCE(SUM(price * quantity), 0)").
		From(productsTable).
		Where(sq.Eq{"request_id": requestID}).
		RunWith(r.db).
		QueryRowContext(ctx).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query total revenue: %w", err)
	}

	return total, nil
}

// TopProductsByQuantity returns up to limit items ordered by quantity
// descending; insertion order (primary key) breaks ties so the result is
// deterministic.
func (r *PostgresRepository) TopProductsByQuantity(ctx context.Context, requestID int64, limit int) ([]domain.LineItem, error) {
	rows, err := r.sb.
		Select("id", "request_id", "name", "quantity", "price", "category").
		From(productsTable).
		Where(sq.Eq{"request_id": requestID}).
		OrderBy("quantity DESC", "id ASC").
		Limit(uint64(limit)).
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Name, &item.Quantity, &item.Price, &item.Category); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return items, nil
}

// CategoryDistribution sums quantity per distinct category.
func (r *PostgresRepository) CategoryDistribution(ctx context.Context, requestID int64) ([]domain.CategoryQuantity, error) {
	rows, err := r.sb.
		Select("category", "SUM(quantity)").
		From(productsTable).
		Where(sq.Eq{"request_id": requestID}).
		GroupBy("category").
		RunWith(r.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query category distribution: %w", err)
	}
	defer rows.Close()

	var distribution []domain.CategoryQuantity
	for rows.Next() {
		var row domain.CategoryQuantity
		if err := rows.Scan(&row.Category, &row.Quantity); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		distribution = append(distribution, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return distribution, nil
}
