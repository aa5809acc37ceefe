package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var searchTracer = otel.Tracer("envlink/search/service")

// Service provides cross-project variable search over the SQL backend.
// All filtering happens in SQL with positional placeholders, so the
// same queries run against PostgreSQL in production and SQLite in tests.
type Service struct {
	db     *sql.DB
	parser *QueryParser
}

// NewService creates a new search service
func NewService(db *sql.DB) *Service {
	return &Service{
		db:     db,
		parser: NewQueryParser(),
	}
}

// Request represents a search request
type Request struct {
	Query  string // Raw query string with filters
	Limit  int    // Max results (default: 50)
	Offset int    // Pagination offset (default: 0)
}

// Response represents search results
type Response struct {
	Results     []Result     `json:"results"`
	TotalCount  int          `json:"total_count"`
	Query       string       `json:"query"`
	ParsedQuery *ParsedQuery `json:"parsed_query,omitempty"`
}

// Result is a single matched variable. Value holds the stored form for
// whichever kind the variable has: the literal, the link target, or the
// concatenation expression.
type Result struct {
	ID          int64     `json:"id"`
	Project     string    `json:"project"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Search performs a filtered search with pagination
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", req.Query),
			attribute.Int("limit", req.Limit),
			attribute.Int("offset", req.Offset),
		),
	)
	defer span.End()

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 500 {
		req.Limit = 500
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	parsed, err := s.parser.Parse(req.Query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse query")
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("has_filters", parsed.HasFilters()),
		attribute.Int("term_count", len(parsed.Terms)),
	)

	where, args := buildFilters(parsed)

	query := `
		SELECT v.id, p.name, v.name, v.raw_value, v.linked_to, v.concat_parts, v.description, v.updated_at
		FROM env_vars v
		JOIN projects p ON v.project_id = p.id
	` + where + fmt.Sprintf(`
		ORDER BY p.name, v.name
		LIMIT $%d OFFSET $%d
	`, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, append(args, req.Limit, req.Offset)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to execute search")
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, req.Limit)
	for rows.Next() {
		var r Result
		var rawValue, linkedTo, concatParts *string
		err := rows.Scan(&r.ID, &r.Project, &r.Name, &rawValue, &linkedTo, &concatParts, &r.Description, &r.UpdatedAt)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		switch {
		case rawValue != nil:
			r.Kind, r.Value = "raw", *rawValue
		case linkedTo != nil:
			r.Kind, r.Value = "linked", *linkedTo
		case concatParts != nil:
			r.Kind, r.Value = "concat", *concatParts
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error iterating results")
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	totalCount, err := s.getTotalCount(ctx, parsed)
	if err != nil {
		// The page is still useful without an exact total.
		span.AddEvent("failed to get total count",
			trace.WithAttributes(attribute.String("error", err.Error())),
		)
		totalCount = len(results)
	}

	span.SetAttributes(
		attribute.Int("result_count", len(results)),
		attribute.Int("total_count", totalCount),
	)
	span.SetStatus(codes.Ok, "search completed")

	return &Response{
		Results:     results,
		TotalCount:  totalCount,
		Query:       req.Query,
		ParsedQuery: parsed,
	}, nil
}

// buildFilters builds the WHERE clause for a parsed query. Placeholders
// are numbered in order of appearance, which both lib/pq and sqlite3
// bind positionally.
func buildFilters(q *ParsedQuery) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(" WHERE 1=1\n")
	args := make([]interface{}, 0)

	for _, term := range q.Terms {
		args = append(args, likePattern(term))
		n := len(args)
		fmt.Fprintf(&b, `	AND (LOWER(v.name) LIKE $%d
		OR LOWER(COALESCE(v.raw_value, '')) LIKE $%d
		OR LOWER(COALESCE(v.linked_to, '')) LIKE $%d
		OR LOWER(COALESCE(v.concat_parts, '')) LIKE $%d
		OR LOWER(v.description) LIKE $%d)
`, n, n, n, n, n)
	}

	if q.Project != "" {
		if pattern, wildcard := wildcardPattern(q.Project); wildcard {
			args = append(args, pattern)
			fmt.Fprintf(&b, "	AND p.name LIKE $%d\n", len(args))
		} else {
			args = append(args, pattern)
			fmt.Fprintf(&b, "	AND p.name = $%d\n", len(args))
		}
	}

	if q.NamePattern != "" {
		if pattern, wildcard := wildcardPattern(q.NamePattern); wildcard {
			args = append(args, pattern)
			fmt.Fprintf(&b, "	AND v.name LIKE $%d\n", len(args))
		} else {
			args = append(args, pattern)
			fmt.Fprintf(&b, "	AND v.name = $%d\n", len(args))
		}
	}

	if len(q.Kinds) > 0 {
		conditions := make([]string, 0, len(q.Kinds))
		for _, kind := range q.Kinds {
			switch kind {
			case "raw":
				conditions = append(conditions, "v.raw_value IS NOT NULL")
			case "linked":
				conditions = append(conditions, "v.linked_to IS NOT NULL")
			case "concat":
				conditions = append(conditions, "v.concat_parts IS NOT NULL")
			}
		}
		fmt.Fprintf(&b, "	AND (%s)\n", strings.Join(conditions, " OR "))
	}

	if q.HasDescription {
		b.WriteString("	AND v.description != ''\n")
	}

	return b.String(), args
}

// getTotalCount counts matches without pagination
func (s *Service) getTotalCount(ctx context.Context, q *ParsedQuery) (int, error) {
	where, args := buildFilters(q)
	query := `
		SELECT COUNT(*)
		FROM env_vars v
		JOIN projects p ON v.project_id = p.id
	` + where

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get total count: %w", err)
	}
	return count, nil
}

// HistorySchema is the DDL for the search history table backing
// suggestions. Types are the portable subset shared by PostgreSQL and
// SQLite.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS search_history (
	query        TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
`

// EnsureHistorySchema creates the search history table if missing.
func (s *Service) EnsureHistorySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, HistorySchema); err != nil {
		return fmt.Errorf("failed to ensure search history schema: %w", err)
	}
	return nil
}

// RecordSearch records a query in history for suggestions
func (s *Service) RecordSearch(ctx context.Context, query string, resultCount int, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (query, result_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4)
	`, query, resultCount, duration.Milliseconds(), time.Now().UTC())
	return err
}

// GetSuggestions returns past queries matching a prefix, most frequent
// first.
func (s *Service) GetSuggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	ctx, span := searchTracer.Start(ctx, "GetSuggestions",
		trace.WithAttributes(
			attribute.String("prefix", prefix),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}

	query := `
		SELECT query
		FROM search_history
		WHERE query LIKE $1
		GROUP BY query
		ORDER BY COUNT(*) DESC, MAX(created_at) DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, prefix+"%", limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get suggestions")
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]string, 0, limit)
	for rows.Next() {
		var suggestion string
		if err := rows.Scan(&suggestion); err != nil {
			continue
		}
		suggestions = append(suggestions, suggestion)
	}

	span.SetAttributes(attribute.Int("suggestion_count", len(suggestions)))
	span.SetStatus(codes.Ok, "suggestions retrieved")
	return suggestions, nil
}
