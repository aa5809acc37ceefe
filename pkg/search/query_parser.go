package search

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidQuery indicates a query that could not be parsed, such as an
// unrecognized kind filter value.
var ErrInvalidQuery = errors.New("invalid search query")

// ParsedQuery represents a parsed search query with filters
type ParsedQuery struct {
	// Free-text terms matched against variable names, values, and
	// descriptions
	Terms []string

	// Project name filter (supports * wildcards)
	Project string

	// Variable name pattern (supports * wildcards)
	NamePattern string

	// Value kind filters: raw, linked, concat
	Kinds []string

	// Only variables with a non-empty description
	HasDescription bool

	// Original query string
	Raw string
}

// QueryParser parses the filter syntax used by the search endpoint
type QueryParser struct {
	filterPattern *regexp.Regexp
}

// NewQueryParser creates a new query parser
func NewQueryParser() *QueryParser {
	// key:value or key:"quoted value"; keys may contain hyphens and
	// underscores
	return &QueryParser{
		filterPattern: regexp.MustCompile(`([\w-]+):("([^"]+)"|(\S+))`),
	}
}

// Parse parses a search query string into a ParsedQuery
func (p *QueryParser) Parse(queryStr string) (*ParsedQuery, error) {
	query := &ParsedQuery{
		Terms: make([]string, 0),
		Kinds: make([]string, 0),
		Raw:   queryStr,
	}

	for _, match := range p.filterPattern.FindAllStringSubmatch(queryStr, -1) {
		key := match[1]
		value := match[3] // quoted value
		if value == "" {
			value = match[4] // unquoted value
		}
		if err := p.parseFilter(query, key, value); err != nil {
			return nil, err
		}
	}

	// Whatever is left after stripping filters is free text.
	cleanQuery := strings.TrimSpace(p.filterPattern.ReplaceAllString(queryStr, ""))
	if cleanQuery != "" {
		query.Terms = append(query.Terms, strings.Fields(cleanQuery)...)
	}

	return query, nil
}

func (p *QueryParser) parseFilter(query *ParsedQuery, key, value string) error {
	switch strings.ToLower(key) {
	case "project":
		query.Project = value

	case "name":
		query.NamePattern = value

	case "kind":
		switch value {
		case "raw", "linked", "concat":
			query.Kinds = append(query.Kinds, value)
		default:
			return fmt.Errorf("%w: kind %q must be one of: raw, linked, concat", ErrInvalidQuery, value)
		}

	case "has-description", "has_description":
		query.HasDescription = value == "true" || value == "1" || value == "yes"

	default:
		// Unknown filters degrade to free text so a colon in a search
		// term never errors.
		query.Terms = append(query.Terms, fmt.Sprintf("%s:%s", key, value))
	}
	return nil
}

// HasFilters returns true if the query has any filters
func (q *ParsedQuery) HasFilters() bool {
	return q.Project != "" ||
		q.NamePattern != "" ||
		len(q.Kinds) > 0 ||
		q.HasDescription
}

// String returns a human-readable representation of the query
func (q *ParsedQuery) String() string {
	parts := make([]string, 0)
	if len(q.Terms) > 0 {
		parts = append(parts, fmt.Sprintf("terms:%v", q.Terms))
	}
	if q.Project != "" {
		parts = append(parts, fmt.Sprintf("project:%s", q.Project))
	}
	if q.NamePattern != "" {
		parts = append(parts, fmt.Sprintf("name:%s", q.NamePattern))
	}
	if len(q.Kinds) > 0 {
		parts = append(parts, fmt.Sprintf("kind:%v", q.Kinds))
	}
	if q.HasDescription {
		parts = append(parts, "has-description:true")
	}
	return strings.Join(parts, ", ")
}

// likePattern builds a case-insensitive substring pattern for a term.
func likePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

// wildcardPattern converts * wildcards to SQL LIKE syntax. The bool
// reports whether the input contained a wildcard at all; exact values
// should use equality instead.
func wildcardPattern(value string) (string, bool) {
	if !strings.ContainsAny(value, "*%") {
		return value, false
	}
	return strings.ReplaceAll(value, "*", "%"), true
}

// Examples:
//
// Basic search:
//   "database" -> variables whose name, value, or description mentions
//   database
//
// Project filter:
//   "url project:webapp" -> search only the webapp project
//   "project:web*" -> projects starting with "web"
//
// Name filter:
//   "name:API_*" -> variables whose name starts with API_
//
// Kind filter:
//   "kind:linked" -> only link references
//   "kind:concat kind:linked" -> concatenations or links
//
// Description filter:
//   "deprecated has-description:true" -> described variables mentioning
//   deprecated
