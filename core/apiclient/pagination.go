package apiclient

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const DefaultPerPage = 20

// Pagination keys as sent by the upstream APIs.
const (
	keyCurrentPage = "current_page"
	keyLastPage    = "last_page"
	keyPerPage     = "per_page"
	keyTotal       = "total"
	keyFrom        = "from"
	keyTo          = "to"

	keyPage = "page" // query parameter
)

var paginationKeys = []string{keyCurrentPage, keyLastPage, keyPerPage, keyTotal, keyFrom, keyTo}

type Pagination struct {
	CurrentPage int `json:"current_page" yaml:"current_page"`
	LastPage    int `json:"last_page" yaml:"last_page"`
	PerPage     int `json:"per_page" yaml:"per_page"`
	Total       int `json:"total" yaml:"total"`
	From        int `json:"from" yaml:"from"`
	To          int `json:"to" yaml:"to"`
}

// DefaultPagination is the pagination of a single page holding nothing.
func DefaultPagination(perPage int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return Pagination{CurrentPage: 1, LastPage: 1, PerPage: perPage}
}

// LocalPagination describes a list that was not paginated by the server.
// The last page is ceil(total / perPage), never less than 1.
func LocalPagination(total, perPage int) Pagination {
	p := DefaultPagination(perPage)
	p.Total = total
	if total > p.PerPage {
		p.LastPage = int(math.Ceil(float64(total) / float64(p.PerPage)))
	}
	return p
}

// fill overrides the fields found in `m`, coercing string numbers.
func (p *Pagination) fill(m map[string]interface{}) {
	fields := map[string]*int{
		keyCurrentPage: &p.CurrentPage,
		keyLastPage:    &p.LastPage,
		keyPerPage:     &p.PerPage,
		keyTotal:       &p.Total,
		keyFrom:        &p.From,
		keyTo:          &p.To,
	}
	for key, dst := range fields {
		if n, ok := Int(m[key]); ok {
			*dst = n
		}
	}
}

func hasPagination(m map[string]interface{}) bool {
	for _, key := range paginationKeys {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

// Int coerces a decoded JSON value to an int. Numbers and numeric strings are accepted,
// fractions are truncated.
func Int(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		return parseInt(n.String())
	case string:
		return parseInt(n)
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f), true
	}
	return 0, false
}
