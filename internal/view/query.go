// Package view computes the derived read models served to clients: search,
// filter, sort and pagination over state collections, and dashboard
// aggregates.
package view

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultPageSize is used when a query asks for no page size.
const DefaultPageSize = 25

// MaxPageSize caps the page size a client may ask for.
const MaxPageSize = 500

// Sort orders rows by a column.
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Toggle returns the sort after a click on column: the same column flips
// direction, a new column sorts ascending.
func (s Sort) Toggle(column string) Sort {
	if s.Column == column {
		return Sort{Column: column, Desc: !s.Desc}
	}
	return Sort{Column: column}
}

// Query selects a page of rows.
type Query struct {
	Search string
	// Filters maps a column id to the value it must equal. An empty value
	// or "all" disables the filter.
	Filters  map[string]string
	Sort     Sort
	Page     int
	PageSize int
}

// Column describes one field of a row type.
type Column[T any] struct {
	ID string
	// Text returns the field as text. It is used for search, filters and
	// sorting of text columns.
	Text func(T) string
	// Number, when set, makes the column sort numerically.
	Number func(T) float64
	// Searchable includes the column in free-text search.
	Searchable bool
}

// Schema lists the columns of a row type.
type Schema[T any] struct {
	Columns []Column[T]
}

func (s Schema[T]) column(id string) (Column[T], bool) {
	i := slices.IndexFunc(s.Columns, func(c Column[T]) bool { return c.ID == id })
	if i < 0 {
		return Column[T]{}, false
	}
	return s.Columns[i], true
}

// Page is one page of query results.
type Page[T any] struct {
	Rows     []T  `json:"rows"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Pages    int  `json:"pages"`
	Sort     Sort `json:"sort"`
}

func allValues(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all") || strings.EqualFold(v, "todos")
}

// Apply searches, filters, sorts and paginates rows. The input slice is not
// modified. Unknown filter and sort columns are ignored.
func Apply[T any](rows []T, q Query, s Schema[T]) Page[T] {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.Search))

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !matchesSearch(r, needle, s, fold) {
			continue
		}
		if !matchesFilters(r, q.Filters, s) {
			continue
		}
		out = append(out, r)
	}

	if col, ok := s.column(q.Sort.Column); ok {
		sortRows(out, col, q.Sort.Desc)
	}

	return paginate(out, q, q.Sort)
}

func matchesSearch[T any](r T, needle string, s Schema[T], fold cases.Caser) bool {
	for _, c := range s.Columns {
		if c.Searchable && c.Text != nil && strings.Contains(fold.String(c.Text(r)), needle) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](r T, filters map[string]string, s Schema[T]) bool {
	for id, want := range filters {
		if allValues(want) {
			continue
		}
		c, ok := s.column(id)
		if !ok || c.Text == nil {
			continue
		}
		if c.Text(r) != want {
			return false
		}
	}
	return true
}

func sortRows[T any](rows []T, c Column[T], desc bool) {
	var compare func(a, b T) int
	if c.Number != nil {
		compare = func(a, b T) int { return cmp.Compare(c.Number(a), c.Number(b)) }
	} else {
		coll := collate.New(language.Spanish, collate.IgnoreCase)
		text := c.Text
		if text == nil {
			text = func(T) string { return "" }
		}
		compare = func(a, b T) int { return coll.CompareString(text(a), text(b)) }
	}
	slices.SortStableFunc(rows, func(a, b T) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func paginate[T any](rows []T, q Query, sort Sort) Page[T] {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)

	pages := max(1, (len(rows)+size-1)/size)
	page := min(max(q.Page, 1), pages)

	start := min((page-1)*size, len(rows))
	end := min(start+size, len(rows))
	return Page[T]{
		Rows:     rows[start:end],
		Total:    len(rows),
		Page:     page,
		PageSize: size,
		Pages:    pages,
		Sort:     sort,
	}
}

// ParseQuery reads a query from URL parameters: q, sort, desc, page,
// page_size, and every other parameter naming a column as a filter.
func ParseQuery[T any](v url.Values, s Schema[T]) Query {
	q := Query{
		Search:  v.Get("q"),
		Filters: map[string]string{},
		Sort:    Sort{Column: v.Get("sort")},
	}
	q.Sort.Desc, _ = strconv.ParseBool(v.Get("desc"))
	q.Page, _ = strconv.Atoi(v.Get("page"))
	q.PageSize, _ = strconv.Atoi(v.Get("page_size"))
	for _, c := range s.Columns {
		if f := v.Get(c.ID); f != "" {
			q.Filters[c.ID] = f
		}
	}
	return q
}
