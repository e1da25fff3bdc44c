package repository

import (
	"fmt"
	"strings"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// whereBuilder accumulates positional filter clauses.
type whereBuilder struct {
	conditions []string
	args       []interface{}
}

func newWhere(base ...string) *whereBuilder {
	return &whereBuilder{conditions: append([]string{}, base...)}
}

// add appends a clause; each "?" in clause becomes the next placeholder.
func (w *whereBuilder) add(clause string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conditions = append(w.conditions, clause)
}

// search matches term case-insensitively against any of columns.
func (w *whereBuilder) search(term string, columns ...string) {
	if term == "" || len(columns) == 0 {
		return
	}
	w.args = append(w.args, "%"+strings.ToLower(strings.TrimSpace(term))+"%")
	ph := fmt.Sprintf("$%d", len(w.args))
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("LOWER(%s) LIKE %s", c, ph)
	}
	w.conditions = append(w.conditions, "("+strings.Join(parts, " OR ")+")")
}

func (w *whereBuilder) sql() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// orderBy resolves a requested sort against an allow-list.
func orderBy(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	col, ok := allowed[sortBy]
	if !ok {
		col = fallback
	}
	dir := strings.ToUpper(sortOrder)
	if dir != "ASC" && dir != "DESC" {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

func limitOffset(page, size int) string {
	page, size = models.NormalizePage(page, size)
	return fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size)
}
