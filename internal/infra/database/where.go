package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"spread_expire/internal/domain/spread"
)

// where collects AND'ed conditions with positional parameters.
type where struct {
	clauses []string
	args    []any
}

// add appends a condition; format must contain one %d for the parameter number.
func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

func (w *where) int64s(column string, values []int64) {
	if len(values) > 0 {
		w.add(column+" = ANY($%d)", pq.Array(values))
	}
}

func (w *where) strings(column string, values []string) {
	if len(values) > 0 {
		w.add(column+" = ANY($%d)", pq.Array(values))
	}
}

func (w *where) spreads(column string, values []spread.Code) {
	if len(values) == 0 {
		return
	}
	codes := make([]int64, len(values))
	for i, c := range values {
		codes[i] = int64(c)
	}
	w.add(column+" = ANY($%d)", pq.Array(codes))
}

func (w *where) before(column string, t *time.Time) {
	if t != nil {
		w.add(column+" < $%d", *t)
	}
}

func (w *where) after(column string, t *time.Time) {
	if t != nil {
		w.add(column+" > $%d", *t)
	}
}

func (w *where) empty() bool {
	return len(w.clauses) == 0
}

func (w *where) String() string {
	if w.empty() {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
