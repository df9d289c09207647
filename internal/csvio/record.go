package csvio

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/carefunnel/internal/dataset"
	"github.com/shopspring/decimal"
)

// record はCSVの1行。列名で値を取り出し、最初の変換エラーだけを保持する。
type record struct {
	index map[string]int
	cells []string
	err   error
}

func (r *record) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r *record) fail(col, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("列 %s の値 %q を変換できません: %w", col, value, err)
	}
}

func (r *record) integer(col string) int {
	v := r.str(col)
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(col, v, err)
	}
	return n
}

func (r *record) uinteger(col string) uint64 {
	v := r.str(col)
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.fail(col, v, err)
	}
	return n
}

func (r *record) boolean(col string) bool {
	v := r.str(col)
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(col, v, err)
	}
	return b
}

func (r *record) date(col string) time.Time {
	v := r.str(col)
	// pandas由来のCSVは "2026-03-01 00:00:00" 形式のことがある
	if len(v) > len(dataset.DateLayout) {
		v = v[:len(dataset.DateLayout)]
	}
	t, err := time.Parse(dataset.DateLayout, v)
	if err != nil {
		r.fail(col, v, err)
	}
	return t
}

func (r *record) timestamp(col string) time.Time {
	v := r.str(col)
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		r.fail(col, v, err)
	}
	return t.UTC()
}

func (r *record) dec(col string) decimal.Decimal {
	v := r.str(col)
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.fail(col, v, err)
	}
	return d
}

// optDec は空セルをnilとして扱う。
func (r *record) optDec(col string) *decimal.Decimal {
	if r.str(col) == "" {
		return nil
	}
	d := r.dec(col)
	return &d
}
