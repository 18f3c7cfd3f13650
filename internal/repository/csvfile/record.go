package csvfile

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// record is one CSV row addressed by header name. Parse failures are
// collected in err so decoders can read every field before checking once.
type record struct {
	table  string
	line   int
	index  map[string]int
	values []string
	err    error
	log    *zap.Logger
}

func (r *record) raw(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

func (r *record) fail(column, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s line %d column %s value %q: %v", domain.ErrMalformedSchema, r.table, r.line, column, value, err)
	}
}

func (r *record) str(column string) string {
	return r.raw(column)
}

func (r *record) int64(column string) int64 {
	v := r.optInt64(column)
	if v == nil {
		return 0
	}
	return *v
}

func (r *record) optInt64(column string) *int64 {
	s := r.raw(column)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// exports from spreadsheets often write integers as 1700000000.0
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			r.fail(column, s, err)
			return nil
		}
		v = int64(f)
	}
	return &v
}

// softInt64 is optInt64 for columns the cleaner treats as missing when
// unparseable: the row is kept with a nil value.
func (r *record) softInt64(column string) *int64 {
	s := r.raw(column)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		v := int64(f)
		return &v
	}
	r.log.Warn("Unparseable CSV value, treating as missing",
		zap.String("file", r.table),
		zap.Int("line", r.line),
		zap.String("column", column),
		zap.String("value", s))
	return nil
}

func (r *record) int(column string) int {
	return int(r.int64(column))
}

func (r *record) float(column string) float64 {
	v := r.optFloat(column)
	if v == nil {
		return 0
	}
	return *v
}

func (r *record) optFloat(column string) *float64 {
	s := r.raw(column)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(column, s, err)
		return nil
	}
	return &v
}

func (r *record) bool(column string) bool {
	s := r.raw(column)
	if s == "" {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		r.fail(column, s, err)
		return false
	}
	return v
}
