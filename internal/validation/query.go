package validation

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"saifuu/internal/core"
)

// absent reports whether a query value should be treated as not supplied.
// Browser clients serialize missing filters as "undefined" or "null".
func absent(v string) bool {
	return v == "" || v == "undefined" || v == "null"
}

// queryReader pulls typed values out of a query string. Conversion errors
// accumulate in errs under the first key name given.
type queryReader struct {
	values url.Values
	errs   core.FieldErrors
}

func newQueryReader(v url.Values) *queryReader {
	return &queryReader{values: v, errs: core.FieldErrors{}}
}

// get returns the first meaningful value among keys.
func (q *queryReader) get(keys ...string) (string, bool) {
	for _, k := range keys {
		v := strings.TrimSpace(q.values.Get(k))
		if !absent(v) {
			return v, true
		}
	}
	return "", false
}

func (q *queryReader) String(keys ...string) *string {
	v, ok := q.get(keys...)
	if !ok {
		return nil
	}
	return &v
}

func (q *queryReader) Int(keys ...string) *int64 {
	v, ok := q.get(keys...)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		q.errs.Add(keys[0], "must be an integer")
		return nil
	}
	return &n
}

func (q *queryReader) Bool(keys ...string) *bool {
	v, ok := q.get(keys...)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.errs.Add(keys[0], "must be true or false")
		return nil
	}
	return &b
}

func (q *queryReader) Date(keys ...string) *core.Date {
	v, ok := q.get(keys...)
	if !ok {
		return nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		q.errs.Add(keys[0], "must be a valid date (YYYY-MM-DD)")
		return nil
	}
	return &d
}

// Page reads page and limit with defaults of 1 and DefaultPageSize.
func (q *queryReader) Page() core.Page {
	p := core.Page{Page: 1, Limit: core.DefaultPageSize}
	if n := q.Int("page"); n != nil {
		checkVar(q.errs, "page", *n, "gte=1")
		p.Page = int(*n)
	}
	if n := q.Int("limit"); n != nil {
		checkVar(q.errs, "limit", *n, "gte=1,lte="+strconv.Itoa(core.MaxPageSize))
		p.Limit = int(*n)
	}
	return p
}

// Sort reads sort_by and sort_order against a column whitelist.
func (q *queryReader) Sort(allowed []string, def core.Sort) core.Sort {
	s := def
	if by, ok := q.get("sort_by", "sortBy"); ok {
		if !slices.Contains(allowed, by) {
			q.errs.Add("sort_by", "must be one of: "+strings.Join(allowed, ", "))
		} else {
			s.By = by
		}
	}
	if order, ok := q.get("sort_order", "sortOrder"); ok {
		order = strings.ToLower(order)
		checkVar(q.errs, "sort_order", order, "oneof=asc desc")
		s.Order = order
	}
	return s
}
