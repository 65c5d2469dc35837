package docstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/parley-ai/parley/internal/errs"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq   Op = "eq"
	OpNe   Op = "ne"
	OpGt   Op = "gt"
	OpLt   Op = "lt"
	OpGe   Op = "ge"
	OpLe   Op = "le"
	OpIn   Op = "in"
	OpLike Op = "like"
)

// Filter is one (field, operator, value) predicate. A query's filters are
// combined as a conjunction.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// QueryOptions controls filtering, ordering and pagination. Without SortBy
// the result keeps insertion order. Limit 0 means no limit; Offset applies
// after sorting.
type QueryOptions struct {
	Filters    []Filter
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

// Query returns the documents of a collection matching every filter, ordered
// and paginated per opts, reserved fields stripped.
func (s *Store) Query(ctx context.Context, name string, opts QueryOptions) ([]Document, error) {
	const op = "docstore.Query"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errs.Storagef(op, "store is closed")
	}

	col, ok := s.collections[name]
	if !ok {
		return []Document{}, nil
	}

	matched := make([]Document, 0, len(col.order))
	for _, id := range col.order {
		doc := col.docs[id]
		if matchesAll(doc, opts.Filters) {
			matched = append(matched, doc)
		}
	}

	if opts.SortBy != "" {
		sortDocs(matched, opts.SortBy, opts.Descending)
	}

	start := opts.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]Document, 0, end-start)
	for _, doc := range matched[start:end] {
		out = append(out, stripReserved(doc))
	}
	return out, nil
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc, f) {
			return false
		}
	}
	return true
}

func matches(doc Document, f Filter) bool {
	val, present := doc[f.Field]

	switch f.Op {
	case OpEq:
		return present && compareValues(val, f.Value) == 0
	case OpNe:
		return !present || compareValues(val, f.Value) != 0
	case OpGt:
		return present && compareValues(val, f.Value) > 0
	case OpLt:
		return present && compareValues(val, f.Value) < 0
	case OpGe:
		return present && compareValues(val, f.Value) >= 0
	case OpLe:
		return present && compareValues(val, f.Value) <= 0
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range toSlice(f.Value) {
			if compareValues(val, candidate) == 0 {
				return true
			}
		}
		return false
	case OpLike:
		s, okA := asString(val)
		pattern, okB := asString(f.Value)
		if !okA || !okB {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(pattern))
	default:
		return false
	}
}

func sortDocs(docs []Document, field string, descending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i][field], docs[j][field])
		if c == 0 {
			// Deterministic tie-break on document id.
			a, _ := docs[i][FieldID].(string)
			b, _ := docs[j][FieldID].(string)
			c = strings.Compare(a, b)
		}
		if descending {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders two JSON-ish values: numbers numerically, RFC 3339
// strings as instants, other strings lexically, bools with false first.
// Mismatched or unknown types compare equal.
func compareValues(a, b any) int {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}

	if sa, ok := asString(a); ok {
		if sb, ok := asString(b); ok {
			if c := compareTimestamps(sa, sb); c != 0 || (isTimestamp(sa) && isTimestamp(sb)) {
				return c
			}
			return strings.Compare(sa, sb)
		}
	}

	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}

	return 0
}

// compareTimestamps compares two RFC 3339 strings as instants; returns 0
// when either side does not parse.
func compareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return 0
	}
	switch {
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	default:
		return 0
	}
}

func isTimestamp(s string) bool {
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return []any{v}
	}
}
