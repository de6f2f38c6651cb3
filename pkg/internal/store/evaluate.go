package store

import (
	"sort"
	"strings"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
)

// compareValues orders missing < bool < number < string, then by value.
func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := models.ToFloat64(a)
		fb, _ := models.ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 3:
		return strings.Compare(a.(string), b.(string))
	default:
		return 0
	}
}

func valueRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := v.(string); ok {
		return 3
	}
	if _, ok := models.ToFloat64(v); ok {
		return 2
	}
	return 0
}

func matchFilters(doc models.Document, filters []Filter) bool {
	for _, filter := range filters {
		val, ok := doc[filter.Field]
		if !ok || val == nil {
			return false
		}
		if valueRank(val) != valueRank(filter.Value) {
			return false
		}
		cmp := compareValues(val, filter.Value)
		var pass bool
		switch filter.Op {
		case OpEq:
			pass = cmp == 0
		case OpLt:
			pass = cmp < 0
		case OpLte:
			pass = cmp <= 0
		case OpGt:
			pass = cmp > 0
		case OpGte:
			pass = cmp >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

func sortRecords(records []Record, query Query) {
	idDesc := query.IDDesc()
	sort.SliceStable(records, func(i, j int) bool {
		for _, order := range query.Orders {
			cmp := compareValues(records[i].Data[order.Field], records[j].Data[order.Field])
			if cmp == 0 {
				continue
			}
			if order.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		if idDesc {
			return records[i].ID > records[j].ID
		}
		return records[i].ID < records[j].ID
	})
}

// Evaluate applies a query to an unordered set of records.
func Evaluate(records []Record, query Query) Snapshot {
	out := make(Snapshot, 0, len(records))
	for _, record := range records {
		if matchFilters(record.Data, query.Filters) {
			out = append(out, record)
		}
	}
	sortRecords(out, query)
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out
}
