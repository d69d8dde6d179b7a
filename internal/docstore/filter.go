// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package docstore

import "fmt"

// Match evaluates filter (already shape-validated by
// httpvalidate.ValidateFilter) against a document's property map,
// implementing spec §6's filter grammar: a comparison
// {field: {$eq|$in|$gt|$gte|$lt|$lte: value}} or a combinator
// {$and|$or: [filter, ...]}. A nil filter matches every document.
func Match(filter Filter, props map[string]interface{}) (bool, error) {
	if filter == nil {
		return true, nil
	}
	if len(filter) != 1 {
		return false, fmt.Errorf("docstore: filter node must have exactly one key, got %d", len(filter))
	}
	for key, value := range filter {
		switch key {
		case "$and":
			return matchCombinator(true, value, props)
		case "$or":
			return matchCombinator(false, value, props)
		default:
			return matchComparison(key, value, props)
		}
	}
	return false, nil
}

func matchCombinator(and bool, value interface{}, props map[string]interface{}) (bool, error) {
	list, ok := value.([]interface{})
	if !ok {
		return false, fmt.Errorf("docstore: combinator value must be an array")
	}
	for _, sub := range list {
		subFilter, ok := sub.(map[string]interface{})
		if !ok {
			return false, fmt.Errorf("docstore: combinator entries must be filter objects")
		}
		matched, err := Match(subFilter, props)
		if err != nil {
			return false, err
		}
		if and && !matched {
			return false, nil
		}
		if !and && matched {
			return true, nil
		}
	}
	return and, nil
}

func matchComparison(field string, value interface{}, props map[string]interface{}) (bool, error) {
	ops, ok := value.(map[string]interface{})
	if !ok || len(ops) != 1 {
		return false, fmt.Errorf("docstore: comparison value for %q must be a single-op object", field)
	}
	actual, present := props[field]
	for op, operand := range ops {
		switch op {
		case "$eq":
			return present && compareEqual(actual, operand), nil
		case "$in":
			list, ok := operand.([]interface{})
			if !ok {
				return false, fmt.Errorf("docstore: $in operand must be an array")
			}
			if !present {
				return false, nil
			}
			for _, candidate := range list {
				if compareEqual(actual, candidate) {
					return true, nil
				}
			}
			return false, nil
		case "$gt", "$gte", "$lt", "$lte":
			if !present {
				return false, nil
			}
			return compareOrdered(op, actual, operand)
		default:
			return false, fmt.Errorf("docstore: unknown comparison operator %q", op)
		}
	}
	return false, nil
}

func compareEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func compareOrdered(op string, a, b interface{}) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false, fmt.Errorf("docstore: %s requires numeric operands", op)
	}
	switch op {
	case "$gt":
		return af > bf, nil
	case "$gte":
		return af >= bf, nil
	case "$lt":
		return af < bf, nil
	case "$lte":
		return af <= bf, nil
	}
	return false, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
