// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package httpvalidate

import (
	"fmt"
)

// comparisonOps are the leaf operators spec §6's filter grammar allows
// against a single field.
var comparisonOps = map[string]bool{
	"$eq": true, "$in": true, "$gt": true, "$gte": true, "$lt": true, "$lte": true,
}

// combinatorOps combine child filters.
var combinatorOps = map[string]bool{"$and": true, "$or": true}

// FilterConfig bounds the recursive filter grammar: MaxArrayLen caps
// $in argument lists, MaxDepth caps $and/$or nesting. Both default to
// spec §6's named values (10, 2) via DefaultFilterConfig.
type FilterConfig struct {
	MaxArrayLen int
	MaxDepth    int
}

// DefaultFilterConfig returns spec §6's filter-grammar caps: array
// arguments capped at 10, combinators nestable at most 2 levels.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{MaxArrayLen: 10, MaxDepth: 2}
}

// ValidateFilter walks a decoded filter document (the result of
// unmarshaling a request's filter JSON into interface{}) and enforces
// FilterConfig's caps, plus basic grammar shape: every node is either
// a single-field comparison object or a $and/$or combinator over a
// list of child filters. A nil filter is valid (no filtering).
func ValidateFilter(cfg FilterConfig, filter interface{}) error {
	if filter == nil {
		return nil
	}
	return validateNode(cfg, filter, 0)
}

func validateNode(cfg FilterConfig, node interface{}, depth int) error {
	obj, ok := node.(map[string]interface{})
	if !ok {
		return fmt.Errorf("httpvalidate: filter node must be a JSON object, got %T", node)
	}
	if len(obj) != 1 {
		return fmt.Errorf("httpvalidate: filter node must have exactly one key, got %d", len(obj))
	}

	for key, value := range obj {
		if combinatorOps[key] {
			return validateCombinator(cfg, key, value, depth)
		}
		return validateComparison(cfg, key, value)
	}
	return nil
}

func validateCombinator(cfg FilterConfig, op string, value interface{}, depth int) error {
	if depth+1 > cfg.MaxDepth {
		return fmt.Errorf("httpvalidate: %s nesting exceeds max depth %d", op, cfg.MaxDepth)
	}
	children, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("httpvalidate: %s must be an array of filters", op)
	}
	for _, child := range children {
		if err := validateNode(cfg, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func validateComparison(cfg FilterConfig, field string, value interface{}) error {
	ops, ok := value.(map[string]interface{})
	if !ok || len(ops) != 1 {
		return fmt.Errorf("httpvalidate: field %q must map to exactly one comparison operator", field)
	}
	for op, arg := range ops {
		if !comparisonOps[op] {
			return fmt.Errorf("httpvalidate: field %q uses unknown operator %q", field, op)
		}
		if op == "$in" {
			list, ok := arg.([]interface{})
			if !ok {
				return fmt.Errorf("httpvalidate: %s $in argument must be an array", field)
			}
			if len(list) > cfg.MaxArrayLen {
				return fmt.Errorf("httpvalidate: %s $in argument has %d items, exceeds max %d", field, len(list), cfg.MaxArrayLen)
			}
		}
	}
	return nil
}
