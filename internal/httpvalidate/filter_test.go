package httpvalidate

import "testing"

func TestValidateFilterAcceptsSimpleComparison(t *testing.T) {
	filter := map[string]interface{}{"genre": map[string]interface{}{"$eq": "scifi"}}
	if err := ValidateFilter(DefaultFilterConfig(), filter); err != nil {
		t.Fatalf("expected valid filter, got %v", err)
	}
}

func TestValidateFilterAcceptsNilFilter(t *testing.T) {
	if err := ValidateFilter(DefaultFilterConfig(), nil); err != nil {
		t.Fatalf("expected nil filter to be valid, got %v", err)
	}
}

func TestValidateFilterRejectsOversizedInArgument(t *testing.T) {
	ids := make([]interface{}, 11)
	for i := range ids {
		ids[i] = i
	}
	filter := map[string]interface{}{"id": map[string]interface{}{"$in": ids}}
	if err := ValidateFilter(DefaultFilterConfig(), filter); err == nil {
		t.Fatal("expected error for $in argument exceeding max length")
	}
}

func TestValidateFilterAcceptsNestingAtCap(t *testing.T) {
	filter := map[string]interface{}{
		"$and": []interface{}{
			map[string]interface{}{"genre": map[string]interface{}{"$eq": "scifi"}},
			map[string]interface{}{
				"$or": []interface{}{
					map[string]interface{}{"year": map[string]interface{}{"$gte": 2000}},
					map[string]interface{}{"year": map[string]interface{}{"$lte": 1980}},
				},
			},
		},
	}
	if err := ValidateFilter(DefaultFilterConfig(), filter); err != nil {
		t.Fatalf("expected 2-level nesting to be accepted, got %v", err)
	}
}

func TestValidateFilterRejectsNestingBeyondCap(t *testing.T) {
	filter := map[string]interface{}{
		"$and": []interface{}{
			map[string]interface{}{
				"$or": []interface{}{
					map[string]interface{}{
						"$and": []interface{}{
							map[string]interface{}{"genre": map[string]interface{}{"$eq": "scifi"}},
						},
					},
				},
			},
		},
	}
	if err := ValidateFilter(DefaultFilterConfig(), filter); err == nil {
		t.Fatal("expected error for nesting beyond max depth")
	}
}

func TestValidateFilterRejectsUnknownOperator(t *testing.T) {
	filter := map[string]interface{}{"genre": map[string]interface{}{"$regex": "sci.*"}}
	if err := ValidateFilter(DefaultFilterConfig(), filter); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}
