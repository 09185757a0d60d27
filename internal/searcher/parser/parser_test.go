package parser

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"a", []string{}},
		{"Blue", []string{"blue"}},
		{"blue Shirt BLUE", []string{"blue", "shirt"}},
		{"sku-123 (xl)", []string{"sku", "123", "xl"}},
	}
	for _, tt := range tests {
		plan := Parse(tt.query)
		if !reflect.DeepEqual(plan.Terms, tt.want) {
			t.Errorf("Parse(%q).Terms = %v, want %v", tt.query, plan.Terms, tt.want)
		}
		if plan.RawQuery != tt.query {
			t.Errorf("RawQuery = %q", plan.RawQuery)
		}
		if plan.Empty() != (len(tt.want) == 0) {
			t.Errorf("Parse(%q).Empty() = %v", tt.query, plan.Empty())
		}
	}
}
