package domain

import (
	"reflect"
	"testing"
)

func TestRoleMapTargets(t *testing.T) {
	testCases := []struct {
		name     string
		roles    RoleMap
		ord      int
		expected []int
	}{
		{
			name:     "primary maps to front card",
			roles:    RoleMap{Primary: 0, Character: 1, Auxiliary: RoleAbsent},
			ord:      0,
			expected: []int{OrdPrimary},
		},
		{
			name:     "character maps to both variants",
			roles:    RoleMap{Primary: 0, Character: 1, Auxiliary: RoleAbsent},
			ord:      1,
			expected: []int{OrdSimplified, OrdTraditional},
		},
		{
			name:     "absent auxiliary never matches",
			roles:    RoleMap{Primary: 0, Character: 1, Auxiliary: RoleAbsent},
			ord:      -1,
			expected: nil,
		},
		{
			name:     "unknown ordinal is skipped",
			roles:    RoleMap{Primary: 0, Character: 1, Auxiliary: RoleAbsent},
			ord:      2,
			expected: nil,
		},
		{
			name:     "auxiliary maps to pinyin card",
			roles:    RoleMap{Primary: 2, Character: 0, Auxiliary: 1},
			ord:      1,
			expected: []int{OrdAuxiliary},
		},
		{
			name:     "primary wins over character on collision",
			roles:    RoleMap{Primary: 1, Character: 1, Auxiliary: RoleAbsent},
			ord:      1,
			expected: []int{OrdPrimary},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.roles.Targets(tc.ord)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Targets(%d) = %v, want %v", tc.ord, got, tc.expected)
			}
		})
	}
}
