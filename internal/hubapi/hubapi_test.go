package hubapi

import "testing"

func TestPaths(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"expenses", ExpensesPath("family"), "/api/v1/households/family/expenses"},
		{"escaped household", ExpensesPath("a/b c"), "/api/v1/households/a%2Fb%20c/expenses"},
		{"expense", ExpensePath("family", "x1"), "/api/v1/households/family/expenses/x1"},
		{"changes", ChangesPath("family"), "/api/v1/households/family/changes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
