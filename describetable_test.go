package pgward

import "testing"

func TestIdentPattern(t *testing.T) {
	t.Parallel()
	valid := []string{"users", "Users", "_private", "t1", "order_items"}
	for _, name := range valid {
		if !identPattern.MatchString(name) {
			t.Fatalf("expected valid identifier: %q", name)
		}
	}
	invalid := []string{
		"",
		"1users",
		"users; DROP TABLE users",
		"users.secret",
		`"users"`,
		"users table",
		"users-archive",
	}
	for _, name := range invalid {
		if identPattern.MatchString(name) {
			t.Fatalf("expected invalid identifier: %q", name)
		}
	}
}
