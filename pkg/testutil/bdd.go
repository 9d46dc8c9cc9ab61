package testutil

import "testing"

// Given, When and Then name subtests after the step they cover, so a failing
// scenario reads "TestX/Given_an_open_breaker/...". Steps share state through
// the enclosing test's variables and run in order.
func Given(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("Then "+desc, fn)
}
