//go:build assert

package mem

import "testing"

// mustPanic runs fn and fails unless it panics. The accounting misuse
// checks are compiled in only under the assert tag, so these tests are too.
func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic, got none", name)
		}
	}()
	fn()
}

func TestAssertReclaimOverflow(t *testing.T) {
	a := NewArena(64)
	if err := a.Reserve(16); err != nil {
		t.Fatalf("Reserve(16) = %v, want nil", err)
	}

	mustPanic(t, "reclaim exceeding outstanding bytes", func() { a.Reclaim(32) })
}

func TestAssertFreeNil(t *testing.T) {
	a := NewArena(64)

	mustPanic(t, "free of nil object", func() { Free[trackedObject](a, nil) })
}
