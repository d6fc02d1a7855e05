//go:build assert

package presentation

import "testing"

// mustPanic runs fn and fails unless it panics. The lifecycle misuse
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

func TestAssertRetainAfterLink(t *testing.T) {
	var head UnrefNode
	head.prev = &head
	head.next = &head

	var destroyed []string
	obj := newTestObject("a", &destroyed)
	obj.Retain()
	if !obj.Release() {
		t.Fatal("single release did not report zero references")
	}
	obj.linkAsUnreferenced(&head)

	// Pending destruction is terminal: no resurrection.
	mustPanic(t, "retain on linked object", obj.Retain)
}

func TestAssertReleaseAtZero(t *testing.T) {
	var destroyed []string
	obj := newTestObject("a", &destroyed)

	mustPanic(t, "release on unreferenced object", func() { obj.Release() })
}

func TestAssertMixedLinkState(t *testing.T) {
	var head UnrefNode
	head.prev = &head
	head.next = &head

	var destroyed []string
	obj := newTestObject("a", &destroyed)

	// A node with one link set and the other clear is corruption, not a
	// state to repair.
	obj.prev = &head
	mustPanic(t, "link with mixed link state", func() { obj.linkAsUnreferenced(&head) })
	mustPanic(t, "unlink with mixed link state", obj.unlinkIfLinked)
}
