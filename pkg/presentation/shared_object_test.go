package presentation

import "testing"

// testObject is a minimal Shareable for exercising the base contract.
type testObject struct {
	SharedObject

	destroyed *[]string
	name      string
}

func newTestObject(name string, destroyed *[]string) *testObject {
	obj := &testObject{destroyed: destroyed, name: name}
	obj.owner = obj
	return obj
}

func (o *testObject) Destroy() {
	*o.destroyed = append(*o.destroyed, o.name)
}

func TestSharedObjectRefCount(t *testing.T) {
	var destroyed []string
	obj := newTestObject("a", &destroyed)

	if obj.IsReferenced() {
		t.Error("fresh object IsReferenced() = true, want false")
	}

	obj.Retain()
	obj.Retain()
	obj.Retain()
	if !obj.IsReferenced() {
		t.Error("IsReferenced() = false after retains, want true")
	}

	// The transition to unreferenced happens on exactly the last release.
	if obj.Release() {
		t.Error("Release() = true with 2 references remaining")
	}
	if obj.Release() {
		t.Error("Release() = true with 1 reference remaining")
	}
	if !obj.Release() {
		t.Error("last Release() = false, want true")
	}
	if obj.IsReferenced() {
		t.Error("IsReferenced() = true after last release, want false")
	}
	if len(destroyed) != 0 {
		t.Error("release destroyed the object; destruction must be deferred")
	}
}

func TestUnrefNodeLinkOrder(t *testing.T) {
	var head UnrefNode
	head.prev = &head
	head.next = &head

	var destroyed []string
	a := newTestObject("a", &destroyed)
	b := newTestObject("b", &destroyed)
	c := newTestObject("c", &destroyed)

	// Appended at the tail: drain order is abandonment order.
	a.linkAsUnreferenced(&head)
	b.linkAsUnreferenced(&head)
	c.linkAsUnreferenced(&head)

	var order []string
	for node := head.next; node != &head; node = node.next {
		order = append(order, node.owner.(*testObject).name)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("chain order = %v, want [a b c]", order)
	}
}

func TestUnrefNodeLinkIdempotent(t *testing.T) {
	var head UnrefNode
	head.prev = &head
	head.next = &head

	var destroyed []string
	a := newTestObject("a", &destroyed)

	a.linkAsUnreferenced(&head)
	a.linkAsUnreferenced(&head) // must not double-link

	count := 0
	for node := head.next; node != &head; node = node.next {
		count++
		if count > 10 {
			t.Fatal("chain corrupted: cycle without sentinel")
		}
	}
	if count != 1 {
		t.Errorf("chain length = %d after double link, want 1", count)
	}
}

func TestUnrefNodeUnlinkIdempotent(t *testing.T) {
	var head UnrefNode
	head.prev = &head
	head.next = &head

	var destroyed []string
	a := newTestObject("a", &destroyed)
	b := newTestObject("b", &destroyed)

	a.linkAsUnreferenced(&head)
	b.linkAsUnreferenced(&head)

	a.unlinkIfLinked()
	a.unlinkIfLinked() // no-op on an unlinked node

	if a.isLinked() {
		t.Error("a.isLinked() = true after unlink")
	}
	if head.next != &b.UnrefNode || b.prev != &head || b.next != &head {
		t.Error("unlink of a corrupted b's links")
	}

	// Fresh node: unlink before any link is a no-op too.
	c := newTestObject("c", &destroyed)
	c.unlinkIfLinked()
	if c.prev != nil || c.next != nil {
		t.Error("unlink of never-linked node set links")
	}
}
