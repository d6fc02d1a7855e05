//go:build assert

package debug

// Enabled reports whether assertions are compiled in.
const Enabled = true

// Assert panics with msg if cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		panic("assertion failed: " + msg)
	}
}
