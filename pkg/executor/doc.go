// Package executor implements the single-threaded cooperative executor
// that drives the stack.
//
// One spin runs, in order: calls posted from the previous spin, timer
// callbacks that have come due, the registered drain hooks (the
// presentation layer flushes pending session destructions here, never from
// inside a callback), and finally one bounded I/O poll. The poll timeout is
// the minimum of the time to the next scheduled callback and
// MaxWakeInterval, so the loop stays responsive even with nothing
// scheduled.
//
// Everything the stack does happens on the goroutine calling Spin. Retain,
// release, drain and destroy are synchronous and non-suspending; the I/O
// poll is the only blocking point and it is always bounded.
package executor
