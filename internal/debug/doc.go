// Package debug provides assertions for internal invariant checks.
//
// Assertions are compiled out unless the "assert" build tag is set:
//
//	go test -tags assert ./...
//
// They guard contract violations that are never recoverable at runtime
// (lifecycle misuse, intrusive-list corruption). Production builds document
// these as caller obligations instead of paying for the checks.
package debug
