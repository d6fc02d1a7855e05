package register

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/niicoooo/libcyphal/pkg/wire"
)

// Register errors.
var (
	// ErrNotFound is returned when no register has the requested name.
	ErrNotFound = errors.New("register not found")

	// ErrImmutable is returned for writes to an immutable register.
	ErrImmutable = errors.New("register is immutable")

	// ErrTypeMismatch is returned when an assignment would change the
	// register's value kind.
	ErrTypeMismatch = errors.New("assignment changes register type")

	// ErrInvalidName is returned for names outside the allowed grammar.
	ErrInvalidName = errors.New("invalid register name")

	// ErrDuplicate is returned when adding a name that already exists.
	ErrDuplicate = errors.New("register already exists")
)

// nameRE is the register name grammar: dot-separated lowercase segments.
var nameRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)

// Register is one named configuration value.
type Register struct {
	// Name is the dot-separated register name.
	Name string

	// Value is the current value.
	Value wire.RegisterValue

	// Mutable allows remote writes.
	Mutable bool

	// Persistent includes the register in Save output.
	Persistent bool
}

// Table holds a node's registers. Not safe for concurrent use; all access
// must come from the executor thread.
type Table struct {
	regs  map[string]*Register
	names []string // sorted, for stable List indices
}

// NewTable creates an empty register table.
func NewTable() *Table {
	return &Table{regs: make(map[string]*Register)}
}

// Add creates a register. The name must match the register grammar and be
// unique.
func (t *Table) Add(name string, value wire.RegisterValue, mutable, persistent bool) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("add register %q: %w", name, ErrInvalidName)
	}
	if _, ok := t.regs[name]; ok {
		return fmt.Errorf("add register %q: %w", name, ErrDuplicate)
	}
	t.regs[name] = &Register{Name: name, Value: value, Mutable: mutable, Persistent: persistent}

	i := sort.SearchStrings(t.names, name)
	t.names = append(t.names, "")
	copy(t.names[i+1:], t.names[i:])
	t.names[i] = name
	return nil
}

// Get returns a copy of the named register.
func (t *Table) Get(name string) (Register, error) {
	reg, ok := t.regs[name]
	if !ok {
		return Register{}, fmt.Errorf("register %q: %w", name, ErrNotFound)
	}
	return *reg, nil
}

// Set assigns a new value to a mutable register of the same kind.
func (t *Table) Set(name string, value wire.RegisterValue) error {
	reg, ok := t.regs[name]
	if !ok {
		return fmt.Errorf("set register %q: %w", name, ErrNotFound)
	}
	if !reg.Mutable {
		return fmt.Errorf("set register %q: %w", name, ErrImmutable)
	}
	if value.Kind != reg.Value.Kind {
		return fmt.Errorf("set register %q: have %s, got %s: %w",
			name, reg.Value.Kind, value.Kind, ErrTypeMismatch)
	}
	reg.Value = value
	return nil
}

// Len returns the number of registers.
func (t *Table) Len() int {
	return len(t.names)
}

// NameAt returns the register name at the dense sorted index, or "" past
// the end.
func (t *Table) NameAt(index int) string {
	if index < 0 || index >= len(t.names) {
		return ""
	}
	return t.names[index]
}

// Names returns all register names in sorted order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Access answers one register-access request: optional write, then read.
// Failed writes (immutable target, type mismatch, missing register) leave
// the register untouched; the response carries the actual state, which is
// how the caller detects rejection.
func (t *Table) Access(req wire.RegisterAccessRequest) wire.RegisterAccessResponse {
	if !req.Value.IsEmpty() {
		// Ignore the error: the response value tells the caller.
		_ = t.Set(req.Name, req.Value)
	}
	reg, err := t.Get(req.Name)
	if err != nil {
		return wire.RegisterAccessResponse{} // empty value: no such register
	}
	return wire.RegisterAccessResponse{
		Value:      reg.Value,
		Mutable:    reg.Mutable,
		Persistent: reg.Persistent,
	}
}

// List answers one register-list request.
func (t *Table) List(req wire.RegisterListRequest) wire.RegisterListResponse {
	return wire.RegisterListResponse{Name: t.NameAt(int(req.Index))}
}

// Value constructors.

// Int returns an integer register value.
func Int(v int64) wire.RegisterValue {
	return wire.RegisterValue{Kind: wire.ValueInt, Int: v}
}

// Float returns a float register value.
func Float(v float64) wire.RegisterValue {
	return wire.RegisterValue{Kind: wire.ValueFloat, Float: v}
}

// Bool returns a boolean register value.
func Bool(v bool) wire.RegisterValue {
	return wire.RegisterValue{Kind: wire.ValueBool, Bool: v}
}

// String returns a string register value.
func String(v string) wire.RegisterValue {
	return wire.RegisterValue{Kind: wire.ValueString, String: v}
}

// IntList returns an integer-list register value.
func IntList(v ...int64) wire.RegisterValue {
	return wire.RegisterValue{Kind: wire.ValueIntList, IntList: v}
}

// FloatList returns a float-list register value.
func FloatList(v ...float64) wire.RegisterValue {
	return wire.RegisterValue{Kind: wire.ValueFloatList, FloatList: v}
}
