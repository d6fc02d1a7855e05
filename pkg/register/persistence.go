package register

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/niicoooo/libcyphal/pkg/wire"
)

// fileEntry is the YAML form of one persisted register.
type fileEntry struct {
	Type      string    `yaml:"type"`
	Int       int64     `yaml:"int,omitempty"`
	Float     float64   `yaml:"float,omitempty"`
	Bool      bool      `yaml:"bool,omitempty"`
	String    string    `yaml:"string,omitempty"`
	IntList   []int64   `yaml:"int_list,omitempty,flow"`
	FloatList []float64 `yaml:"float_list,omitempty,flow"`
	Mutable   bool      `yaml:"mutable"`
}

func toFileEntry(reg Register) fileEntry {
	v := reg.Value
	return fileEntry{
		Type:      v.Kind.String(),
		Int:       v.Int,
		Float:     v.Float,
		Bool:      v.Bool,
		String:    v.String,
		IntList:   v.IntList,
		FloatList: v.FloatList,
		Mutable:   reg.Mutable,
	}
}

func (e fileEntry) value() (wire.RegisterValue, error) {
	v := wire.RegisterValue{
		Int:       e.Int,
		Float:     e.Float,
		Bool:      e.Bool,
		String:    e.String,
		IntList:   e.IntList,
		FloatList: e.FloatList,
	}
	switch e.Type {
	case wire.ValueInt.String():
		v.Kind = wire.ValueInt
	case wire.ValueFloat.String():
		v.Kind = wire.ValueFloat
	case wire.ValueBool.String():
		v.Kind = wire.ValueBool
	case wire.ValueString.String():
		v.Kind = wire.ValueString
	case wire.ValueIntList.String():
		v.Kind = wire.ValueIntList
	case wire.ValueFloatList.String():
		v.Kind = wire.ValueFloatList
	default:
		return v, fmt.Errorf("unknown register type %q", e.Type)
	}
	return v, nil
}

// Save writes every persistent register to w as YAML.
func (t *Table) Save(w io.Writer) error {
	entries := make(map[string]fileEntry)
	for _, name := range t.names {
		reg := t.regs[name]
		if reg.Persistent {
			entries[name] = toFileEntry(*reg)
		}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode registers: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write registers: %w", err)
	}
	return nil
}

// Load reads YAML from r and merges it into the table. Existing registers
// take their persisted value (kind-checked); unknown names become new
// persistent registers. Returns the number of registers applied.
func (t *Table) Load(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read registers: %w", err)
	}
	var entries map[string]fileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("decode registers: %w", err)
	}

	applied := 0
	for name, entry := range entries {
		value, err := entry.value()
		if err != nil {
			return applied, fmt.Errorf("register %q: %w", name, err)
		}
		if reg, ok := t.regs[name]; ok {
			if value.Kind != reg.Value.Kind {
				return applied, fmt.Errorf("register %q: persisted kind %s, declared %s: %w",
					name, value.Kind, reg.Value.Kind, ErrTypeMismatch)
			}
			reg.Value = value
		} else if err := t.Add(name, value, entry.Mutable, true); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// SaveFile writes persistent registers to path, creating the file.
func (t *Table) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create register file: %w", err)
	}
	defer f.Close()
	if err := t.Save(f); err != nil {
		return err
	}
	return f.Close()
}

// LoadFile merges registers from path. A missing file is not an error: the
// node simply starts with declared defaults.
func (t *Table) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open register file: %w", err)
	}
	defer f.Close()
	return t.Load(f)
}
