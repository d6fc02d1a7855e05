package register

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niicoooo/libcyphal/pkg/wire"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	table := NewTable()
	require.NoError(t, table.Add("uavcan.node.id", Int(42), true, true))
	require.NoError(t, table.Add("uavcan.node.description", String("bench node"), true, true))
	require.NoError(t, table.Add("motor.pid.kp", Float(1.25), true, true))
	require.NoError(t, table.Add("sys.version", String("1.0.0"), false, false))
	return table
}

func TestTableAddValidation(t *testing.T) {
	table := newTestTable(t)

	assert.ErrorIs(t, table.Add("Bad.Name", Int(1), true, false), ErrInvalidName)
	assert.ErrorIs(t, table.Add("trailing.", Int(1), true, false), ErrInvalidName)
	assert.ErrorIs(t, table.Add("", Int(1), true, false), ErrInvalidName)
	assert.ErrorIs(t, table.Add("uavcan.node.id", Int(1), true, false), ErrDuplicate)
}

func TestTableSetRules(t *testing.T) {
	table := newTestTable(t)

	require.NoError(t, table.Set("uavcan.node.id", Int(7)))
	reg, err := table.Get("uavcan.node.id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), reg.Value.Int)

	assert.ErrorIs(t, table.Set("sys.version", String("2.0.0")), ErrImmutable)
	assert.ErrorIs(t, table.Set("uavcan.node.id", Float(3.5)), ErrTypeMismatch)
	assert.ErrorIs(t, table.Set("no.such.register", Int(1)), ErrNotFound)
}

func TestTableListOrder(t *testing.T) {
	table := newTestTable(t)

	want := []string{"motor.pid.kp", "sys.version", "uavcan.node.description", "uavcan.node.id"}
	assert.Equal(t, want, table.Names())

	for i, name := range want {
		resp := table.List(wire.RegisterListRequest{Index: uint16(i)})
		assert.Equal(t, name, resp.Name)
	}
	assert.Equal(t, "", table.List(wire.RegisterListRequest{Index: 99}).Name)
}

func TestTableAccess(t *testing.T) {
	table := newTestTable(t)

	// Plain read.
	resp := table.Access(wire.RegisterAccessRequest{Name: "motor.pid.kp"})
	assert.Equal(t, wire.ValueFloat, resp.Value.Kind)
	assert.Equal(t, 1.25, resp.Value.Float)
	assert.True(t, resp.Mutable)

	// Write-then-read.
	resp = table.Access(wire.RegisterAccessRequest{Name: "motor.pid.kp", Value: Float(2.5)})
	assert.Equal(t, 2.5, resp.Value.Float)

	// Rejected write: response carries the unchanged value.
	resp = table.Access(wire.RegisterAccessRequest{Name: "sys.version", Value: String("2.0.0")})
	assert.Equal(t, "1.0.0", resp.Value.String)
	assert.False(t, resp.Mutable)

	// Missing register: empty value.
	resp = table.Access(wire.RegisterAccessRequest{Name: "no.such"})
	assert.True(t, resp.Value.IsEmpty())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	table := newTestTable(t)
	require.NoError(t, table.Set("uavcan.node.id", Int(99)))
	require.NoError(t, table.Add("cal.offsets", FloatList(0.1, -0.2, 0.3), true, true))

	var buf bytes.Buffer
	require.NoError(t, table.Save(&buf))

	// Non-persistent registers stay out of the file.
	assert.NotContains(t, buf.String(), "sys.version")

	// A fresh table with the same declarations picks the values up.
	fresh := NewTable()
	require.NoError(t, fresh.Add("uavcan.node.id", Int(42), true, true))
	applied, err := fresh.Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 4, applied)

	reg, err := fresh.Get("uavcan.node.id")
	require.NoError(t, err)
	assert.Equal(t, int64(99), reg.Value.Int)

	reg, err = fresh.Get("cal.offsets")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, -0.2, 0.3}, reg.Value.FloatList)
	assert.True(t, reg.Persistent)
}

func TestLoadRejectsKindChange(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Add("uavcan.node.id", Int(42), true, true))

	_, err := table.Load(bytes.NewReader([]byte("uavcan.node.id:\n  type: STRING\n  string: oops\n")))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFileRoundTripAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registers.yaml")

	table := newTestTable(t)
	require.NoError(t, table.SaveFile(path))

	fresh := NewTable()
	applied, err := fresh.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)

	// Missing files mean factory defaults, not failure.
	applied, err = NewTable().LoadFile(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}
