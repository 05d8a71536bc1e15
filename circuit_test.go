package qiskit

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bellCircuit(t *testing.T) (*QuantumCircuit, *QuantumRegister, *ClassicalRegister) {
	t.Helper()
	q, err := NewQuantumRegister(2, "q")
	require.NoError(t, err)
	c, err := NewClassicalRegister(2, "c")
	require.NoError(t, err)

	qc, err := NewQuantumCircuit("bell", q, c)
	require.NoError(t, err)
	require.NoError(t, qc.H(q.Bit(0)))
	require.NoError(t, qc.CX(q.Bit(0), q.Bit(1)))
	require.NoError(t, qc.MeasureRegister(q, c))
	return qc, q, c
}

func TestNewRegister(t *testing.T) {
	q, err := NewQuantumRegister(3, "q_0")
	require.NoError(t, err)
	assert.Len(t, q.Bits(), 3)
	assert.Equal(t, Qubit{Register: q, Index: 2}, q.Bit(2))

	c, err := NewClassicalRegister(1, "c")
	require.NoError(t, err)
	assert.Equal(t, []Clbit{{Register: c, Index: 0}}, c.Bits())

	for _, tc := range []struct {
		size int
		name string
	}{
		{0, "q"},
		{-1, "q"},
		{2, "Q"},
		{2, "1q"},
		{2, ""},
		{2, "q-1"},
	} {
		_, err := NewQuantumRegister(tc.size, tc.name)
		var circuitErr CircuitErr
		assert.ErrorAs(t, err, &circuitErr, "size=%d name=%q", tc.size, tc.name)

		_, err = NewClassicalRegister(tc.size, tc.name)
		assert.ErrorAs(t, err, &circuitErr, "size=%d name=%q", tc.size, tc.name)
	}
}

func TestNewQuantumCircuit(t *testing.T) {
	q, _ := NewQuantumRegister(2, "q")
	c, _ := NewClassicalRegister(2, "c")
	other, _ := NewClassicalRegister(1, "q")

	qc, err := NewQuantumCircuit("test", q, c)
	require.NoError(t, err)
	assert.Equal(t, "test", qc.Name())
	assert.Equal(t, 2, qc.NumQubits())
	assert.Equal(t, 2, qc.NumClbits())
	assert.Equal(t, []*QuantumRegister{q}, qc.QuantumRegisters())
	assert.Equal(t, []*ClassicalRegister{c}, qc.ClassicalRegisters())

	_, err = NewQuantumCircuit("dup", q, other)
	assert.ErrorContains(t, err, `register name "q" is used twice`)

	_, err = NewQuantumCircuit("", q)
	assert.Error(t, err)

	_, err = NewQuantumCircuit("bad", "q")
	assert.ErrorContains(t, err, "expected a register")
}

func TestQuantumCircuit_Gates(t *testing.T) {
	q, _ := NewQuantumRegister(3, "q")
	c, _ := NewClassicalRegister(3, "c")
	stranger, _ := NewQuantumRegister(1, "r")
	qc, err := NewQuantumCircuit("gates", q, c)
	require.NoError(t, err)

	require.NoError(t, qc.H(q.Bits()...))
	require.NoError(t, qc.U3(math.Pi, 0, math.Pi, q.Bit(1)))
	require.NoError(t, qc.CZ(q.Bit(0), q.Bit(2)))
	require.NoError(t, qc.Barrier())
	require.NoError(t, qc.Measure(q.Bit(1), c.Bit(0)))
	assert.Len(t, qc.Instructions(), 7)

	t.Run("invalid operands leave the circuit unchanged", func(t *testing.T) {
		before := len(qc.Instructions())

		var circuitErr CircuitErr
		assert.ErrorAs(t, qc.X(q.Bit(0), q.Bit(3)), &circuitErr)
		assert.ErrorAs(t, qc.Y(stranger.Bit(0)), &circuitErr)
		assert.ErrorAs(t, qc.Z(), &circuitErr)
		assert.ErrorAs(t, qc.CX(q.Bit(1), q.Bit(1)), &circuitErr)
		assert.ErrorAs(t, qc.Measure(q.Bit(0), c.Bit(-1)), &circuitErr)
		assert.ErrorAs(t, qc.S(Qubit{Index: 0}), &circuitErr)

		small, _ := NewClassicalRegister(2, "small")
		assert.ErrorContains(t, qc.MeasureRegister(q, small), "register sizes don't match")

		assert.Len(t, qc.Instructions(), before)
	})

	t.Run("instructions are copies", func(t *testing.T) {
		insts := qc.Instructions()
		insts[0].Name = "changed"
		assert.Equal(t, "h", qc.Instructions()[0].Name)
	})
}

func TestQuantumCircuit_QASM(t *testing.T) {
	qc, _, _ := bellCircuit(t)

	want := `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
h q[0];
cx q[0],q[1];
measure q[0] -> c[0];
measure q[1] -> c[1];
`
	assert.Equal(t, want, qc.QASM())
}

func TestFormatParam(t *testing.T) {
	for in, want := range map[float64]string{
		0:               "0",
		math.Pi:         "pi",
		-math.Pi:        "-pi",
		math.Pi / 2:     "pi/2",
		-math.Pi / 4:    "-pi/4",
		3 * math.Pi / 4: "3*pi/4",
		2 * math.Pi:     "2*pi",
		0.25:            "0.25",
		-1.5:            "-1.5",
		1e-05:           "0.00001",
		3:               "3.0",
		64 * math.Pi:    "64*pi",
		65 * math.Pi:    strconv.FormatFloat(65*math.Pi, 'f', -1, 64),
		1e21:            "1000000000000000000000.0",
	} {
		assert.Equal(t, want, formatParam(in), "param %v", in)
	}
}
