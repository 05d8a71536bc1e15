package qiskit

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend only exists to be compiled against
type fakeBackend struct {
	LocalQasmSimulator
	cfg BackendConfiguration
}

func (b *fakeBackend) Name() string                        { return b.cfg.Name }
func (b *fakeBackend) Configuration() BackendConfiguration { return b.cfg }

func ibmqx4() *fakeBackend {
	return &fakeBackend{cfg: BackendConfiguration{
		Name:        "ibmqx4",
		NQubits:     5,
		BasisGates:  []string{"u1", "u2", "u3", "cx", "id"},
		CouplingMap: CouplingMap{{1, 0}, {2, 0}, {2, 1}, {2, 4}, {3, 2}, {3, 4}},
	}}
}

func opNames(ops []Operation) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.Name
	}
	return names
}

func TestCompile_Defaults(t *testing.T) {
	qc, _, _ := bellCircuit(t)

	qobj, err := Compile([]*QuantumCircuit{qc}, NewLocalQasmSimulator())
	require.NoError(t, err)
	assert.NotEmpty(t, qobj.ID)
	assert.Equal(t, QobjConfig{Shots: DefaultShots, MaxCredits: DefaultMaxCredits, BackendName: LocalQasmSimulatorName}, qobj.Config)

	require.Len(t, qobj.Circuits, 1)
	circ := qobj.Circuits[0]
	assert.Equal(t, "bell", circ.Name)
	assert.Equal(t, CircuitHeader{
		NumberOfQubits: 2,
		NumberOfClbits: 2,
		QubitLabels:    []BitLabel{{"q", 0}, {"q", 1}},
		QuantumRegs:    []RegisterLabel{{"q", 2}},
		ClbitLabels:    []RegisterLabel{{"c", 2}},
	}, circ.Compiled.Header)
	assert.Equal(t, []Operation{
		{Name: "h", Qubits: []int{0}},
		{Name: "cx", Qubits: []int{0, 1}},
		{Name: "measure", Qubits: []int{0}, Clbits: []int{0}},
		{Name: "measure", Qubits: []int{1}, Clbits: []int{1}},
	}, circ.Compiled.Operations)
	assert.Equal(t, qc.QASM(), circ.QASM)
}

func TestCompile_Options(t *testing.T) {
	qc, _, _ := bellCircuit(t)
	circuits := []*QuantumCircuit{qc}
	sim := NewLocalQasmSimulator()

	qobj, err := Compile(circuits, sim, WithShots(MaxShots*2), WithMaxCredits(10), WithSeed(42), WithQobjID("my-qobj"), WithHPC(true, 4))
	require.NoError(t, err)
	assert.Equal(t, "my-qobj", qobj.ID)
	assert.Equal(t, MaxShots, qobj.Config.Shots)
	assert.Equal(t, 10, qobj.Config.MaxCredits)
	require.NotNil(t, qobj.Config.Seed)
	assert.Equal(t, uint64(42), *qobj.Config.Seed)
	assert.Equal(t, &HPC{MultiShotOptimization: true, OMPNumThreads: 4}, qobj.Config.HPC)

	for name, opts := range map[string][]CompileOption{
		"zero shots":       {WithShots(0)},
		"negative credits": {WithMaxCredits(-1)},
		"seed too long":    {WithSeed(MaxSeed + 1)},
		"omp too high":     {WithHPC(true, MaxOMP+1)},
		"omp too low":      {WithHPC(false, 0)},
	} {
		_, err := Compile(circuits, sim, opts...)
		var compileErr CompileErr
		assert.ErrorAs(t, err, &compileErr, name)
	}
}

func TestCompile_Invalid(t *testing.T) {
	qc, _, _ := bellCircuit(t)
	sim := NewLocalQasmSimulator()

	_, err := Compile(nil, sim)
	assert.ErrorContains(t, err, "no circuits")

	_, err = Compile([]*QuantumCircuit{qc}, nil)
	assert.ErrorContains(t, err, "no backend")

	_, err = Compile([]*QuantumCircuit{qc, qc}, sim)
	assert.ErrorContains(t, err, "circuit names must be unique")

	big, _ := NewQuantumRegister(6, "q")
	wide, err := NewQuantumCircuit("wide", big)
	require.NoError(t, err)
	_, err = Compile([]*QuantumCircuit{wide}, ibmqx4())
	var sizeErr RegisterSizeErr
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, RegisterSizeErr{Circuit: "wide", Qubits: 6, Max: 5}, sizeErr)
}

func TestCompile_Unroll(t *testing.T) {
	qc, _, _ := bellCircuit(t)

	qobj, err := Compile([]*QuantumCircuit{qc}, ibmqx4())
	require.NoError(t, err)

	ops := qobj.Circuits[0].Compiled.Operations
	// h, then cx 0->1 reversed through the allowed 1->0 with hadamards around it
	assert.Equal(t, []string{"u2", "u2", "u2", "cx", "u2", "u2", "measure", "measure"}, opNames(ops))
	assert.Equal(t, []float64{0, math.Pi}, ops[0].Params)
	assert.Equal(t, []int{1, 0}, ops[3].Qubits)
	assert.Contains(t, qobj.Circuits[0].QASM, "cx q[1],q[0];")
	assert.Contains(t, qobj.Circuits[0].QASM, "u2(0,pi) q[0];")
}

func TestCompile_Decompositions(t *testing.T) {
	q, _ := NewQuantumRegister(5, "q")
	qc, err := NewQuantumCircuit("gates", q)
	require.NoError(t, err)
	require.NoError(t, qc.X(q.Bit(0)))
	require.NoError(t, qc.Y(q.Bit(0)))
	require.NoError(t, qc.Z(q.Bit(0)))
	require.NoError(t, qc.S(q.Bit(0)))
	require.NoError(t, qc.Sdg(q.Bit(0)))
	require.NoError(t, qc.T(q.Bit(0)))
	require.NoError(t, qc.Tdg(q.Bit(0)))
	require.NoError(t, qc.ID(q.Bit(0)))
	require.NoError(t, qc.CZ(q.Bit(1), q.Bit(0)))
	require.NoError(t, qc.Reset(q.Bit(2)))

	qobj, err := Compile([]*QuantumCircuit{qc}, ibmqx4())
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"u3", "u3", "u1", "u1", "u1", "u1", "u1", "id", "u2", "cx", "u2", "reset"},
		opNames(qobj.Circuits[0].Compiled.Operations))

	t.Run("basis without u1 and u2", func(t *testing.T) {
		b := ibmqx4()
		b.cfg.BasisGates = []string{"u3", "cx"}
		qobj, err := Compile([]*QuantumCircuit{qc}, b)
		require.NoError(t, err)
		for _, op := range qobj.Circuits[0].Compiled.Operations {
			assert.Contains(t, []string{"u3", "cx", "reset"}, op.Name)
		}
	})

	t.Run("gate without decomposition", func(t *testing.T) {
		b := ibmqx4()
		b.cfg.BasisGates = []string{"u1", "cx"}
		_, err := Compile([]*QuantumCircuit{qc}, b)
		var compileErr CompileErr
		require.ErrorAs(t, err, &compileErr)
		assert.Equal(t, "gates", compileErr.Circuit)
	})
}

func TestCompile_CouplingMap(t *testing.T) {
	q, _ := NewQuantumRegister(5, "q")
	qc, err := NewQuantumCircuit("far", q)
	require.NoError(t, err)
	require.NoError(t, qc.CX(q.Bit(0), q.Bit(3)))

	_, err = Compile([]*QuantumCircuit{qc}, ibmqx4())
	assert.ErrorContains(t, err, "not in the coupling map of ibmqx4 in either direction")
}

func TestCompile_MultipleRegisters(t *testing.T) {
	a, _ := NewQuantumRegister(1, "a")
	b, _ := NewQuantumRegister(2, "b")
	ca, _ := NewClassicalRegister(1, "ca")
	cb, _ := NewClassicalRegister(2, "cb")
	qc, err := NewQuantumCircuit("multi", a, ca, b, cb)
	require.NoError(t, err)
	require.NoError(t, qc.CX(a.Bit(0), b.Bit(1)))
	require.NoError(t, qc.Measure(b.Bit(1), cb.Bit(0)))

	qobj, err := Compile([]*QuantumCircuit{qc}, NewLocalQasmSimulator())
	require.NoError(t, err)

	ops := qobj.Circuits[0].Compiled.Operations
	assert.Equal(t, []int{0, 2}, ops[0].Qubits)
	assert.Equal(t, []int{2}, ops[1].Qubits)
	assert.Equal(t, []int{1}, ops[1].Clbits)
	assert.Contains(t, qobj.Circuits[0].QASM, "measure b[1] -> cb[0];")

	raw, err := json.Marshal(qobj.Circuits[0].Compiled.Header)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"number_of_qubits": 3,
		"number_of_clbits": 3,
		"qubit_labels": [["a",0],["b",0],["b",1]],
		"qreg_sizes": [["a",1],["b",2]],
		"clbit_labels": [["ca",1],["cb",2]]
	}`, string(raw))
}
