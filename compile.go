package qiskit

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Operation is an instruction over flattened qubit and clbit indices
type Operation struct {
	Name   string    `json:"name"`
	Params []float64 `json:"params,omitempty"`
	Qubits []int     `json:"qubits"`
	Clbits []int     `json:"clbits,omitempty"`
}

// CircuitHeader maps flattened indices back to registers
type CircuitHeader struct {
	NumberOfQubits int             `json:"number_of_qubits"`
	NumberOfClbits int             `json:"number_of_clbits"`
	QubitLabels    []BitLabel      `json:"qubit_labels"`
	QuantumRegs    []RegisterLabel `json:"qreg_sizes"`
	ClbitLabels    []RegisterLabel `json:"clbit_labels"`
}

// CompiledCircuit is a circuit lowered to what one backend runs natively
type CompiledCircuit struct {
	Header     CircuitHeader `json:"header"`
	Operations []Operation   `json:"operations"`
}

// QASM returns the compiled circuit as OpenQASM 2.0
func (cc CompiledCircuit) QASM() string {
	w := newQasmWriter(cc.Header.QuantumRegs, cc.Header.ClbitLabels)
	clbits := make([]BitLabel, 0, cc.Header.NumberOfClbits)
	for _, r := range cc.Header.ClbitLabels {
		for i := 0; i < r.Size; i++ {
			clbits = append(clbits, BitLabel{Register: r.Name, Index: i})
		}
	}

	for _, op := range cc.Operations {
		qargs := make([]BitLabel, len(op.Qubits))
		for i, q := range op.Qubits {
			qargs[i] = cc.Header.QubitLabels[q]
		}
		cargs := make([]BitLabel, len(op.Clbits))
		for i, c := range op.Clbits {
			cargs[i] = clbits[c]
		}
		w.op(op.Name, op.Params, qargs, cargs)
	}
	return w.String()
}

// QobjConfig is how every circuit of a Qobj gets executed
type QobjConfig struct {
	Shots       int     `json:"shots"`
	MaxCredits  int     `json:"max_credits"`
	Seed        *uint64 `json:"seed,omitempty"`
	BackendName string  `json:"backend_name"`
	HPC         *HPC    `json:"hpc,omitempty"`
}

// QobjCircuit is one compiled circuit of a Qobj
type QobjCircuit struct {
	Name     string          `json:"name"`
	Compiled CompiledCircuit `json:"compiled_circuit"`
	QASM     string          `json:"compiled_circuit_qasm"`
}

// Qobj is a set of circuits compiled for one backend
type Qobj struct {
	ID       string        `json:"id"`
	Config   QobjConfig    `json:"config"`
	Circuits []QobjCircuit `json:"circuits"`
}

// Compile lowers circuits to the gates and coupling of backend and bundles them into a Qobj
func Compile(circuits []*QuantumCircuit, backend Backend, options ...CompileOption) (*Qobj, error) {
	opts := compileOptions{shots: DefaultShots, maxCredits: DefaultMaxCredits}
	for _, option := range options {
		option(&opts)
	}

	if backend == nil {
		return nil, CompileErr{Msg: "no backend to compile for"}
	}
	if len(circuits) == 0 {
		return nil, CompileErr{Msg: "no circuits to compile"}
	}
	if opts.shots <= 0 {
		return nil, CompileErr{Msg: fmt.Sprintf("shots must be positive, got %d", opts.shots)}
	}
	if opts.shots > MaxShots {
		log.Warnf("shots were more than the maximum, %d, so they were set to be the maximum shots, %d", opts.shots, MaxShots)
		opts.shots = MaxShots
	}
	if opts.maxCredits < 0 {
		return nil, CompileErr{Msg: fmt.Sprintf("max credits can't be negative, got %d", opts.maxCredits)}
	}
	if opts.seeded && opts.seed > MaxSeed {
		return nil, CompileErr{Msg: fmt.Sprintf("invalid seed (%d), seeds can have a maximum length of 10 digits", opts.seed)}
	}
	if opts.hpc != nil && (opts.hpc.OMPNumThreads < 1 || opts.hpc.OMPNumThreads > MaxOMP) {
		return nil, CompileErr{Msg: fmt.Sprintf("omp_num_threads must be between 1 and %d, got %d", MaxOMP, opts.hpc.OMPNumThreads)}
	}
	if opts.qobjID == "" {
		opts.qobjID = uuid.NewString()
	}

	cfg := backend.Configuration()
	qobj := &Qobj{
		ID: opts.qobjID,
		Config: QobjConfig{
			Shots:       opts.shots,
			MaxCredits:  opts.maxCredits,
			BackendName: backend.Name(),
			HPC:         opts.hpc,
		},
	}
	if opts.seeded {
		seed := opts.seed
		qobj.Config.Seed = &seed
	}

	names := make(map[string]bool, len(circuits))
	for _, qc := range circuits {
		if qc == nil {
			return nil, CompileErr{Msg: "nil circuit"}
		}
		if names[qc.Name()] {
			return nil, CompileErr{Circuit: qc.Name(), Msg: "circuit names must be unique within a qobj"}
		}
		names[qc.Name()] = true

		compiled, err := compileCircuit(qc, cfg)
		if err != nil {
			return nil, err
		}
		qobj.Circuits = append(qobj.Circuits, QobjCircuit{
			Name:     qc.Name(),
			Compiled: compiled,
			QASM:     compiled.QASM(),
		})
	}

	log.WithField("qobj", qobj.ID).WithField("backend", qobj.Config.BackendName).Debugf("compiled %d circuits", len(qobj.Circuits))
	return qobj, nil
}

func compileCircuit(qc *QuantumCircuit, cfg BackendConfiguration) (CompiledCircuit, error) {
	n := qc.NumQubits()
	if cfg.NQubits > 0 && n > cfg.NQubits {
		return CompiledCircuit{}, RegisterSizeErr{Circuit: qc.Name(), Qubits: n, Max: cfg.NQubits}
	}

	var header CircuitHeader
	qoffsets := make(map[*QuantumRegister]int)
	for _, r := range qc.qregs {
		qoffsets[r] = header.NumberOfQubits
		header.NumberOfQubits += r.Size
		header.QuantumRegs = append(header.QuantumRegs, RegisterLabel{Name: r.Name, Size: r.Size})
		for i := 0; i < r.Size; i++ {
			header.QubitLabels = append(header.QubitLabels, BitLabel{Register: r.Name, Index: i})
		}
	}
	coffsets := make(map[*ClassicalRegister]int)
	for _, r := range qc.cregs {
		coffsets[r] = header.NumberOfClbits
		header.NumberOfClbits += r.Size
		header.ClbitLabels = append(header.ClbitLabels, RegisterLabel{Name: r.Name, Size: r.Size})
	}

	u := &unroller{cfg: cfg, circuit: qc.Name()}
	for _, inst := range qc.instructions {
		op := Operation{Name: inst.Name, Params: append([]float64(nil), inst.Params...)}
		for _, q := range inst.Qubits {
			op.Qubits = append(op.Qubits, qoffsets[q.Register]+q.Index)
		}
		for _, c := range inst.Clbits {
			op.Clbits = append(op.Clbits, coffsets[c.Register]+c.Index)
		}
		if err := u.emit(op); err != nil {
			return CompiledCircuit{}, err
		}
	}

	return CompiledCircuit{Header: header, Operations: u.ops}, nil
}

// unroller rewrites operations into the basis and coupling of a backend
type unroller struct {
	cfg     BackendConfiguration
	circuit string
	ops     []Operation
}

func (u *unroller) emit(op Operation) error {
	switch op.Name {
	case "measure", "barrier", "reset":
		u.ops = append(u.ops, op)
		return nil
	case "cx":
		control, target := op.Qubits[0], op.Qubits[1]
		if !u.cfg.CouplingMap.Allows(control, target) {
			if !u.cfg.CouplingMap.Allows(target, control) {
				return CompileErr{Circuit: u.circuit, Msg: fmt.Sprintf("cx %d,%d is not in the coupling map of %s in either direction", control, target, u.cfg.Name)}
			}
			// H on both sides flips the direction of a cx
			return u.emitAll([]Operation{
				gate("h", nil, control), gate("h", nil, target),
				gate("cx", nil, target, control),
				gate("h", nil, control), gate("h", nil, target),
			})
		}
	}

	if u.cfg.HasGate(op.Name) {
		u.ops = append(u.ops, op)
		return nil
	}

	expansion, ok := decompose(op)
	if !ok {
		return CompileErr{Circuit: u.circuit, Msg: fmt.Sprintf("gate %s is not supported by %s", op.Name, u.cfg.Name)}
	}
	return u.emitAll(expansion)
}

func (u *unroller) emitAll(ops []Operation) error {
	for _, op := range ops {
		if err := u.emit(op); err != nil {
			return err
		}
	}
	return nil
}

func gate(name string, params []float64, qubits ...int) Operation {
	return Operation{Name: name, Params: params, Qubits: qubits}
}

// decompose rewrites op one step closer to u1, u2, u3 and cx
func decompose(op Operation) ([]Operation, bool) {
	q := op.Qubits
	switch op.Name {
	case "h":
		return []Operation{gate("u2", []float64{0, math.Pi}, q[0])}, true
	case "x":
		return []Operation{gate("u3", []float64{math.Pi, 0, math.Pi}, q[0])}, true
	case "y":
		return []Operation{gate("u3", []float64{math.Pi, math.Pi / 2, math.Pi / 2}, q[0])}, true
	case "z":
		return []Operation{gate("u1", []float64{math.Pi}, q[0])}, true
	case "s":
		return []Operation{gate("u1", []float64{math.Pi / 2}, q[0])}, true
	case "sdg":
		return []Operation{gate("u1", []float64{-math.Pi / 2}, q[0])}, true
	case "t":
		return []Operation{gate("u1", []float64{math.Pi / 4}, q[0])}, true
	case "tdg":
		return []Operation{gate("u1", []float64{-math.Pi / 4}, q[0])}, true
	case "u1":
		return []Operation{gate("u3", []float64{0, 0, op.Params[0]}, q[0])}, true
	case "u2":
		return []Operation{gate("u3", []float64{math.Pi / 2, op.Params[0], op.Params[1]}, q[0])}, true
	case "cz":
		return []Operation{gate("h", nil, q[1]), gate("cx", nil, q[0], q[1]), gate("h", nil, q[1])}, true
	case "id":
		return nil, true
	}
	return nil, false
}
