package qiskit

import (
	"regexp"
)

var registerNameRegex = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)

// QuantumRegister is a named array of qubits
type QuantumRegister struct {
	Name string
	Size int
}

// NewQuantumRegister returns a register of size qubits
func NewQuantumRegister(size int, name string) (*QuantumRegister, error) {
	if err := checkRegister(size, name); err != nil {
		return nil, err
	}
	return &QuantumRegister{Name: name, Size: size}, nil
}

// Bit returns the i-th qubit of the register
func (r *QuantumRegister) Bit(i int) Qubit { return Qubit{Register: r, Index: i} }

// Bits returns every qubit of the register in order
func (r *QuantumRegister) Bits() []Qubit {
	qs := make([]Qubit, r.Size)
	for i := range qs {
		qs[i] = r.Bit(i)
	}
	return qs
}

// ClassicalRegister is a named array of classical bits
type ClassicalRegister struct {
	Name string
	Size int
}

// NewClassicalRegister returns a register of size bits
func NewClassicalRegister(size int, name string) (*ClassicalRegister, error) {
	if err := checkRegister(size, name); err != nil {
		return nil, err
	}
	return &ClassicalRegister{Name: name, Size: size}, nil
}

// Bit returns the i-th bit of the register
func (r *ClassicalRegister) Bit(i int) Clbit { return Clbit{Register: r, Index: i} }

// Bits returns every bit of the register in order
func (r *ClassicalRegister) Bits() []Clbit {
	cs := make([]Clbit, r.Size)
	for i := range cs {
		cs[i] = r.Bit(i)
	}
	return cs
}

func checkRegister(size int, name string) error {
	if size <= 0 {
		return circuitErrorf("register size must be positive, got %d", size)
	}
	if !registerNameRegex.MatchString(name) {
		return circuitErrorf("%q is an invalid register name, it must match %s", name, registerNameRegex)
	}
	return nil
}

// Qubit addresses one qubit of a register
type Qubit struct {
	Register *QuantumRegister
	Index    int
}

// Clbit addresses one bit of a classical register
type Clbit struct {
	Register *ClassicalRegister
	Index    int
}

// Instruction is one operation of a circuit
type Instruction struct {
	Name   string
	Params []float64
	Qubits []Qubit
	Clbits []Clbit
}

// QuantumCircuit is an ordered list of instructions over quantum and classical registers
type QuantumCircuit struct {
	name         string
	qregs        []*QuantumRegister
	cregs        []*ClassicalRegister
	instructions []Instruction
}

// NewQuantumCircuit returns an empty circuit over the given registers.
// regs may hold *QuantumRegister and *ClassicalRegister values.
func NewQuantumCircuit(name string, regs ...interface{}) (*QuantumCircuit, error) {
	if name == "" {
		return nil, circuitErrorf("circuit name can't be empty")
	}

	qc := &QuantumCircuit{name: name}
	seen := make(map[string]bool)
	for _, reg := range regs {
		var regName string
		switch r := reg.(type) {
		case *QuantumRegister:
			if r == nil {
				return nil, circuitErrorf("nil quantum register")
			}
			regName = r.Name
			qc.qregs = append(qc.qregs, r)
		case *ClassicalRegister:
			if r == nil {
				return nil, circuitErrorf("nil classical register")
			}
			regName = r.Name
			qc.cregs = append(qc.cregs, r)
		default:
			return nil, circuitErrorf("expected a register, got %T", reg)
		}
		if seen[regName] {
			return nil, circuitErrorf("register name %q is used twice in circuit %q", regName, name)
		}
		seen[regName] = true
	}
	return qc, nil
}

// Name returns the circuit name
func (qc *QuantumCircuit) Name() string { return qc.name }

// QuantumRegisters returns the quantum registers in declaration order
func (qc *QuantumCircuit) QuantumRegisters() []*QuantumRegister {
	return append([]*QuantumRegister(nil), qc.qregs...)
}

// ClassicalRegisters returns the classical registers in declaration order
func (qc *QuantumCircuit) ClassicalRegisters() []*ClassicalRegister {
	return append([]*ClassicalRegister(nil), qc.cregs...)
}

// Instructions returns a copy of the instructions added so far
func (qc *QuantumCircuit) Instructions() []Instruction {
	return append([]Instruction(nil), qc.instructions...)
}

// NumQubits is the total size of the quantum registers
func (qc *QuantumCircuit) NumQubits() int {
	n := 0
	for _, r := range qc.qregs {
		n += r.Size
	}
	return n
}

// NumClbits is the total size of the classical registers
func (qc *QuantumCircuit) NumClbits() int {
	n := 0
	for _, r := range qc.cregs {
		n += r.Size
	}
	return n
}

func (qc *QuantumCircuit) checkQubit(q Qubit) error {
	for _, r := range qc.qregs {
		if r == q.Register {
			if q.Index < 0 || q.Index >= r.Size {
				return circuitErrorf("index %d out of range for register %s[%d]", q.Index, r.Name, r.Size)
			}
			return nil
		}
	}
	if q.Register == nil {
		return circuitErrorf("qubit has no register")
	}
	return circuitErrorf("register %s is not in circuit %q", q.Register.Name, qc.name)
}

func (qc *QuantumCircuit) checkClbit(c Clbit) error {
	for _, r := range qc.cregs {
		if r == c.Register {
			if c.Index < 0 || c.Index >= r.Size {
				return circuitErrorf("index %d out of range for register %s[%d]", c.Index, r.Name, r.Size)
			}
			return nil
		}
	}
	if c.Register == nil {
		return circuitErrorf("bit has no register")
	}
	return circuitErrorf("register %s is not in circuit %q", c.Register.Name, qc.name)
}

// single applies a one qubit gate to each of qs. Nothing is added if any qubit is invalid.
func (qc *QuantumCircuit) single(name string, params []float64, qs []Qubit) error {
	if len(qs) == 0 {
		return circuitErrorf("%s needs at least one qubit", name)
	}
	for _, q := range qs {
		if err := qc.checkQubit(q); err != nil {
			return err
		}
	}
	for _, q := range qs {
		qc.instructions = append(qc.instructions, Instruction{Name: name, Params: params, Qubits: []Qubit{q}})
	}
	return nil
}

func (qc *QuantumCircuit) double(name string, control, target Qubit) error {
	if err := qc.checkQubit(control); err != nil {
		return err
	}
	if err := qc.checkQubit(target); err != nil {
		return err
	}
	if control == target {
		return circuitErrorf("%s needs two different qubits, got %s[%d] twice", name, control.Register.Name, control.Index)
	}
	qc.instructions = append(qc.instructions, Instruction{Name: name, Qubits: []Qubit{control, target}})
	return nil
}

// H applies a Hadamard gate to each qubit
func (qc *QuantumCircuit) H(qs ...Qubit) error { return qc.single("h", nil, qs) }

// X applies a Pauli X gate to each qubit
func (qc *QuantumCircuit) X(qs ...Qubit) error { return qc.single("x", nil, qs) }

// Y applies a Pauli Y gate to each qubit
func (qc *QuantumCircuit) Y(qs ...Qubit) error { return qc.single("y", nil, qs) }

// Z applies a Pauli Z gate to each qubit
func (qc *QuantumCircuit) Z(qs ...Qubit) error { return qc.single("z", nil, qs) }

// S applies a sqrt(Z) phase gate to each qubit
func (qc *QuantumCircuit) S(qs ...Qubit) error { return qc.single("s", nil, qs) }

// Sdg applies the inverse of S to each qubit
func (qc *QuantumCircuit) Sdg(qs ...Qubit) error { return qc.single("sdg", nil, qs) }

// T applies a sqrt(S) phase gate to each qubit
func (qc *QuantumCircuit) T(qs ...Qubit) error { return qc.single("t", nil, qs) }

// Tdg applies the inverse of T to each qubit
func (qc *QuantumCircuit) Tdg(qs ...Qubit) error { return qc.single("tdg", nil, qs) }

// ID applies the identity to each qubit
func (qc *QuantumCircuit) ID(qs ...Qubit) error { return qc.single("id", nil, qs) }

// U1 applies a phase rotation of lambda
func (qc *QuantumCircuit) U1(lambda float64, qs ...Qubit) error {
	return qc.single("u1", []float64{lambda}, qs)
}

// U2 applies U3(pi/2, phi, lambda)
func (qc *QuantumCircuit) U2(phi, lambda float64, qs ...Qubit) error {
	return qc.single("u2", []float64{phi, lambda}, qs)
}

// U3 applies the generic single qubit rotation
func (qc *QuantumCircuit) U3(theta, phi, lambda float64, qs ...Qubit) error {
	return qc.single("u3", []float64{theta, phi, lambda}, qs)
}

// CX applies a controlled-NOT
func (qc *QuantumCircuit) CX(control, target Qubit) error { return qc.double("cx", control, target) }

// CZ applies a controlled-Z
func (qc *QuantumCircuit) CZ(control, target Qubit) error { return qc.double("cz", control, target) }

// Reset puts each qubit back into |0>
func (qc *QuantumCircuit) Reset(qs ...Qubit) error { return qc.single("reset", nil, qs) }

// Barrier keeps the compiler from reordering across it.
// Without arguments it spans every qubit of the circuit.
func (qc *QuantumCircuit) Barrier(qs ...Qubit) error {
	if len(qs) == 0 {
		for _, r := range qc.qregs {
			qs = append(qs, r.Bits()...)
		}
		if len(qs) == 0 {
			return circuitErrorf("barrier in circuit %q without qubits", qc.name)
		}
	}
	for _, q := range qs {
		if err := qc.checkQubit(q); err != nil {
			return err
		}
	}
	qc.instructions = append(qc.instructions, Instruction{Name: "barrier", Qubits: append([]Qubit(nil), qs...)})
	return nil
}

// Measure reads qubit q into bit c
func (qc *QuantumCircuit) Measure(q Qubit, c Clbit) error {
	if err := qc.checkQubit(q); err != nil {
		return err
	}
	if err := qc.checkClbit(c); err != nil {
		return err
	}
	qc.instructions = append(qc.instructions, Instruction{Name: "measure", Qubits: []Qubit{q}, Clbits: []Clbit{c}})
	return nil
}

// MeasureRegister measures every qubit of qr into the bit of cr with the same index
func (qc *QuantumCircuit) MeasureRegister(qr *QuantumRegister, cr *ClassicalRegister) error {
	if qr == nil || cr == nil {
		return circuitErrorf("measure needs both a quantum and a classical register")
	}
	if qr.Size != cr.Size {
		return circuitErrorf("register sizes don't match, %s[%d] and %s[%d]", qr.Name, qr.Size, cr.Name, cr.Size)
	}
	if err := qc.checkQubit(qr.Bit(0)); err != nil {
		return err
	}
	if err := qc.checkClbit(cr.Bit(0)); err != nil {
		return err
	}
	for i := 0; i < qr.Size; i++ {
		qc.instructions = append(qc.instructions, Instruction{Name: "measure", Qubits: []Qubit{qr.Bit(i)}, Clbits: []Clbit{cr.Bit(i)}})
	}
	return nil
}

// QASM returns the circuit as OpenQASM 2.0
func (qc *QuantumCircuit) QASM() string {
	qregs := make([]RegisterLabel, len(qc.qregs))
	for i, r := range qc.qregs {
		qregs[i] = RegisterLabel{Name: r.Name, Size: r.Size}
	}
	cregs := make([]RegisterLabel, len(qc.cregs))
	for i, r := range qc.cregs {
		cregs[i] = RegisterLabel{Name: r.Name, Size: r.Size}
	}

	w := newQasmWriter(qregs, cregs)
	for _, inst := range qc.instructions {
		qargs := make([]BitLabel, len(inst.Qubits))
		for i, q := range inst.Qubits {
			qargs[i] = BitLabel{Register: q.Register.Name, Index: q.Index}
		}
		cargs := make([]BitLabel, len(inst.Clbits))
		for i, c := range inst.Clbits {
			cargs[i] = BitLabel{Register: c.Register.Name, Index: c.Index}
		}
		w.op(inst.Name, inst.Params, qargs, cargs)
	}
	return w.String()
}
