package qiskit

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"sort"
	"time"
)

const (
	// LocalQasmSimulatorName is the name the local simulator is registered under
	LocalQasmSimulatorName = "local_qasm_simulator"
	// LocalMaxQubits bounds the state vector of the local simulator
	LocalMaxQubits = 24
)

var localBasisGates = []string{"u1", "u2", "u3", "cx", "cz", "id", "x", "y", "z", "h", "s", "sdg", "t", "tdg"}

// LocalQasmSimulator runs compiled circuits on a state vector in process
type LocalQasmSimulator struct{}

// NewLocalQasmSimulator returns the local state vector simulator
func NewLocalQasmSimulator() *LocalQasmSimulator { return &LocalQasmSimulator{} }

func (s *LocalQasmSimulator) Name() string { return LocalQasmSimulatorName }

func (s *LocalQasmSimulator) Configuration() BackendConfiguration {
	return BackendConfiguration{
		Name:        LocalQasmSimulatorName,
		Local:       true,
		Simulator:   true,
		NQubits:     LocalMaxQubits,
		BasisGates:  append([]string(nil), localBasisGates...),
		Description: "A state vector qasm simulator running in process",
	}
}

// Status is always available with an empty queue
func (s *LocalQasmSimulator) Status(ctx context.Context) (BackendStatus, error) {
	return BackendStatus{Name: LocalQasmSimulatorName, Available: true}, nil
}

func (s *LocalQasmSimulator) Calibration(ctx context.Context) (Calibration, error) {
	return Calibration{Backend: LocalQasmSimulatorName}, nil
}

func (s *LocalQasmSimulator) Parameters(ctx context.Context) (Params, error) {
	return Params{Backend: LocalQasmSimulatorName}, nil
}

// Run simulates every circuit of the job. Without a seed in the Qobj a random one is picked and reported in the result.
func (s *LocalQasmSimulator) Run(ctx context.Context, job *QuantumJob) (*Result, error) {
	if job == nil || job.Qobj == nil {
		return nil, fmt.Errorf("%s: no qobj to run", LocalQasmSimulatorName)
	}
	qobj := job.Qobj
	if qobj.Config.BackendName != LocalQasmSimulatorName {
		return nil, fmt.Errorf("qobj %s was compiled for %s, not %s", qobj.ID, qobj.Config.BackendName, LocalQasmSimulatorName)
	}
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	seed := rand.Uint64N(MaxSeed + 1)
	if qobj.Config.Seed != nil {
		seed = *qobj.Config.Seed
	}

	result := &Result{JobID: qobj.ID, BackendName: LocalQasmSimulatorName, Status: JobCompleted}
	for _, circ := range qobj.Circuits {
		start := time.Now()
		counts, err := simulate(ctx, circ.Compiled, qobj.Config.Shots, seed)
		if err != nil {
			return nil, fmt.Errorf("simulate circuit %q: %w", circ.Name, err)
		}
		result.Experiments = append(result.Experiments, ExperimentResult{
			Name:   circ.Name,
			Shots:  qobj.Config.Shots,
			Counts: counts,
			Seed:   seed,
			Time:   time.Since(start),
		})
	}

	log.WithField("qobj", qobj.ID).Debugf("simulated %d circuits with seed %d", len(result.Experiments), seed)
	return result, nil
}

func simulate(ctx context.Context, cc CompiledCircuit, shots int, seed uint64) (map[string]int, error) {
	n := cc.Header.NumberOfQubits
	if n > LocalMaxQubits {
		return nil, RegisterSizeErr{Qubits: n, Max: LocalMaxQubits}
	}
	for _, op := range cc.Operations {
		if !simulatable(op) {
			return nil, fmt.Errorf("unsupported operation %s", op.Name)
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	counts := make(map[string]int)
	clbits := make([]bool, cc.Header.NumberOfClbits)

	if split := terminalMeasurements(cc.Operations); split >= 0 {
		// Only measurements remain after split, so one state serves every shot
		sv := newStatevector(n)
		for _, op := range cc.Operations[:split] {
			sv.apply(op, nil, nil)
		}
		sampler := newSampler(sv)
		for shot := 0; shot < shots; shot++ {
			idx := sampler.sample(rng.Float64())
			for _, op := range cc.Operations[split:] {
				if op.Name == "measure" {
					clbits[op.Clbits[0]] = idx>>op.Qubits[0]&1 == 1
				}
			}
			counts[countsKey(clbits, cc.Header.ClbitLabels)]++
		}
		return counts, nil
	}

	sv := newStatevector(n)
	for shot := 0; shot < shots; shot++ {
		if shot%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		clear(clbits)
		sv.reset()
		for _, op := range cc.Operations {
			sv.apply(op, clbits, rng)
		}
		counts[countsKey(clbits, cc.Header.ClbitLabels)]++
	}
	return counts, nil
}

func simulatable(op Operation) bool {
	switch op.Name {
	case "measure", "reset", "barrier", "cx", "cz":
		return true
	}
	_, ok := gateMatrix(op.Name, op.Params)
	return ok
}

// terminalMeasurements returns the index from which only measurements and barriers follow,
// or -1 when the circuit measures or resets mid way.
func terminalMeasurements(ops []Operation) int {
	split := len(ops)
	for i, op := range ops {
		if op.Name == "measure" {
			split = i
			break
		}
		if op.Name == "reset" {
			return -1
		}
	}
	for _, op := range ops[split:] {
		if op.Name != "measure" && op.Name != "barrier" {
			return -1
		}
	}
	return split
}

// statevector holds 2^n amplitudes, qubit k is bit k of the index
type statevector []complex128

func newStatevector(n int) statevector {
	sv := make(statevector, 1<<n)
	sv[0] = 1
	return sv
}

// reset puts every qubit back into |0>
func (sv statevector) reset() {
	clear(sv)
	sv[0] = 1
}

// apply runs op on the state. Measure and reset need clbits and rng.
func (sv statevector) apply(op Operation, clbits []bool, rng *rand.Rand) {
	switch op.Name {
	case "barrier":
	case "cx":
		sv.cx(op.Qubits[0], op.Qubits[1])
	case "cz":
		sv.cz(op.Qubits[0], op.Qubits[1])
	case "measure":
		clbits[op.Clbits[0]] = sv.measure(op.Qubits[0], rng)
	case "reset":
		if sv.measure(op.Qubits[0], rng) {
			m, _ := gateMatrix("x", nil)
			sv.apply1(op.Qubits[0], m)
		}
	default:
		m, _ := gateMatrix(op.Name, op.Params)
		sv.apply1(op.Qubits[0], m)
	}
}

func (sv statevector) apply1(k int, m [2][2]complex128) {
	bit := 1 << k
	for i := range sv {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := sv[i], sv[j]
		sv[i] = m[0][0]*a0 + m[0][1]*a1
		sv[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

func (sv statevector) cx(control, target int) {
	cbit, tbit := 1<<control, 1<<target
	for i := range sv {
		if i&cbit != 0 && i&tbit == 0 {
			j := i | tbit
			sv[i], sv[j] = sv[j], sv[i]
		}
	}
}

func (sv statevector) cz(a, b int) {
	mask := 1<<a | 1<<b
	for i := range sv {
		if i&mask == mask {
			sv[i] = -sv[i]
		}
	}
}

// measure collapses qubit k and returns whether it read 1
func (sv statevector) measure(k int, rng *rand.Rand) bool {
	bit := 1 << k
	p1 := 0.0
	for i, a := range sv {
		if i&bit != 0 {
			p1 += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	one := rng.Float64() < p1

	p := p1
	if !one {
		p = 1 - p1
	}
	norm := complex(1/math.Sqrt(p), 0)
	for i := range sv {
		if (i&bit != 0) == one {
			sv[i] *= norm
		} else {
			sv[i] = 0
		}
	}
	return one
}

type sampler struct {
	cum  []float64
	last int
}

func newSampler(sv statevector) *sampler {
	s := &sampler{cum: make([]float64, len(sv))}
	total := 0.0
	for i, a := range sv {
		p := real(a)*real(a) + imag(a)*imag(a)
		if p > 0 {
			s.last = i
		}
		total += p
		s.cum[i] = total
	}
	return s
}

// sample maps r in [0, 1) to a basis state index
func (s *sampler) sample(r float64) int {
	idx := sort.Search(len(s.cum), func(i int) bool { return s.cum[i] > r })
	if idx > s.last {
		return s.last
	}
	return idx
}

// gateMatrix returns the unitary of a single qubit gate
func gateMatrix(name string, params []float64) ([2][2]complex128, bool) {
	switch name {
	case "id":
		return [2][2]complex128{{1, 0}, {0, 1}}, true
	case "h":
		r := complex(1/math.Sqrt2, 0)
		return [2][2]complex128{{r, r}, {r, -r}}, true
	case "x":
		return [2][2]complex128{{0, 1}, {1, 0}}, true
	case "y":
		return [2][2]complex128{{0, -1i}, {1i, 0}}, true
	case "z":
		return [2][2]complex128{{1, 0}, {0, -1}}, true
	case "s":
		return phase(math.Pi / 2), true
	case "sdg":
		return phase(-math.Pi / 2), true
	case "t":
		return phase(math.Pi / 4), true
	case "tdg":
		return phase(-math.Pi / 4), true
	case "u1":
		if len(params) != 1 {
			return [2][2]complex128{}, false
		}
		return phase(params[0]), true
	case "u2":
		if len(params) != 2 {
			return [2][2]complex128{}, false
		}
		return u3(math.Pi/2, params[0], params[1]), true
	case "u3":
		if len(params) != 3 {
			return [2][2]complex128{}, false
		}
		return u3(params[0], params[1], params[2]), true
	}
	return [2][2]complex128{}, false
}

func phase(lambda float64) [2][2]complex128 {
	return [2][2]complex128{{1, 0}, {0, cmplx.Exp(complex(0, lambda))}}
}

func u3(theta, phi, lambda float64) [2][2]complex128 {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return [2][2]complex128{
		{c, -cmplx.Exp(complex(0, lambda)) * s},
		{cmplx.Exp(complex(0, phi)) * s, cmplx.Exp(complex(0, phi+lambda)) * c},
	}
}
