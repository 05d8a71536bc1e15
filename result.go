package qiskit

import (
	"fmt"
	"strings"
	"time"
)

// ExperimentResult is the outcome of one circuit
type ExperimentResult struct {
	Name   string
	Shots  int
	Counts map[string]int
	Seed   uint64
	Time   time.Duration
}

// Result is the outcome of a job
type Result struct {
	JobID       string
	BackendName string
	Status      string
	Experiments []ExperimentResult
}

// GetCounts returns the histogram of the circuit with the given name
func (r *Result) GetCounts(name string) (map[string]int, error) {
	for _, exp := range r.Experiments {
		if exp.Name == name {
			return exp.Counts, nil
		}
	}
	return nil, fmt.Errorf("no result for circuit %q in job %s", name, r.JobID)
}

func (r *Result) String() string {
	return fmt.Sprintf("%s - %d circuit(s) on %s (job %s)", r.Status, len(r.Experiments), r.BackendName, r.JobID)
}

// countsKey renders measured bits the way counts are keyed: registers in reverse declaration order
// separated by a space, each register with its highest bit first.
func countsKey(clbits []bool, regs []RegisterLabel) string {
	parts := make([]string, len(regs))
	offset := 0
	for i, r := range regs {
		var b strings.Builder
		for j := r.Size - 1; j >= 0; j-- {
			if clbits[offset+j] {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		parts[len(regs)-1-i] = b.String()
		offset += r.Size
	}
	return strings.Join(parts, " ")
}
