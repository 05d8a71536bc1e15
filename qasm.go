package qiskit

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RegisterLabel names a register and its size, it encodes as ["name", size]
type RegisterLabel struct {
	Name string
	Size int
}

// MarshalJSON implements json.Marshaler
func (l RegisterLabel) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{l.Name, l.Size})
}

// BitLabel names one bit of a register, it encodes as ["name", index]
type BitLabel struct {
	Register string
	Index    int
}

// MarshalJSON implements json.Marshaler
func (l BitLabel) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{l.Register, l.Index})
}

func (l BitLabel) String() string { return fmt.Sprintf("%s[%d]", l.Register, l.Index) }

type qasmWriter struct {
	b strings.Builder
}

func newQasmWriter(qregs, cregs []RegisterLabel) *qasmWriter {
	w := &qasmWriter{}
	w.b.WriteString("OPENQASM 2.0;\ninclude \"qelib1.inc\";\n")
	for _, r := range qregs {
		fmt.Fprintf(&w.b, "qreg %s[%d];\n", r.Name, r.Size)
	}
	for _, r := range cregs {
		fmt.Fprintf(&w.b, "creg %s[%d];\n", r.Name, r.Size)
	}
	return w
}

func (w *qasmWriter) op(name string, params []float64, qargs, cargs []BitLabel) {
	if name == "measure" {
		fmt.Fprintf(&w.b, "measure %s -> %s;\n", qargs[0], cargs[0])
		return
	}

	w.b.WriteString(name)
	if len(params) > 0 {
		ps := make([]string, len(params))
		for i, p := range params {
			ps[i] = formatParam(p)
		}
		w.b.WriteString("(" + strings.Join(ps, ",") + ")")
	}
	args := make([]string, len(qargs))
	for i, q := range qargs {
		args[i] = q.String()
	}
	w.b.WriteString(" " + strings.Join(args, ",") + ";\n")
}

func (w *qasmWriter) String() string { return w.b.String() }

// maxPiMultiple bounds the numerator printed as n*pi
const maxPiMultiple = 64

// formatParam writes simple multiples of pi symbolically
func formatParam(p float64) string {
	if p == 0 {
		return "0"
	}
	for _, den := range []int{1, 2, 4, 8} {
		num := p * float64(den) / math.Pi
		rounded := math.Round(num)
		if rounded == 0 || math.Abs(rounded) > maxPiMultiple || math.Abs(num-rounded) > 1e-12 {
			continue
		}
		n := int(rounded)
		var s string
		switch n {
		case 1:
			s = "pi"
		case -1:
			s = "-pi"
		default:
			s = strconv.Itoa(n) + "*pi"
		}
		if den != 1 {
			s += "/" + strconv.Itoa(den)
		}
		return s
	}
	// qasm reals need a decimal point and take no exponent without one
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
