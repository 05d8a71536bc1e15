package qiskit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Backend is an execution target, either a local simulator or a remote device
type Backend interface {
	// Name is the name the backend is registered under
	Name() string
	Configuration() BackendConfiguration
	Status(ctx context.Context) (BackendStatus, error)
	Calibration(ctx context.Context) (Calibration, error)
	Parameters(ctx context.Context) (Params, error)
	// Run executes a compiled job and blocks until its result is available
	Run(ctx context.Context, job *QuantumJob) (*Result, error)
}

// BackendConfiguration describes what a backend can run
type BackendConfiguration struct {
	Name        string      `json:"name"`
	Local       bool        `json:"local"`
	Simulator   bool        `json:"simulator"`
	NQubits     int         `json:"n_qubits"`
	CouplingMap CouplingMap `json:"coupling_map,omitempty"`
	BasisGates  []string    `json:"basis_gates,omitempty"`
	Description string      `json:"description,omitempty"`
	ChipName    string      `json:"chip_name,omitempty"`
	Version     string      `json:"version,omitempty"`
	OnlineDate  string      `json:"online_date,omitempty"`
}

// HasGate reports whether the backend runs the gate natively.
// An empty basis means every gate is native.
func (cfg BackendConfiguration) HasGate(name string) bool {
	if len(cfg.BasisGates) == 0 {
		return true
	}
	for _, g := range cfg.BasisGates {
		if g == name {
			return true
		}
	}
	return false
}

// BackendStatus is the queue state of a backend
type BackendStatus struct {
	Name        string `json:"name"`
	Available   bool   `json:"available"`
	Busy        bool   `json:"busy"`
	PendingJobs int    `json:"pending_jobs"`
}

// CouplingMap lists the (control, target) pairs a device can run a cx on.
// An empty map means all-to-all.
type CouplingMap [][2]int

// Allows reports whether a cx from control to target can run as is
func (m CouplingMap) Allows(control, target int) bool {
	if len(m) == 0 {
		return true
	}
	for _, p := range m {
		if p[0] == control && p[1] == target {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts either "all-to-all" or a list of pairs
func (m *CouplingMap) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "all-to-all" {
			return fmt.Errorf("unknown coupling map %q", s)
		}
		*m = nil
		return nil
	}

	var pairs [][]int
	if err := json.Unmarshal(b, &pairs); err != nil {
		return err
	}
	out := make(CouplingMap, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("coupling map entry %v is not a pair", p)
		}
		out = append(out, [2]int{p[0], p[1]})
	}
	*m = out
	return nil
}

// looseString decodes from either a JSON string or number
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	*s = looseString(strings.Trim(string(b), `"`))
	return nil
}

// backendAliases maps the recognized old backend names to the current ones
var backendAliases = map[string]string{
	"ibmqx5qv2":            "ibmqx5",
	"qx5qv2":               "ibmqx5",
	"qx5q":                 "ibmqx5",
	"real":                 "ibmqx2",
	"simulator":            "ibmqx_qasm_simulator",
	"sim_trivial_2":        "ibmqx_qasm_simulator",
	"ibmqx_qasm_simulator": "ibmqx_qasm_simulator",
}

// BackendInfo is a backend as described by the API
type BackendInfo struct {
	SerialNum   string      `json:"serialNumber,omitempty"`
	Id          string      `json:"id,omitempty"`
	TopologyId  string      `json:"topologyId,omitempty"`
	CouplingMap CouplingMap `json:"couplingMap,omitempty"`
	Name        string      `json:"name,omitempty"`
	Status      string      `json:"status,omitempty"`
	Description string      `json:"description,omitempty"`
	Simulator   bool        `json:"simulator,omitempty"`
	Nqubits     int         `json:"nQubits,omitempty"`
	Version     looseString `json:"version,omitempty"`
	OnlineDate  string      `json:"onlineDate,omitempty"`
	Url         string      `json:"url,omitempty"`
	ChipName    string      `json:"chipName,omitempty"`
	BasisGates  string      `json:"basisGates,omitempty"`
}

// Configuration converts the API description into a BackendConfiguration
func (b BackendInfo) Configuration() BackendConfiguration {
	var gates []string
	for _, g := range strings.Split(b.BasisGates, ",") {
		if g = strings.TrimSpace(g); g != "" {
			gates = append(gates, g)
		}
	}
	return BackendConfiguration{
		Name:        b.Name,
		Simulator:   b.Simulator,
		NQubits:     b.Nqubits,
		CouplingMap: b.CouplingMap,
		BasisGates:  gates,
		Description: b.Description,
		ChipName:    b.ChipName,
		Version:     string(b.Version),
		OnlineDate:  b.OnlineDate,
	}
}

// AvailableBackends returns all the online backends of the API.
// With IBM Q info set on the client the backends of that project are listed instead.
func (c *Client) AvailableBackends(ctx context.Context) ([]BackendInfo, error) {
	path := "Backends"
	if c.hasIbmQInfo() {
		path = fmt.Sprintf("Network/%s/Groups/%s/Projects/%s/devices", c.opts.hub, c.opts.group, c.opts.project)
	}

	var all []BackendInfo
	if err := c.conn.do(ctx, c.request(http.MethodGet, path), &all); err != nil {
		return nil, err
	}

	online := make([]BackendInfo, 0, len(all))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range all {
		if b.Status != "on" {
			log.WithField("backend", b.Name).Debugf("skipping backend with status %q", b.Status)
			continue
		}
		c.backends[b.Name] = b
		online = append(online, b)
	}
	return online, nil
}

// checkBackend resolves aliases and makes sure the backend is known
func (c *Client) checkBackend(ctx context.Context, backendName string) (BackendInfo, error) {
	name := strings.ToLower(backendName)
	if alias, exists := backendAliases[name]; exists {
		name = alias
	}

	c.mu.Lock()
	empty := len(c.backends) == 0
	c.mu.Unlock()
	if empty {
		if _, err := c.AvailableBackends(ctx); err != nil {
			return BackendInfo{}, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, exists := c.backends[name]; exists {
		return b, nil
	}
	if b, exists := c.backends[backendName]; exists {
		return b, nil
	}
	return BackendInfo{}, BadBackendErr{Backend: backendName}
}

type statusResp struct {
	Backend     string `json:"backend,omitempty"`
	State       bool   `json:"state,omitempty"`
	Busy        bool   `json:"busy,omitempty"`
	LengthQueue int    `json:"lengthQueue,omitempty"`
}

// BackendStatus retrieves the queue status of a backend
func (c *Client) BackendStatus(ctx context.Context, backend string) (BackendStatus, error) {
	b, err := c.checkBackend(ctx, backend)
	if err != nil {
		return BackendStatus{}, err
	}

	req := c.request(http.MethodGet, fmt.Sprintf("Backends/%s/queue/status", b.Name))
	var r statusResp
	if err := c.conn.do(ctx, req, &r); err != nil {
		return BackendStatus{}, err
	}

	return BackendStatus{
		Name:        b.Name,
		Available:   r.State,
		Busy:        r.Busy,
		PendingJobs: r.LengthQueue,
	}, nil
}

func (c *Client) getBackendStatsUrl(backendName string) string {
	if c.opts.hub != "" {
		return fmt.Sprintf("Network/%s/devices/%s", c.opts.hub, backendName)
	}
	return fmt.Sprintf("Backends/%s", backendName)
}

// CalibrationValue is a calibrated quantity and when it was measured
type CalibrationValue struct {
	Date  string  `json:"date,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// Measurement is a device parameter with its unit
type Measurement struct {
	Date  string  `json:"date,omitempty"`
	Value float64 `json:"value,omitempty"`
	Unit  string  `json:"unit,omitempty"`
}

// Calibration holds the gate and readout errors of a device
type Calibration struct {
	Backend         string `json:"backend,omitempty"`
	LastUpdateDate  string `json:"lastUpdateDate,omitempty"`
	MultiQubitGates []struct {
		Name    string           `json:"name,omitempty"`
		Type    string           `json:"type,omitempty"`
		Qubits  []int            `json:"qubits,omitempty"`
		GateErr CalibrationValue `json:"gateError,omitempty"`
	} `json:"multiQubitGates,omitempty"`
	Qubits []struct {
		Name       string           `json:"name,omitempty"`
		ReadOutErr CalibrationValue `json:"readoutError,omitempty"`
		GateErr    CalibrationValue `json:"gateError,omitempty"`
	} `json:"qubits,omitempty"`
}

// BackendCalibration retrieves the calibration of a chip.
// Simulators have no calibration and get an empty one without a request.
func (c *Client) BackendCalibration(ctx context.Context, backend string) (Calibration, error) {
	b, err := c.checkBackend(ctx, backend)
	if err != nil {
		return Calibration{}, err
	}
	if b.Simulator {
		return Calibration{Backend: b.Name}, nil
	}

	var h Calibration
	if err := c.conn.do(ctx, c.request(http.MethodGet, c.getBackendStatsUrl(b.Name)+"/calibration"), &h); err != nil {
		return Calibration{}, err
	}
	h.Backend = b.Name
	return h, nil
}

// Params represents the calibration parameters for a backend
type Params struct {
	Backend string `json:"backend,omitempty"`

	FridgeParams struct {
		CooldownDate string      `json:"cooldownDate,omitempty"`
		Temp         Measurement `json:"Temperature,omitempty"`
	} `json:"fridgeParameters,omitempty"`

	Qubits []struct {
		Name     string      `json:"name,omitempty"`
		GateTime Measurement `json:"gateTime,omitempty"`
		Freq     Measurement `json:"frequency,omitempty"`
		T1       Measurement `json:"T1,omitempty"`
		T2       Measurement `json:"T2,omitempty"`
		Buffer   Measurement `json:"buffer,omitempty"`
	} `json:"qubits,omitempty"`
}

// BackendParameters retrieves the calibration parameters of a real chip.
// Simulators get empty parameters without a request.
func (c *Client) BackendParameters(ctx context.Context, backend string) (Params, error) {
	b, err := c.checkBackend(ctx, backend)
	if err != nil {
		return Params{}, err
	}
	if b.Simulator {
		return Params{Backend: b.Name}, nil
	}

	var h Params
	if err := c.conn.do(ctx, c.request(http.MethodGet, c.getBackendStatsUrl(b.Name)+"/parameters"), &h); err != nil {
		return Params{}, err
	}
	h.Backend = b.Name
	return h, nil
}
