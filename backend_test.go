package qiskit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_AvailableBackends(t *testing.T) {
	_, client := newTestClient(t)

	backends, err := client.AvailableBackends(context.Background())
	require.NoError(t, err)

	var names []string
	for _, b := range backends {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"ibmqx4", "ibmqx2", "ibmqx_qasm_simulator"}, names)

	t.Run("configuration", func(t *testing.T) {
		cfg := backends[0].Configuration()
		assert.Equal(t, "ibmqx4", cfg.Name)
		assert.False(t, cfg.Local)
		assert.False(t, cfg.Simulator)
		assert.Equal(t, 5, cfg.NQubits)
		assert.Equal(t, []string{"u1", "u2", "u3", "cx", "id"}, cfg.BasisGates)
		assert.Equal(t, "1", cfg.Version)
		assert.True(t, cfg.CouplingMap.Allows(1, 0))
		assert.False(t, cfg.CouplingMap.Allows(0, 1))
	})

	t.Run("backend_sims", func(t *testing.T) {
		cfg := backends[2].Configuration()
		assert.True(t, cfg.Simulator)
		assert.Nil(t, cfg.CouplingMap)
		assert.True(t, cfg.CouplingMap.Allows(7, 3))
	})
}

func TestClient_BackendStatus(t *testing.T) {
	_, client := newTestClient(t)

	status, err := client.BackendStatus(context.Background(), "ibmqx4")
	require.NoError(t, err)
	assert.Equal(t, BackendStatus{Name: "ibmqx4", Available: true, PendingJobs: 7}, status)

	t.Run("aliases", func(t *testing.T) {
		status, err := client.BackendStatus(context.Background(), "simulator")
		require.NoError(t, err)
		assert.Equal(t, "ibmqx_qasm_simulator", status.Name)

		status, err = client.BackendStatus(context.Background(), "real")
		require.NoError(t, err)
		assert.Equal(t, "ibmqx2", status.Name)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := client.BackendStatus(context.Background(), "ibmqx3")
		var badErr BadBackendErr
		require.ErrorAs(t, err, &badErr)
		assert.Equal(t, "ibmqx3", badErr.Backend)
	})
}

func TestClient_BackendCalibration(t *testing.T) {
	srv, client := newTestClient(t)

	calibration, err := client.BackendCalibration(context.Background(), "ibmqx4")
	require.NoError(t, err)
	assert.Equal(t, "ibmqx4", calibration.Backend)
	assert.Len(t, calibration.Qubits, 5)
	require.Len(t, calibration.MultiQubitGates, 6)
	assert.Equal(t, []int{1, 0}, calibration.MultiQubitGates[0].Qubits)

	t.Run("simulators have none", func(t *testing.T) {
		before := len(srv.Requests())
		calibration, err := client.BackendCalibration(context.Background(), "ibmqx_qasm_simulator")
		require.NoError(t, err)
		assert.Equal(t, Calibration{Backend: "ibmqx_qasm_simulator"}, calibration)
		assert.Len(t, srv.Requests(), before)
	})
}

func TestClient_BackendParameters(t *testing.T) {
	_, client := newTestClient(t)

	params, err := client.BackendParameters(context.Background(), "ibmqx2")
	require.NoError(t, err)
	assert.Equal(t, "ibmqx2", params.Backend)
	require.Len(t, params.Qubits, 5)
	assert.Equal(t, 50.2, params.Qubits[0].T1.Value)
	assert.Equal(t, "K", params.FridgeParams.Temp.Unit)
}

func TestCouplingMap_UnmarshalJSON(t *testing.T) {
	var m CouplingMap
	require.NoError(t, json.Unmarshal([]byte(`[[0,1],[1,2]]`), &m))
	assert.Equal(t, CouplingMap{{0, 1}, {1, 2}}, m)

	require.NoError(t, json.Unmarshal([]byte(`"all-to-all"`), &m))
	assert.Nil(t, m)

	assert.Error(t, json.Unmarshal([]byte(`"ring"`), &m))
	assert.Error(t, json.Unmarshal([]byte(`[[0,1,2]]`), &m))
}

func TestBackendConfiguration_HasGate(t *testing.T) {
	assert.True(t, BackendConfiguration{}.HasGate("anything"))

	cfg := BackendConfiguration{BasisGates: []string{"u1", "cx"}}
	assert.True(t, cfg.HasGate("cx"))
	assert.False(t, cfg.HasGate("h"))
}
