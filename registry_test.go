package qiskit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zaba505/qiskit-go/internal/testutil/fakeqx"
)

type stubBackend struct {
	LocalQasmSimulator
	name   string
	status BackendStatus
	err    error
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Configuration() BackendConfiguration {
	return BackendConfiguration{Name: b.name, NQubits: 5}
}

func (b *stubBackend) Status(ctx context.Context) (BackendStatus, error) {
	return b.status, b.err
}

func TestLowestPendingJobs(t *testing.T) {
	testCases := []struct {
		name     string
		statuses []BackendStatus
		want     string
		wantErr  error
	}{
		{
			name: "fewest pending",
			statuses: []BackendStatus{
				{Name: "a", Available: true, PendingJobs: 5},
				{Name: "b", Available: true, PendingJobs: 2},
				{Name: "c", Available: true, PendingJobs: 9},
			},
			want: "b",
		},
		{
			name: "first of a tie",
			statuses: []BackendStatus{
				{Name: "a", Available: true, PendingJobs: 4},
				{Name: "b", Available: true, PendingJobs: 1},
				{Name: "c", Available: true, PendingJobs: 1},
			},
			want: "b",
		},
		{
			name: "unavailable is skipped",
			statuses: []BackendStatus{
				{Name: "a", Available: false, PendingJobs: 0},
				{Name: "b", Available: true, PendingJobs: 12},
			},
			want: "b",
		},
		{
			name:     "none available",
			statuses: []BackendStatus{{Name: "a", PendingJobs: 0}},
			wantErr:  ErrNoAvailableBackend,
		},
		{
			name:    "empty",
			wantErr: ErrNoAvailableBackend,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LowestPendingJobs(tc.statuses)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		&stubBackend{name: "busy", status: BackendStatus{Available: true, PendingJobs: 10}},
		&stubBackend{name: "idle", status: BackendStatus{Available: true, PendingJobs: 1}},
	)

	assert.Equal(t, []string{LocalQasmSimulatorName, "busy", "idle"}, r.AvailableBackends())
	assert.Equal(t, []string{LocalQasmSimulatorName}, r.AvailableBackends(IsLocal(true)))
	assert.Equal(t, []string{"busy", "idle"}, r.AvailableBackends(IsLocal(false), IsSimulator(false)))

	b, err := r.GetBackend("idle")
	require.NoError(t, err)
	assert.Equal(t, "idle", b.Name())

	_, err = r.GetBackend("nope")
	var badErr BadBackendErr
	require.ErrorAs(t, err, &badErr)
	assert.Equal(t, "nope", badErr.Backend)

	t.Run("least busy", func(t *testing.T) {
		name, err := r.LeastBusy(context.Background(), IsLocal(false))
		require.NoError(t, err)
		assert.Equal(t, "idle", name)
	})

	t.Run("status failures count as unavailable", func(t *testing.T) {
		r := NewRegistry(
			&stubBackend{name: "broken", err: errors.New("boom")},
			&stubBackend{name: "slow", status: BackendStatus{Available: true, PendingJobs: 20}},
		)
		name, err := r.LeastBusy(context.Background(), IsLocal(false))
		require.NoError(t, err)
		assert.Equal(t, "slow", name)
	})

	t.Run("nothing matches", func(t *testing.T) {
		r := NewRegistry(&stubBackend{name: "down", status: BackendStatus{Available: false}})
		_, err := r.LeastBusy(context.Background(), IsLocal(false))
		assert.ErrorIs(t, err, ErrNoAvailableBackend)
	})

	t.Run("replace keeps order", func(t *testing.T) {
		r.Add(&stubBackend{name: "busy", status: BackendStatus{Available: true}})
		assert.Equal(t, []string{LocalQasmSimulatorName, "busy", "idle"}, r.AvailableBackends())

		name, err := r.LeastBusy(context.Background(), IsLocal(false))
		require.NoError(t, err)
		assert.Equal(t, "busy", name)
	})
}

func TestRegistry_Register(t *testing.T) {
	srv, client := newTestClient(t)

	r := NewRegistry()
	require.NoError(t, r.Register(context.Background(), client))
	assert.Equal(t,
		[]string{LocalQasmSimulatorName, "ibmqx4", "ibmqx2", "ibmqx_qasm_simulator"},
		r.AvailableBackends())
	assert.Equal(t, []string{"ibmqx4", "ibmqx2"}, r.AvailableBackends(IsLocal(false), IsSimulator(false)))

	name, err := r.LeastBusy(context.Background(), IsLocal(false), IsSimulator(false))
	require.NoError(t, err)
	assert.Equal(t, "ibmqx2", name)

	t.Run("device goes away", func(t *testing.T) {
		srv.SetDevice(fakeqx.Device{Name: "ibmqx2", Qubits: 5, Online: true, Available: false, BasisGates: "u1,u2,u3,cx,id"})
		name, err := r.LeastBusy(context.Background(), IsLocal(false), IsSimulator(false))
		require.NoError(t, err)
		assert.Equal(t, "ibmqx4", name)
	})
}
