package qiskit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RemoteBackend is a device or simulator reached through the API
type RemoteBackend struct {
	client *Client
	info   BackendInfo
}

// NewRemoteBackend returns a backend running jobs through client on the described device
func NewRemoteBackend(client *Client, info BackendInfo) *RemoteBackend {
	return &RemoteBackend{client: client, info: info}
}

func (b *RemoteBackend) Name() string { return b.info.Name }

func (b *RemoteBackend) Configuration() BackendConfiguration { return b.info.Configuration() }

func (b *RemoteBackend) Status(ctx context.Context) (BackendStatus, error) {
	return b.client.BackendStatus(ctx, b.info.Name)
}

func (b *RemoteBackend) Calibration(ctx context.Context) (Calibration, error) {
	return b.client.BackendCalibration(ctx, b.info.Name)
}

func (b *RemoteBackend) Parameters(ctx context.Context) (Params, error) {
	return b.client.BackendParameters(ctx, b.info.Name)
}

// Run submits the compiled circuits as one API job and waits for it to finish
func (b *RemoteBackend) Run(ctx context.Context, qjob *QuantumJob) (*Result, error) {
	if qjob == nil || qjob.Qobj == nil {
		return nil, fmt.Errorf("%s: no qobj to run", b.info.Name)
	}
	qobj := qjob.Qobj
	if qobj.Config.BackendName != b.info.Name {
		return nil, fmt.Errorf("qobj %s was compiled for %s, not %s", qobj.ID, qobj.Config.BackendName, b.info.Name)
	}

	qasms := make([]string, len(qobj.Circuits))
	for i, circ := range qobj.Circuits {
		qasms[i] = circ.QASM
	}
	job := NewJob(qasms, qobj.Config.Shots, qjob.Resources.MaxCredits)
	job.Name = qobj.ID
	job.Backend = b.info.Name
	job.HPC = qobj.Config.HPC
	if qobj.Config.Seed != nil {
		job.Seed = *qobj.Config.Seed
		job.Seeded = true
	}

	if _, err := b.client.RunJob(ctx, job); err != nil {
		return nil, fmt.Errorf("submit job to %s: %w", b.info.Name, err)
	}

	start := time.Now()
	info, err := b.client.WaitForJob(ctx, job.ID(), qjob.Timeout)
	if err != nil {
		return nil, err
	}
	if info.Status != JobCompleted {
		return nil, JobErr{JobID: info.Id, Status: info.Status}
	}
	if len(info.Qasms) != len(qobj.Circuits) {
		return nil, JobErr{JobID: info.Id, Status: info.Status, Msg: fmt.Sprintf("expected %d results, got %d", len(qobj.Circuits), len(info.Qasms))}
	}

	result := &Result{JobID: info.Id, BackendName: b.info.Name, Status: info.Status}
	for i, q := range info.Qasms {
		elapsed := time.Duration(q.Result.Data.Time * float64(time.Second))
		if elapsed == 0 {
			elapsed = time.Since(start)
		}
		result.Experiments = append(result.Experiments, ExperimentResult{
			Name:   qobj.Circuits[i].Name,
			Shots:  qobj.Config.Shots,
			Counts: q.Result.Data.Counts,
			Seed:   reportedSeed(q.Result.Data.AdditionalData.Seed),
			Time:   elapsed,
		})
	}
	return result, nil
}

// reportedSeed converts the seed a device reports, 0 when it isn't a valid seed
func reportedSeed(v float64) uint64 {
	if v < 0 || v > float64(MaxSeed) || v != math.Trunc(v) {
		if v != 0 {
			log.Warnf("ignoring invalid seed %v reported by the API", v)
		}
		return 0
	}
	return uint64(v)
}
