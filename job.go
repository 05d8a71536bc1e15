package qiskit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// MaxTimeout is the default limit for waiting on a job result
	MaxTimeout = 300 * time.Second
	// DefaultJobsLimit is how many jobs GetJobs returns unless told otherwise
	DefaultJobsLimit = 50
)

// Job statuses reported by the API
const (
	JobRunning   = "RUNNING"
	JobCompleted = "COMPLETED"
	JobCancelled = "CANCELLED"
)

// Resources is what a job is allowed to spend
type Resources struct {
	MaxCredits int
}

// QuantumJob is a compiled Qobj ready to be handed to a backend
type QuantumJob struct {
	Qobj      *Qobj
	Resources Resources
	// Timeout bounds how long a backend waits on the result
	Timeout time.Duration
}

// NewQuantumJob wraps a compiled Qobj, taking its credit limit from the Qobj config.
// A nil qobj gives a job that backends refuse to run.
func NewQuantumJob(qobj *Qobj) *QuantumJob {
	if qobj == nil {
		return &QuantumJob{Timeout: MaxTimeout}
	}
	return &QuantumJob{
		Qobj:      qobj,
		Resources: Resources{MaxCredits: qobj.Config.MaxCredits},
		Timeout:   MaxTimeout,
	}
}

// Job represents one or more QASM 2.0 circuits to be submitted to the API
type Job struct {
	mu sync.Mutex

	// Id is the Jobs Id, set once the job is submitted
	Id string
	// Name is the name for this Job
	Name string
	// Backend is the device the job runs on
	Backend string
	// Shots is the number of shots ran
	Shots int
	// MaxCredits specifies the max credits to be used by this Job when executing
	MaxCredits int
	// Seed is only sent when Seeded is set
	Seed   uint64
	Seeded bool
	HPC    *HPC
	// Qasm is all the qasm code to be executed by this Job
	Qasm []string
}

// NewJob returns a Job which is a composition of circuits and specifications of how they should be executed
func NewJob(qasms []string, shots, maxCredits int) *Job {
	if shots > MaxShots {
		log.Warnf("shots were more than the maximum, %d, so they were set to be the maximum shots, %d", shots, MaxShots)
		shots = MaxShots
	}

	return &Job{Shots: shots, MaxCredits: maxCredits, Qasm: qasms}
}

// ID returns the id given to the job by the API
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Id
}

// setId is a concurrent safe setter for the Jobs' Id
func (j *Job) setId(jobId string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Id = jobId
}

type jobQasmReq struct {
	Qasm string `json:"qasm"`
}

type jobExecReq struct {
	Name       string       `json:"name,omitempty"`
	Qasms      []jobQasmReq `json:"qasms"`
	Shots      int          `json:"shots"`
	MaxCredits int          `json:"maxCredits"`
	Backend    struct {
		Name string `json:"name"`
	} `json:"backend"`
	Seed string `json:"seed,omitempty"`
	Hpc  *HPC   `json:"hpc,omitempty"`
}

// JobQasm is the state of one circuit of a job
type JobQasm struct {
	Qasm        string `json:"qasm,omitempty"`
	Status      string `json:"status,omitempty"`
	ExecutionId string `json:"executionId,omitempty"`
	Result      struct {
		Date string `json:"date,omitempty"`
		Data struct {
			Counts         map[string]int `json:"counts,omitempty"`
			Time           float64        `json:"time,omitempty"`
			AdditionalData struct {
				Seed float64 `json:"seed,omitempty"`
			} `json:"additionalData,omitempty"`
		} `json:"data,omitempty"`
	} `json:"result,omitempty"`
}

// JobInfo is a job as described by the API
type JobInfo struct {
	Id           string    `json:"id,omitempty"`
	Name         string    `json:"name,omitempty"`
	Status       string    `json:"status,omitempty"`
	Shots        int       `json:"shots,omitempty"`
	MaxCredits   int       `json:"maxCredits,omitempty"`
	UsedCredits  int       `json:"usedCredits,omitempty"`
	CreationDate string    `json:"creationDate,omitempty"`
	Qasms        []JobQasm `json:"qasms,omitempty"`
	Backend      struct {
		Name string `json:"name,omitempty"`
	} `json:"backend,omitempty"`
	InfoQueue struct {
		Status   string `json:"status,omitempty"`
		Position int    `json:"position,omitempty"`
	} `json:"infoQueue,omitempty"`
}

// Done reports whether the job reached a final status
func (j JobInfo) Done() bool {
	return j.Status == JobCompleted || j.Status == JobCancelled || strings.HasPrefix(j.Status, "ERROR")
}

func (c *Client) jobsPath() string {
	if c.hasIbmQInfo() {
		return fmt.Sprintf("Network/%s/Groups/%s/Projects/%s/jobs", c.opts.hub, c.opts.group, c.opts.project)
	}
	return "Jobs"
}

// RunJob submits the given job to its backend and returns as soon as the API accepted it
func (c *Client) RunJob(ctx context.Context, j *Job) (*JobInfo, error) {
	if j.Seeded && j.Seed > MaxSeed {
		return nil, ApiErr{usrMsg: fmt.Sprintf("invalid seed (%d), seeds can have a maximum length of 10 digits", j.Seed)}
	}
	if len(j.Qasm) == 0 {
		return nil, ApiErr{usrMsg: "a job needs at least one qasm"}
	}

	b, err := c.checkBackend(ctx, j.Backend)
	if err != nil {
		return nil, err
	}

	body := jobExecReq{
		Name:       j.Name,
		Shots:      j.Shots,
		MaxCredits: j.MaxCredits,
	}
	body.Backend.Name = b.Name
	for _, q := range j.Qasm {
		body.Qasms = append(body.Qasms, jobQasmReq{Qasm: q})
	}
	if j.Seeded {
		body.Seed = strconv.FormatUint(j.Seed, 10)
	}
	if j.HPC != nil && b.Simulator {
		body.Hpc = j.HPC
	}

	req := c.request(http.MethodPost, c.jobsPath())
	req.body = body

	var info JobInfo
	if err := c.conn.do(ctx, req, &info); err != nil {
		return nil, err
	}
	if info.Id == "" {
		return nil, ApiErr{usrMsg: "job submission returned no id"}
	}
	j.setId(info.Id)

	log.WithField("job", info.Id).WithField("backend", b.Name).Info("job submitted")
	return &info, nil
}

// GetJob retrieves a job by its id
func (c *Client) GetJob(ctx context.Context, jobId string) (*JobInfo, error) {
	var info JobInfo
	if err := c.conn.do(ctx, c.request(http.MethodGet, c.jobsPath()+"/"+jobId), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetJobs retrieves the latest jobs of the user, newest first.
// A limit of zero or less means DefaultJobsLimit.
func (c *Client) GetJobs(ctx context.Context, limit int) ([]JobInfo, error) {
	if limit <= 0 {
		limit = DefaultJobsLimit
	}
	filter, err := json.Marshal(map[string]interface{}{
		"limit": limit,
		"order": "creationDate DESC",
	})
	if err != nil {
		return nil, err
	}

	req := c.request(http.MethodGet, c.jobsPath())
	req.params.Set("filter", string(filter))

	var jobs []JobInfo
	if err := c.conn.do(ctx, req, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// CancelJob asks the API to cancel a job
func (c *Client) CancelJob(ctx context.Context, jobId string) (*JobInfo, error) {
	var info JobInfo
	if err := c.conn.do(ctx, c.request(http.MethodPatch, c.jobsPath()+"/"+jobId+"/cancel"), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// WaitForJob polls a job until it is done or the timeout passes.
// A timeout of zero or less means MaxTimeout.
func (c *Client) WaitForJob(ctx context.Context, jobId string, timeout time.Duration) (*JobInfo, error) {
	if timeout <= 0 {
		timeout = MaxTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		info, err := c.GetJob(ctx, jobId)
		if err != nil {
			return nil, err
		}
		if info.Done() {
			return info, nil
		}

		log.WithField("job", jobId).Debugf("job is %s, queue position %d", info.Status, info.InfoQueue.Position)
		if time.Now().Add(c.opts.pollInterval).After(deadline) {
			return nil, JobTimeoutErr{JobID: jobId, Timeout: timeout}
		}
		if err := sleep(ctx, c.opts.pollInterval); err != nil {
			return nil, err
		}
	}
}
