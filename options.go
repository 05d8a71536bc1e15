package qiskit

import (
	"time"

	"github.com/sirupsen/logrus"
)

// log is the package logger. It defaults to the logrus standard logger.
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the logger used by the package. It is not safe to call concurrently with other package functions.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	log = l
}

const (
	// DefaultClientAppl is the default client application name used by the custom HTTP header for the IBM QX API
	DefaultClientAppl = "qiskit-sdk-go"
	// DefaultMSO is the default HPC multi shot optimization value
	DefaultMSO = true
	// DefaultOMP is the default HPC omp number of threads value
	DefaultOMP = 16
	// DefaultPollInterval is how often a remote job is checked while waiting on it
	DefaultPollInterval = 5 * time.Second
)

type clientOptions struct {
	clientAppl   string
	pollInterval time.Duration

	// IBM Q Info
	hub     string
	group   string
	project string
}

// ClientOption configures how the client is set up
type ClientOption func(*clientOptions)

// WithClientApplication specifies which client is using the QX Platform
func WithClientApplication(appl string) ClientOption {
	return func(options *clientOptions) {
		options.clientAppl = DefaultClientAppl + ":" + appl
	}
}

// WithIbmQInfo configures the client to use the IBM Q features
func WithIbmQInfo(hub, group, project string) ClientOption {
	return func(options *clientOptions) {
		options.hub = hub
		options.group = group
		options.project = project
	}
}

// WithPollInterval configures how often the client checks on a running job
func WithPollInterval(d time.Duration) ClientOption {
	return func(options *clientOptions) {
		options.pollInterval = d
	}
}

const (
	// DefaultShots is the number of shots a compiled circuit runs for unless specified otherwise
	DefaultShots = 1024
	// MaxShots is the maximum shots a circuit can be ran for
	MaxShots = 8192
	// DefaultMaxCredits is the credit limit of a job unless specified otherwise
	DefaultMaxCredits = 3
	// MaxSeed is the maximum seed value
	MaxSeed uint64 = 9999999999
	// MaxOMP is the largest omp_num_threads the HPC simulator accepts
	MaxOMP = 16
)

// HPC holds the settings understood by the HPC simulator
type HPC struct {
	MultiShotOptimization bool `json:"multi_shot_optimization"`
	OMPNumThreads         int  `json:"omp_num_threads"`
}

type compileOptions struct {
	shots      int
	maxCredits int
	seed       uint64
	seeded     bool
	qobjID     string
	hpc        *HPC
}

// CompileOption configures how circuits are compiled into a Qobj
type CompileOption func(*compileOptions)

// WithShots sets the number of shots each circuit is ran for
func WithShots(shots int) CompileOption {
	return func(options *compileOptions) {
		options.shots = shots
	}
}

// WithMaxCredits sets the maximum credits the job may spend
func WithMaxCredits(credits int) CompileOption {
	return func(options *compileOptions) {
		options.maxCredits = credits
	}
}

// WithSeed seeds simulators before the circuits are ran
// Note: the seed value must be less than 11 digits long
func WithSeed(seed uint64) CompileOption {
	return func(options *compileOptions) {
		options.seed = seed
		options.seeded = true
	}
}

// WithQobjID sets the id of the compiled Qobj
func WithQobjID(id string) CompileOption {
	return func(options *compileOptions) {
		options.qobjID = id
	}
}

// WithHPC configures the job to run on the HPC simulator with the provided configuration values
// mso = multi_shot_optimization
// omp = omp_num_threads (must be between 1 and 16)
func WithHPC(mso bool, omp int) CompileOption {
	return func(options *compileOptions) {
		options.hpc = &HPC{MultiShotOptimization: mso, OMPNumThreads: omp}
	}
}
