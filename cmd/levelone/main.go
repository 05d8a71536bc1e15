// Command levelone builds a Bell pair and a superposition circuit, runs them on
// the local simulator and then on the least busy remote device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	qiskit "github.com/Zaba505/qiskit-go"
)

const noRemoteWarning = `WARNING: There's no connection with the API for remote backends.
         Have you initialized a qconfig.toml file with your personal token?
         For now, there's only access to local simulator backends...`

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

type options struct {
	config     string
	shots      int
	maxCredits int
	seed       int64
	timeout    time.Duration
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "levelone: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseFlags(out io.Writer, args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("levelone", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.config, "config", "qconfig.toml", "credentials file (.toml, .yaml or .yml)")
	fs.IntVar(&o.shots, "shots", qiskit.DefaultShots, "shots per circuit on the remote device")
	fs.IntVar(&o.maxCredits, "max-credits", 10, "credit limit of the remote job")
	fs.Int64Var(&o.seed, "seed", -1, "simulator seed, negative for a random one")
	fs.DurationVar(&o.timeout, "timeout", qiskit.MaxTimeout, "how long to wait on the remote job")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

func newLogger(out io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func run(ctx context.Context, out io.Writer, args []string) error {
	o, err := parseFlags(out, args)
	if err != nil {
		return err
	}
	logger := newLogger(out, o.verbose)
	qiskit.SetLogger(logger)
	defer qiskit.SetLogger(nil)

	registry := qiskit.NewRegistry()
	client, err := register(ctx, registry, o.config)
	if err != nil {
		fmt.Fprintln(out, noRemoteWarning)
		logger.WithError(err).Debug("remote registration failed")
	}

	circuits, err := buildCircuits()
	if err != nil {
		var circuitErr qiskit.CircuitErr
		if errors.As(err, &circuitErr) {
			fmt.Fprintf(out, "There was an error in the circuit!. Error = %v\n", err)
		}
		return err
	}

	if err := runLocal(ctx, out, registry, circuits, o); err != nil {
		return err
	}

	if err := runRemote(ctx, out, registry, client, circuits, o); err != nil {
		fmt.Fprintln(out, "All devices are currently unavailable.")
		logger.WithError(err).Debug("remote run failed")
	}
	return nil
}

// register adds the remote backends reachable with the credentials at path
func register(ctx context.Context, registry *qiskit.Registry, path string) (*qiskit.Client, error) {
	creds, err := qiskit.LoadCredentials(path)
	if err != nil {
		return nil, err
	}
	conn, err := qiskit.DialContext(ctx, creds.DialOptions()...)
	if err != nil {
		return nil, err
	}
	client := qiskit.NewClient(conn, append(creds.ClientOptions(), qiskit.WithClientApplication("levelone"))...)
	if err := registry.Register(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func buildCircuits() ([]*qiskit.QuantumCircuit, error) {
	q, err := qiskit.NewQuantumRegister(2, "q")
	if err != nil {
		return nil, err
	}
	c, err := qiskit.NewClassicalRegister(2, "c")
	if err != nil {
		return nil, err
	}

	bell, err := qiskit.NewQuantumCircuit("bell", q, c)
	if err != nil {
		return nil, err
	}
	if err := bell.H(q.Bit(0)); err != nil {
		return nil, err
	}
	if err := bell.CX(q.Bit(0), q.Bit(1)); err != nil {
		return nil, err
	}
	if err := bell.MeasureRegister(q, c); err != nil {
		return nil, err
	}

	superposition, err := qiskit.NewQuantumCircuit("superposition", q, c)
	if err != nil {
		return nil, err
	}
	if err := superposition.H(q.Bits()...); err != nil {
		return nil, err
	}
	if err := superposition.MeasureRegister(q, c); err != nil {
		return nil, err
	}

	return []*qiskit.QuantumCircuit{bell, superposition}, nil
}

func compileOptions(o options, remote bool) []qiskit.CompileOption {
	var opts []qiskit.CompileOption
	if o.seed >= 0 {
		opts = append(opts, qiskit.WithSeed(uint64(o.seed)))
	}
	if remote {
		opts = append(opts, qiskit.WithShots(o.shots), qiskit.WithMaxCredits(o.maxCredits))
	}
	return opts
}

// describe prints what a backend reports about itself
func describe(ctx context.Context, out io.Writer, b qiskit.Backend, label string) error {
	calibration, err := b.Calibration(ctx)
	if err != nil {
		return err
	}
	params, err := b.Parameters(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "(%s configuration)\n", label)
	dumper.Fdump(out, b.Configuration())
	fmt.Fprintf(out, "(%s calibration)\n", label)
	dumper.Fdump(out, calibration)
	fmt.Fprintf(out, "(%s parameters)\n", label)
	dumper.Fdump(out, params)
	return nil
}

func printCounts(out io.Writer, label string, result *qiskit.Result, circuits []*qiskit.QuantumCircuit) error {
	fmt.Fprintln(out, label, result)
	for _, qc := range circuits {
		counts, err := result.GetCounts(qc.Name())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, counts)
	}
	return nil
}

func runLocal(ctx context.Context, out io.Writer, registry *qiskit.Registry, circuits []*qiskit.QuantumCircuit, o options) error {
	fmt.Fprintln(out, "(Local Backends)")
	for _, name := range registry.AvailableBackends(qiskit.IsLocal(true)) {
		b, err := registry.GetBackend(name)
		if err != nil {
			return err
		}
		status, err := b.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%+v\n", status)
	}

	backend, err := registry.GetBackend(qiskit.LocalQasmSimulatorName)
	if err != nil {
		return err
	}
	if err := describe(ctx, out, backend, "Local QASM Simulator"); err != nil {
		return err
	}

	qobj, err := qiskit.Compile(circuits, backend, compileOptions(o, false)...)
	if err != nil {
		return err
	}
	result, err := backend.Run(ctx, qiskit.NewQuantumJob(qobj))
	if err != nil {
		return err
	}
	return printCounts(out, "simulation: ", result, circuits)
}

func runRemote(ctx context.Context, out io.Writer, registry *qiskit.Registry, client *qiskit.Client, circuits []*qiskit.QuantumCircuit, o options) error {
	fmt.Fprintln(out, "\n(Remote Backends)")
	for _, name := range registry.AvailableBackends(qiskit.IsLocal(false)) {
		b, err := registry.GetBackend(name)
		if err != nil {
			return err
		}
		status, err := b.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%+v\n", status)
	}

	best, err := registry.LeastBusy(ctx, qiskit.IsLocal(false), qiskit.IsSimulator(false))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Running on current least busy device: ", best)

	backend, err := registry.GetBackend(best)
	if err != nil {
		return err
	}
	if err := describe(ctx, out, backend, "with"); err != nil {
		return err
	}

	if client != nil {
		credits, err := client.GetMyCredits(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Remaining credits: %v\n", credits.Remaining)
	}

	qobj, err := qiskit.Compile(circuits, backend, compileOptions(o, true)...)
	if err != nil {
		return err
	}
	job := qiskit.NewQuantumJob(qobj)
	job.Timeout = o.timeout

	result, err := backend.Run(ctx, job)
	if err != nil {
		return err
	}
	return printCounts(out, "experiment: ", result, circuits)
}
