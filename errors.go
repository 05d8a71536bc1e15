package qiskit

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoAvailableBackend is returned when a backend selection finds nothing available to run on
var ErrNoAvailableBackend = errors.New("no available backend")

// ApiErr carries a message meant for the user and one meant for the developer
type ApiErr struct {
	usrMsg, devMsg string
}

func (e ApiErr) Error() string {
	if e.devMsg == "" {
		return e.usrMsg
	}
	return fmt.Sprintf("usr_msg: %s\ndev_msg: %s", e.usrMsg, e.devMsg)
}

// UserMessage returns the user facing part of the error
func (e ApiErr) UserMessage() string { return e.usrMsg }

// DevMessage returns the developer facing part of the error
func (e ApiErr) DevMessage() string { return e.devMsg }

// httpErr is the error object the API puts in response bodies
type httpErr struct {
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *httpErr) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// CredentialsErr represents bad or missing server credentials
type CredentialsErr struct {
	ApiErr
}

// BadBackendErr is returned when a backend name is not known
type BadBackendErr struct {
	Backend string
}

func (e BadBackendErr) Error() string {
	return ApiErr{
		fmt.Sprintf("Could not find backend %q available", e.Backend),
		fmt.Sprintf("Backend %q does not exist. Please use AvailableBackends to see options", e.Backend),
	}.Error()
}

// RegisterSizeErr represents exceeding the maximum number of qubits a backend allows
type RegisterSizeErr struct {
	Circuit string
	Qubits  int
	Max     int
}

func (e RegisterSizeErr) Error() string {
	return fmt.Sprintf("circuit %q uses %d qubits, register exceed the number of qubits, it can't be greater than %d", e.Circuit, e.Qubits, e.Max)
}

// CircuitErr is returned for malformed registers, circuits and gate applications
type CircuitErr struct {
	Msg string
}

func (e CircuitErr) Error() string { return "circuit error: " + e.Msg }

func circuitErrorf(format string, args ...interface{}) error {
	return CircuitErr{Msg: fmt.Sprintf(format, args...)}
}

// CompileErr is returned when a circuit can't be compiled for a backend
type CompileErr struct {
	Circuit string
	Msg     string
}

func (e CompileErr) Error() string {
	if e.Circuit == "" {
		return "compile error: " + e.Msg
	}
	return fmt.Sprintf("compile error in circuit %q: %s", e.Circuit, e.Msg)
}

// JobErr is returned when a job ends in a state other than completed
type JobErr struct {
	JobID  string
	Status string
	Msg    string
}

func (e JobErr) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("job %s finished with status %s", e.JobID, e.Status)
	}
	return fmt.Sprintf("job %s finished with status %s: %s", e.JobID, e.Status, e.Msg)
}

// JobTimeoutErr is returned when waiting on a job outlasts its timeout.
// The job itself keeps running and can be retrieved with Client.GetJob.
type JobTimeoutErr struct {
	JobID   string
	Timeout time.Duration
}

func (e JobTimeoutErr) Error() string {
	return fmt.Sprintf("timed out after %s waiting for job %s", e.Timeout, e.JobID)
}
