// Package fakeqx serves an in-memory imitation of the IBM QX API for tests.
package fakeqx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	// Token is the only api token the fake accepts
	Token = "test-api-token"
	// Email is the login email the fake accepts
	Email = "user@example.com"
	// Password goes with Email
	Password = "hunter2"
	// UserId is the user every login is issued for
	UserId = "user-1"
)

// Device is a backend the fake API knows about
type Device struct {
	Name        string
	Simulator   bool
	Qubits      int
	Online      bool
	Available   bool
	Busy        bool
	Pending     int
	CouplingMap [][2]int
	BasisGates  string
}

// DefaultDevices mirrors the devices the public API offered
func DefaultDevices() []Device {
	return []Device{
		{
			Name: "ibmqx4", Qubits: 5, Online: true, Available: true, Pending: 7,
			CouplingMap: [][2]int{{1, 0}, {2, 0}, {2, 1}, {2, 4}, {3, 2}, {3, 4}},
			BasisGates:  "u1,u2,u3,cx,id",
		},
		{
			Name: "ibmqx2", Qubits: 5, Online: true, Available: true, Pending: 3,
			CouplingMap: [][2]int{{0, 1}, {0, 2}, {1, 2}, {3, 2}, {3, 4}, {4, 2}},
			BasisGates:  "u1,u2,u3,cx,id",
		},
		{Name: "ibmqx3", Qubits: 16, Online: false, BasisGates: "u1,u2,u3,cx,id"},
		{Name: "ibmqx_qasm_simulator", Simulator: true, Qubits: 32, Online: true, Available: true, BasisGates: "u1,u2,u3,cx,id"},
	}
}

type job struct {
	body  map[string]interface{}
	polls int
	info  map[string]interface{}
}

// Server is the fake API. Its knobs are safe to change while it serves.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	devices     []Device
	accessToken string
	logins      int
	failures    []int
	jobs        map[string]*job
	jobOrder    []string
	pollsToDone int
	finalStatus string
	counts      func(qasm string, shots int) map[string]int
	requests    []string
}

// New starts a fake API serving devices, DefaultDevices when none are given
func New(t testing.TB, devices ...Device) *Server {
	t.Helper()
	if len(devices) == 0 {
		devices = DefaultDevices()
	}

	s := &Server{
		devices:     devices,
		jobs:        make(map[string]*job),
		pollsToDone: 1,
		finalStatus: "COMPLETED",
		counts:      BellCounts,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/loginWithToken", s.loginWithToken)
	mux.HandleFunc("POST /users/login", s.login)
	mux.HandleFunc("GET /version", s.authed(s.version))
	mux.HandleFunc("GET /users/{id}", s.authed(s.user))
	mux.HandleFunc("GET /Backends", s.authed(s.backends))
	mux.HandleFunc("GET /Backends/{name}/queue/status", s.authed(s.status))
	mux.HandleFunc("GET /Backends/{name}/calibration", s.authed(s.calibration))
	mux.HandleFunc("GET /Backends/{name}/parameters", s.authed(s.parameters))
	mux.HandleFunc("POST /Jobs", s.authed(s.createJob))
	mux.HandleFunc("GET /Jobs", s.authed(s.listJobs))
	mux.HandleFunc("GET /Jobs/{id}", s.authed(s.getJob))
	mux.HandleFunc("PATCH /Jobs/{id}/cancel", s.authed(s.cancelJob))

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// BellCounts splits the shots evenly between all zeros and all ones
func BellCounts(qasm string, shots int) map[string]int {
	n := 0
	for _, line := range strings.Split(qasm, "\n") {
		if !strings.HasPrefix(line, "creg ") {
			continue
		}
		open, end := strings.Index(line, "["), strings.Index(line, "]")
		if size, err := strconv.Atoi(line[open+1 : end]); err == nil {
			n += size
		}
	}
	if n == 0 {
		return map[string]int{}
	}
	return map[string]int{
		strings.Repeat("0", n): shots / 2,
		strings.Repeat("1", n): shots - shots/2,
	}
}

// FailNext makes the next requests answer with the given status codes, one per request
func (s *Server) FailNext(codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, codes...)
}

// ExpireToken invalidates the current access token
func (s *Server) ExpireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = "expired"
}

// SetPollsToDone sets how many times a job is fetched before it reaches its final status
func (s *Server) SetPollsToDone(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollsToDone = n
}

// SetFinalStatus sets the status jobs end with
func (s *Server) SetFinalStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalStatus = status
}

// SetCounts replaces how job results are made up
func (s *Server) SetCounts(f func(qasm string, shots int) map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = f
}

// SetDevice replaces the device with the same name
func (s *Server) SetDevice(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		if s.devices[i].Name == d.Name {
			s.devices[i] = d
			return
		}
	}
	s.devices = append(s.devices, d)
}

// Logins returns how many successful logins happened
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns "METHOD path" for every request served so far
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// LastJobRequest returns the decoded body of the latest job submission
func (s *Server) LastJobRequest() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobOrder) == 0 {
		return nil
	}
	return s.jobs[s.jobOrder[len(s.jobOrder)-1]].body
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		code := 0
		if len(s.failures) > 0 {
			code, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()

		if code != 0 {
			writeError(w, code, "INJECTED", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := s.accessToken != "" && r.URL.Query().Get("access_token") == s.accessToken
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "AUTHORIZATION_REQUIRED", "Authorization Required")
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{"status": code, "code": errCode, "message": msg},
	})
}

func (s *Server) issueToken(w http.ResponseWriter) {
	s.mu.Lock()
	s.logins++
	s.accessToken = fmt.Sprintf("access-%d", s.logins)
	token := s.accessToken
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id": token, "userId": UserId, "ttl": 1209600, "created": "2018-04-01T00:00:00.000Z",
	})
}

func (s *Server) loginWithToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApiToken string `json:"apiToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ApiToken != Token {
		writeError(w, http.StatusUnauthorized, "LOGIN_FAILED", "login failed")
		return
	}
	s.issueToken(w)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email != Email || body.Password != Password {
		writeError(w, http.StatusUnauthorized, "LOGIN_FAILED", "login failed")
		return
	}
	s.issueToken(w)
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "5.1.0")
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != UserId {
		writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND", "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credit": map[string]interface{}{"remaining": 15, "promotional": 0, "maxUserType": 15},
	})
}

func (s *Server) device(name string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

func (s *Server) backends(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	devices := append([]Device(nil), s.devices...)
	s.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(devices))
	for _, d := range devices {
		status := "off"
		if d.Online {
			status = "on"
		}
		var coupling interface{} = "all-to-all"
		if d.CouplingMap != nil {
			coupling = d.CouplingMap
		}
		out = append(out, map[string]interface{}{
			"name":        d.Name,
			"status":      status,
			"simulator":   d.Simulator,
			"nQubits":     d.Qubits,
			"couplingMap": coupling,
			"basisGates":  d.BasisGates,
			"version":     1,
			"description": d.Name + " device",
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	d, ok := s.device(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown backend")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": d.Available, "busy": d.Busy, "lengthQueue": d.Pending,
	})
}

func (s *Server) calibration(w http.ResponseWriter, r *http.Request) {
	d, ok := s.device(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown backend")
		return
	}
	qubits := make([]map[string]interface{}, d.Qubits)
	for i := range qubits {
		qubits[i] = map[string]interface{}{
			"name":         fmt.Sprintf("Q%d", i),
			"gateError":    map[string]interface{}{"date": "2018-04-01T00:00:00Z", "value": 0.001},
			"readoutError": map[string]interface{}{"date": "2018-04-01T00:00:00Z", "value": 0.05},
		}
	}
	gates := make([]map[string]interface{}, 0, len(d.CouplingMap))
	for _, p := range d.CouplingMap {
		gates = append(gates, map[string]interface{}{
			"name":      fmt.Sprintf("CX%d_%d", p[0], p[1]),
			"type":      "CX",
			"qubits":    []int{p[0], p[1]},
			"gateError": map[string]interface{}{"date": "2018-04-01T00:00:00Z", "value": 0.03},
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lastUpdateDate":  "2018-04-01T00:00:00Z",
		"qubits":          qubits,
		"multiQubitGates": gates,
	})
}

func (s *Server) parameters(w http.ResponseWriter, r *http.Request) {
	d, ok := s.device(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown backend")
		return
	}
	qubits := make([]map[string]interface{}, d.Qubits)
	for i := range qubits {
		qubits[i] = map[string]interface{}{
			"name": fmt.Sprintf("Q%d", i),
			"T1":   map[string]interface{}{"date": "2018-04-01T00:00:00Z", "value": 50.2, "unit": "µs"},
			"T2":   map[string]interface{}{"date": "2018-04-01T00:00:00Z", "value": 40.1, "unit": "µs"},
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"qubits": qubits,
		"fridgeParameters": map[string]interface{}{
			"cooldownDate": "2017-09-07",
			"Temperature":  map[string]interface{}{"date": "2018-04-01T00:00:00Z", "value": 0.021, "unit": "K"},
		},
	})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	s.mu.Lock()
	id := fmt.Sprintf("job-%d", len(s.jobOrder)+1)
	qasms, _ := body["qasms"].([]interface{})
	jobQasms := make([]interface{}, len(qasms))
	for i, q := range qasms {
		jobQasms[i] = map[string]interface{}{"qasm": q.(map[string]interface{})["qasm"], "status": "WORKING_IN_PROGRESS"}
	}
	j := &job{body: body, info: map[string]interface{}{
		"id":         id,
		"status":     "RUNNING",
		"shots":      body["shots"],
		"maxCredits": body["maxCredits"],
		"backend":    body["backend"],
		"qasms":      jobQasms,
		"infoQueue":  map[string]interface{}{"status": "PENDING_IN_QUEUE", "position": 2},
	}}
	s.jobs[id] = j
	s.jobOrder = append(s.jobOrder, id)
	writeJSON(w, http.StatusOK, j.info)
	s.mu.Unlock()
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND", "unknown job")
		return
	}
	j.polls++
	if j.info["status"] == "RUNNING" && j.polls >= s.pollsToDone {
		s.finish(j)
	}
	writeJSON(w, http.StatusOK, j.info)
}

// finish moves a job to its final status, filling in results when it completed
func (s *Server) finish(j *job) {
	j.info["status"] = s.finalStatus
	if s.finalStatus != "COMPLETED" {
		return
	}
	shots := int(j.body["shots"].(float64))
	for _, q := range j.info["qasms"].([]interface{}) {
		qm := q.(map[string]interface{})
		qm["status"] = "DONE"
		qm["result"] = map[string]interface{}{
			"date": "2018-04-01T00:00:00Z",
			"data": map[string]interface{}{
				"counts":         s.counts(qm["qasm"].(string), shots),
				"time":           1.5,
				"additionalData": map[string]interface{}{"seed": 42},
			},
		}
	}
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var filter struct {
		Limit int `json:"limit"`
	}
	if raw := r.URL.Query().Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(s.jobOrder))
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		out = append(out, s.jobs[s.jobOrder[i]].info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND", "unknown job")
		return
	}
	j.info["status"] = "CANCELLED"
	writeJSON(w, http.StatusOK, j.info)
}
