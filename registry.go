package qiskit

import (
	"context"
	"sync"
)

// BackendFilter selects backends by configuration
type BackendFilter func(BackendConfiguration) bool

// IsLocal keeps backends whose locality matches local
func IsLocal(local bool) BackendFilter {
	return func(cfg BackendConfiguration) bool { return cfg.Local == local }
}

// IsSimulator keeps backends that are (or are not) simulators
func IsSimulator(sim bool) BackendFilter {
	return func(cfg BackendConfiguration) bool { return cfg.Simulator == sim }
}

// Registry is a concurrent-safe set of backends looked up by name
type Registry struct {
	mu       sync.Mutex
	backends map[string]Backend
	order    []string
}

// NewRegistry returns a registry holding the local simulator and the given backends
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	r.Add(NewLocalQasmSimulator())
	for _, b := range backends {
		r.Add(b)
	}
	return r
}

// Add registers a backend, replacing any backend of the same name
func (r *Registry) Add(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Name()]; exists {
		log.WithField("backend", b.Name()).Warn("replacing already registered backend")
	} else {
		r.order = append(r.order, b.Name())
	}
	r.backends[b.Name()] = b
}

// Register adds every online backend the client can reach
func (r *Registry) Register(ctx context.Context, client *Client) error {
	infos, err := client.AvailableBackends(ctx)
	if err != nil {
		return err
	}
	for _, info := range infos {
		r.Add(NewRemoteBackend(client, info))
	}
	log.Infof("registered %d remote backends", len(infos))
	return nil
}

// AvailableBackends returns the names of the backends matching every filter, in registration order
func (r *Registry) AvailableBackends(filters ...BackendFilter) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
next:
	for _, name := range r.order {
		cfg := r.backends[name].Configuration()
		for _, f := range filters {
			if !f(cfg) {
				continue next
			}
		}
		names = append(names, name)
	}
	return names
}

// GetBackend looks a backend up by name
func (r *Registry) GetBackend(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, exists := r.backends[name]
	if !exists {
		return nil, BadBackendErr{Backend: name}
	}
	return b, nil
}

// LeastBusy returns the available backend matching filters with the fewest pending jobs.
// A backend whose status can't be fetched counts as unavailable.
func (r *Registry) LeastBusy(ctx context.Context, filters ...BackendFilter) (string, error) {
	var statuses []BackendStatus
	for _, name := range r.AvailableBackends(filters...) {
		b, err := r.GetBackend(name)
		if err != nil {
			return "", err
		}
		status, err := b.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.WithError(err).WithField("backend", name).Warn("could not get backend status")
			continue
		}
		status.Name = name
		statuses = append(statuses, status)
	}
	return LowestPendingJobs(statuses)
}

// LowestPendingJobs returns the name of the available backend with the fewest pending jobs.
// Ties go to the first one in statuses.
func LowestPendingJobs(statuses []BackendStatus) (string, error) {
	best := -1
	for i, s := range statuses {
		if !s.Available {
			continue
		}
		if best < 0 || s.PendingJobs < statuses[best].PendingJobs {
			best = i
		}
	}
	if best < 0 {
		return "", ErrNoAvailableBackend
	}
	return statuses[best].Name, nil
}
