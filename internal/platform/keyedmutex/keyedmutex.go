package keyedmutex

import "sync"

// Registry hands out one mutex per key so that callers can serialize
// work scoped to a single student or session without a global lock.
// Mutexes are retained for the registry's lifetime; the key space here
// (students with live sessions) is small enough that eviction is not worth it.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

func (r *Registry) Lock(key string) {
	r.get(key).Lock()
}

func (r *Registry) Unlock(key string) {
	r.get(key).Unlock()
}

func (r *Registry) get(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	return m
}
