package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProviderFactory returns the auth provider bound to one client.
type ProviderFactory func(clientID string) AuthProvider

// Manager owns one Resolver per client ID.
type Manager struct {
	store     Store
	providers ProviderFactory
	students  StudentSource
	idleTTL   time.Duration

	mu        sync.Mutex
	resolvers map[string]*Resolver
	onChange  func(clientID string, st State)
	now       func() time.Time
}

func NewManager(store Store, providers ProviderFactory, students StudentSource, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = 2 * time.Hour
	}
	return &Manager{
		store:     store,
		providers: providers,
		students:  students,
		idleTTL:   idleTTL,
		resolvers: make(map[string]*Resolver),
		now:       time.Now,
	}
}

// OnChange registers the callback fed with every resolver state change.
func (m *Manager) OnChange(fn func(clientID string, st State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Store returns the client-private view of the backing store.
func (m *Manager) Store(clientID string) Store {
	return Scope(m.store, clientID)
}

// Resolver returns the resolver for clientID, creating it in the
// Unresolved state when new. Callers run Refresh to resolve it.
func (m *Manager) Resolver(clientID string) *Resolver {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.resolvers[clientID]; ok {
		return r
	}

	var provider AuthProvider
	if m.providers != nil {
		provider = m.providers(clientID)
	}
	r := NewResolver(provider, m.Store(clientID), m.students)
	r.log = r.log.WithField("client_id", clientID)
	r.attach()
	r.Subscribe(func(st State) {
		m.mu.Lock()
		fn := m.onChange
		m.mu.Unlock()
		if fn != nil {
			fn(clientID, st)
		}
	})
	m.resolvers[clientID] = r
	return r
}

// Resolve returns a refreshed resolver for clientID.
func (m *Manager) Resolve(ctx context.Context, clientID string) (*Resolver, error) {
	r := m.Resolver(clientID)
	if err := r.Refresh(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// Sweep closes resolvers idle for longer than the idle TTL.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Resolver
	for id, r := range m.resolvers {
		if r.LastSeen().Before(cutoff) {
			idle = append(idle, r)
			delete(m.resolvers, id)
		}
	}
	m.mu.Unlock()

	for _, r := range idle {
		r.Close()
	}
	if len(idle) > 0 {
		logrus.WithField("evicted", len(idle)).Debug("session resolvers swept")
	}
	if ms, ok := m.store.(*MemoryStore); ok {
		ms.Purge()
	}
	return len(idle)
}

// Len reports the number of live resolvers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resolvers)
}

// Close shuts down every resolver.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.resolvers
	m.resolvers = make(map[string]*Resolver)
	m.mu.Unlock()

	for _, r := range all {
		r.Close()
	}
}
