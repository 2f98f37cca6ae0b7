package session

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/termbridge/schema"
)

// Manager owns the set of live sessions in this process, running each
// dispatcher on its own goroutine and tracking the context that stops it.
type Manager struct {
	mu      sync.Mutex
	sess    map[schema.SessionID]*Dispatcher
	cancels map[schema.SessionID]context.CancelFunc
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sess:    make(map[schema.SessionID]*Dispatcher),
		cancels: make(map[schema.SessionID]context.CancelFunc),
	}
}

// Start constructs a session from cfg and runs its dispatcher loop in the
// background, returning immediately with its assigned ID. The session runs
// until ctx is cancelled, its parent Manager.Stop is called, or it fails
// to reconnect.
func (m *Manager) Start(ctx context.Context, cfg schema.SessionConfig) (schema.SessionID, error) {
	d, err := New(ctx, cfg)
	if err != nil {
		return "", err
	}
	sctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.sess[d.ID()] = d
	m.cancels[d.ID()] = cancel
	m.mu.Unlock()

	go func() {
		d.Run(sctx)
		m.mu.Lock()
		delete(m.sess, d.ID())
		delete(m.cancels, d.ID())
		m.mu.Unlock()
	}()
	return d.ID(), nil
}

// Get returns the dispatcher for id, if it is still live.
func (m *Manager) Get(id schema.SessionID) (*Dispatcher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.sess[id]
	return d, ok
}

// Stop cancels id's dispatcher context, causing its Run loop to tear down
// the transport and exit.
func (m *Manager) Stop(id schema.SessionID) error {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	cancel()
	return nil
}

// List returns the IDs of every currently live session.
func (m *Manager) List() []schema.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schema.SessionID, 0, len(m.sess))
	for id := range m.sess {
		out = append(out, id)
	}
	return out
}
