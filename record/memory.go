package record

import (
	"context"
	"sync"
)

// Hub is an in-process shared record that any number of [Memory] handles
// attach to. Each handle behaves like one tab: its own writes are visible
// to every other handle's watch channel but never to its own.
//
// Hub exists for tests and single-process hosts; durable deployments use
// the file- or Redis-backed stores.
type Hub struct {
	mu      sync.Mutex
	payload []byte
	present bool
	watches map[int]chan Change
	nextID  int
}

// NewHub creates an empty shared record.
func NewHub() *Hub {
	return &Hub{
		watches: make(map[int]chan Change),
	}
}

// Open attaches a new tab handle to the hub.
func (h *Hub) Open() *Memory {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	return &Memory{hub: h, id: id}
}

// Fire injects a synthetic change notification into every attached handle,
// as if the record had been mutated by a process outside the hub. Tests use
// it to simulate raw storage events, including unparseable payloads.
func (h *Hub) Fire(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.applyLocked(c)
	h.broadcastLocked(-1, c)
}

func (h *Hub) applyLocked(c Change) {
	if c.Removed {
		h.payload = nil
		h.present = false
		return
	}
	h.payload = append([]byte(nil), c.Payload...)
	h.present = true
}

func (h *Hub) broadcastLocked(origin int, c Change) {
	for id, ch := range h.watches {
		if id == origin {
			continue
		}
		notice := Change{Removed: c.Removed}
		if !c.Removed {
			notice.Payload = append([]byte(nil), c.Payload...)
		}
		select {
		case ch <- notice:
		default:
			// Watcher fell too far behind; it will reconcile on next Load.
		}
	}
}

// Memory is one tab's handle on a [Hub].
type Memory struct {
	hub *Hub
	id  int

	mu       sync.Mutex
	watching bool
	closed   bool
}

// NewMemory returns a standalone in-memory store: a fresh [Hub] with a
// single attached handle.
func NewMemory() *Memory {
	return NewHub().Open()
}

func (m *Memory) Load(ctx context.Context) ([]byte, error) {
	if err := m.alive(); err != nil {
		return nil, err
	}
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()

	if !m.hub.present {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.hub.payload...), nil
}

func (m *Memory) Save(ctx context.Context, payload []byte) error {
	if err := m.alive(); err != nil {
		return err
	}
	c := Change{Payload: payload}
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	m.hub.applyLocked(c)
	m.hub.broadcastLocked(m.id, c)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := m.alive(); err != nil {
		return err
	}
	c := Change{Removed: true}
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	m.hub.applyLocked(c)
	m.hub.broadcastLocked(m.id, c)
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	if err := m.alive(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return nil, ErrWatchActive
	}
	m.watching = true
	m.mu.Unlock()

	ch := make(chan Change, 16)
	m.hub.mu.Lock()
	m.hub.watches[m.id] = ch
	m.hub.mu.Unlock()

	out := make(chan Change)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				m.detach()
				return
			case c, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- c:
				case <-ctx.Done():
					m.detach()
					return
				}
			}
		}
	}()

	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.detach()
	return nil
}

func (m *Memory) detach() {
	m.hub.mu.Lock()
	delete(m.hub.watches, m.id)
	m.hub.mu.Unlock()

	m.mu.Lock()
	m.watching = false
	m.mu.Unlock()
}

func (m *Memory) alive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	return nil
}
