package timelockstore

import "sync"

// Memory is an in-process Store. It loses all pending grants on restart,
// which is acceptable for a development deployment or one where the
// notification_broker's own durability is the source of truth; the Bolt
// implementation should back production deployments.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemory builds an empty in-memory time-lock store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Insert(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = Record{ID: id, Cancelled: false}
	return nil
}

func (m *Memory) Get(id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) SetCancelled(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Cancelled = true
	m.records[id] = rec
	return nil
}
