package metrics

import "sync"

// Snapshot captures current in-memory counters keyed by resource.
type Snapshot struct {
	Created   map[string]uint64
	Updated   map[string]uint64
	Deleted   map[string]uint64
	Conflicts map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu        sync.Mutex
	created   map[string]uint64
	updated   map[string]uint64
	deleted   map[string]uint64
	conflicts map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		created:   make(map[string]uint64),
		updated:   make(map[string]uint64),
		deleted:   make(map[string]uint64),
		conflicts: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Created:   copyCounts(m.created),
		Updated:   copyCounts(m.updated),
		Deleted:   copyCounts(m.deleted),
		Conflicts: copyCounts(m.conflicts),
	}
}

// IncRecordCreated increments the created counter for resource.
func (m *InMemoryRecorder) IncRecordCreated(resource string) {
	m.inc(m.created, resource)
}

// IncRecordUpdated increments the updated counter for resource.
func (m *InMemoryRecorder) IncRecordUpdated(resource string) {
	m.inc(m.updated, resource)
}

// IncRecordDeleted increments the deleted counter for resource.
func (m *InMemoryRecorder) IncRecordDeleted(resource string) {
	m.inc(m.deleted, resource)
}

// IncConflict increments the conflict counter for resource.
func (m *InMemoryRecorder) IncConflict(resource string) {
	m.inc(m.conflicts, resource)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, resource string) {
	m.mu.Lock()
	counts[resource]++
	m.mu.Unlock()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
