package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// MemoryStore keeps records in process. Suitable for a single instance and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Reserve claims key or reports the existing record.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return stateOf(entry.record, fingerprint)
	}
	for k, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, k)
		}
	}
	record := Record{Fingerprint: fingerprint, CreatedAt: now}
	s.entries[key] = memoryEntry{record: record, expiresAt: now.Add(ttl)}
	return StateNew, record, nil
}

// Complete stores resp for key.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && entry.record.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	created := now
	if ok {
		created = entry.record.CreatedAt
	}
	s.entries[key] = memoryEntry{
		record:    Record{Fingerprint: fingerprint, Completed: true, Response: resp, CreatedAt: created},
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Release forgets key so the request can be retried.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports how many live or expired-but-unswept records are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func stateOf(record Record, fingerprint string) (State, Record, error) {
	if record.Fingerprint != fingerprint {
		return StateNew, Record{}, ErrFingerprintMismatch
	}
	if record.Completed {
		return StateCompleted, record, nil
	}
	return StatePending, record, nil
}
