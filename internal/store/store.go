package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is the durable, process-wide source of truth for client-to-container
// assignments. Every mutator serializes under mu; no Runtime Adapter call is
// ever made while the lock is held.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger.With(slog.String("component", "store"))}
}

// LoadRecords returns a consistent snapshot. A missing, empty, unparsable,
// or non-array file reads as an empty store rather than an error.
func (s *Store) LoadRecords() []ContainerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() []ContainerRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read state file", "error", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var records []ContainerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("state file is not a valid JSON array, treating as empty", "error", err)
		return nil
	}
	return records
}

// SaveRecords atomically replaces the entire record set.
func (s *Store) SaveRecords(records []ContainerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(records)
}

func (s *Store) save(records []ContainerRecord) error {
	if records == nil {
		records = []ContainerRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// FindByClient returns the non-pool record matching id, if any.
func (s *Store) FindByClient(id string) (ContainerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.load() {
		if r.ClientID == id && !r.IsPool() {
			return r, true
		}
	}
	return ContainerRecord{}, false
}

// AddRecord removes any existing record for a non-sentinel client id, then
// appends a new record stamped with the current time.
func (s *Store) AddRecord(id, containerID, name string, port int, width, height string) (ContainerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	if id != PoolClientID {
		records = removeByClient(records, id)
	}

	now := time.Now().UTC()
	rec := ContainerRecord{
		ClientID:      id,
		ContainerID:   containerID,
		ContainerName: name,
		Port:          port,
		CreatedAt:     now,
		LastAccessed:  now,
		Width:         width,
		Height:        height,
	}
	records = append(records, rec)

	if err := s.save(records); err != nil {
		return ContainerRecord{}, err
	}
	return rec, nil
}

// TouchClient advances last_accessed_at to now for the matching record.
func (s *Store) TouchClient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	found := false
	for i := range records {
		if records[i].ClientID == id {
			records[i].LastAccessed = time.Now().UTC()
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	return s.save(records)
}

// FindOldestAccessed returns the non-pool record with the smallest
// last_accessed_at, falling back to created_at when last_accessed_at is
// zero. Ties go to first file-order occurrence.
func (s *Store) FindOldestAccessed() (ContainerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest ContainerRecord
	var oldestKey time.Time
	found := false

	for _, r := range s.load() {
		if r.IsPool() {
			continue
		}
		key := r.LastAccessed
		if key.IsZero() {
			key = r.CreatedAt
		}
		if !found || key.Before(oldestKey) {
			oldest = r
			oldestKey = key
			found = true
		}
	}
	return oldest, found
}

// RemoveByClient deletes every record with the given client id.
func (s *Store) RemoveByClient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := removeByClient(s.load(), id)
	return s.save(records)
}

func removeByClient(records []ContainerRecord, id string) []ContainerRecord {
	out := records[:0:0]
	for _, r := range records {
		if r.ClientID != id {
			out = append(out, r)
		}
	}
	return out
}

// UsedPorts projects the set of ports currently occupied, pool included.
func (s *Store) UsedPorts() map[int]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := make(map[int]struct{})
	for _, r := range s.load() {
		used[r.Port] = struct{}{}
	}
	return used
}

// FindUnassigned returns every pool record.
func (s *Store) FindUnassigned() []ContainerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ContainerRecord
	for _, r := range s.load() {
		if r.IsPool() {
			out = append(out, r)
		}
	}
	return out
}

// ClaimPoolContainer removes any pre-existing record for id, then rewrites
// the first pool record's client_id to id. Returns false if no pool record
// exists.
func (s *Store) ClaimPoolContainer(id, width, height string) (ContainerRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := removeByClient(s.load(), id)

	idx := -1
	for i, r := range records {
		if r.IsPool() {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ContainerRecord{}, false, nil
	}

	records[idx].ClientID = id
	records[idx].LastAccessed = time.Now().UTC()
	records[idx].Width = width
	records[idx].Height = height

	claimed := records[idx]
	if err := s.save(records); err != nil {
		return ContainerRecord{}, false, err
	}
	return claimed, true, nil
}
