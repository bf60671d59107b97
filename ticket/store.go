package ticket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const schemaVersion = 1

// document is the single persisted file layout. Unknown fields in older
// or newer documents are ignored on load so the file stays readable
// across bot upgrades.
type document struct {
	SchemaVersion int       `json:"schema_version"`
	Tickets       []*Ticket `json:"tickets"`
}

// Store is the durable id → Ticket mapping. All records live in one JSON
// document on disk; Save rewrites it atomically. The bot runs as a single
// event loop, the mutex additionally keeps the store safe if handlers
// ever run concurrently.
type Store struct {
	mu      sync.RWMutex
	path    string
	tickets map[string]*Ticket
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		tickets: make(map[string]*Ticket),
	}
}

// Load replaces the in-memory state with the persisted document. A
// missing file is an empty store, a malformed one is ErrValidation.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrValidation, s.path, err)
	}

	tickets := make(map[string]*Ticket, len(doc.Tickets))
	for i, t := range doc.Tickets {
		if err := validate(t); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrValidation, i, err)
		}
		tickets[t.ID] = t
	}

	s.mu.Lock()
	s.tickets = tickets
	s.mu.Unlock()
	return nil
}

// Save writes the whole store to disk. The document is written to a
// temporary file in the same directory and renamed over the old one, so
// a crash mid-write never leaves a truncated durable copy.
func (s *Store) Save() error {
	doc := document{SchemaVersion: schemaVersion, Tickets: s.All()}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tickets-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Put upserts a record. Structural invariants are checked here so a
// broken record never reaches the persisted document.
func (s *Store) Put(t *Ticket) error {
	if err := validate(t); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tickets[t.ID]; ok && existing.OwnerID != t.OwnerID {
		return fmt.Errorf("%w: ticket %s already owned by %s", ErrValidation, t.ID, existing.OwnerID)
	}
	s.tickets[t.ID] = t.clone()
	return nil
}

// Get returns a copy of the record, or nil when unknown. Mutations only
// take effect through Put.
func (s *Store) Get(id string) *Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil
	}
	return t.clone()
}

// Delete removes a record. Used only to roll back a partially created
// ticket; closed tickets are otherwise retained for audit.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.tickets, id)
	s.mu.Unlock()
}

// FindOpenByOwner returns the owner's active tickets. Transferred
// tickets still have a live channel and count as active.
func (s *Store) FindOpenByOwner(ownerID string) []*Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Ticket
	for _, t := range s.tickets {
		if t.OwnerID == ownerID && t.Status != StatusClosed {
			out = append(out, t.clone())
		}
	}
	sortByCreation(out)
	return out
}

func (s *Store) CountOpenByOwner(ownerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tickets {
		if t.OwnerID == ownerID && t.Status != StatusClosed {
			n++
		}
	}
	return n
}

// All returns every record, oldest first.
func (s *Store) All() []*Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t.clone())
	}
	sortByCreation(out)
	return out
}

func sortByCreation(ts []*Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}

func validate(t *Ticket) error {
	if t == nil {
		return fmt.Errorf("nil record")
	}
	if t.ID == "" {
		return fmt.Errorf("missing id")
	}
	if t.OwnerID == "" {
		return fmt.Errorf("missing owner")
	}
	if t.Status == StatusClosed && t.ClosedAt == nil {
		return fmt.Errorf("closed ticket without closed_at")
	}
	return nil
}
