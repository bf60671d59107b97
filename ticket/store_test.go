package ticket

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "tickets.json"))
}

func openTicket(id, owner string, created time.Time) *Ticket {
	return &Ticket{
		ID:        id,
		OwnerID:   owner,
		Type:      TypeSupport,
		Status:    StatusOpen,
		Category:  "cat-support",
		CreatedAt: created,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	s := NewStore(path)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	closedAt := created.Add(2 * time.Hour)

	first := openTicket("100", "alice", created)
	first.Participants = []string{"carol"}
	second := &Ticket{
		ID:          "200",
		OwnerID:     "bob",
		Type:        TypePartnership,
		Status:      StatusClosed,
		Category:    "cat-partnership",
		CreatedAt:   created.Add(time.Minute),
		ClosedAt:    &closedAt,
		CloseReason: "resolved",
	}

	if err := s.Put(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.Put(second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewStore(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := loaded.Get("100")
	if got == nil {
		t.Fatal("ticket 100 missing after reload")
	}
	if got.OwnerID != "alice" || got.Type != TypeSupport || got.Status != StatusOpen {
		t.Fatalf("ticket 100 fields changed: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at changed: want %v, got %v", created, got.CreatedAt)
	}
	if len(got.Participants) != 1 || got.Participants[0] != "carol" {
		t.Fatalf("participants changed: %v", got.Participants)
	}

	got = loaded.Get("200")
	if got == nil {
		t.Fatal("ticket 200 missing after reload")
	}
	if got.Status != StatusClosed || got.CloseReason != "resolved" {
		t.Fatalf("ticket 200 fields changed: %+v", got)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(closedAt) {
		t.Fatalf("closed_at changed: %v", got.ClosedAt)
	}
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope", "tickets.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("load of missing file: %v", err)
	}
	if n := len(s.All()); n != 0 {
		t.Fatalf("expected empty store, got %d records", n)
	}
}

func TestStore_LoadIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	doc := `{
		"schema_version": 1,
		"future_field": {"x": 1},
		"tickets": [
			{"id": "1", "owner_id": "alice", "type": "support", "status": "open",
			 "category": "c", "created_at": "2025-03-01T10:00:00Z", "surprise": true}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Get("1") == nil {
		t.Fatal("record with unknown fields not loaded")
	}
}

func TestStore_LoadMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	if err := s.Load(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStore_PutValidation(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	t.Run("missing owner", func(t *testing.T) {
		err := s.Put(&Ticket{ID: "1", Status: StatusOpen, CreatedAt: now})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("duplicate id with conflicting owner", func(t *testing.T) {
		if err := s.Put(openTicket("1", "alice", now)); err != nil {
			t.Fatalf("put: %v", err)
		}
		err := s.Put(openTicket("1", "bob", now))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("upsert by same owner is fine", func(t *testing.T) {
		upd := openTicket("1", "alice", now)
		upd.Status = StatusTransferred
		if err := s.Put(upd); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if got := s.Get("1"); got.Status != StatusTransferred {
			t.Fatalf("upsert not applied: %+v", got)
		}
	})
}

func TestStore_CountOpenByOwner(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	a1 := openTicket("1", "alice", now)
	a2 := openTicket("2", "alice", now.Add(time.Second))
	a2.Status = StatusTransferred
	closedAt := now.Add(time.Minute)
	a3 := openTicket("3", "alice", now.Add(2*time.Second))
	a3.Status = StatusClosed
	a3.ClosedAt = &closedAt
	b1 := openTicket("4", "bob", now)

	for _, tk := range []*Ticket{a1, a2, a3, b1} {
		if err := s.Put(tk); err != nil {
			t.Fatalf("put %s: %v", tk.ID, err)
		}
	}

	// Transferred tickets still hold a channel and count as active.
	if n := s.CountOpenByOwner("alice"); n != 2 {
		t.Fatalf("alice open count: want 2, got %d", n)
	}
	if n := s.CountOpenByOwner("bob"); n != 1 {
		t.Fatalf("bob open count: want 1, got %d", n)
	}
	if open := s.FindOpenByOwner("alice"); len(open) != 2 || open[0].ID != "1" || open[1].ID != "2" {
		t.Fatalf("find open by owner: %v", open)
	}
}

func TestStore_SaveIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.json")
	s := NewStore(path)

	if err := s.Put(openTicket("1", "alice", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.Put(openTicket("2", "bob", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("second save: %v", err)
	}

	// No temp files may survive a successful save.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tickets-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}

	// And the durable copy must be a complete document.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("durable copy not parseable: %v", err)
	}
	if doc.SchemaVersion != schemaVersion || len(doc.Tickets) != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(openTicket("1", "alice", time.Now())); err != nil {
		t.Fatal(err)
	}

	got := s.Get("1")
	got.Status = StatusClosed
	got.Participants = append(got.Participants, "mallory")

	if fresh := s.Get("1"); fresh.Status != StatusOpen || len(fresh.Participants) != 0 {
		t.Fatalf("mutating a returned record leaked into the store: %+v", fresh)
	}
}
