package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	_ "modernc.org/sqlite"

	"ticket-bot/config"
	"ticket-bot/ticket"
)

// Database is the durable audit trail of ticket lifecycle actions. It is
// separate from the ticket store on purpose: the store holds current
// state, the audit log holds history.
type Database interface {
	Init() error
	Close() error

	AddTicketEvent(ev ticket.Event) error
	GetTicketEvents(ticketID string, limit int) ([]ticket.Event, error)
}

// InitDB opens the configured backend.
func InitDB(cfg *config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case "sqlite":
		db := &SQLiteDB{Path: cfg.SQLite.Path}
		if err := db.Init(); err != nil {
			return nil, err
		}
		return db, nil

	case "mongodb":
		db := &MongoDB{URI: cfg.MongoDB.URI, DBName: cfg.MongoDB.Database}
		if err := db.Init(); err != nil {
			return nil, err
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s (use \"sqlite\" or \"mongodb\")", cfg.Driver)
	}
}

type SQLiteDB struct {
	Path string
	db   *sql.DB
}

func (s *SQLiteDB) Init() error {
	_ = os.MkdirAll(filepath.Dir(s.Path), 0755)

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("sqlite open: %w", err)
	}
	s.db = db

	schema := `
	CREATE TABLE IF NOT EXISTS ticket_events (
		id          TEXT PRIMARY KEY,
		ticket_id   TEXT NOT NULL,
		action      TEXT NOT NULL,
		actor_id    TEXT NOT NULL DEFAULT '',
		details     TEXT NOT NULL DEFAULT '',
		timestamp   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ticket_events_ticket ON ticket_events(ticket_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	log.Printf("[DB] SQLite audit log initialised at %s", s.Path)
	return nil
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDB) AddTicketEvent(ev ticket.Event) error {
	_, err := s.db.Exec(
		"INSERT INTO ticket_events (id, ticket_id, action, actor_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		ev.ID, ev.TicketID, ev.Action, ev.ActorID, ev.Details, ev.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteDB) GetTicketEvents(ticketID string, limit int) ([]ticket.Event, error) {
	rows, err := s.db.Query(
		"SELECT id, ticket_id, action, actor_id, details, timestamp FROM ticket_events WHERE ticket_id = ? ORDER BY timestamp LIMIT ?",
		ticketID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ticket.Event
	for rows.Next() {
		var ev ticket.Event
		var ts string
		if err := rows.Scan(&ev.ID, &ev.TicketID, &ev.Action, &ev.ActorID, &ev.Details, &ts); err != nil {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = parsed
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type MongoDB struct {
	URI    string
	DBName string

	client *mongo.Client
	events *mongo.Collection
}

func (m *MongoDB) Init() error {
	if m.URI == "" || m.DBName == "" {
		return fmt.Errorf("database.mongodb.uri and database.mongodb.database must be set to use driver=mongodb")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(m.URI))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	m.client = client
	m.events = client.Database(m.DBName).Collection("ticket_events")

	m.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ticket_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})

	log.Printf("[DB] MongoDB audit log initialised (database %s)", m.DBName)
	return nil
}

func (m *MongoDB) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) AddTicketEvent(ev ticket.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.events.InsertOne(ctx, bson.M{
		"event_id":  ev.ID,
		"ticket_id": ev.TicketID,
		"action":    ev.Action,
		"actor_id":  ev.ActorID,
		"details":   ev.Details,
		"timestamp": ev.Timestamp,
	})
	return err
}

func (m *MongoDB) GetTicketEvents(ticketID string, limit int) ([]ticket.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := m.events.Find(ctx, bson.M{"ticket_id": ticketID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []ticket.Event
	for cursor.Next(ctx) {
		var doc struct {
			EventID   string    `bson:"event_id"`
			TicketID  string    `bson:"ticket_id"`
			Action    string    `bson:"action"`
			ActorID   string    `bson:"actor_id"`
			Details   string    `bson:"details"`
			Timestamp time.Time `bson:"timestamp"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		events = append(events, ticket.Event{
			ID:        doc.EventID,
			TicketID:  doc.TicketID,
			Action:    doc.Action,
			ActorID:   doc.ActorID,
			Details:   doc.Details,
			Timestamp: doc.Timestamp,
		})
	}
	return events, cursor.Err()
}
