package ticket

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MissingChannelReason is the synthetic close reason for tickets whose
// channel disappeared while the bot was offline.
const MissingChannelReason = "channel missing on restart"

// Platform is everything the lifecycle manager needs from Discord.
// bot.Platform implements it against a live session; tests use fakes.
type Platform interface {
	// CreateTicketChannel creates a private text channel under the given
	// category, visible to the owner and the staff role only, and
	// returns its channel ID.
	CreateTicketChannel(name, categoryID, ownerID string) (string, error)
	DeleteChannel(channelID string) error
	MoveChannel(channelID, categoryID string) error
	GrantAccess(channelID, userID string) error
	ChannelExists(channelID string) (bool, error)
	// ChannelHistory returns the full message history, oldest first.
	ChannelHistory(channelID string) ([]Message, error)
	SendTranscript(destChannelID string, tr *Transcript, t *Ticket) error
	// NotifyOwner delivers a best-effort close notice by DM.
	NotifyOwner(ownerID string, t *Ticket) error
	// RestoreControls re-attaches the close controls to a surviving
	// ticket channel after a restart.
	RestoreControls(channelID string) error
	// ChannelsInCategory lists channel ID → name under a category, for
	// orphan detection.
	ChannelsInCategory(categoryID string) (map[string]string, error)
}

// AuditLog records lifecycle events durably. Implemented by the storage
// package; nil disables auditing.
type AuditLog interface {
	AddTicketEvent(ev Event) error
}

// Publisher pushes lifecycle events to a message broker; nil disables
// publishing.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Event is one audited lifecycle action.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	TicketID  string    `json:"ticket_id"`
	ActorID   string    `json:"actor_id"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config carries the Discord identifiers and tunables the manager needs.
type Config struct {
	SupportCategoryID     string
	PartnershipCategoryID string
	TransferCategoryID    string
	TranscriptsChannelID  string
	MaxTicketsPerUser     int
}

// Stats is the aggregate the /ticket stats command renders.
type Stats struct {
	Open        int
	Closed      int
	Transferred int
	Total       int
	PerType     map[Type]int
}

// Manager owns the ticket lifecycle: it is the only writer to the Store
// and the only component that talks to the Platform.
type Manager struct {
	store    *Store
	platform Platform
	limiter  *RateLimiter
	cfg      Config

	audit  AuditLog
	events Publisher

	now func() time.Time
}

func NewManager(store *Store, platform Platform, limiter *RateLimiter, cfg Config) *Manager {
	if cfg.MaxTicketsPerUser <= 0 {
		cfg.MaxTicketsPerUser = 1
	}
	return &Manager{
		store:    store,
		platform: platform,
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithAudit attaches a durable event log.
func (m *Manager) WithAudit(a AuditLog) *Manager {
	m.audit = a
	return m
}

// WithPublisher attaches a broker publisher.
func (m *Manager) WithPublisher(p Publisher) *Manager {
	m.events = p
	return m
}

// Lookup returns the ticket bound to the channel, or nil. Handlers use
// it to tell ticket channels from ordinary ones before acting.
func (m *Manager) Lookup(channelID string) *Ticket {
	return m.store.Get(channelID)
}

// Open creates a ticket for the owner. unlimited skips the per-user cap
// (members holding the unlimited-tickets role). A ticket whose channel
// was created but whose record cannot be persisted is rolled back so no
// non-functional ticket survives.
func (m *Manager) Open(ownerID, ownerName string, typ Type, unlimited bool) (*Ticket, error) {
	if !m.limiter.Allow(ownerID, "open") {
		return nil, ErrRateLimited
	}
	if !unlimited && m.store.CountOpenByOwner(ownerID) >= m.cfg.MaxTicketsPerUser {
		return nil, ErrTicketLimitExceeded
	}

	categoryID, err := m.categoryFor(typ)
	if err != nil {
		return nil, err
	}

	channelID, err := m.platform.CreateTicketChannel(channelName(typ, ownerName), categoryID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: create channel: %v", ErrPlatformUnavailable, err)
	}

	t := &Ticket{
		ID:        channelID,
		OwnerID:   ownerID,
		Type:      typ,
		Status:    StatusOpen,
		Category:  categoryID,
		CreatedAt: m.now(),
	}

	if err := m.store.Put(t); err != nil {
		m.rollbackChannel(channelID)
		return nil, err
	}
	if err := m.store.Save(); err != nil {
		m.store.Delete(channelID)
		m.rollbackChannel(channelID)
		return nil, fmt.Errorf("persist ticket %s: %w", channelID, err)
	}

	m.emit("created", channelID, ownerID, string(typ))
	log.Printf("[ticket] opened %s ticket %s for %s", typ, channelID, ownerID)
	return t, nil
}

// Close ends a ticket: transcript to the transcripts channel, best-effort
// DM to the owner, channel deletion, then the persisted status flip.
// Only the owner or staff may close. The channel is deleted before the
// record is persisted so that a crash in between is healed by
// RestoreAfterRestart rather than leaving a closed record with a live
// channel.
func (m *Manager) Close(ticketID, closedBy string, isStaff bool, reason string) error {
	t := m.store.Get(ticketID)
	if t == nil {
		return ErrNotFound
	}
	if t.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	if !isStaff && closedBy != t.OwnerID {
		return ErrForbidden
	}

	msgs, err := m.platform.ChannelHistory(ticketID)
	if err != nil {
		log.Printf("[ticket] history fetch for %s failed, transcript will be empty: %v", ticketID, err)
	}
	tr := &Transcript{ChannelID: ticketID, GeneratedAt: m.now(), Messages: msgs}

	now := m.now()
	t.Status = StatusClosed
	t.ClosedAt = &now
	t.CloseReason = reason

	if m.cfg.TranscriptsChannelID != "" {
		// Resending a transcript is idempotent, so one bounded retry.
		if err := m.platform.SendTranscript(m.cfg.TranscriptsChannelID, tr, t); err != nil {
			log.Printf("[ticket] transcript delivery for %s failed, retrying once: %v", ticketID, err)
			if err := m.platform.SendTranscript(m.cfg.TranscriptsChannelID, tr, t); err != nil {
				log.Printf("[ticket] transcript delivery for %s failed again: %v", ticketID, err)
			}
		}
	}

	if err := m.platform.NotifyOwner(t.OwnerID, t); err != nil {
		log.Printf("[ticket] close DM to %s failed: %v", t.OwnerID, err)
	}

	if err := m.platform.DeleteChannel(ticketID); err != nil {
		return fmt.Errorf("%w: delete channel: %v", ErrPlatformUnavailable, err)
	}

	if err := m.store.Put(t); err != nil {
		return err
	}
	if err := m.store.Save(); err != nil {
		return fmt.Errorf("persist close of %s: %w", ticketID, err)
	}

	m.emit("closed", ticketID, closedBy, reason)
	log.Printf("[ticket] closed %s by %s", ticketID, closedBy)
	return nil
}

// Transfer moves the ticket channel to the transfer category. Staff only.
// Transferred tickets can still be closed.
func (m *Manager) Transfer(ticketID, movedBy string, isStaff bool) error {
	if !isStaff {
		return ErrForbidden
	}
	t := m.store.Get(ticketID)
	if t == nil {
		return ErrNotFound
	}
	if t.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	if m.cfg.TransferCategoryID == "" {
		return fmt.Errorf("%w: transfer category not configured", ErrValidation)
	}

	if err := m.platform.MoveChannel(ticketID, m.cfg.TransferCategoryID); err != nil {
		return fmt.Errorf("%w: move channel: %v", ErrPlatformUnavailable, err)
	}

	t.Status = StatusTransferred
	t.Category = m.cfg.TransferCategoryID
	if err := m.store.Put(t); err != nil {
		return err
	}
	if err := m.store.Save(); err != nil {
		return fmt.Errorf("persist transfer of %s: %w", ticketID, err)
	}

	m.emit("transferred", ticketID, movedBy, "")
	log.Printf("[ticket] transferred %s by %s", ticketID, movedBy)
	return nil
}

// AddUser grants a user access to the ticket channel. Staff only.
// Adding a user who already has access is a no-op success.
func (m *Manager) AddUser(ticketID, userID, addedBy string, isStaff bool) error {
	if !isStaff {
		return ErrForbidden
	}
	t := m.store.Get(ticketID)
	if t == nil {
		return ErrNotFound
	}
	if t.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	if userID == t.OwnerID || t.HasParticipant(userID) {
		return nil
	}

	if err := m.platform.GrantAccess(ticketID, userID); err != nil {
		return fmt.Errorf("%w: grant access: %v", ErrPlatformUnavailable, err)
	}

	t.Participants = append(t.Participants, userID)
	if err := m.store.Put(t); err != nil {
		return err
	}
	if err := m.store.Save(); err != nil {
		return fmt.Errorf("persist participant on %s: %w", ticketID, err)
	}

	m.emit("user_added", ticketID, addedBy, userID)
	return nil
}

// Statistics aggregates over every retained record.
func (m *Manager) Statistics() Stats {
	st := Stats{PerType: make(map[Type]int)}
	for _, t := range m.store.All() {
		st.Total++
		st.PerType[t.Type]++
		switch t.Status {
		case StatusOpen:
			st.Open++
		case StatusClosed:
			st.Closed++
		case StatusTransferred:
			st.Transferred++
		}
	}
	return st
}

// RestoreAfterRestart reconciles the store with Discord once at startup,
// before any new events are handled. Tickets whose channel vanished
// while the bot was offline are auto-closed with a synthetic reason;
// surviving channels get their close controls re-attached. Channels that
// look like tickets but have no record are logged as orphans.
func (m *Manager) RestoreAfterRestart() error {
	reconciled := 0
	restored := 0

	for _, t := range m.store.All() {
		if t.Status == StatusClosed {
			continue
		}

		exists, err := m.platform.ChannelExists(t.ID)
		if err != nil {
			log.Printf("[ticket] restore: cannot check channel %s: %v", t.ID, err)
			continue
		}

		if !exists {
			now := m.now()
			t.Status = StatusClosed
			t.ClosedAt = &now
			t.CloseReason = MissingChannelReason
			if err := m.store.Put(t); err != nil {
				log.Printf("[ticket] restore: cannot reconcile %s: %v", t.ID, err)
				continue
			}
			m.emit("closed", t.ID, "", MissingChannelReason)
			reconciled++
			continue
		}

		if err := m.platform.RestoreControls(t.ID); err != nil {
			log.Printf("[ticket] restore: controls for %s: %v", t.ID, err)
		}
		restored++
	}

	if reconciled > 0 {
		if err := m.store.Save(); err != nil {
			return fmt.Errorf("persist restart reconciliation: %w", err)
		}
	}

	m.scanOrphans()
	log.Printf("[ticket] restore complete: %d active restored, %d reconciled as missing", restored, reconciled)
	return nil
}

// scanOrphans logs ticket-looking channels with no record. Best effort:
// a crash between channel creation and persist can leave these behind,
// and they need a manual close.
func (m *Manager) scanOrphans() {
	categories := []string{m.cfg.SupportCategoryID, m.cfg.PartnershipCategoryID, m.cfg.TransferCategoryID}
	for _, cat := range categories {
		if cat == "" {
			continue
		}
		channels, err := m.platform.ChannelsInCategory(cat)
		if err != nil {
			log.Printf("[ticket] orphan scan of category %s failed: %v", cat, err)
			continue
		}
		for id, name := range channels {
			if strings.HasPrefix(name, "ticket-") && m.store.Get(id) == nil {
				log.Printf("[ticket] orphan channel %s (%s) has no record; close it manually", id, name)
			}
		}
	}
}

func (m *Manager) categoryFor(typ Type) (string, error) {
	switch typ {
	case TypeSupport:
		if m.cfg.SupportCategoryID != "" {
			return m.cfg.SupportCategoryID, nil
		}
	case TypePartnership:
		if m.cfg.PartnershipCategoryID != "" {
			return m.cfg.PartnershipCategoryID, nil
		}
	default:
		return "", fmt.Errorf("%w: unknown ticket type %q", ErrValidation, typ)
	}
	return "", fmt.Errorf("%w: no category configured for %s tickets", ErrValidation, typ)
}

func (m *Manager) rollbackChannel(channelID string) {
	if err := m.platform.DeleteChannel(channelID); err != nil {
		log.Printf("[ticket] rollback of channel %s failed: %v", channelID, err)
	}
}

// emit records an audit event and publishes it. Both sinks are best
// effort: a dead broker or database must not fail the operation.
func (m *Manager) emit(action, ticketID, actorID, details string) {
	ev := Event{
		ID:        uuid.NewString(),
		Action:    action,
		TicketID:  ticketID,
		ActorID:   actorID,
		Details:   details,
		Timestamp: m.now(),
	}
	if m.audit != nil {
		if err := m.audit.AddTicketEvent(ev); err != nil {
			log.Printf("[ticket] audit %s for %s failed: %v", action, ticketID, err)
		}
	}
	if m.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.events.Publish(ctx, "ticket."+action, ev); err != nil {
			log.Printf("[events] publish ticket.%s for %s failed: %v", action, ticketID, err)
		}
	}
}

// channelName builds a Discord-safe channel name like
// ticket-support-somebody.
func channelName(typ Type, ownerName string) string {
	name := strings.ToLower(ownerName)
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}
	cleaned := strings.Trim(sb.String(), "-")
	if cleaned == "" {
		cleaned = "user"
	}
	return fmt.Sprintf("ticket-%s-%s", typ, cleaned)
}
