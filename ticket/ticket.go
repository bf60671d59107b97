package ticket

import (
	"errors"
	"time"
)

// Type selects which Discord category a new ticket channel is created in.
type Type string

const (
	TypeSupport     Type = "support"
	TypePartnership Type = "partnership"
)

// Status is the lifecycle state of a ticket. Valid transitions are
// open → closed and open → transferred → closed; closed is terminal.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosed      Status = "closed"
	StatusTransferred Status = "transferred"
)

// Ticket is one user-initiated support or partnership interaction,
// bound 1:1 to a private channel while it is open or transferred.
// The ID is the Discord channel ID of that channel.
type Ticket struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Type         Type       `json:"type"`
	Status       Status     `json:"status"`
	Category     string     `json:"category"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CloseReason  string     `json:"close_reason,omitempty"`
	Participants []string   `json:"participants,omitempty"`
}

// HasParticipant reports whether userID was added to the ticket beyond
// the owner and staff.
func (t *Ticket) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (t *Ticket) clone() *Ticket {
	c := *t
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		c.ClosedAt = &ts
	}
	if t.Participants != nil {
		c.Participants = append([]string(nil), t.Participants...)
	}
	return &c
}

var (
	ErrRateLimited         = errors.New("you are doing that too frequently")
	ErrTicketLimitExceeded = errors.New("open ticket limit reached")
	ErrNotFound            = errors.New("ticket not found")
	ErrForbidden           = errors.New("missing permission for this ticket")
	ErrAlreadyClosed       = errors.New("ticket is already closed")
	ErrValidation          = errors.New("invalid ticket data")
	ErrPlatformUnavailable = errors.New("discord request failed")
)
