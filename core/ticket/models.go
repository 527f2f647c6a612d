package ticket

import (
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Ticket is a support request. Its creator never changes.
type Ticket struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Message       string    `json:"message"`
	Status        Status    `json:"status"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (t Ticket) resource() policy.Resource {
	return policy.Resource{Kind: policy.KindTicket, ID: t.ID, OwnerID: t.CreatedBy}
}

// NewTicket contains information needed to open a Ticket.
type NewTicket struct {
	Subject       string `json:"subject" form:"subject" validate:"required,nonblank,max=200"`
	Message       string `json:"message" form:"message" validate:"required,nonblank"`
	AttachmentURL string `json:"attachment_url" form:"attachment_url" validate:"omitempty,url"`
}

func (nt *NewTicket) clean() {
	nt.Subject = core.CleanString(nt.Subject)
	nt.Message = core.CleanString(nt.Message)
	nt.AttachmentURL = core.CleanString(nt.AttachmentURL)
}

type UpdateStatus struct {
	Status Status `json:"status" validate:"required,oneof=pending in_progress resolved"`
}

// QueryFilter applies AND operation on the populated fields.
type QueryFilter struct {
	CreatedBy string          `query:"-"`
	Statuses  []Status        `query:"status"`
	Ordering  string          `query:"ordering"`
	Orderings []core.Ordering `query:"-"`
}

// OrderingFields are the fields tickets can be ordered by.
var OrderingFields = []string{"subject", "status", "created_at", "updated_at"}

// EventType names what happened to a Ticket.
type EventType string

const (
	EventCreated       EventType = "ticket.created"
	EventStatusChanged EventType = "ticket.status_changed"
)

type Event struct {
	Type       EventType `json:"type"`
	Ticket     Ticket    `json:"ticket"`
	PrevStatus Status    `json:"prev_status,omitempty"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
