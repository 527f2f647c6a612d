// Package ticket manages support tickets: anyone signed in opens them, admins move them along.
package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

var ErrNotFound = core.NewNotFoundError("ticket")

type (
	Repository interface {
		CreateTicket(ctx context.Context, t Ticket) (Ticket, error)
		GetTicketByID(ctx context.Context, id string) (Ticket, error)
		// FilterTickets returns the tickets matching filter, newest first.
		FilterTickets(ctx context.Context, filter QueryFilter) ([]Ticket, error)
		// UpdateTicketStatus sets the status of the ticket with id in a single write.
		UpdateTicketStatus(ctx context.Context, id string, status Status, updatedAt time.Time) (Ticket, error)
		DeleteTicket(ctx context.Context, id string) error
	}

	// Publisher broadcasts ticket events.
	Publisher interface {
		Publish(ctx context.Context, evt Event) error
	}

	Service struct {
		repo      Repository
		policy    *policy.Policy
		validate  *validator.Validate
		publisher Publisher
		logger    core.Logger
		nowFunc   func() time.Time
	}
)

// NewService returns a ticket Service. publisher may be nil.
func NewService(repo Repository, pol *policy.Policy, validate *validator.Validate, publisher Publisher, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		policy:    pol,
		validate:  validate,
		publisher: publisher,
		logger:    logger,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// Check runs the checks of Create on nt and returns it cleaned.
func (svc *Service) Check(subj policy.Subject, nt NewTicket) (NewTicket, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindTicket)).Err(); err != nil {
		return NewTicket{}, err
	}
	nt.clean()
	if err := svc.validate.Struct(nt); err != nil {
		return NewTicket{}, err
	}
	return nt, nil
}

// Create opens a pending Ticket owned by subj.
func (svc *Service) Create(ctx context.Context, subj policy.Subject, nt NewTicket) (Ticket, error) {
	nt, err := svc.Check(subj, nt)
	if err != nil {
		return Ticket{}, err
	}

	now := svc.nowFunc()
	t, err := svc.repo.CreateTicket(ctx, Ticket{
		ID:            uuid.NewString(),
		Subject:       nt.Subject,
		Message:       nt.Message,
		Status:        StatusPending,
		AttachmentURL: nt.AttachmentURL,
		CreatedBy:     subj.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Ticket{}, errors.Wrap(err, "creating ticket")
	}
	svc.publish(ctx, Event{Type: EventCreated, Ticket: t, ActorID: subj.UserID, OccurredAt: now})
	return t, nil
}

// List returns every ticket for admins and only their own tickets for everyone else.
func (svc *Service) List(ctx context.Context, subj policy.Subject, filter QueryFilter) ([]Ticket, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindTicket))
	if err := d.Err(); err != nil {
		return nil, err
	}
	if d.Filtered() {
		if d.Filter.OwnerID == "" {
			return []Ticket{}, nil
		}
		filter.CreatedBy = d.Filter.OwnerID
	}
	return svc.filter(ctx, filter)
}

// ListMine returns the tickets opened by subj, whatever its role.
func (svc *Service) ListMine(ctx context.Context, subj policy.Subject, filter QueryFilter) ([]Ticket, error) {
	if err := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindTicket)).Err(); err != nil {
		return nil, err
	}
	filter.CreatedBy = subj.UserID
	return svc.filter(ctx, filter)
}

func (svc *Service) filter(ctx context.Context, filter QueryFilter) ([]Ticket, error) {
	for _, s := range filter.Statuses {
		if !s.Valid() {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: fmt.Sprintf("unknown status %q", s)})
		}
	}
	orderings, err := core.ParseOrderings(filter.Ordering, OrderingFields...)
	if err != nil {
		return nil, err
	}
	filter.Orderings = orderings
	tickets, err := svc.repo.FilterTickets(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "filtering tickets")
	}
	return tickets, nil
}

// Get returns the Ticket with id. Tickets subj may not see are reported as not found.
func (svc *Service) Get(ctx context.Context, subj policy.Subject, id string) (Ticket, error) {
	t, err := svc.repo.GetTicketByID(ctx, id)
	if err != nil {
		return Ticket{}, errors.Wrap(err, "finding ticket by ID")
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, t.resource()).Allowed() {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

// UpdateStatus moves the Ticket with id to status. Admin only.
func (svc *Service) UpdateStatus(ctx context.Context, subj policy.Subject, id string, us UpdateStatus) (Ticket, error) {
	res := policy.Resource{Kind: policy.KindTicket, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionUpdate, res).Err(); err != nil {
		return Ticket{}, err
	}
	us.Status = Status(core.CleanString(string(us.Status), true /* lower */))
	if err := svc.validate.Struct(us); err != nil {
		return Ticket{}, err
	}

	prev, err := svc.repo.GetTicketByID(ctx, id)
	if err != nil {
		return Ticket{}, errors.Wrap(err, "finding ticket by ID")
	}
	now := svc.nowFunc()
	t, err := svc.repo.UpdateTicketStatus(ctx, id, us.Status, now)
	if err != nil {
		return Ticket{}, errors.Wrap(err, "updating ticket status")
	}
	if prev.Status != t.Status {
		svc.publish(ctx, Event{Type: EventStatusChanged, Ticket: t, PrevStatus: prev.Status, ActorID: subj.UserID, OccurredAt: now})
	}
	return t, nil
}

// Delete removes the Ticket with id. Admin only.
func (svc *Service) Delete(ctx context.Context, subj policy.Subject, id string) error {
	res := policy.Resource{Kind: policy.KindTicket, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionDelete, res).Err(); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteTicket(ctx, id), "deleting ticket")
}

// publish never fails the caller: the write already happened.
func (svc *Service) publish(ctx context.Context, evt Event) {
	if svc.publisher == nil {
		return
	}
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s for ticket %s: %v", evt.Type, evt.Ticket.ID, err), err)
	}
}
