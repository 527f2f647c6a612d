package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/academia/core/ticket"
)

type ticketRepository struct {
	db *ticketTable
}

var _ ticket.Repository = (*ticketRepository)(nil) // interface compliance check

func NewTicketRepository(db *DB) *ticketRepository {
	return &ticketRepository{db: db.ticket}
}

func (repo *ticketRepository) CreateTicket(_ context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *ticketRepository) GetTicketByID(_ context.Context, id string) (ticket.Ticket, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return ticket.Ticket{}, ticket.ErrNotFound
}

func (repo *ticketRepository) FilterTickets(_ context.Context, filter ticket.QueryFilter) ([]ticket.Ticket, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tickets := make([]ticket.Ticket, 0)
	for _, t := range repo.db.table {
		if filter.CreatedBy != "" && t.CreatedBy != filter.CreatedBy {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, t.Status) {
			continue
		}
		tickets = append(tickets, *t)
	}
	sortBy(tickets, filter.Orderings, compareTickets, func(a, b ticket.Ticket) bool { return a.CreatedAt.After(b.CreatedAt) })
	return tickets, nil
}

func compareTickets(a, b ticket.Ticket, field string) int {
	switch field {
	case "subject":
		return compareStrings(a.Subject, b.Subject)
	case "status":
		return compareStrings(string(a.Status), string(b.Status))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func (repo *ticketRepository) UpdateTicketStatus(_ context.Context, id string, status ticket.Status, updatedAt time.Time) (ticket.Ticket, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return ticket.Ticket{}, ticket.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = updatedAt
	return *t, nil
}

func (repo *ticketRepository) DeleteTicket(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[id]; !ok {
		return ticket.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func hasStatus(statuses []ticket.Status, s ticket.Status) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}
