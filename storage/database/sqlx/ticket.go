package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ticket"
)

const ticketColumns = `id, subject, message, status, attachment_url, created_by, created_at, updated_at`

type ticketRow struct {
	ID            string      `db:"id"`
	Subject       string      `db:"subject"`
	Message       string      `db:"message"`
	Status        string      `db:"status"`
	AttachmentURL null.String `db:"attachment_url"`
	CreatedBy     string      `db:"created_by"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r ticketRow) ticket() ticket.Ticket {
	return ticket.Ticket{
		ID:            r.ID,
		Subject:       r.Subject,
		Message:       r.Message,
		Status:        ticket.Status(r.Status),
		AttachmentURL: r.AttachmentURL.String,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type ticketRepository struct {
	db *sqlx.DB
}

var _ ticket.Repository = (*ticketRepository)(nil) // interface compliance check

func NewTicketRepository(db *sqlx.DB) *ticketRepository {
	return &ticketRepository{db: db}
}

func (repo *ticketRepository) CreateTicket(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	row := ticketRow{
		ID:            t.ID,
		Subject:       t.Subject,
		Message:       t.Message,
		Status:        string(t.Status),
		AttachmentURL: null.NewString(t.AttachmentURL, t.AttachmentURL != ""),
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
	q := `INSERT INTO ticket (` + ticketColumns + `)
		VALUES (:id, :subject, :message, :status, :attachment_url, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return ticket.Ticket{}, core.NewStoreError("creating ticket", err)
	}
	return row.ticket(), nil
}

func (repo *ticketRepository) GetTicketByID(ctx context.Context, id string) (ticket.Ticket, error) {
	if !validID(id) {
		return ticket.Ticket{}, ticket.ErrNotFound
	}
	var row ticketRow
	q := repo.db.Rebind(`SELECT ` + ticketColumns + ` FROM ticket WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return ticket.Ticket{}, storeErr("finding ticket", err, ticket.ErrNotFound)
	}
	return row.ticket(), nil
}

func (repo *ticketRepository) FilterTickets(ctx context.Context, filter ticket.QueryFilter) ([]ticket.Ticket, error) {
	var qb query
	if filter.CreatedBy != "" {
		if !validID(filter.CreatedBy) {
			return []ticket.Ticket{}, nil
		}
		qb.and("created_by = ?", filter.CreatedBy)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		qb.and("status = ANY(?)", pq.Array(statuses))
	}

	var rows []ticketRow
	q, args := qb.build(repo.db, `SELECT `+ticketColumns+` FROM ticket`, orderBy(filter.Orderings, ticket.OrderingFields, "created_at DESC"))
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering tickets", err)
	}
	tickets := make([]ticket.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, row.ticket())
	}
	return tickets, nil
}

func (repo *ticketRepository) UpdateTicketStatus(ctx context.Context, id string, status ticket.Status, updatedAt time.Time) (ticket.Ticket, error) {
	if !validID(id) {
		return ticket.Ticket{}, ticket.ErrNotFound
	}
	var row ticketRow
	q := repo.db.Rebind(`UPDATE ticket SET status = ?, updated_at = ? WHERE id = ? RETURNING ` + ticketColumns)
	if err := repo.db.GetContext(ctx, &row, q, string(status), updatedAt.UTC(), id); err != nil {
		return ticket.Ticket{}, storeErr("updating ticket status", err, ticket.ErrNotFound)
	}
	return row.ticket(), nil
}

func (repo *ticketRepository) DeleteTicket(ctx context.Context, id string) error {
	if !validID(id) {
		return ticket.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM ticket WHERE id = ?`), id)
	if err != nil {
		return core.NewStoreError("deleting ticket", err)
	}
	return checkAffected("deleting ticket", res, ticket.ErrNotFound)
}
