package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
)

const feeColumns = `id, student_id, batch_id, amount, currency, description, due_date, status, paid_at,
	created_by, created_at, updated_at`

type feeRow struct {
	ID          string      `db:"id"`
	StudentID   string      `db:"student_id"`
	BatchID     null.String `db:"batch_id"`
	Amount      int64       `db:"amount"`
	Currency    string      `db:"currency"`
	Description null.String `db:"description"`
	DueDate     time.Time   `db:"due_date"`
	Status      string      `db:"status"`
	PaidAt      null.Time   `db:"paid_at"`
	CreatedBy   string      `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toFeeRow(r fee.Record) feeRow {
	return feeRow{
		ID:          r.ID,
		StudentID:   r.StudentID,
		BatchID:     null.NewString(r.BatchID, r.BatchID != ""),
		Amount:      r.Amount,
		Currency:    r.Currency,
		Description: null.NewString(r.Description, r.Description != ""),
		DueDate:     r.DueDate.UTC(),
		Status:      string(r.Status),
		PaidAt:      null.NewTime(r.PaidAt.Time.UTC(), r.PaidAt.Valid),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r feeRow) record() fee.Record {
	rec := fee.Record{
		ID:          r.ID,
		StudentID:   r.StudentID,
		BatchID:     r.BatchID.String,
		Amount:      r.Amount,
		Currency:    strings.TrimSpace(r.Currency),
		Description: r.Description.String,
		DueDate:     r.DueDate.UTC(),
		Status:      fee.Status(r.Status),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.PaidAt.Valid {
		rec.PaidAt = null.TimeFrom(r.PaidAt.Time.UTC())
	}
	return rec
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFee(ctx context.Context, r fee.Record) (fee.Record, error) {
	row := toFeeRow(r)
	q := `INSERT INTO fee (` + feeColumns + `) VALUES (:id, :student_id, :batch_id, :amount, :currency, :description,
		:due_date, :status, :paid_at, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return fee.Record{}, core.NewStoreError("creating fee", err)
	}
	return row.record(), nil
}

func (repo *feeRepository) GetFeeByID(ctx context.Context, id string) (fee.Record, error) {
	if !validID(id) {
		return fee.Record{}, fee.ErrNotFound
	}
	var row feeRow
	q := repo.db.Rebind(`SELECT ` + feeColumns + ` FROM fee WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return fee.Record{}, storeErr("finding fee", err, fee.ErrNotFound)
	}
	return row.record(), nil
}

func (repo *feeRepository) FilterFees(ctx context.Context, filter fee.QueryFilter) ([]fee.Record, error) {
	var qb query
	if filter.StudentID != "" {
		if !validID(filter.StudentID) {
			return []fee.Record{}, nil
		}
		qb.and("student_id = ?", filter.StudentID)
	}
	if filter.BatchID != "" {
		if !validID(filter.BatchID) {
			return []fee.Record{}, nil
		}
		qb.and("batch_id = ?", filter.BatchID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		qb.and("status = ANY(?)", pq.Array(statuses))
	}
	if f := filter.Visible; f != nil {
		var conds []cond
		if validID(f.OwnerID) {
			conds = append(conds, cond{clause: "created_by = ?", args: []interface{}{f.OwnerID}})
		}
		if validID(f.StudentID) {
			conds = append(conds, cond{clause: "student_id = ?", args: []interface{}{f.StudentID}})
		}
		if batchIDs := validIDs(f.BatchIDs); len(batchIDs) > 0 {
			conds = append(conds, cond{clause: "batch_id = ANY(?)", args: []interface{}{pq.Array(batchIDs)}})
		}
		qb.anyOf(conds...)
	}

	var rows []feeRow
	q, args := qb.build(repo.db, `SELECT `+feeColumns+` FROM fee`, orderBy(filter.Orderings, fee.OrderingFields, "due_date"))
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering fees", err)
	}
	records := make([]fee.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo *feeRepository) UpdateFee(ctx context.Context, r fee.Record) (fee.Record, error) {
	if !validID(r.ID) {
		return fee.Record{}, fee.ErrNotFound
	}
	row := toFeeRow(r)
	q := `UPDATE fee SET amount = :amount, currency = :currency, description = :description, due_date = :due_date,
		status = :status, paid_at = :paid_at, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fee.Record{}, core.NewStoreError("updating fee", err)
	}
	if err = checkAffected("updating fee", res, fee.ErrNotFound); err != nil {
		return fee.Record{}, err
	}
	return repo.GetFeeByID(ctx, r.ID)
}

func (repo *feeRepository) DeleteFee(ctx context.Context, id string) error {
	if !validID(id) {
		return fee.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM fee WHERE id = ?`), id)
	if err != nil {
		return core.NewStoreError("deleting fee", err)
	}
	return checkAffected("deleting fee", res, fee.ErrNotFound)
}
