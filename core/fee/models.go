package fee

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusWaived  Status = "waived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusWaived:
		return true
	}
	return false
}

// Record is a fee owed by a student for a batch. Amount is in minor units of Currency.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	BatchID     string    `json:"batch_id,omitempty"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Status      Status    `json:"status"`
	PaidAt      null.Time `json:"paid_at"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r Record) resource() policy.Resource {
	res := policy.Resource{Kind: policy.KindFee, ID: r.ID, OwnerID: r.CreatedBy, StudentID: r.StudentID}
	if r.BatchID != "" {
		res.Scope = policy.Batches(r.BatchID)
	}
	return res
}

type NewRecord struct {
	StudentID   string    `json:"student_id" validate:"required"`
	BatchID     string    `json:"batch_id"`
	Amount      int64     `json:"amount" validate:"gt=0"`
	Currency    string    `json:"currency" validate:"required,len=3"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Status      Status    `json:"status" validate:"omitempty,oneof=pending paid overdue waived"`
}

func (nr *NewRecord) clean() {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.BatchID = core.CleanString(nr.BatchID)
	nr.Currency = core.CleanString(nr.Currency)
	nr.Description = core.CleanString(nr.Description)
	nr.Status = Status(core.CleanString(string(nr.Status), true /* lower */))
	if nr.Status == "" {
		nr.Status = StatusPending
	}
}

// UpdateRecord defines what may be changed on a Record. Nil fields are left untouched.
type UpdateRecord struct {
	Amount      *int64     `json:"amount" validate:"omitempty,gt=0"`
	Currency    *string    `json:"currency" validate:"omitempty,len=3"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=pending paid overdue waived"`
}

func (ur *UpdateRecord) clean() {
	if ur.Currency != nil {
		cur := core.CleanString(*ur.Currency)
		ur.Currency = &cur
	}
	if ur.Description != nil {
		desc := core.CleanString(*ur.Description)
		ur.Description = &desc
	}
	if ur.Status != nil {
		st := Status(core.CleanString(string(*ur.Status), true /* lower */))
		ur.Status = &st
	}
}

func (ur UpdateRecord) apply(r *Record, now time.Time) {
	if ur.Amount != nil {
		r.Amount = *ur.Amount
	}
	if ur.Currency != nil {
		r.Currency = *ur.Currency
	}
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	if ur.DueDate != nil {
		r.DueDate = ur.DueDate.UTC()
	}
	if ur.Status != nil && *ur.Status != r.Status {
		r.Status = *ur.Status
		if r.Status == StatusPaid {
			r.PaidAt = null.TimeFrom(now)
		} else {
			r.PaidAt = null.Time{}
		}
	}
	r.UpdatedAt = now
}

// QueryFilter applies AND operation on the populated fields.
// Visible, when set, keeps only the records it matches.
type QueryFilter struct {
	StudentID string               `query:"student_id"`
	BatchID   string               `query:"batch_id"`
	Statuses  []Status             `query:"status"`
	Visible   *policy.RecordFilter `query:"-"`
	Ordering  string               `query:"ordering"`
	Orderings []core.Ordering      `query:"-"`
}

// OrderingFields are the fields fee records can be ordered by.
var OrderingFields = []string{"amount", "due_date", "status", "created_at"}
