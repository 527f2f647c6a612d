// Package fee manages the fee records of students.
package fee

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

var ErrNotFound = core.NewNotFoundError("fee")

type (
	Repository interface {
		CreateFee(ctx context.Context, r Record) (Record, error)
		GetFeeByID(ctx context.Context, id string) (Record, error)
		// FilterFees returns the records matching filter, by due date.
		FilterFees(ctx context.Context, filter QueryFilter) ([]Record, error)
		UpdateFee(ctx context.Context, r Record) (Record, error)
		DeleteFee(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		policy   *policy.Policy
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, pol *policy.Policy, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		policy:   pol,
		validate: validate,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a fee Record. Admin only.
func (svc *Service) Create(ctx context.Context, subj policy.Subject, nr NewRecord) (Record, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindFee)).Err(); err != nil {
		return Record{}, err
	}
	nr.clean()
	if err := svc.validate.Struct(nr); err != nil {
		return Record{}, err
	}

	now := svc.nowFunc()
	r := Record{
		ID:          uuid.NewString(),
		StudentID:   nr.StudentID,
		BatchID:     nr.BatchID,
		Amount:      nr.Amount,
		Currency:    strings.ToUpper(nr.Currency),
		Description: nr.Description,
		DueDate:     nr.DueDate.UTC(),
		Status:      nr.Status,
		CreatedBy:   subj.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.Status == StatusPaid {
		r.PaidAt = null.TimeFrom(now)
	}
	r, err := svc.repo.CreateFee(ctx, r)
	return r, errors.Wrap(err, "creating fee")
}

// List returns every record for admins, the records of their batches for teachers and
// their own records for students.
func (svc *Service) List(ctx context.Context, subj policy.Subject, filter QueryFilter) ([]Record, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindFee))
	if err := d.Err(); err != nil {
		return nil, err
	}
	orderings, err := core.ParseOrderings(filter.Ordering, OrderingFields...)
	if err != nil {
		return nil, err
	}
	filter.Orderings = orderings
	filter.Visible = nil
	if d.Filtered() {
		if d.Filter.IsEmpty() {
			return []Record{}, nil
		}
		filter.Visible = &d.Filter
	}
	records, err := svc.repo.FilterFees(ctx, filter)
	return records, errors.Wrap(err, "filtering fees")
}

// Get returns the Record with id. Records subj may not see are reported as not found.
func (svc *Service) Get(ctx context.Context, subj policy.Subject, id string) (Record, error) {
	r, err := svc.repo.GetFeeByID(ctx, id)
	if err != nil {
		return Record{}, errors.Wrap(err, "finding fee by ID")
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, r.resource()).Allowed() {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Update modifies the Record with id. Admin only.
func (svc *Service) Update(ctx context.Context, subj policy.Subject, id string, ur UpdateRecord) (Record, error) {
	r, err := svc.Get(ctx, subj, id)
	if err != nil {
		return Record{}, err
	}
	if err = svc.policy.Authorize(subj, policy.ActionUpdate, r.resource()).Err(); err != nil {
		return Record{}, err
	}
	ur.clean()
	if err = svc.validate.Struct(ur); err != nil {
		return Record{}, err
	}
	if ur.Currency != nil {
		cur := strings.ToUpper(*ur.Currency)
		ur.Currency = &cur
	}
	ur.apply(&r, svc.nowFunc())

	r, err = svc.repo.UpdateFee(ctx, r)
	return r, errors.Wrap(err, "updating fee")
}

// Delete removes the Record with id. Admin only.
func (svc *Service) Delete(ctx context.Context, subj policy.Subject, id string) error {
	res := policy.Resource{Kind: policy.KindFee, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionDelete, res).Err(); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteFee(ctx, id), "deleting fee")
}
