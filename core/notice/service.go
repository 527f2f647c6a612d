// Package notice manages the announcements published to batches.
package notice

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

var ErrNotFound = core.NewNotFoundError("notice")

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice) (Notice, error)
		GetNoticeByID(ctx context.Context, id string) (Notice, error)
		// FilterNotices returns the notices matching filter, newest first.
		FilterNotices(ctx context.Context, filter QueryFilter) ([]Notice, error)
		DeleteNotice(ctx context.Context, id string) error
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

func (svc *Service) Create(ctx context.Context, subj policy.Subject, nn NewNotice) (Notice, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindNotice)).Err(); err != nil {
		return Notice{}, err
	}
	nn.clean()
	if err := svc.validate.Struct(nn); err != nil {
		return Notice{}, err
	}
	if nn.Scope.IsEmpty() {
		return Notice{}, core.NewValidationError(nil, core.FieldError{
			Field: "scope",
			Error: "scope must be \"all\" or a non-empty list of batch ids",
		})
	}
	n, err := svc.repo.CreateNotice(ctx, Notice{
		ID:        uuid.NewString(),
		Title:     nn.Title,
		Body:      nn.Body,
		Scope:     nn.Scope,
		CreatedBy: subj.UserID,
		CreatedAt: svc.nowFunc(),
	})
	return n, errors.Wrap(err, "creating notice")
}

func (svc *Service) List(ctx context.Context, subj policy.Subject) ([]Notice, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindNotice))
	if err := d.Err(); err != nil {
		return nil, err
	}
	var filter QueryFilter
	if d.Filtered() {
		if d.Filter.IsEmpty() {
			return []Notice{}, nil
		}
		filter.Visible = &d.Filter
	}
	notices, err := svc.repo.FilterNotices(ctx, filter)
	return notices, errors.Wrap(err, "filtering notices")
}

func (svc *Service) Get(ctx context.Context, subj policy.Subject, id string) (Notice, error) {
	n, err := svc.repo.GetNoticeByID(ctx, id)
	if err != nil {
		return Notice{}, errors.Wrap(err, "finding notice by ID")
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, n.resource()).Allowed() {
		return Notice{}, ErrNotFound
	}
	return n, nil
}

// Delete removes the Notice with id. Owner or admin only.
func (svc *Service) Delete(ctx context.Context, subj policy.Subject, id string) error {
	n, err := svc.Get(ctx, subj, id)
	if err != nil {
		return err
	}
	if err = svc.policy.Authorize(subj, policy.ActionDelete, n.resource()).Err(); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteNotice(ctx, id), "deleting notice")
}
