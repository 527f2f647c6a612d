// Package content manages study materials and class recordings.
package content

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

var (
	ErrNotFound = core.NewNotFoundError("content")

	errEmptyScope = "scope must be \"all\" or a non-empty list of batch ids"
)

type (
	Repository interface {
		CreateItem(ctx context.Context, it Item) (Item, error)
		GetItemByID(ctx context.Context, kind Kind, id string) (Item, error)
		// FilterItems returns the items matching filter, newest first.
		FilterItems(ctx context.Context, filter QueryFilter) ([]Item, error)
		UpdateItemScope(ctx context.Context, kind Kind, id string, scope policy.Scope, updatedAt time.Time) (Item, error)
		DeleteItem(ctx context.Context, kind Kind, id string) error
		AddView(ctx context.Context, v View) error
		// ListViews returns the views of the item with id, oldest first.
		ListViews(ctx context.Context, itemID string) ([]View, error)
	}

	// Service manages the items of a single Kind.
	Service struct {
		kind     Kind
		notFound error
		repo     Repository
		policy   *policy.Policy
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(kind Kind, repo Repository, pol *policy.Policy, validate *validator.Validate) *Service {
	return &Service{
		kind:     kind,
		notFound: core.NewNotFoundError(string(kind)),
		repo:     repo,
		policy:   pol,
		validate: validate,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) Kind() Kind { return svc.kind }

func checkScope(sc policy.Scope) error {
	if sc.IsEmpty() {
		return core.NewValidationError(nil, core.FieldError{Field: "scope", Error: errEmptyScope})
	}
	return nil
}

// CanCreate fails with a forbidden error unless subj may add items.
func (svc *Service) CanCreate(subj policy.Subject) error {
	return svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(svc.kind.policyKind())).Err()
}

// Check runs the checks of Create on ni and returns it cleaned. With pendingUpload the url may be
// empty: it is set once the uploaded file is stored.
func (svc *Service) Check(subj policy.Subject, ni NewItem, pendingUpload bool) (NewItem, error) {
	if err := svc.CanCreate(subj); err != nil {
		return NewItem{}, err
	}
	ni.clean()
	var err error
	if pendingUpload && ni.URL == "" {
		err = svc.validate.StructExcept(ni, "URL")
	} else {
		err = svc.validate.Struct(ni)
	}
	if err != nil {
		return NewItem{}, err
	}
	if err = checkScope(ni.Scope); err != nil {
		return NewItem{}, err
	}
	return ni, nil
}

// Create adds an Item owned by subj (teachers and admins).
func (svc *Service) Create(ctx context.Context, subj policy.Subject, ni NewItem) (Item, error) {
	ni, err := svc.Check(subj, ni, false)
	if err != nil {
		return Item{}, err
	}

	now := svc.nowFunc()
	it, err := svc.repo.CreateItem(ctx, Item{
		ID:          uuid.NewString(),
		Kind:        svc.kind,
		Title:       ni.Title,
		Description: ni.Description,
		URL:         ni.URL,
		Scope:       ni.Scope,
		CreatedBy:   subj.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return it, errors.Wrapf(err, "creating %s", svc.kind)
}

// List returns the items visible to subj.
func (svc *Service) List(ctx context.Context, subj policy.Subject, filter QueryFilter) ([]Item, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(svc.kind.policyKind()))
	if err := d.Err(); err != nil {
		return nil, err
	}
	filter.Kind = svc.kind
	filter.Search = core.CleanString(filter.Search)
	filter.Visible = nil
	if d.Filtered() {
		if d.Filter.IsEmpty() {
			return []Item{}, nil
		}
		filter.Visible = &d.Filter
	}
	items, err := svc.repo.FilterItems(ctx, filter)
	return items, errors.Wrapf(err, "filtering %ss", svc.kind)
}

// Get returns the Item with id. Items outside the scope of subj are reported as not found.
func (svc *Service) Get(ctx context.Context, subj policy.Subject, id string) (Item, error) {
	it, err := svc.repo.GetItemByID(ctx, svc.kind, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Item{}, svc.notFound
		}
		return Item{}, errors.Wrapf(err, "finding %s by ID", svc.kind)
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, it.resource()).Allowed() {
		return Item{}, svc.notFound
	}
	return it, nil
}

// UpdateScope changes the batches the Item with id is visible to. Owner or admin only.
func (svc *Service) UpdateScope(ctx context.Context, subj policy.Subject, id string, us UpdateScope) (Item, error) {
	it, err := svc.Get(ctx, subj, id)
	if err != nil {
		return Item{}, err
	}
	if err = svc.policy.Authorize(subj, policy.ActionUpdateScope, it.resource()).Err(); err != nil {
		return Item{}, err
	}
	if err = checkScope(us.Scope); err != nil {
		return Item{}, err
	}
	it, err = svc.repo.UpdateItemScope(ctx, svc.kind, id, us.Scope, svc.nowFunc())
	return it, errors.Wrapf(err, "updating %s scope", svc.kind)
}

// RecordView appends a view of the Item with id by subj. Every call appends.
func (svc *Service) RecordView(ctx context.Context, subj policy.Subject, id string) (View, error) {
	it, err := svc.Get(ctx, subj, id)
	if err != nil {
		return View{}, err
	}
	v := View{ItemID: it.ID, UserID: subj.UserID, ViewedAt: svc.nowFunc()}
	if err = svc.repo.AddView(ctx, v); err != nil {
		return View{}, errors.Wrapf(err, "recording %s view", svc.kind)
	}
	return v, nil
}

// Views returns the view log of the Item with id to the ones who may rescope it (owner or admin).
func (svc *Service) Views(ctx context.Context, subj policy.Subject, id string) ([]View, error) {
	it, err := svc.Get(ctx, subj, id)
	if err != nil {
		return nil, err
	}
	if err = svc.policy.Authorize(subj, policy.ActionUpdateScope, it.resource()).Err(); err != nil {
		return nil, err
	}
	views, err := svc.repo.ListViews(ctx, it.ID)
	return views, errors.Wrapf(err, "listing %s views", svc.kind)
}

// Delete removes the Item with id. Owner or admin only.
func (svc *Service) Delete(ctx context.Context, subj policy.Subject, id string) error {
	it, err := svc.Get(ctx, subj, id)
	if err != nil {
		return err
	}
	if err = svc.policy.Authorize(subj, policy.ActionDelete, it.resource()).Err(); err != nil {
		return err
	}
	return errors.Wrapf(svc.repo.DeleteItem(ctx, svc.kind, id), "deleting %s", svc.kind)
}
