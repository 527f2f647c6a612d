// Package batch manages courses and the batches that enrol students and assign teachers to them.
// Batch memberships are what the authorization policy scopes teachers and students by.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/user"
)

var (
	ErrCourseNotFound = core.NewNotFoundError("course")
	ErrBatchNotFound  = core.NewNotFoundError("batch")

	errCourseHasBatches = "course still has batches"
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		FilterCourses(ctx context.Context, filter CourseFilter) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateBatch(ctx context.Context, b Batch) (Batch, error)
		GetBatchByID(ctx context.Context, id string) (Batch, error)
		FilterBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
		UpdateBatch(ctx context.Context, b Batch) (Batch, error)
		DeleteBatch(ctx context.Context, id string) error

		// MemberBatchIDs returns the ids of the batches userID teaches (teacher) or attends (student).
		MemberBatchIDs(ctx context.Context, userID string, role core.Role) ([]string, error)
	}

	// Users resolves the members of a batch. user.Repository implements it.
	Users interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo     Repository
		users    Users
		policy   *policy.Policy
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, users Users, pol *policy.Policy, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		policy:   pol,
		validate: validate,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// Memberships returns the ids of the batches userID belongs to. Only teachers and students have any.
func (svc *Service) Memberships(ctx context.Context, userID string, role core.Role) ([]string, error) {
	if role != core.RoleTeacher && role != core.RoleStudent {
		return nil, nil
	}
	ids, err := svc.repo.MemberBatchIDs(ctx, userID, role)
	return ids, errors.Wrap(err, "finding batch memberships")
}

// Subject builds the policy subject of an authenticated user.
func (svc *Service) Subject(ctx context.Context, userID string, role core.Role) (policy.Subject, error) {
	ids, err := svc.Memberships(ctx, userID, role)
	if err != nil {
		return policy.Subject{}, err
	}
	return policy.Subject{UserID: userID, Role: role, BatchIDs: ids}, nil
}

// Courses

func (svc *Service) courseResource(ctx context.Context, c Course) (policy.Resource, error) {
	batches, err := svc.repo.FilterBatches(ctx, BatchFilter{CourseID: c.ID})
	if err != nil {
		return policy.Resource{}, errors.Wrap(err, "filtering batches")
	}
	ids := make([]string, 0, len(batches))
	for _, b := range batches {
		ids = append(ids, b.ID)
	}
	return policy.Resource{Kind: policy.KindCourse, ID: c.ID, OwnerID: c.CreatedBy, Scope: policy.Batches(ids...)}, nil
}

// CreateCourse adds a Course. Admin only.
func (svc *Service) CreateCourse(ctx context.Context, subj policy.Subject, nc NewCourse) (Course, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindCourse)).Err(); err != nil {
		return Course{}, err
	}
	nc.clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}
	now := svc.nowFunc()
	c, err := svc.repo.CreateCourse(ctx, Course{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Description: nc.Description,
		CreatedBy:   subj.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return c, errors.Wrap(err, "creating course")
}

// ListCourses returns every course for admins, and the courses of their batches for everyone else.
func (svc *Service) ListCourses(ctx context.Context, subj policy.Subject, filter CourseFilter) ([]Course, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindCourse))
	if err := d.Err(); err != nil {
		return nil, err
	}
	filter.Search = core.CleanString(filter.Search)
	filter.IDs = nil
	if d.Filtered() {
		if len(d.Filter.BatchIDs) == 0 {
			return []Course{}, nil
		}
		batches, err := svc.repo.FilterBatches(ctx, BatchFilter{IDs: d.Filter.BatchIDs})
		if err != nil {
			return nil, errors.Wrap(err, "filtering batches")
		}
		for _, b := range batches {
			filter.IDs = append(filter.IDs, b.CourseID)
		}
		filter.IDs = core.CleanStrings(filter.IDs)
		if len(filter.IDs) == 0 {
			return []Course{}, nil
		}
	}
	courses, err := svc.repo.FilterCourses(ctx, filter)
	return courses, errors.Wrap(err, "filtering courses")
}

// GetCourse returns the Course with id. Courses subj may not see are reported as not found.
func (svc *Service) GetCourse(ctx context.Context, subj policy.Subject, id string) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "finding course by ID")
	}
	res, err := svc.courseResource(ctx, c)
	if err != nil {
		return Course{}, err
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, res).Allowed() {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

// UpdateCourse modifies the Course with id. Admin only.
func (svc *Service) UpdateCourse(ctx context.Context, subj policy.Subject, id string, uc UpdateCourse) (Course, error) {
	res := policy.Resource{Kind: policy.KindCourse, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionUpdate, res).Err(); err != nil {
		return Course{}, err
	}
	if err := svc.validate.Struct(uc); err != nil {
		return Course{}, err
	}
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "finding course by ID")
	}
	uc.apply(&c)
	c.UpdatedAt = svc.nowFunc()
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "updating course")
}

// DeleteCourse removes the Course with id once it has no batch left. Admin only.
func (svc *Service) DeleteCourse(ctx context.Context, subj policy.Subject, id string) error {
	res := policy.Resource{Kind: policy.KindCourse, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionDelete, res).Err(); err != nil {
		return err
	}
	batches, err := svc.repo.FilterBatches(ctx, BatchFilter{CourseID: id})
	if err != nil {
		return errors.Wrap(err, "filtering batches")
	}
	if len(batches) > 0 {
		return core.NewValidationError(errors.New(errCourseHasBatches))
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, id), "deleting course")
}

// Batches

// checkMembers makes sure every id of ids is a user with role.
func (svc *Service) checkMembers(ctx context.Context, field string, ids []string, role core.Role) error {
	for _, id := range ids {
		usr, err := svc.users.GetUserByID(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(nil, core.FieldError{Field: field, Error: fmt.Sprintf("unknown user %q", id)})
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if usr.Role != role {
			return core.NewValidationError(nil, core.FieldError{Field: field, Error: fmt.Sprintf("user %q is not a %s", id, role)})
		}
	}
	return nil
}

func (svc *Service) checkBatch(ctx context.Context, b Batch) error {
	if err := svc.checkMembers(ctx, "teacher_ids", b.TeacherIDs, core.RoleTeacher); err != nil {
		return err
	}
	return svc.checkMembers(ctx, "student_ids", b.StudentIDs, core.RoleStudent)
}

// CreateBatch adds a Batch to an existing Course. Admin only.
func (svc *Service) CreateBatch(ctx context.Context, subj policy.Subject, nb NewBatch) (Batch, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindBatch)).Err(); err != nil {
		return Batch{}, err
	}
	nb.clean()
	if err := svc.validate.Struct(nb); err != nil {
		return Batch{}, err
	}
	if _, err := svc.repo.GetCourseByID(ctx, nb.CourseID); err != nil {
		if core.IsNotFound(err) {
			return Batch{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "unknown course"})
		}
		return Batch{}, errors.Wrap(err, "finding course by ID")
	}

	now := svc.nowFunc()
	b := Batch{
		ID:         uuid.NewString(),
		CourseID:   nb.CourseID,
		Name:       nb.Name,
		TeacherIDs: nb.TeacherIDs,
		StudentIDs: nb.StudentIDs,
		StartsOn:   nb.StartsOn.UTC(),
		CreatedBy:  subj.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := svc.checkBatch(ctx, b); err != nil {
		return Batch{}, err
	}
	b, err := svc.repo.CreateBatch(ctx, b)
	return b, errors.Wrap(err, "creating batch")
}

// ListBatches returns every batch for admins, and the batches they belong to for everyone else.
func (svc *Service) ListBatches(ctx context.Context, subj policy.Subject, filter BatchFilter) ([]Batch, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindBatch))
	if err := d.Err(); err != nil {
		return nil, err
	}
	filter.CourseID = core.CleanString(filter.CourseID)
	filter.IDs = nil
	if d.Filtered() {
		if len(d.Filter.BatchIDs) == 0 {
			return []Batch{}, nil
		}
		filter.IDs = d.Filter.BatchIDs
	}
	batches, err := svc.repo.FilterBatches(ctx, filter)
	return batches, errors.Wrap(err, "filtering batches")
}

// GetBatch returns the Batch with id. Batches subj may not see are reported as not found.
func (svc *Service) GetBatch(ctx context.Context, subj policy.Subject, id string) (Batch, error) {
	b, err := svc.repo.GetBatchByID(ctx, id)
	if err != nil {
		return Batch{}, errors.Wrap(err, "finding batch by ID")
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, b.resource()).Allowed() {
		return Batch{}, ErrBatchNotFound
	}
	return b, nil
}

// UpdateBatch modifies the Batch with id, members included. Admin only.
func (svc *Service) UpdateBatch(ctx context.Context, subj policy.Subject, id string, ub UpdateBatch) (Batch, error) {
	res := policy.Resource{Kind: policy.KindBatch, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionUpdate, res).Err(); err != nil {
		return Batch{}, err
	}
	if err := svc.validate.Struct(ub); err != nil {
		return Batch{}, err
	}
	b, err := svc.repo.GetBatchByID(ctx, id)
	if err != nil {
		return Batch{}, errors.Wrap(err, "finding batch by ID")
	}
	ub.apply(&b)
	if err = svc.checkBatch(ctx, b); err != nil {
		return Batch{}, err
	}
	b.UpdatedAt = svc.nowFunc()
	b, err = svc.repo.UpdateBatch(ctx, b)
	return b, errors.Wrap(err, "updating batch")
}

// DeleteBatch removes the Batch with id. Admin only.
func (svc *Service) DeleteBatch(ctx context.Context, subj policy.Subject, id string) error {
	res := policy.Resource{Kind: policy.KindBatch, ID: id}
	if err := svc.policy.Authorize(subj, policy.ActionDelete, res).Err(); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteBatch(ctx, id), "deleting batch")
}
