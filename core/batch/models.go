package batch

import (
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Batch is a group of students taught by a set of teachers for a Course.
type Batch struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	Name       string    `json:"name"`
	TeacherIDs []string  `json:"teacher_ids"`
	StudentIDs []string  `json:"student_ids"`
	StartsOn   time.Time `json:"starts_on,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (b Batch) resource() policy.Resource {
	return policy.Resource{Kind: policy.KindBatch, ID: b.ID, OwnerID: b.CreatedBy, Scope: policy.Batches(b.ID)}
}

type NewCourse struct {
	Name        string `json:"name" validate:"required,nonblank,max=200"`
	Description string `json:"description"`
}

func (nc *NewCourse) clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
}

type UpdateCourse struct {
	Name        *string `json:"name" validate:"omitempty,nonblank,max=200"`
	Description *string `json:"description"`
}

func (uc UpdateCourse) apply(c *Course) {
	if uc.Name != nil {
		c.Name = core.CleanString(*uc.Name)
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
}

type NewBatch struct {
	CourseID   string    `json:"course_id" validate:"required"`
	Name       string    `json:"name" validate:"required,nonblank,max=200"`
	TeacherIDs []string  `json:"teacher_ids"`
	StudentIDs []string  `json:"student_ids"`
	StartsOn   time.Time `json:"starts_on"`
}

func (nb *NewBatch) clean() {
	nb.CourseID = core.CleanString(nb.CourseID)
	nb.Name = core.CleanString(nb.Name)
	nb.TeacherIDs = core.CleanStrings(nb.TeacherIDs)
	nb.StudentIDs = core.CleanStrings(nb.StudentIDs)
}

// UpdateBatch replaces the populated fields of a Batch; member lists are replaced as a whole.
type UpdateBatch struct {
	Name       *string    `json:"name" validate:"omitempty,nonblank,max=200"`
	TeacherIDs *[]string  `json:"teacher_ids"`
	StudentIDs *[]string  `json:"student_ids"`
	StartsOn   *time.Time `json:"starts_on"`
}

func (ub UpdateBatch) apply(b *Batch) {
	if ub.Name != nil {
		b.Name = core.CleanString(*ub.Name)
	}
	if ub.TeacherIDs != nil {
		b.TeacherIDs = core.CleanStrings(*ub.TeacherIDs)
	}
	if ub.StudentIDs != nil {
		b.StudentIDs = core.CleanStrings(*ub.StudentIDs)
	}
	if ub.StartsOn != nil {
		b.StartsOn = ub.StartsOn.UTC()
	}
}

type CourseFilter struct {
	Search string   `query:"search"`
	IDs    []string `query:"-"`
}

// BatchFilter applies AND operation on the populated fields.
type BatchFilter struct {
	CourseID string   `query:"course_id"`
	IDs      []string `query:"-"`
}
