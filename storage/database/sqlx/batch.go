package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/batch"
)

const (
	courseColumns = `id, name, description, created_by, created_at, updated_at`
	batchColumns  = `id, course_id, name, teacher_ids, student_ids, starts_on, created_by, created_at, updated_at`
)

type courseRow struct {
	ID          string      `db:"id"`
	Name        string      `db:"name"`
	Description null.String `db:"description"`
	CreatedBy   string      `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toCourseRow(c batch.Course) courseRow {
	return courseRow{
		ID:          c.ID,
		Name:        c.Name,
		Description: null.NewString(c.Description, c.Description != ""),
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (r courseRow) course() batch.Course {
	return batch.Course{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type batchRow struct {
	ID         string         `db:"id"`
	CourseID   string         `db:"course_id"`
	Name       string         `db:"name"`
	TeacherIDs pq.StringArray `db:"teacher_ids"`
	StudentIDs pq.StringArray `db:"student_ids"`
	StartsOn   null.Time      `db:"starts_on"`
	CreatedBy  string         `db:"created_by"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func nonNil(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ss)
}

func toBatchRow(b batch.Batch) batchRow {
	return batchRow{
		ID:         b.ID,
		CourseID:   b.CourseID,
		Name:       b.Name,
		TeacherIDs: nonNil(b.TeacherIDs),
		StudentIDs: nonNil(b.StudentIDs),
		StartsOn:   null.NewTime(b.StartsOn.UTC(), !b.StartsOn.IsZero()),
		CreatedBy:  b.CreatedBy,
		CreatedAt:  b.CreatedAt.UTC(),
		UpdatedAt:  b.UpdatedAt.UTC(),
	}
}

func (r batchRow) batch() batch.Batch {
	b := batch.Batch{
		ID:         r.ID,
		CourseID:   r.CourseID,
		Name:       r.Name,
		TeacherIDs: []string(r.TeacherIDs),
		StudentIDs: []string(r.StudentIDs),
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.StartsOn.Valid {
		b.StartsOn = r.StartsOn.Time.UTC()
	}
	return b
}

type batchRepository struct {
	db *sqlx.DB
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *sqlx.DB) *batchRepository {
	return &batchRepository{db: db}
}

// Courses

func (repo *batchRepository) CreateCourse(ctx context.Context, c batch.Course) (batch.Course, error) {
	row := toCourseRow(c)
	q := `INSERT INTO course (` + courseColumns + `)
		VALUES (:id, :name, :description, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return batch.Course{}, core.NewStoreError("creating course", err)
	}
	return row.course(), nil
}

func (repo *batchRepository) GetCourseByID(ctx context.Context, id string) (batch.Course, error) {
	if !validID(id) {
		return batch.Course{}, batch.ErrCourseNotFound
	}
	var row courseRow
	q := repo.db.Rebind(`SELECT ` + courseColumns + ` FROM course WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return batch.Course{}, storeErr("finding course", err, batch.ErrCourseNotFound)
	}
	return row.course(), nil
}

func (repo *batchRepository) FilterCourses(ctx context.Context, filter batch.CourseFilter) ([]batch.Course, error) {
	var qb query
	if filter.Search != "" {
		qb.and("name ILIKE ?", likePattern(filter.Search))
	}
	if len(filter.IDs) > 0 {
		qb.and("id = ANY(?)", pq.Array(validIDs(filter.IDs)))
	}

	var rows []courseRow
	q, args := qb.build(repo.db, `SELECT `+courseColumns+` FROM course`, "name")
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering courses", err)
	}
	courses := make([]batch.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo *batchRepository) UpdateCourse(ctx context.Context, c batch.Course) (batch.Course, error) {
	if !validID(c.ID) {
		return batch.Course{}, batch.ErrCourseNotFound
	}
	row := toCourseRow(c)
	q := `UPDATE course SET name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return batch.Course{}, core.NewStoreError("updating course", err)
	}
	if err = checkAffected("updating course", res, batch.ErrCourseNotFound); err != nil {
		return batch.Course{}, err
	}
	return repo.GetCourseByID(ctx, c.ID)
}

func (repo *batchRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validID(id) {
		return batch.ErrCourseNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM course WHERE id = ?`), id)
	if err != nil {
		return core.NewStoreError("deleting course", err)
	}
	return checkAffected("deleting course", res, batch.ErrCourseNotFound)
}

// Batches

func (repo *batchRepository) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	row := toBatchRow(b)
	q := `INSERT INTO batch (` + batchColumns + `) VALUES (:id, :course_id, :name, :teacher_ids, :student_ids,
		:starts_on, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return batch.Batch{}, batch.ErrCourseNotFound
		}
		return batch.Batch{}, core.NewStoreError("creating batch", err)
	}
	return row.batch(), nil
}

func (repo *batchRepository) GetBatchByID(ctx context.Context, id string) (batch.Batch, error) {
	if !validID(id) {
		return batch.Batch{}, batch.ErrBatchNotFound
	}
	var row batchRow
	q := repo.db.Rebind(`SELECT ` + batchColumns + ` FROM batch WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return batch.Batch{}, storeErr("finding batch", err, batch.ErrBatchNotFound)
	}
	return row.batch(), nil
}

func (repo *batchRepository) FilterBatches(ctx context.Context, filter batch.BatchFilter) ([]batch.Batch, error) {
	var qb query
	if filter.CourseID != "" {
		if !validID(filter.CourseID) {
			return []batch.Batch{}, nil
		}
		qb.and("course_id = ?", filter.CourseID)
	}
	if len(filter.IDs) > 0 {
		qb.and("id = ANY(?)", pq.Array(validIDs(filter.IDs)))
	}

	var rows []batchRow
	q, args := qb.build(repo.db, `SELECT `+batchColumns+` FROM batch`, "name")
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering batches", err)
	}
	batches := make([]batch.Batch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, row.batch())
	}
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	if !validID(b.ID) {
		return batch.Batch{}, batch.ErrBatchNotFound
	}
	row := toBatchRow(b)
	q := `UPDATE batch SET name = :name, teacher_ids = :teacher_ids, student_ids = :student_ids,
		starts_on = :starts_on, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return batch.Batch{}, core.NewStoreError("updating batch", err)
	}
	if err = checkAffected("updating batch", res, batch.ErrBatchNotFound); err != nil {
		return batch.Batch{}, err
	}
	return repo.GetBatchByID(ctx, b.ID)
}

func (repo *batchRepository) DeleteBatch(ctx context.Context, id string) error {
	if !validID(id) {
		return batch.ErrBatchNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM batch WHERE id = ?`), id)
	if err != nil {
		return core.NewStoreError("deleting batch", err)
	}
	return checkAffected("deleting batch", res, batch.ErrBatchNotFound)
}

func (repo *batchRepository) MemberBatchIDs(ctx context.Context, userID string, role core.Role) ([]string, error) {
	var col string
	switch role {
	case core.RoleTeacher:
		col = "teacher_ids"
	case core.RoleStudent:
		col = "student_ids"
	default:
		return []string{}, nil
	}
	ids := make([]string, 0)
	q := repo.db.Rebind(`SELECT id FROM batch WHERE ? = ANY(` + col + `) ORDER BY id`)
	if err := repo.db.SelectContext(ctx, &ids, q, userID); err != nil {
		return nil, core.NewStoreError("finding member batches", err)
	}
	return ids, nil
}
