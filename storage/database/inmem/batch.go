package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/batch"
)

type batchRepository struct {
	db *batchTable
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *DB) *batchRepository {
	return &batchRepository{db: db.batch}
}

func copyBatch(b batch.Batch) batch.Batch {
	b.TeacherIDs = cloneStrings(b.TeacherIDs)
	b.StudentIDs = cloneStrings(b.StudentIDs)
	return b
}

func (repo *batchRepository) CreateCourse(_ context.Context, c batch.Course) (batch.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *batchRepository) GetCourseByID(_ context.Context, id string) (batch.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return batch.Course{}, batch.ErrCourseNotFound
}

func (repo *batchRepository) FilterCourses(_ context.Context, filter batch.CourseFilter) ([]batch.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	courses := make([]batch.Course, 0)
	for _, c := range repo.db.courses {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, c.ID) {
			continue
		}
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (repo *batchRepository) UpdateCourse(_ context.Context, c batch.Course) (batch.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.courses[c.ID]; !ok {
		return batch.Course{}, batch.ErrCourseNotFound
	}
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *batchRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.courses[id]; !ok {
		return batch.ErrCourseNotFound
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *batchRepository) CreateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	b = copyBatch(b)
	repo.db.batches[b.ID] = &b
	return copyBatch(b), nil
}

func (repo *batchRepository) GetBatchByID(_ context.Context, id string) (batch.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if b, ok := repo.db.batches[id]; ok {
		return copyBatch(*b), nil
	}
	return batch.Batch{}, batch.ErrBatchNotFound
}

func (repo *batchRepository) FilterBatches(_ context.Context, filter batch.BatchFilter) ([]batch.Batch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	batches := make([]batch.Batch, 0)
	for _, b := range repo.db.batches {
		if filter.CourseID != "" && b.CourseID != filter.CourseID {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, b.ID) {
			continue
		}
		batches = append(batches, copyBatch(*b))
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].Name < batches[j].Name })
	return batches, nil
}

func (repo *batchRepository) UpdateBatch(_ context.Context, b batch.Batch) (batch.Batch, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.batches[b.ID]; !ok {
		return batch.Batch{}, batch.ErrBatchNotFound
	}
	b = copyBatch(b)
	repo.db.batches[b.ID] = &b
	return copyBatch(b), nil
}

func (repo *batchRepository) DeleteBatch(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.batches[id]; !ok {
		return batch.ErrBatchNotFound
	}
	delete(repo.db.batches, id)
	return nil
}

func (repo *batchRepository) MemberBatchIDs(_ context.Context, userID string, role core.Role) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]string, 0)
	for _, b := range repo.db.batches {
		switch {
		case role == core.RoleTeacher && contains(b.TeacherIDs, userID),
			role == core.RoleStudent && contains(b.StudentIDs, userID):
			ids = append(ids, b.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
