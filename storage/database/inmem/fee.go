package inmemdb

import (
	"cmp"
	"context"

	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/policy"
)

type feeRepository struct {
	db *feeTable
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db.fee}
}

func (repo *feeRepository) CreateFee(_ context.Context, r fee.Record) (fee.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *feeRepository) GetFeeByID(_ context.Context, id string) (fee.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return fee.Record{}, fee.ErrNotFound
}

func (repo *feeRepository) FilterFees(_ context.Context, filter fee.QueryFilter) ([]fee.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]fee.Record, 0)
	for _, r := range repo.db.table {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.BatchID != "" && r.BatchID != filter.BatchID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasFeeStatus(filter.Statuses, r.Status) {
			continue
		}
		if filter.Visible != nil {
			res := policy.Resource{OwnerID: r.CreatedBy, StudentID: r.StudentID}
			if r.BatchID != "" {
				res.Scope = policy.Batches(r.BatchID)
			}
			if !filter.Visible.Match(res) {
				continue
			}
		}
		records = append(records, *r)
	}
	sortBy(records, filter.Orderings, compareFees, func(a, b fee.Record) bool { return a.DueDate.Before(b.DueDate) })
	return records, nil
}

func compareFees(a, b fee.Record, field string) int {
	switch field {
	case "amount":
		return cmp.Compare(a.Amount, b.Amount)
	case "due_date":
		return compareTimes(a.DueDate, b.DueDate)
	case "status":
		return compareStrings(string(a.Status), string(b.Status))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}

func (repo *feeRepository) UpdateFee(_ context.Context, r fee.Record) (fee.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[r.ID]; !ok {
		return fee.Record{}, fee.ErrNotFound
	}
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *feeRepository) DeleteFee(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[id]; !ok {
		return fee.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func hasFeeStatus(statuses []fee.Status, s fee.Status) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}
