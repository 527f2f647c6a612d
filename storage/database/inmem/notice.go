package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/notice"
	"github.com/trezcool/academia/core/policy"
)

type noticeRepository struct {
	db *noticeTable
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *DB) *noticeRepository {
	return &noticeRepository{db: db.notice}
}

func copyNotice(n notice.Notice) notice.Notice {
	n.Scope.BatchIDs = cloneStrings(n.Scope.BatchIDs)
	return n
}

func (repo *noticeRepository) CreateNotice(_ context.Context, n notice.Notice) (notice.Notice, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	n = copyNotice(n)
	repo.db.table[n.ID] = &n
	return copyNotice(n), nil
}

func (repo *noticeRepository) GetNoticeByID(_ context.Context, id string) (notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if n, ok := repo.db.table[id]; ok {
		return copyNotice(*n), nil
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (repo *noticeRepository) FilterNotices(_ context.Context, filter notice.QueryFilter) ([]notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notices := make([]notice.Notice, 0)
	for _, n := range repo.db.table {
		if filter.Visible != nil && !filter.Visible.Match(policy.Resource{OwnerID: n.CreatedBy, Scope: n.Scope}) {
			continue
		}
		notices = append(notices, copyNotice(*n))
	}
	sort.Slice(notices, func(i, j int) bool { return notices[i].CreatedAt.After(notices[j].CreatedAt) })
	return notices, nil
}

func (repo *noticeRepository) DeleteNotice(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[id]; !ok {
		return notice.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
