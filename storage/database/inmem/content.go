package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/policy"
)

type contentRepository struct {
	db *contentTable
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) *contentRepository {
	return &contentRepository{db: db.content}
}

func copyItem(it content.Item) content.Item {
	it.Scope.BatchIDs = cloneStrings(it.Scope.BatchIDs)
	return it
}

func (repo *contentRepository) get(kind content.Kind, id string) (*content.Item, bool) {
	it, ok := repo.db.table[id]
	if !ok || it.Kind != kind {
		return nil, false
	}
	return it, true
}

func (repo *contentRepository) CreateItem(_ context.Context, it content.Item) (content.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	it = copyItem(it)
	repo.db.table[it.ID] = &it
	return copyItem(it), nil
}

func (repo *contentRepository) GetItemByID(_ context.Context, kind content.Kind, id string) (content.Item, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if it, ok := repo.get(kind, id); ok {
		return copyItem(*it), nil
	}
	return content.Item{}, content.ErrNotFound
}

func (repo *contentRepository) FilterItems(_ context.Context, filter content.QueryFilter) ([]content.Item, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	items := make([]content.Item, 0)
	for _, it := range repo.db.table {
		if filter.Kind != "" && it.Kind != filter.Kind {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(it.Title), search) &&
			!strings.Contains(strings.ToLower(it.Description), search) {
			continue
		}
		if filter.Visible != nil && !filter.Visible.Match(policy.Resource{OwnerID: it.CreatedBy, Scope: it.Scope}) {
			continue
		}
		items = append(items, copyItem(*it))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (repo *contentRepository) UpdateItemScope(_ context.Context, kind content.Kind, id string, scope policy.Scope, updatedAt time.Time) (content.Item, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	it, ok := repo.get(kind, id)
	if !ok {
		return content.Item{}, content.ErrNotFound
	}
	it.Scope = policy.Scope{All: scope.All, BatchIDs: cloneStrings(scope.BatchIDs)}
	it.UpdatedAt = updatedAt
	return copyItem(*it), nil
}

func (repo *contentRepository) DeleteItem(_ context.Context, kind content.Kind, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.get(kind, id); !ok {
		return content.ErrNotFound
	}
	delete(repo.db.table, id)

	// views go with their item
	views := repo.db.views[:0]
	for _, v := range repo.db.views {
		if v.ItemID != id {
			views = append(views, v)
		}
	}
	repo.db.views = views
	return nil
}

func (repo *contentRepository) AddView(_ context.Context, v content.View) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.table[v.ItemID]; !ok {
		return content.ErrNotFound
	}
	repo.db.views = append(repo.db.views, v)
	return nil
}

func (repo *contentRepository) ListViews(_ context.Context, itemID string) ([]content.View, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	views := make([]content.View, 0)
	for _, v := range repo.db.views {
		if v.ItemID == itemID {
			views = append(views, v)
		}
	}
	return views, nil
}
