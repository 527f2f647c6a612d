package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/policy"
)

const itemColumns = `id, kind, title, description, url, scope_all, scope_batch_ids, created_by, created_at, updated_at`

type itemRow struct {
	ID            string         `db:"id"`
	Kind          string         `db:"kind"`
	Title         string         `db:"title"`
	Description   null.String    `db:"description"`
	URL           string         `db:"url"`
	ScopeAll      bool           `db:"scope_all"`
	ScopeBatchIDs pq.StringArray `db:"scope_batch_ids"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r itemRow) item() content.Item {
	return content.Item{
		ID:          r.ID,
		Kind:        content.Kind(r.Kind),
		Title:       r.Title,
		Description: r.Description.String,
		URL:         r.URL,
		Scope:       scopeFromColumns(r.ScopeAll, r.ScopeBatchIDs),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func scopeFromColumns(all bool, batchIDs pq.StringArray) policy.Scope {
	if all {
		return policy.AllBatches()
	}
	return policy.Scope{BatchIDs: []string(batchIDs)}
}

func scopeBatchIDs(sc policy.Scope) pq.StringArray {
	if sc.All || sc.BatchIDs == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(sc.BatchIDs)
}

// visibleScoped is the SQL counterpart of policy.RecordFilter.Match for tables with scope columns.
func visibleScoped(qb *query, f *policy.RecordFilter) {
	var conds []cond
	if f.OwnerID != "" && validID(f.OwnerID) {
		conds = append(conds, cond{clause: "created_by = ?", args: []interface{}{f.OwnerID}})
	}
	if len(f.BatchIDs) > 0 {
		conds = append(conds, cond{clause: "(scope_all OR scope_batch_ids && ?)", args: []interface{}{pq.Array(f.BatchIDs)}})
	}
	qb.anyOf(conds...)
}

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sqlx.DB) *contentRepository {
	return &contentRepository{db: db}
}

func (repo *contentRepository) CreateItem(ctx context.Context, it content.Item) (content.Item, error) {
	row := itemRow{
		ID:            it.ID,
		Kind:          string(it.Kind),
		Title:         it.Title,
		Description:   null.NewString(it.Description, it.Description != ""),
		URL:           it.URL,
		ScopeAll:      it.Scope.All,
		ScopeBatchIDs: scopeBatchIDs(it.Scope),
		CreatedBy:     it.CreatedBy,
		CreatedAt:     it.CreatedAt.UTC(),
		UpdatedAt:     it.UpdatedAt.UTC(),
	}
	q := `INSERT INTO content_item (` + itemColumns + `) VALUES (:id, :kind, :title, :description, :url,
		:scope_all, :scope_batch_ids, :created_by, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return content.Item{}, core.NewStoreError("creating content item", err)
	}
	return row.item(), nil
}

func (repo *contentRepository) GetItemByID(ctx context.Context, kind content.Kind, id string) (content.Item, error) {
	if !validID(id) {
		return content.Item{}, content.ErrNotFound
	}
	var row itemRow
	q := repo.db.Rebind(`SELECT ` + itemColumns + ` FROM content_item WHERE kind = ? AND id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, string(kind), id); err != nil {
		return content.Item{}, storeErr("finding content item", err, content.ErrNotFound)
	}
	return row.item(), nil
}

func (repo *contentRepository) FilterItems(ctx context.Context, filter content.QueryFilter) ([]content.Item, error) {
	var qb query
	if filter.Kind != "" {
		qb.and("kind = ?", string(filter.Kind))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		qb.and("(title ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}
	if filter.Visible != nil {
		visibleScoped(&qb, filter.Visible)
	}

	var rows []itemRow
	q, args := qb.build(repo.db, `SELECT `+itemColumns+` FROM content_item`, "created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering content items", err)
	}
	items := make([]content.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

func (repo *contentRepository) UpdateItemScope(ctx context.Context, kind content.Kind, id string, scope policy.Scope, updatedAt time.Time) (content.Item, error) {
	if !validID(id) {
		return content.Item{}, content.ErrNotFound
	}
	var row itemRow
	q := repo.db.Rebind(`UPDATE content_item SET scope_all = ?, scope_batch_ids = ?, updated_at = ?
		WHERE kind = ? AND id = ? RETURNING ` + itemColumns)
	err := repo.db.GetContext(ctx, &row, q, scope.All, scopeBatchIDs(scope), updatedAt.UTC(), string(kind), id)
	if err != nil {
		return content.Item{}, storeErr("updating content scope", err, content.ErrNotFound)
	}
	return row.item(), nil
}

// DeleteItem removes the item and, through the foreign key, its views.
func (repo *contentRepository) DeleteItem(ctx context.Context, kind content.Kind, id string) error {
	if !validID(id) {
		return content.ErrNotFound
	}
	q := repo.db.Rebind(`DELETE FROM content_item WHERE kind = ? AND id = ?`)
	res, err := repo.db.ExecContext(ctx, q, string(kind), id)
	if err != nil {
		return core.NewStoreError("deleting content item", err)
	}
	return checkAffected("deleting content item", res, content.ErrNotFound)
}

func (repo *contentRepository) AddView(ctx context.Context, v content.View) error {
	if !validID(v.ItemID) {
		return content.ErrNotFound
	}
	q := repo.db.Rebind(`INSERT INTO content_view (item_id, user_id, viewed_at) VALUES (?, ?, ?)`)
	if _, err := repo.db.ExecContext(ctx, q, v.ItemID, v.UserID, v.ViewedAt.UTC()); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return content.ErrNotFound
		}
		return core.NewStoreError("recording view", err)
	}
	return nil
}

func (repo *contentRepository) ListViews(ctx context.Context, itemID string) ([]content.View, error) {
	views := make([]content.View, 0)
	if !validID(itemID) {
		return views, nil
	}
	q := repo.db.Rebind(`SELECT item_id, user_id, viewed_at FROM content_view WHERE item_id = ? ORDER BY id`)
	rows, err := repo.db.QueryxContext(ctx, q, itemID)
	if err != nil {
		return nil, core.NewStoreError("listing views", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var v content.View
		if err = rows.Scan(&v.ItemID, &v.UserID, &v.ViewedAt); err != nil {
			return nil, core.NewStoreError("listing views", err)
		}
		v.ViewedAt = v.ViewedAt.UTC()
		views = append(views, v)
	}
	if err = rows.Err(); err != nil {
		return nil, core.NewStoreError("listing views", err)
	}
	return views, nil
}
