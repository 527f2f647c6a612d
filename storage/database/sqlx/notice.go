package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notice"
)

const noticeColumns = `id, title, body, scope_all, scope_batch_ids, created_by, created_at`

type noticeRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	Body          string         `db:"body"`
	ScopeAll      bool           `db:"scope_all"`
	ScopeBatchIDs pq.StringArray `db:"scope_batch_ids"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r noticeRow) notice() notice.Notice {
	return notice.Notice{
		ID:        r.ID,
		Title:     r.Title,
		Body:      r.Body,
		Scope:     scopeFromColumns(r.ScopeAll, r.ScopeBatchIDs),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type noticeRepository struct {
	db *sqlx.DB
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *sqlx.DB) *noticeRepository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateNotice(ctx context.Context, n notice.Notice) (notice.Notice, error) {
	row := noticeRow{
		ID:            n.ID,
		Title:         n.Title,
		Body:          n.Body,
		ScopeAll:      n.Scope.All,
		ScopeBatchIDs: scopeBatchIDs(n.Scope),
		CreatedBy:     n.CreatedBy,
		CreatedAt:     n.CreatedAt.UTC(),
	}
	q := `INSERT INTO notice (` + noticeColumns + `)
		VALUES (:id, :title, :body, :scope_all, :scope_batch_ids, :created_by, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return notice.Notice{}, core.NewStoreError("creating notice", err)
	}
	return row.notice(), nil
}

func (repo *noticeRepository) GetNoticeByID(ctx context.Context, id string) (notice.Notice, error) {
	if !validID(id) {
		return notice.Notice{}, notice.ErrNotFound
	}
	var row noticeRow
	q := repo.db.Rebind(`SELECT ` + noticeColumns + ` FROM notice WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return notice.Notice{}, storeErr("finding notice", err, notice.ErrNotFound)
	}
	return row.notice(), nil
}

func (repo *noticeRepository) FilterNotices(ctx context.Context, filter notice.QueryFilter) ([]notice.Notice, error) {
	var qb query
	if filter.Visible != nil {
		visibleScoped(&qb, filter.Visible)
	}

	var rows []noticeRow
	q, args := qb.build(repo.db, `SELECT `+noticeColumns+` FROM notice`, "created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering notices", err)
	}
	notices := make([]notice.Notice, 0, len(rows))
	for _, row := range rows {
		notices = append(notices, row.notice())
	}
	return notices, nil
}

func (repo *noticeRepository) DeleteNotice(ctx context.Context, id string) error {
	if !validID(id) {
		return notice.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`DELETE FROM notice WHERE id = ?`), id)
	if err != nil {
		return core.NewStoreError("deleting notice", err)
	}
	return checkAffected("deleting notice", res, notice.ErrNotFound)
}
