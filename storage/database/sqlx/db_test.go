package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

const (
	id1 = "0f8fad5b-d9cb-469f-a165-70867728950e"
	id2 = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func TestQuery_build(t *testing.T) {
	db := sqlx.NewDb(nil, "postgres")

	tests := []struct {
		name     string
		prepare  func(qb *query)
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "no clause",
			prepare: func(*query) {},
			wantSQL: "SELECT id FROM t ORDER BY name",
		},
		{
			name: "and",
			prepare: func(qb *query) {
				qb.and("kind = ?", "material")
				qb.and("(title ILIKE ? OR description ILIKE ?)", "%a%", "%a%")
			},
			wantSQL:  "SELECT id FROM t WHERE kind = $1 AND (title ILIKE $2 OR description ILIKE $3) ORDER BY name",
			wantArgs: []interface{}{"material", "%a%", "%a%"},
		},
		{
			name: "empty any of",
			prepare: func(qb *query) {
				qb.and("kind = ?", "recording")
				qb.anyOf()
			},
			wantSQL:  "SELECT id FROM t WHERE kind = $1 AND FALSE ORDER BY name",
			wantArgs: []interface{}{"recording"},
		},
		{
			name: "any of",
			prepare: func(qb *query) {
				qb.anyOf(
					cond{clause: "created_by = ?", args: []interface{}{id1}},
					cond{clause: "student_id = ?", args: []interface{}{id2}},
				)
				qb.and("status = ?", "paid")
			},
			wantSQL:  "SELECT id FROM t WHERE (created_by = $1 OR student_id = $2) AND status = $3 ORDER BY name",
			wantArgs: []interface{}{id1, id2, "paid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var qb query
			tt.prepare(&qb)
			q, args := qb.build(db, "SELECT id FROM t", "name")
			assert.Equal(t, tt.wantSQL, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestVisibleScoped(t *testing.T) {
	db := sqlx.NewDb(nil, "postgres")

	var qb query
	visibleScoped(&qb, &policy.RecordFilter{OwnerID: id1, BatchIDs: []string{"b1", "b2"}})
	q, args := qb.build(db, "SELECT id FROM notice", "")
	assert.Equal(t, "SELECT id FROM notice WHERE (created_by = $1 OR (scope_all OR scope_batch_ids && $2))", q)
	assert.Len(t, args, 2)

	// a subject without batches and with a malformed id sees nothing
	qb = query{}
	visibleScoped(&qb, &policy.RecordFilter{OwnerID: "nope"})
	q, args = qb.build(db, "SELECT id FROM notice", "")
	assert.Equal(t, "SELECT id FROM notice WHERE FALSE", q)
	assert.Empty(t, args)
}

func TestScopeColumns(t *testing.T) {
	assert.Equal(t, policy.AllBatches(), scopeFromColumns(true, pq.StringArray{"b1"}))
	assert.Equal(t, policy.Scope{BatchIDs: []string{"b1"}}, scopeFromColumns(false, pq.StringArray{"b1"}))
	assert.Equal(t, pq.StringArray{}, scopeBatchIDs(policy.AllBatches()))
	assert.Equal(t, pq.StringArray{"b1", "b2"}, scopeBatchIDs(policy.Batches("b1", "b2")))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
	assert.Equal(t, []string{id1}, validIDs([]string{"x", id1, ""}))

	notFound := core.NewNotFoundError("thing")
	assert.Nil(t, storeErr("op", nil, notFound))
	assert.Equal(t, notFound, storeErr("op", sql.ErrNoRows, notFound))
	assert.Equal(t, notFound, storeErr("op", errors.Wrap(sql.ErrNoRows, "get"), notFound))

	err := storeErr("op", errors.New("connection refused"), notFound)
	var sErr *core.StoreError
	assert.True(t, errors.As(err, &sErr))
	assert.Equal(t, "op", sErr.Op)

	assert.Equal(t, uniqueViolation, pqCode(errors.Wrap(&pq.Error{Code: "23505"}, "insert")))
	assert.Empty(t, pqCode(errors.New("boom")))
}

func TestOrderBy(t *testing.T) {
	allowed := []string{"name", "created_at"}

	assert.Equal(t, "created_at", orderBy(nil, allowed, "created_at"))
	assert.Equal(t, "name ASC, created_at DESC, id", orderBy([]core.Ordering{
		{Field: "name", Ascending: true},
		{Field: "created_at"},
	}, allowed, "id"))
	assert.Equal(t, "created_at", orderBy([]core.Ordering{{Field: "password_hash"}}, allowed, "created_at"))
}
