// Package sqlxrepos implements the repositories on PostgreSQL, through sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// storeErr maps sql.ErrNoRows to notFound and wraps anything else in a *core.StoreError.
func storeErr(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return core.NewStoreError(op, err)
}

// checkAffected returns notFound when res touched no row.
func checkAffected(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStoreError(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// validID reports whether id can be compared to a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

type cond struct {
	clause string
	args   []interface{}
}

// query collects the WHERE clauses of a SELECT. Clauses use "?" bindvars; build rebinds them.
type query struct {
	where []string
	args  []interface{}
}

func (q *query) and(clause string, args ...interface{}) {
	q.where = append(q.where, clause)
	q.args = append(q.args, args...)
}

// anyOf adds the disjunction of conds. No condition at all matches nothing.
func (q *query) anyOf(conds ...cond) {
	if len(conds) == 0 {
		q.and("FALSE")
		return
	}
	clauses := make([]string, 0, len(conds))
	for _, c := range conds {
		clauses = append(clauses, c.clause)
		q.args = append(q.args, c.args...)
	}
	q.where = append(q.where, "("+strings.Join(clauses, " OR ")+")")
}

func (q query) build(db *sqlx.DB, base, orderBy string) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(base)
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	if orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}
	return db.Rebind(sb.String()), q.args
}

// orderBy builds an ORDER BY list from orderings on the allowed columns, ending with fallback.
func orderBy(orderings []core.Ordering, allowed []string, fallback string) string {
	parts := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		for _, col := range allowed {
			if ord.Field == col {
				parts = append(parts, ord.String())
				break
			}
		}
	}
	return strings.Join(append(parts, fallback), ", ")
}

func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
