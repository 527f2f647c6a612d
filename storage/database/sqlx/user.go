package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const userColumns = `id, name, email, role, is_active, password_hash, department, qualification, grade,
	parent_contact, created_at, updated_at, last_login`

type userRow struct {
	ID            string      `db:"id"`
	Name          string      `db:"name"`
	Email         string      `db:"email"`
	Role          string      `db:"role"`
	IsActive      bool        `db:"is_active"`
	PasswordHash  []byte      `db:"password_hash"`
	Department    null.String `db:"department"`
	Qualification null.String `db:"qualification"`
	Grade         null.String `db:"grade"`
	ParentContact null.String `db:"parent_contact"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
	LastLogin     null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:            usr.ID,
		Name:          usr.Name,
		Email:         usr.Email,
		Role:          usr.Role.String(),
		IsActive:      usr.IsActive,
		PasswordHash:  usr.PasswordHash,
		Department:    null.NewString(usr.Department, usr.Department != ""),
		Qualification: null.NewString(usr.Qualification, usr.Qualification != ""),
		Grade:         null.NewString(usr.Grade, usr.Grade != ""),
		ParentContact: null.NewString(usr.ParentContact, usr.ParentContact != ""),
		CreatedAt:     usr.CreatedAt.UTC(),
		UpdatedAt:     usr.UpdatedAt.UTC(),
		LastLogin:     null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Role:          core.Role(r.Role),
		IsActive:      r.IsActive,
		PasswordHash:  r.PasswordHash,
		Department:    r.Department.String,
		Qualification: r.Qualification.String,
		Grade:         r.Grade.String,
		ParentContact: r.ParentContact.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastLogin:     r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	var exists bool
	q := repo.db.Rebind(`SELECT EXISTS (SELECT 1 FROM "user" WHERE email = ? AND NOT (id = ANY(?)))`)
	if err := repo.db.GetContext(ctx, &exists, q, email, pq.Array(validIDs(excludedIDs))); err != nil {
		return core.NewStoreError("checking email uniqueness", err)
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO "user" (` + userColumns + `) VALUES (:id, :name, :email, :role, :is_active, :password_hash,
		:department, :qualification, :grade, :parent_contact, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		if pqCode(err) == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, core.NewStoreError("creating user", err)
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) getBy(ctx context.Context, col, val string) (user.User, error) {
	var row userRow
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM "user" WHERE ` + col + ` = ?`)
	if err := repo.db.GetContext(ctx, &row, q, val); err != nil {
		return user.User{}, storeErr("finding user", err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getBy(ctx, "id", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, "email", email)
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var qb query
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		qb.and("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roles = append(roles, role.String())
		}
		qb.and("role = ANY(?)", pq.Array(roles))
	}
	if filter.IsActive != nil {
		qb.and("is_active = ?", *filter.IsActive)
	}
	if len(filter.IDs) > 0 {
		qb.and("id = ANY(?)", pq.Array(validIDs(filter.IDs)))
	}

	var rows []userRow
	q, args := qb.build(repo.db, `SELECT `+userColumns+` FROM "user"`, orderBy(filter.Orderings, user.OrderingFields, "created_at"))
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewStoreError("filtering users", err)
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	q := `UPDATE "user" SET name = :name, email = :email, role = :role, is_active = :is_active,
		password_hash = :password_hash, department = :department, qualification = :qualification, grade = :grade,
		parent_contact = :parent_contact, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr))
	if err != nil {
		if pqCode(err) == uniqueViolation {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, core.NewStoreError("updating user", err)
	}
	if err = checkAffected("updating user", res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	q := repo.db.Rebind(`DELETE FROM "user" WHERE id = ANY(?)`)
	if _, err := repo.db.ExecContext(ctx, q, pq.Array(validIDs(ids))); err != nil {
		return core.NewStoreError("deleting users", err)
	}
	return nil
}
