package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         core.Role `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`

	// Teacher profile
	Department    string `json:"department,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	// Student profile
	Grade         string `json:"grade,omitempty"`
	ParentContact string `json:"parent_contact,omitempty"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) resource() policy.Resource {
	return policy.Resource{Kind: policy.KindUser, ID: u.ID, OwnerID: u.ID}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string    `json:"name" validate:"required"`
	Email           string    `json:"email" validate:"required,email"`
	Role            core.Role `json:"role" validate:"required,oneof=student teacher admin other"`
	Password        string    `json:"password" validate:"required"`
	PasswordConfirm string    `json:"password_confirm" validate:"required,eqfield=Password"`
	Department      string    `json:"department"`
	Qualification   string    `json:"qualification"`
	Grade           string    `json:"grade"`
	ParentContact   string    `json:"parent_contact"`
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.Role(core.CleanString(string(nu.Role), true /* lower */))
	nu.Department = core.CleanString(nu.Department)
	nu.Qualification = core.CleanString(nu.Qualification)
	nu.Grade = core.CleanString(nu.Grade)
	nu.ParentContact = core.CleanString(nu.ParentContact)
}

// UpdateUser defines what information may be provided to modify an existing User.
// The role of a User can never be changed.
type UpdateUser struct {
	Name            string  `json:"name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Role            string  `json:"role"`
	IsActive        *bool   `json:"is_active"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	Department      *string `json:"department"`
	Qualification   *string `json:"qualification"`
	Grade           *string `json:"grade"`
	ParentContact   *string `json:"parent_contact"`
}

func (uu *UpdateUser) clean(origUsr User) {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	uu.Role = core.CleanString(uu.Role, true /* lower */)
}

func (uu *UpdateUser) apply(usr *User) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	setIfNotNil(&usr.Department, uu.Department)
	setIfNotNil(&usr.Qualification, uu.Qualification)
	setIfNotNil(&usr.Grade, uu.Grade)
	setIfNotNil(&usr.ParentContact, uu.ParentContact)
}

func setIfNotNil(dst *string, src *string) {
	if src != nil {
		*dst = core.CleanString(*src)
	}
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search    string          `query:"search"`
	Roles     []core.Role     `query:"role"`
	IsActive  *bool           `query:"is_active"`
	IDs       []string        `query:"-"`
	Ordering  string          `query:"ordering"`
	Orderings []core.Ordering `query:"-"`
}

// OrderingFields are the fields users can be ordered by.
var OrderingFields = []string{"name", "email", "created_at", "last_login"}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
