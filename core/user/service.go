package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user")
	ErrEmailExists = errors.New("a user with this email already exists")

	errRoleImmutable = "the role of a user cannot be changed"
	errDeleteSelf    = "you cannot delete your own account"
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo     Repository
		policy   *policy.Policy
		validate *validator.Validate
		mailSvc  core.EmailService
		tokens   *resetTokenGenerator
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	pol *policy.Policy,
	validate *validator.Validate,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		policy:   pol,
		validate: validate,
		mailSvc:  mailSvc,
		tokens:   newResetTokenGenerator(conf.SecretKey, conf.Auth.PasswordResetTimeout),
		logger:   logger,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclIDs...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Create adds a new active User. Only admins can create users.
func (svc *Service) Create(ctx context.Context, subj policy.Subject, nu NewUser) (User, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindUser)).Err(); err != nil {
		return User{}, err
	}
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}
	return svc.create(ctx, nu)
}

// CreateUnchecked adds a new User without authorization. Meant for bootstrapping (admin CLI).
func (svc *Service) CreateUnchecked(ctx context.Context, nu NewUser) (User, error) {
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}
	return svc.create(ctx, nu)
}

func (svc *Service) create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:            uuid.NewString(),
		Name:          nu.Name,
		Email:         nu.Email,
		Role:          nu.Role,
		IsActive:      true,
		Department:    nu.Department,
		Qualification: nu.Qualification,
		Grade:         nu.Grade,
		ParentContact: nu.ParentContact,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// Query lists the users visible to subj: all for admins, only themselves for everyone else.
func (svc *Service) Query(ctx context.Context, subj policy.Subject, filter QueryFilter) ([]User, error) {
	d := svc.policy.Authorize(subj, policy.ActionRead, policy.Collection(policy.KindUser))
	if err := d.Err(); err != nil {
		return nil, err
	}
	filter.Clean()
	orderings, err := core.ParseOrderings(filter.Ordering, OrderingFields...)
	if err != nil {
		return nil, err
	}
	filter.Orderings = orderings
	if d.Filtered() {
		if d.Filter.OwnerID == "" {
			return []User{}, nil
		}
		filter.IDs = []string{d.Filter.OwnerID}
	}
	users, err := svc.repo.FilterUsers(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return users, nil
}

// Get returns the User with id if subj may see it. Hidden users are reported as not found.
func (svc *Service) Get(ctx context.Context, subj policy.Subject, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if !svc.policy.Authorize(subj, policy.ActionRead, usr.resource()).Allowed() {
		return User{}, ErrNotFound
	}
	return usr, nil
}

// Update modifies the User with id. Only admins can update users, and never their role.
func (svc *Service) Update(ctx context.Context, subj policy.Subject, id string, uu UpdateUser) (User, error) {
	usr, err := svc.Get(ctx, subj, id)
	if err != nil {
		return User{}, err
	}
	if err = svc.policy.Authorize(subj, policy.ActionUpdate, usr.resource()).Err(); err != nil {
		return User{}, err
	}

	uu.clean(usr)
	if uu.Role != "" && uu.Role != usr.Role.String() {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: errRoleImmutable})
	}
	if err = svc.validate.Struct(uu); err != nil {
		return User{}, err
	}
	if uu.Email != usr.Email {
		if err = svc.checkUniqueness(ctx, uu.Email, usr.ID); err != nil {
			return User{}, err
		}
	}

	uu.apply(&usr)
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// Delete removes the users with ids. Admin only; an admin cannot delete themselves.
func (svc *Service) Delete(ctx context.Context, subj policy.Subject, ids ...string) error {
	for _, id := range ids {
		res := policy.Resource{Kind: policy.KindUser, ID: id, OwnerID: id}
		if err := svc.policy.Authorize(subj, policy.ActionDelete, res).Err(); err != nil {
			return err
		}
		if id == subj.UserID {
			return core.NewForbiddenError(errDeleteSelf)
		}
	}
	return errors.Wrap(svc.repo.DeleteUsersByID(ctx, ids...), "deleting users")
}

// Roles lists the roles a new user can be given, to subjects allowed to create users.
func (svc *Service) Roles(subj policy.Subject) ([]core.Role, error) {
	if err := svc.policy.Authorize(subj, policy.ActionCreate, policy.Collection(policy.KindUser)).Err(); err != nil {
		return nil, err
	}
	return core.Roles, nil
}

// Lookup returns the User with id, without authorization. Used to resolve authenticated identities.
func (svc *Service) Lookup(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

// GetByEmail returns the User with email, without authorization. Used to check credentials.
func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword replaces the password of usr, without authorization (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset emails a password reset link to the active user with email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// ResetPassword sets a new password if the reset token is valid.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := data.Validate(svc.validate); err != nil {
		return err
	}
	invalidLink := core.NewValidationError(errors.New("invalid or expired reset link"))

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidLink
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidLink
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		svc.logger.Info(fmt.Sprintf("password reset refused for %s: %v", usr.ID, err))
		return invalidLink
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return errors.Wrap(err, "setting password")
}
