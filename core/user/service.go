package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/ministerio/escalas/core"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("user not found")
	ErrFunctionNotFound = core.NewNotFoundError("function not found")
	ErrEmailExists      = errors.New("a user with this email already exists")
	ErrFunctionExists   = errors.New("member already performs this function")
	ErrInvalidRole      = errors.New("invalid role")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string) (int, error)
		CountUsers(ctx context.Context) (int, error)
		CreateFunction(ctx context.Context, fn Function) (Function, error)
		DeleteFunction(ctx context.Context, userID, functionID string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.Server.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = RoleMember
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountUsers(ctx)
}

// Update applies a validated UpdateUser to usr.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetRole replaces the role of usr; a user holds exactly one role.
func (svc *Service) SetRole(ctx context.Context, usr User, role string) (User, error) {
	if !IsRole(role) {
		return User{}, ErrInvalidRole
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Save updates usr or creates it when it has no ID yet.
func (svc *Service) Save(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = now
	}
	usr.UpdatedAt = now
	return svc.repo.UpdateOrCreateUser(ctx, usr)
}

func (svc *Service) AddFunction(ctx context.Context, usr User, name string) (Function, error) {
	if usr.HasFunction(name) {
		return Function{}, core.NewValidationError(ErrFunctionExists, core.FieldError{Field: "function", Error: ErrFunctionExists.Error()})
	}
	fn, err := svc.repo.CreateFunction(ctx, Function{
		UserID:    usr.ID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Cause(err) == ErrFunctionExists {
		return Function{}, core.NewValidationError(ErrFunctionExists, core.FieldError{Field: "function", Error: ErrFunctionExists.Error()})
	}
	return fn, err
}

func (svc *Service) RemoveFunction(ctx context.Context, userID, functionID string) error {
	return svc.repo.DeleteFunction(ctx, userID, functionID)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids)
}

type passwordResetData struct {
	Name  string
	UID   string
	Token string
}

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: passwordResetData{
			Name:  usr.FirstName(),
			UID:   EncodeUID(usr),
			Token: svc.tokens.makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidTokenErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	uid, err := decodeUID(data.UID)
	if err != nil {
		return invalidTokenErr
	}
	usr, err := svc.repo.GetUserByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidTokenErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
