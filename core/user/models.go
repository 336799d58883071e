package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ministerio/escalas/core"
)

// Roles
const (
	RoleAdmin  = "admin"
	RoleMember = "membro"
)

var (
	AllRoles = []string{RoleAdmin, RoleMember}

	Roles = []Role{
		{Name: "Member", Value: RoleMember},
		{Name: "Admin", Value: RoleAdmin},
	}

	// TeamFunctions is the catalog of functions a member can perform in a schedule.
	TeamFunctions = []string{
		"Lead Vocal",
		"Backing Vocal",
		"Acoustic Guitar",
		"Electric Guitar",
		"Bass",
		"Keys",
		"Drums",
		"Percussion",
		"Saxophone",
		"Sound Tech",
	}
)

// IsTeamFunction reports whether name is in the TeamFunctions catalog.
func IsTeamFunction(name string) bool {
	for _, fn := range TeamFunctions {
		if fn == name {
			return true
		}
	}
	return false
}

func IsRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Function is a team function a member is able to perform.
type Function struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"-" db:"user_id"`
	Name      string    `json:"function" db:"function"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	Functions    []Function `json:"functions"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	LastLogin    time.Time  `json:"last_login"` // UTC
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

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) HasFunction(name string) bool {
	for _, fn := range u.Functions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

// FirstName is used to greet members.
func (u *User) FirstName() string {
	for i, r := range u.Name {
		if r == ' ' {
			return u.Name[:i]
		}
	}
	return u.Name
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"omitempty,allroles"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleMember
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
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

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, uu.Email, origUsr.ID)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type SetRole struct {
	Role string `json:"role" validate:"required,allroles"`
}

func (sr *SetRole) Validate(validate *validator.Validate) error {
	sr.Role = core.CleanString(sr.Role, true /* lower */)
	return validate.Struct(sr)
}

type NewFunction struct {
	Function string `json:"function" validate:"required,teamfunction"`
}

func (nf *NewFunction) Validate(validate *validator.Validate) error {
	nf.Function = core.CleanString(nf.Function)
	return validate.Struct(nf)
}

type QueryFilter struct {
	Search   string
	Role     string
	IsActive *bool
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
