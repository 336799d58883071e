package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
)

const userColumns = "id, name, email, role, is_active, password_hash, created_at, updated_at, last_login"

var userOrderingColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"is_active":  "is_active",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		IsActive:     r.IsActive,
		Functions:    []user.Function{},
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) *userRepository {
	return &userRepository{db: db}
}

// withFunctions loads the functions of users in one query.
func (repo userRepository) withFunctions(ctx context.Context, rows []userRow) ([]user.User, error) {
	users := make([]user.User, 0, len(rows))
	if len(rows) == 0 {
		return users, nil
	}
	idx := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for i, r := range rows {
		users = append(users, r.user())
		idx[r.ID] = i
		ids = append(ids, r.ID)
	}

	q, args, err := sqlx.In("SELECT id, user_id, function, created_at FROM member_functions WHERE user_id IN (?) ORDER BY function", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building functions query")
	}
	var fns []user.Function
	if err = repo.db.SelectContext(ctx, &fns, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying functions")
	}
	for _, fn := range fns {
		i := idx[fn.UserID]
		users[i].Functions = append(users[i].Functions, fn)
	}
	return users, nil
}

func (repo userRepository) getOne(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	users, err := repo.withFunctions(ctx, []userRow{row})
	if err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	q := "SELECT EXISTS (SELECT 1 FROM users WHERE email = ?"
	args := []interface{}{email}
	if excluded := validUUIDs(excludedIDs); len(excluded) > 0 {
		q += " AND id NOT IN (?)"
		args = append(args, excluded)
	}
	q += ")"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES "+
			"(:id, :name, :email, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login)",
		toUserRow(usr))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	if usr.Functions == nil {
		usr.Functions = []user.Function{}
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE TRUE"
	var args []interface{}
	if filter != nil {
		if filter.Search != "" {
			val := containsPattern(filter.Search)
			q += " AND (name ILIKE ? ESCAPE '\\' OR email ILIKE ? ESCAPE '\\')"
			args = append(args, val, val)
		}
		if filter.Role != "" {
			q += " AND role = ?"
			args = append(args, filter.Role)
		}
		if filter.IsActive != nil {
			q += " AND is_active = ?"
			args = append(args, *filter.IsActive)
		}
	}
	q += orderBy(ordering, userOrderingColumns, "name ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.withFunctions(ctx, rows)
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	res, err := repo.db.NamedExecContext(ctx,
		"UPDATE users SET name = :name, email = :email, role = :role, is_active = :is_active, "+
			"password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login WHERE id = :id",
		toUserRow(usr))
	if err != nil && isUniqueViolation(err) {
		return user.User{}, user.ErrEmailExists
	}
	n, err := rowsAffected(res, err, "updating user")
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES "+
			"(:id, :name, :email, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login) "+
			"ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role, "+
			"is_active = EXCLUDED.is_active, password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at",
		toUserRow(usr))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "saving user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	return rowsAffected(res, err, "deleting users")
}

func (repo userRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func (repo userRepository) CreateFunction(ctx context.Context, fn user.Function) (user.Function, error) {
	fn.ID = uuid.New().String()
	fn.CreatedAt = fn.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO member_functions (id, user_id, function, created_at) VALUES (:id, :user_id, :function, :created_at)",
		fn)
	if err != nil {
		if isUniqueViolation(err) {
			return user.Function{}, user.ErrFunctionExists
		}
		return user.Function{}, errors.Wrap(err, "inserting function")
	}
	return fn, nil
}

func (repo userRepository) DeleteFunction(ctx context.Context, userID, functionID string) error {
	if !isUUID(userID) || !isUUID(functionID) {
		return user.ErrFunctionNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM member_functions WHERE id = $1 AND user_id = $2", functionID, userID)
	n, err := rowsAffected(res, err, "deleting function")
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrFunctionNotFound
	}
	return nil
}
