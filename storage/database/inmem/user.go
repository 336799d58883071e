package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ministerio/escalas/core"
	"github.com/ministerio/escalas/core/user"
)

var userLess = map[string]func(a, b user.User) bool{
	"name":       func(a, b user.User) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	"email":      func(a, b user.User) bool { return a.Email < b.Email },
	"role":       func(a, b user.User) bool { return a.Role < b.Role },
	"is_active":  func(a, b user.User) bool { return !a.IsActive && b.IsActive },
	"created_at": func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"last_login": func(a, b user.User) bool { return a.LastLogin.Before(b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

// get returns a copy of the user with its functions; callers hold the lock.
func (repo *userRepository) get(id string) (user.User, bool) {
	u, ok := repo.db.users[id]
	if !ok {
		return user.User{}, false
	}
	usr := *u
	usr.Functions = repo.db.functionsOf(id)
	return usr, true
}

func (db *DB) functionsOf(userID string) []user.Function {
	fns := make([]user.Function, 0)
	for _, fn := range db.functions {
		if fn.UserID == userID {
			fns = append(fns, *fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

func (repo *userRepository) store(usr user.User) {
	usr.Functions = nil
	repo.db.users[usr.ID] = &usr
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkEmail(email, excludedIDs...)
}

func (repo *userRepository) checkEmail(email string, excludedIDs ...string) error {
	for _, usr := range repo.db.users {
		if usr.Email == email && !isExcluded(usr.ID, excludedIDs) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, excl := range excludedIDs {
		if excl == id {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkEmail(usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.store(usr)
	usr.Functions = []user.Function{}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for id := range repo.db.users {
		usr, _ := repo.get(id)
		if filter != nil {
			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(usr.Name), search) && !strings.Contains(strings.ToLower(usr.Email), search) {
					continue
				}
			}
			if filter.Role != "" && usr.Role != filter.Role {
				continue
			}
			if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
				continue
			}
		}
		users = append(users, usr)
	}

	sortBy(users, ordering, userLess, core.DBOrdering{Field: "name", Ascending: true})
	return users, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.get(id); ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for id, usr := range repo.db.users {
		if usr.Email == email {
			u, _ := repo.get(id)
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkEmail(usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	repo.store(usr)
	updated, _ := repo.get(usr.ID)
	return updated, nil
}

func (repo *userRepository) UpdateOrCreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	if err := repo.checkEmail(usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	repo.store(usr)
	saved, _ := repo.get(usr.ID)
	return saved, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		repo.db.cascadeUser(id)
		n++
	}
	return n, nil
}

// cascadeUser mirrors the foreign keys referencing users.
func (db *DB) cascadeUser(id string) {
	for fid, fn := range db.functions {
		if fn.UserID == id {
			delete(db.functions, fid)
		}
	}
	for aid, a := range db.assignments {
		if a.UserID == id {
			delete(db.assignments, aid)
		}
	}
	for _, s := range db.schedules {
		if s.CreatedBy.String == id {
			s.CreatedBy.Valid = false
			s.CreatedBy.String = ""
		}
	}
	for _, e := range db.setlist {
		if e.MinisterID.String == id {
			e.MinisterID.Valid = false
			e.MinisterID.String = ""
		}
	}
}

func (repo *userRepository) CountUsers(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.users), nil
}

func (repo *userRepository) CreateFunction(_ context.Context, fn user.Function) (user.Function, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[fn.UserID]; !ok {
		return user.Function{}, user.ErrNotFound
	}
	for _, f := range repo.db.functions {
		if f.UserID == fn.UserID && f.Name == fn.Name {
			return user.Function{}, user.ErrFunctionExists
		}
	}
	fn.ID = uuid.New().String()
	repo.db.functions[fn.ID] = &fn
	return fn, nil
}

func (repo *userRepository) DeleteFunction(_ context.Context, userID, functionID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	fn, ok := repo.db.functions[functionID]
	if !ok || fn.UserID != userID {
		return user.ErrFunctionNotFound
	}
	delete(repo.db.functions, functionID)
	return nil
}
