package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeUserRepo is an in-memory UserRepository for tests.
type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*UserRecord
	nextID   int64
	failWith error // when set, every operation fails with this error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*UserRecord)}
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Create(_ context.Context, username, name, passwordHash string, roles []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	if _, ok := r.users[username]; ok {
		return 0, nil
	}
	r.nextID++
	r.users[username] = &UserRecord{
		ID:           r.nextID,
		Username:     username,
		Name:         name,
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    time.Now(),
	}
	return 1, nil
}

func (r *fakeUserRepo) HasAdmin(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return false, r.failWith
	}
	for _, u := range r.users {
		for _, role := range u.Roles {
			if role == "ADMIN" {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *fakeUserRepo) List(_ context.Context, page, perPage int) ([]UserListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, 0, r.failWith
	}
	all := make([]UserListItem, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, UserListItem{ID: u.ID, Username: u.Username, Name: u.Name, Roles: u.Roles, CreatedAt: u.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := (page - 1) * perPage
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}
