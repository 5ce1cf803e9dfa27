package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord represents a credential record stored in the persistence layer.
// It is created by signup and read-only afterwards.
type UserRecord struct {
	ID           int64
	Username     string
	Name         string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// UserListItem is a projection for admin user listing (no password hash).
type UserListItem struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrUserNotFound is returned by FindByUsername when no record exists.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines persistence operations for credential records.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	// Create inserts a record and returns the number of rows affected
	// (1 on success, 0 when nothing was inserted).
	Create(ctx context.Context, username, name, passwordHash string, roles []string) (int64, error)
	HasAdmin(ctx context.Context) (bool, error)
	List(ctx context.Context, page, perPage int) ([]UserListItem, int, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id, username, name, password_hash, roles, created_at FROM users WHERE username=$1`
	var u UserRecord
	if err := r.db.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Roles, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, username, name, passwordHash string, roles []string) (int64, error) {
	const q = `INSERT INTO users (username, name, password_hash, roles) VALUES ($1,$2,$3,$4) ON CONFLICT (username) DO NOTHING`
	tag, err := r.db.Exec(ctx, q, username, name, passwordHash, roles)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgUserRepository) HasAdmin(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users WHERE 'ADMIN' = ANY(roles) LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns paginated users without password hashes.
func (r *PgUserRepository) List(ctx context.Context, page, perPage int) ([]UserListItem, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	const countQ = `SELECT COUNT(*) FROM users`
	var total int
	if err := r.db.QueryRow(ctx, countQ).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, username, name, roles, created_at FROM users ORDER BY id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]UserListItem, 0, perPage)
	for rows.Next() {
		var u UserListItem
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Roles, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
