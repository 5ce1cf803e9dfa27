package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// lookupTimeout bounds the credential store round-trip; a slow store maps
// to ErrServiceUnavailable rather than hanging the login request.
const lookupTimeout = 3 * time.Second

// RepositoryAuthService verifies presented credentials against the user
// repository. It performs no mutation; session binding happens elsewhere.
type RepositoryAuthService struct {
	users  UserRepository
	hasher PasswordHasher
}

func NewRepositoryAuthService(users UserRepository, hasher PasswordHasher) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, hasher: hasher}
}

// Authenticate resolves username/password to an authenticated User or one
// of the typed failure errors. Store faults are logged for operators and
// downgraded to ErrServiceUnavailable; their detail never reaches callers.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return User{}, ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUnknownUser
		}
		log.Printf("auth: credential store lookup failed for %q: %v", username, err)
		return User{}, ErrServiceUnavailable
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return User{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
	}, nil
}

// SignupInput carries the signup form fields.
type SignupInput struct {
	Username string
	Name     string
	Password string
	Roles    []string
}

// Register hashes the password and inserts a new credential record,
// returning the repository's rows-affected count. A zero count means the
// insert did not happen (e.g., duplicate username) and is surfaced to the
// user as a failed signup, not an error.
func (s *RepositoryAuthService) Register(ctx context.Context, in SignupInput) (int64, error) {
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return 0, ErrMissingCredentials
	}
	if len(in.Roles) == 0 {
		in.Roles = []string{"USER"}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	return s.users.Create(ctx, in.Username, in.Name, hash, in.Roles)
}
