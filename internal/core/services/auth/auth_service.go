package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

var ErrForbidden = errors.New("insufficient role")

type cachedUser struct {
	user    domain.User
	expires time.Time
}

// AuthService resolves trusted identities to roles and provisions accounts.
// Credentials are verified upstream; this service only authorizes.
type AuthService struct {
	repo     ports.UserRepository
	audit    ports.AuditService
	mu       sync.RWMutex
	cache    map[string]cachedUser
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAuthService(repo ports.UserRepository, audit ports.AuditService) *AuthService {
	return &AuthService{
		repo:     repo,
		audit:    audit,
		cache:    make(map[string]cachedUser),
		cacheTTL: time.Minute,
		now:      time.Now,
	}
}

// Resolve returns the account for username. Unknown names yield domain.ErrUnknownUser.
func (s *AuthService) Resolve(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrEmptyUsername
	}

	s.mu.RLock()
	c, ok := s.cache[username]
	s.mu.RUnlock()
	if ok && s.now().Before(c.expires) {
		u := c.user
		return &u, nil
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownUser, username)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	s.mu.Lock()
	s.cache[username] = cachedUser{user: *user, expires: s.now().Add(s.cacheTTL)}
	s.mu.Unlock()
	return user, nil
}

// Authorize resolves username and checks it holds at least the required role.
func (s *AuthService) Authorize(ctx context.Context, username string, required domain.Role) (*domain.User, error) {
	user, err := s.Resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.Role.Allows(required) {
		return nil, fmt.Errorf("%w: %s needs %s", ErrForbidden, user.Username, required)
	}
	return user, nil
}

// CreateUser provisions an account. actor is recorded in the audit log.
func (s *AuthService) CreateUser(ctx context.Context, actor, username string, role domain.Role) (*domain.User, error) {
	user, err := domain.NewUser(uuid.New().String(), strings.TrimSpace(username), role)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveUser(ctx, *user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.mu.Lock()
	delete(s.cache, user.Username)
	s.mu.Unlock()

	if s.audit != nil {
		_ = s.audit.Log(ctx, actor, domain.ActionUserProvisioned, user.Username, string(role))
	}
	return user, nil
}

// EnsureAdmin provisions username as admin unless an account already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("failed to check admin account: %w", err)
	}
	if _, err := s.CreateUser(ctx, "", username, domain.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}
