package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

type stubAuthRepo struct {
	users map[string]*domain.User
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{users: make(map[string]*domain.User)}
}

func (s *stubAuthRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if _, exists := s.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	u := *user
	u.ID = "id_" + user.Username
	s.users[user.Username] = &u
	return &u, nil
}

func (s *stubAuthRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newStubAuthRepo()
	svc := NewAuthService(repo, "secret", time.Hour)

	user, err := svc.Register(context.Background(), "driver_jane", "hunter2", "", domain.RoleDriver, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected persisted user id")
	}
	if user.PasswordHash == "hunter2" {
		t.Fatalf("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2")) != nil {
		t.Fatalf("stored hash does not match password")
	}

	token, logged, err := svc.Login(context.Background(), "driver_jane", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.Username != "driver_jane" {
		t.Fatalf("unexpected user: %+v", logged)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("invalid token: %v", err)
	}
	if claims["sub"] != "id_driver_jane" || claims["role"] != domain.RoleDriver {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestAuthService_RegisterRejectsUnknownRole(t *testing.T) {
	svc := NewAuthService(newStubAuthRepo(), "secret", time.Hour)

	if _, err := svc.Register(context.Background(), "eve", "pw", "", "superuser", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	repo := newStubAuthRepo()
	svc := NewAuthService(repo, "secret", time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "right", "", domain.RoleCustomer, "client_1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "alice", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_LoginUnknownUser(t *testing.T) {
	svc := NewAuthService(newStubAuthRepo(), "secret", time.Hour)

	if _, _, err := svc.Login(context.Background(), "ghost", "pw"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
