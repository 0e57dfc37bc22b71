package ports

import (
	"context"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password, email, role, clientID string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
