package client

import (
	"context"

	"github.com/dmitrijs2005/growthfarm/internal/client/models"
)

type Client interface {
	Login(ctx context.Context, username, password string) (*models.AuthResult, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error)
	Me(ctx context.Context, token string) (*models.UserProfile, error)
	Logout(ctx context.Context, token string) error
	Close() error
}
