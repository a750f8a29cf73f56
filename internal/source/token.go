package source

import (
	"context"
	"fmt"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// TokenProvider supplies the bearer token for the host API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	// Refresh obtains a new token after the current one was rejected.
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a fixed access token. It cannot be refreshed.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

func (t StaticToken) Refresh(context.Context) (string, error) {
	return "", fmt.Errorf("static token cannot be refreshed: %w", model.ErrAuthExpired)
}
