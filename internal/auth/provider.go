// Package auth resolves the acting user behind an API token. There is no
// local account management; identities come from the users collection and
// mutating operations fail without one.
package auth

import (
	"context"
	"strings"

	"github.com/vinylaudio/annotator/internal/persistence"
)

type userStore interface {
	GetUserByToken(ctx context.Context, token string) (persistence.User, bool, error)
}

type Provider interface {
	// UserFromToken resolves a bearer token. ok=false means the caller is
	// unauthenticated.
	UserFromToken(ctx context.Context, token string) (persistence.User, bool, error)
}

type TokenProvider struct {
	store userStore
}

func NewTokenProvider(store userStore) *TokenProvider {
	return &TokenProvider{store: store}
}

func (p *TokenProvider) UserFromToken(ctx context.Context, token string) (persistence.User, bool, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return persistence.User{}, false, nil
	}
	return p.store.GetUserByToken(ctx, token)
}
