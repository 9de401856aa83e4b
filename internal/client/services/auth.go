// Package services contains the application services of the cart client.
// This file defines the identity service: the bearer token and user id held
// in local storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cartkeeper/internal/client/repositories/localstore"
	"github.com/dmitrijs2005/cartkeeper/internal/dbx"
	"github.com/dmitrijs2005/cartkeeper/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoIdentity = errors.New("no user identity")

// Claims the user id is looked up under, in order.
var userIDClaims = []string{"userId", "user_id", "UserID", "id", "sub"}

// Identity is the signed-in user as far as the cart is concerned.
type Identity struct {
	UserID string
	Token  string
}

// IdentitySource reports the current identity; ok is false when there is
// none (no token, or no resolvable user id).
type IdentitySource interface {
	Identity(ctx context.Context) (Identity, bool)
}

// AuthService manages the identity persisted in local storage.
//
// Contract:
//   - Login: store the token and user id; the user id may come from the token.
//   - Logout: forget both.
//   - Identity: see IdentitySource.
//   - Token: the raw bearer token, "" when absent.
type AuthService interface {
	IdentitySource
	Login(ctx context.Context, token, userID string) (Identity, error)
	Logout(ctx context.Context) error
	Token(ctx context.Context) (string, error)
}

type authService struct {
	db     *sql.DB
	logger logging.Logger
}

func NewAuthService(db *sql.DB, logger logging.Logger) AuthService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &authService{db: db, logger: logger.With("module", "auth")}
}

func (a *authService) repo() localstore.Repository {
	return localstore.NewSQLiteRepository(a.db)
}

// Login saves token and user id in one transaction. When userID is empty it
// is read from the token claims.
func (a *authService) Login(ctx context.Context, token, userID string) (Identity, error) {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)

	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrNoIdentity)
	}
	if userID == "" {
		var err error
		if userID, err = UserIDFromToken(token); err != nil {
			return Identity{}, err
		}
	}

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := localstore.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, localstore.KeyToken, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, localstore.KeyUser, []byte(userID))
	})
	if err != nil {
		return Identity{}, fmt.Errorf("save identity: %w", err)
	}

	a.logger.Info(ctx, "identity stored", "user_id", userID)
	return Identity{UserID: userID, Token: token}, nil
}

func (a *authService) Logout(ctx context.Context) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := localstore.NewSQLiteRepository(tx)
		if err := repo.Delete(ctx, localstore.KeyToken); err != nil {
			return err
		}
		return repo.Delete(ctx, localstore.KeyUser)
	})
}

func (a *authService) Token(ctx context.Context) (string, error) {
	b, err := a.repo().Get(ctx, localstore.KeyToken)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Identity treats a storage failure like a missing identity: the cart then
// stays local-only.
func (a *authService) Identity(ctx context.Context) (Identity, bool) {
	repo := a.repo()

	token, err := repo.Get(ctx, localstore.KeyToken)
	if err != nil {
		a.logger.Warn(ctx, "read token failed", "err", err)
		return Identity{}, false
	}
	if len(token) == 0 {
		return Identity{}, false
	}

	user, err := repo.Get(ctx, localstore.KeyUser)
	if err != nil {
		a.logger.Warn(ctx, "read user failed", "err", err)
		return Identity{}, false
	}

	id := Identity{UserID: strings.TrimSpace(string(user)), Token: strings.TrimSpace(string(token))}
	if id.UserID == "" {
		if id.UserID, err = UserIDFromToken(id.Token); err != nil {
			return Identity{}, false
		}
	}
	return id, true
}

// UserIDFromToken reads the user id from the claims of a JWT without
// verifying its signature. The client never holds the signing key; the
// server verifies the token on every call.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: parse token: %w", ErrNoIdentity, err)
	}

	for _, key := range userIDClaims {
		if id := claimString(claims[key]); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: token has no user id claim", ErrNoIdentity)
}

func claimString(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1<<53 {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}
