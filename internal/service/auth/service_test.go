package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/avahealth/scheduling-api/internal/model"
	pkgauth "github.com/avahealth/scheduling-api/pkg/auth"
	"github.com/avahealth/scheduling-api/pkg/errors"
	"github.com/avahealth/scheduling-api/pkg/security"
)

type fakeUserRepo struct {
	users map[string]*model.User
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, errors.NotFound("user", nil)
	}
	return u, nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.NotFound("user", nil)
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-horse-battery")
	require.NoError(t, err)

	users := &fakeUserRepo{users: map[string]*model.User{
		"staff@example.com": {
			ID:           uuid.New(),
			Email:        "staff@example.com",
			PasswordHash: hash,
		},
	}}
	tokens := pkgauth.NewTokenService("test-secret", time.Hour)
	return NewService(users, hasher, tokens)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "staff@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "staff@example.com", resp.User.Email)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Wrong password and unknown email produce the same error.
	_, err := svc.Login(ctx, &model.LoginRequest{Email: "staff@example.com", Password: "wrong"})
	require.True(t, errors.IsKind(err, errors.KindAuthorization))
	wrongPassword := err.Error()

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "ghost@example.com", Password: "wrong"})
	require.True(t, errors.IsKind(err, errors.KindAuthorization))
	assert.Equal(t, wrongPassword, err.Error())
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("bogus")
	assert.True(t, errors.IsKind(err, errors.KindAuthorization))
}
