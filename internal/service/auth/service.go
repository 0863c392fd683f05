package auth

import (
	"context"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/internal/repository"
	"github.com/avahealth/scheduling-api/pkg/auth"
	"github.com/avahealth/scheduling-api/pkg/errors"
	"github.com/avahealth/scheduling-api/pkg/security"
)

// Service authenticates staff users and issues session tokens. Session
// mechanics stop at the JWT boundary; there is no server-side session store.
type Service struct {
	users  repository.UserRepository
	hasher security.PasswordHasher
	tokens *auth.TokenService
}

func NewService(users repository.UserRepository, hasher security.PasswordHasher, tokens *auth.TokenService) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			// same response as a bad password so the endpoint does not leak
			// which emails exist
			return nil, errors.Authorization("invalid credentials", nil)
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.Authorization("invalid credentials", nil)
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return &model.LoginResponse{Token: token, User: user}, nil
}

func (s *Service) ValidateToken(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, errors.Authorization("invalid or expired token", err)
	}
	return claims, nil
}
