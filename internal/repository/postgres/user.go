package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/pkg/errors"
)

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, email)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user", err)
	}
	if err != nil {
		return nil, errors.Transient("failed to get user", err)
	}
	return &user, nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user", err)
	}
	if err != nil {
		return nil, errors.Transient("failed to get user", err)
	}
	return &user, nil
}
