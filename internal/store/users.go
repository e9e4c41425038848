package store

import (
	"context"
	"fmt"

	"food-marketplace/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateUser inserts a user. Returns ErrConflict when the username is taken.
func (q *Queries) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, name, username, password, level)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_active, created_ts, updated_ts`

	err := sqlx.GetContext(ctx, q.ext, user, query,
		user.UserID, user.Name, user.Username, user.Password, user.Level)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %s: %w", user.Username, ErrConflict)
	}
	return err
}

// GetUserByID retrieves a user by ID
func (q *Queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q.ext, &user, "SELECT * FROM users WHERE user_id = $1", id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q.ext, &user, "SELECT * FROM users WHERE username = $1", username)
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return &user, nil
}

// UpdateUserLevel sets the level of a user and returns the updated row
func (q *Queries) UpdateUserLevel(ctx context.Context, id string, level int) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q.ext, &user,
		"UPDATE users SET level = $1, updated_ts = NOW() WHERE user_id = $2 RETURNING *",
		level, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

// GetUsersByLevel retrieves all users with the given level
func (q *Queries) GetUsersByLevel(ctx context.Context, level int) ([]models.User, error) {
	var users []models.User
	err := sqlx.SelectContext(ctx, q.ext, &users,
		"SELECT * FROM users WHERE level = $1 ORDER BY created_ts", level)
	return users, err
}
