package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orgdir/orgdir/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const userTable = "user"

var userColumns = []string{"id", "name", "firstName", "email", "password", "language"}

// CreateUser inserts a new user and returns the stored row.
func (r *Repository) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	query := `
		INSERT INTO "user" (name, "firstName", email, password, language)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + quoteColumns(userColumns)

	var user *model.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, query,
			in.Name,
			in.FirstName,
			in.Email,
			in.Password,
			in.Language,
		))
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// ListUsers retrieves every user ordered by ID.
func (r *Repository) ListUsers(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + quoteColumns(userColumns) + ` FROM "user" ORDER BY id`

	var users []*model.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return fmt.Errorf("failed to scan user: %w", err)
			}
			users = append(users, user)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + quoteColumns(userColumns) + ` FROM "user" WHERE id = $1`

	var user *model.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, query, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// UpdateUser writes the set fields of patch and returns the refreshed row.
// The password field, when set, must already be hashed.
func (r *Repository) UpdateUser(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	var sets []assignment
	sets = appendOptional(sets, "name", patch.Name)
	sets = appendOptional(sets, "firstName", patch.FirstName)
	sets = appendOptional(sets, "email", patch.Email)
	sets = appendOptional(sets, "password", patch.Password)
	sets = appendOptional(sets, "language", patch.Language)

	if len(sets) == 0 {
		return nil, ErrNothingToUpdate
	}

	query, args := buildUpdate(userTable, id, sets, userColumns)

	var user *model.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrUserNotFound
		case isUniqueViolation(err):
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteUser removes a user. Associations referencing it are removed by the store.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	query := `DELETE FROM "user" WHERE id = $1`

	var affected int64
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UserExists checks if a user with the given ID exists.
func (r *Repository) UserExists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM "user" WHERE id = $1)`

	exists, err := r.exists(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// EmailExists checks if another user already uses email.
// A non-zero excludeID leaves that user out of the check.
func (r *Repository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM "user" WHERE email = $1 AND id <> $2)`

	exists, err := r.exists(ctx, query, email, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// exists runs a single-row boolean query.
func (r *Repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, query, args...).Scan(&exists)
	})
	return exists, err
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.FirstName,
		&user.Email,
		&user.Password,
		&user.Language,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
