package postgres

import (
	"context"
	"database/sql"
	"errors"

	directory "servicedesk-cloud/internal/directory/domain"
)

// UserRepository is a Postgres user directory.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository constructs a repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const selectUser = `
SELECT id, name, email, role, designation, department_id, active, created_at
FROM users`

// UserByID loads a user by id.
func (r *UserRepository) UserByID(ctx context.Context, id string) (*directory.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if id == "" {
		return nil, errors.New("user repo: empty user id")
	}
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1 LIMIT 1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ActiveByRole returns active users with the given role.
func (r *UserRepository) ActiveByRole(ctx context.Context, role string) ([]directory.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if role == "" {
		return nil, errors.New("user repo: empty role")
	}
	return r.list(ctx, selectUser+` WHERE role = $1 AND active = TRUE ORDER BY id ASC`, role)
}

// ActiveByDesignation returns active users with the given designation.
func (r *UserRepository) ActiveByDesignation(ctx context.Context, designation string) ([]directory.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if designation == "" {
		return nil, errors.New("user repo: empty designation")
	}
	return r.list(ctx, selectUser+` WHERE designation = $1 AND active = TRUE ORDER BY id ASC`, designation)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]directory.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (directory.User, error) {
	var user directory.User
	var role string
	if err := scanner.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&role,
		&user.Designation,
		&user.DepartmentID,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		return directory.User{}, err
	}
	user.Role = directory.Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
