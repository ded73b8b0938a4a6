package db

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"glucogate/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a UserRepository backed by the given connection.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.email, u.name, u.created_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var name *string
	if err := row.Scan(&u.ID, &u.Email, &name, &u.CreatedAt); err != nil {
		return nil, err
	}
	if name != nil {
		u.Name = *name
	}
	return &u, nil
}

// Create inserts u, assigning an ID when empty and normalizing the email to
// lower case. CreatedAt is populated from the database.
// Returns ErrCodeConflictEmail if the email is already registered.
func (r *UserRepository) Create(ctx context.Context, u *types.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, name)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		u.ID,
		u.Email,
		u.Name,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "Email already registered", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.id = $1`,
		id,
	)
	return r.scanOne(row)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 WHERE u.email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	return r.scanOne(row)
}

func (r *UserRepository) scanOne(row pgx.Row) (*types.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "User not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}
