package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// ==========================
// UserRepo
// ==========================
type UserRepo struct {
	DB *sql.DB
}

// ==========================
// Constructor
// ==========================
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userColumns = `id, username, name, email, password_hash, role, department, is_deleted, created_at`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Department, &u.IsDeleted, &u.CreatedAt)
	return u, err
}

// ==========================
// Create User
// ==========================

// NewUser holds the fields for creating a user. Password is stored as a bcrypt hash.
type NewUser struct {
	Username   string
	Name       string
	Email      string
	Password   string
	Role       string
	Department string
}

func (r *UserRepo) Create(ctx context.Context, in NewUser) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hashing password: %w", err)
	}
	role := in.Role
	if role == "" {
		role = models.RoleEmployee
	}

	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		INSERT INTO users (username, name, email, password_hash, role, department)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		in.Username, in.Name, in.Email, string(hash), role, in.Department,
	))
	if isUniqueViolation(err) {
		return models.User{}, ErrUsernameTaken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = &lifecycle.Error{Kind: lifecycle.KindInvalidState, Msg: "username already taken"}

// ==========================
// Get By ID
// ==========================

// GetUser returns the user including soft-deleted ones; callers decide
// whether a deleted user is acceptable.
func (r *UserRepo) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, lifecycle.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// ==========================
// Get By Username
// ==========================

// GetByUsername returns a live user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND NOT is_deleted`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, lifecycle.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// ==========================
// List Users
// ==========================
func (r *UserRepo) List(ctx context.Context, includeDeleted bool, limit, offset int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE $1 OR NOT is_deleted ORDER BY id LIMIT $2 OFFSET $3`,
		includeDeleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ==========================
// Search Users
// ==========================

// UserSearch narrows Search to live users. Query matches name or username.
type UserSearch struct {
	Query      string
	Role       string
	Department string
}

func (r *UserRepo) Search(ctx context.Context, f UserSearch) ([]models.User, error) {
	conds := []string{"NOT is_deleted"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Query != "" {
		add("(name ILIKE $%[1]d OR username ILIKE $%[1]d)", "%"+f.Query+"%")
	}
	if f.Role != "" {
		add("role = $%d", f.Role)
	}
	if f.Department != "" {
		add("lower(department) = lower($%d)", f.Department)
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+strings.Join(conds, " AND ")+` ORDER BY name, id LIMIT 200`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE NOT is_deleted`).Scan(&n)
	return n, err
}

// ==========================
// Update User
// ==========================

// UserUpdate holds the profile fields an admin may change. Nil leaves a field as is.
type UserUpdate struct {
	Name       *string
	Email      *string
	Role       *string
	Department *string
}

func (r *UserRepo) Update(ctx context.Context, id int64, in UserUpdate) (models.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    role = COALESCE($4, role),
		    department = COALESCE($5, department)
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+userColumns,
		id, nullString(in.Name), nullString(in.Email), nullString(in.Role), nullString(in.Department),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, lifecycle.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// ==========================
// Soft Delete / Restore
// ==========================

// SetDeleted flips the soft-delete flag. It refuses to delete a user who still holds assets.
func (r *UserRepo) SetDeleted(ctx context.Context, id int64, deleted bool) (models.User, error) {
	if deleted {
		var holds bool
		err := r.DB.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM assets WHERE assigned_to = $1)`, id).Scan(&holds)
		if err != nil {
			return models.User{}, fmt.Errorf("checking held assets: %w", err)
		}
		if holds {
			return models.User{}, ErrUserHoldsAssets
		}
	}

	u, err := scanUser(r.DB.QueryRowContext(ctx,
		`UPDATE users SET is_deleted = $1 WHERE id = $2 AND is_deleted <> $1 RETURNING `+userColumns,
		deleted, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, lifecycle.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// ErrUserHoldsAssets is returned when deleting a user who is still assigned assets.
var ErrUserHoldsAssets = &lifecycle.Error{Kind: lifecycle.KindInvalidState, Msg: "user still holds assets"}
