package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
)

// ==========================
// DepartmentRepo
// ==========================

// DepartmentRepo is the department registry. Users reference departments by
// name, so a department cannot be deleted while any user still carries it.
type DepartmentRepo struct {
	DB *sql.DB
}

func NewDepartmentRepo(db *sql.DB) *DepartmentRepo {
	return &DepartmentRepo{DB: db}
}

var (
	ErrDepartmentNotFound = &lifecycle.Error{Kind: lifecycle.KindNotFound, Msg: "department not found"}
	ErrDepartmentExists   = &lifecycle.Error{Kind: lifecycle.KindInvalidState, Msg: "department already exists"}
	ErrDepartmentInUse    = &lifecycle.Error{Kind: lifecycle.KindInvalidState, Msg: "department is assigned to users"}
)

func (r *DepartmentRepo) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM departments WHERE lower(name) = lower($1) AND NOT is_deleted)`,
		strings.TrimSpace(name)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking department: %w", err)
	}
	return ok, nil
}

func (r *DepartmentRepo) Create(ctx context.Context, name string) (models.Department, error) {
	d := models.Department{Name: strings.TrimSpace(name)}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO departments (name) VALUES ($1) RETURNING id, created_at`,
		d.Name).Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err) {
		return models.Department{}, ErrDepartmentExists
	}
	if err != nil {
		return models.Department{}, fmt.Errorf("creating department: %w", err)
	}
	return d, nil
}

// List returns live departments ordered by name.
func (r *DepartmentRepo) List(ctx context.Context) ([]models.Department, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, is_deleted, created_at FROM departments WHERE NOT is_deleted ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	out := []models.Department{}
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.IsDeleted, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete soft-deletes a department nobody belongs to, deleted users included.
func (r *DepartmentRepo) Delete(ctx context.Context, id int64) (models.Department, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Department{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	var d models.Department
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, is_deleted, created_at FROM departments WHERE id = $1 AND NOT is_deleted FOR UPDATE`,
		id).Scan(&d.ID, &d.Name, &d.IsDeleted, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Department{}, ErrDepartmentNotFound
	}
	if err != nil {
		return models.Department{}, fmt.Errorf("loading department: %w", err)
	}

	var members int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE lower(department) = lower($1)`, d.Name).Scan(&members)
	if err != nil {
		return models.Department{}, fmt.Errorf("counting department users: %w", err)
	}
	if members > 0 {
		return models.Department{}, ErrDepartmentInUse
	}

	if _, err := tx.ExecContext(ctx, `UPDATE departments SET is_deleted = TRUE WHERE id = $1`, id); err != nil {
		return models.Department{}, fmt.Errorf("deleting department: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Department{}, fmt.Errorf("committing department: %w", err)
	}
	d.IsDeleted = true
	return d, nil
}
