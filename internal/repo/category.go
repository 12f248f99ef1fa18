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
// CategoryRepo
// ==========================

// CategoryRepo is the asset category registry. Names are unique among live
// categories, compared case-insensitively.
type CategoryRepo struct {
	DB *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{DB: db}
}

func (r *CategoryRepo) CategoryExists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM asset_categories WHERE lower(name) = lower($1) AND NOT is_deleted)`,
		strings.TrimSpace(name)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking category: %w", err)
	}
	return ok, nil
}

func (r *CategoryRepo) Create(ctx context.Context, name string) (models.Category, error) {
	c := models.Category{Name: strings.TrimSpace(name)}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO asset_categories (name) VALUES ($1) RETURNING id, created_at`,
		c.Name).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		return models.Category{}, lifecycle.ErrCategoryExists
	}
	if err != nil {
		return models.Category{}, fmt.Errorf("creating category: %w", err)
	}
	return c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, is_deleted, created_at FROM asset_categories WHERE NOT is_deleted ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IsDeleted, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete soft-deletes a category. It is refused while live assets still use it.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) (models.Category, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Category{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	var c models.Category
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, is_deleted, created_at FROM asset_categories WHERE id = $1 AND NOT is_deleted FOR UPDATE`,
		id).Scan(&c.ID, &c.Name, &c.IsDeleted, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Category{}, lifecycle.ErrCategoryNotFound
	}
	if err != nil {
		return models.Category{}, fmt.Errorf("loading category: %w", err)
	}

	var inUse bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM assets WHERE lower(category) = lower($1) AND NOT is_deleted)`,
		c.Name).Scan(&inUse)
	if err != nil {
		return models.Category{}, fmt.Errorf("checking category use: %w", err)
	}
	if inUse {
		return models.Category{}, lifecycle.ErrCategoryInUse
	}

	if _, err := tx.ExecContext(ctx, `UPDATE asset_categories SET is_deleted = TRUE WHERE id = $1`, id); err != nil {
		return models.Category{}, fmt.Errorf("deleting category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Category{}, fmt.Errorf("committing category: %w", err)
	}
	c.IsDeleted = true
	return c, nil
}
