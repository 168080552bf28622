package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// TermRepository provides access to academic terms. At most one term is
// active at any time; activation deactivates the rest atomically.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository constructs the repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

const termColumns = `id, name, school_year, term_no, start_date, end_date, add_drop_deadline, grade_encoding_deadline, is_active, created_at`

// FindByID returns a term by ID.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM terms WHERE id = $1`, termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActive returns the currently active term.
func (r *TermRepository) FindActive(ctx context.Context) (*models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM terms WHERE is_active = TRUE LIMIT 1`, termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query); err != nil {
		return nil, err
	}
	return &term, nil
}

// List returns terms matching the filter, newest school year first.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	query := fmt.Sprintf(`SELECT %s FROM terms WHERE 1=1`, termColumns)
	countQuery := `SELECT COUNT(*) FROM terms WHERE 1=1`
	var args []interface{}

	if filter.SchoolYear != "" {
		cond := fmt.Sprintf(" AND school_year = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.SchoolYear)
	}
	if filter.IsActive != nil {
		cond := fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, *filter.IsActive)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query += fmt.Sprintf(" ORDER BY school_year DESC, term_no DESC LIMIT %d OFFSET %d", size, (page-1)*size)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}
	return terms, total, nil
}

// SetActive activates the given term and deactivates every other term in
// a single transaction.
func (r *TermRepository) SetActive(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE terms SET is_active = FALSE WHERE is_active = TRUE AND id <> $1`, id); err != nil {
		return fmt.Errorf("deactivate terms: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE terms SET is_active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate term: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = fmt.Errorf("activate term: term %s not found", id)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Deactivate marks the term inactive.
func (r *TermRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE terms SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate term: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("deactivate term: term %s not found", id)
	}
	return nil
}
