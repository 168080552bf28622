package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// ArchiveRepository stores immutable snapshots written during term
// closure and graduation. Writes only happen inside the caller's
// transaction so an archival run commits as a unit.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// CreateTx inserts an archive row within the caller's transaction.
func (r *ArchiveRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, archive *models.Archive) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	const query = `INSERT INTO archives (id, entity, entity_id, data_snapshot, reason, archived_by)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.ExecContext(ctx, query,
		archive.ID, archive.Entity, archive.EntityID, archive.Snapshot, archive.Reason, archive.ArchivedBy); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

// FindByID returns an archive row by ID.
func (r *ArchiveRepository) FindByID(ctx context.Context, id string) (*models.Archive, error) {
	const query = `SELECT id, entity, entity_id, data_snapshot, reason, archived_by, archived_at
        FROM archives WHERE id = $1`
	var archive models.Archive
	if err := r.db.GetContext(ctx, &archive, query, id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// List returns archive rows matching the filter, newest first.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, int, error) {
	query := `SELECT id, entity, entity_id, data_snapshot, reason, archived_by, archived_at
        FROM archives WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM archives WHERE 1=1`
	var args []interface{}

	if filter.Entity != "" {
		cond := fmt.Sprintf(" AND entity = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.Entity)
	}
	if filter.EntityID != "" {
		cond := fmt.Sprintf(" AND entity_id = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.EntityID)
	}
	if filter.Reason != "" {
		cond := fmt.Sprintf(" AND reason = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.Reason)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query += fmt.Sprintf(" ORDER BY archived_at DESC LIMIT %d OFFSET %d", size, (page-1)*size)

	var archives []models.Archive
	if err := r.db.SelectContext(ctx, &archives, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list archives: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count archives: %w", err)
	}
	return archives, total, nil
}
