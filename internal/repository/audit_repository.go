package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// AuditRepository persists and queries the append-only audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a standalone audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditTrail) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO audit_trails (id, actor_id, action, entity, entity_id, old_values, new_values)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.OldValues, entry.NewValues); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// CreateTx inserts an audit entry inside an existing transaction.
func (r *AuditRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditTrail) error {
	return insertAuditTx(ctx, tx, entry)
}

// insertAuditTx writes an audit row within the caller's transaction so the
// entry commits or rolls back together with the mutation it records.
func insertAuditTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditTrail) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO audit_trails (id, actor_id, action, entity, entity_id, old_values, new_values)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query,
		entry.ID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, entry.OldValues, entry.NewValues); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditTrail, int, error) {
	query := `SELECT id, actor_id, action, entity, entity_id, old_values, new_values, created_at
        FROM audit_trails WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_trails WHERE 1=1`
	var args []interface{}

	if filter.Action != "" {
		cond := fmt.Sprintf(" AND action = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.Action)
	}
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
	if filter.ActorID != "" {
		cond := fmt.Sprintf(" AND actor_id = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.ActorID)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", size, (page-1)*size)

	var entries []models.AuditTrail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}
	return entries, total, nil
}
