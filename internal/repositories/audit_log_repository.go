package repositories

import (
	"context"
	"fmt"
	"strings"

	"km-backend/internal/models"
)

type AuditLogRepository struct {
	DB DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{DB: db}
}

// Create records an audited change
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			actor_user_id, actor_role, action, entity, entity_id, payload, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := r.DB.QueryRow(ctx, query,
		log.ActorUserID, log.ActorRole, log.Action, log.Entity, log.EntityID,
		nullableJSON(log.Payload), log.IPAddress,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// List retrieves audit logs newest first
func (r *AuditLogRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Entity != "" {
		conditions = append(conditions, fmt.Sprintf("entity = $%d", argNum))
		args = append(args, filter.Entity)
		argNum++
	}
	if filter.EntityID != "" {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argNum))
		args = append(args, filter.EntityID)
		argNum++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, actor_user_id, actor_role, action, entity, entity_id, payload, ip_address, created_at
		FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		var payload []byte
		if err := rows.Scan(
			&log.ID, &log.ActorUserID, &log.ActorRole, &log.Action, &log.Entity,
			&log.EntityID, &payload, &log.IPAddress, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Payload = payload
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
