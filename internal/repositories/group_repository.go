package repositories

import (
	"context"

	"km-backend/internal/models"
)

type GroupRepository struct {
	DB DBTX
}

func NewGroupRepository(db DBTX) *GroupRepository {
	return &GroupRepository{DB: db}
}

// Get retrieves the billing terms of a group
func (r *GroupRepository) Get(ctx context.Context, id string) (*models.GroupCatalog, error) {
	query := `
		SELECT id, code, COALESCE(fan, ''), status, price_monthly, curator_id
		FROM group_catalog
		WHERE id = $1
	`

	g := &models.GroupCatalog{}
	var status string
	err := r.DB.QueryRow(ctx, query, id).Scan(&g.ID, &g.Code, &g.Fan, &status, &g.PriceMonthly, &g.CuratorID)
	if err != nil {
		return nil, notFound(err)
	}

	g.Status = models.GroupStatus(status)
	return g, nil
}
