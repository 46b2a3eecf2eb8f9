package repositories

import (
	"context"
	"fmt"
	"strings"

	"km-backend/internal/models"
)

type StudentRepository struct {
	DB DBTX
}

func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{DB: db}
}

// Get retrieves a student by id
func (r *StudentRepository) Get(ctx context.Context, id string) (*models.Student, error) {
	s := &models.Student{}
	err := r.DB.QueryRow(ctx,
		`SELECT id, full_name, COALESCE(phone, '') FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.FullName, &s.Phone)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GroupsForStudents returns the enrollments of each student, limited by scope
func (r *StudentRepository) GroupsForStudents(ctx context.Context, studentIDs []string, scope models.EnrollmentScope) (map[string][]models.StudentGroup, error) {
	result := make(map[string][]models.StudentGroup)
	if len(studentIDs) == 0 {
		return result, nil
	}

	conditions := []string{"e.student_id = ANY($1)"}
	args := []any{studentIDs}
	argNum := 2

	if scope.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("e.group_id = $%d", argNum))
		args = append(args, scope.GroupID)
		argNum++
	}
	if scope.CuratorID != "" {
		conditions = append(conditions, fmt.Sprintf("g.curator_id = $%d", argNum))
		args = append(args, scope.CuratorID)
	}

	query := `
		SELECT e.student_id, g.id, g.code, COALESCE(g.fan, ''), e.status
		FROM enrollments e
		JOIN group_catalog g ON g.id = e.group_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY g.code`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var studentID string
		var g models.StudentGroup
		if err := rows.Scan(&studentID, &g.ID, &g.Code, &g.Fan, &g.Status); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		result[studentID] = append(result[studentID], g)
	}

	return result, rows.Err()
}
