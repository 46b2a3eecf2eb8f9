package repositories

import (
	"context"
	"fmt"
	"strings"

	"km-backend/internal/models"

	"github.com/google/uuid"
)

const (
	defaultPaymentListLimit = 1000
	maxPaymentListLimit     = 5000
	maxAllocationRows       = 2000
)

const paymentColumns = `
	p.id, p.student_id, p.group_id, p.subject, p.month,
	p.period_start, p.period_end, p.amount_required, p.discount, p.amount_paid,
	p.status, p.payment_method, p.paid_at, COALESCE(p.note, ''), p.is_deleted,
	p.created_at, p.updated_at,
	g.id, g.code, g.fan, g.status, g.price_monthly, g.curator_id`

const paymentFrom = `
	FROM payments p
	LEFT JOIN group_catalog g ON g.id = p.group_id`

type rowScanner interface {
	Scan(dest ...any) error
}

type PaymentRepository struct {
	DB DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

// scanPayment reads paymentColumns followed by any extra columns
func scanPayment(row rowScanner, extra ...any) (models.Payment, error) {
	var (
		p                       models.Payment
		subject, status, method string
		groupID, groupCode      *string
		groupFan, groupStatus   *string
		groupPrice              *int64
		groupCurator            *string
	)

	dest := []any{
		&p.ID, &p.StudentID, &p.GroupID, &subject, &p.Month,
		&p.PeriodStart, &p.PeriodEnd, &p.AmountRequired, &p.Discount, &p.AmountPaid,
		&status, &method, &p.PaidAt, &p.Note, &p.IsDeleted,
		&p.CreatedAt, &p.UpdatedAt,
		&groupID, &groupCode, &groupFan, &groupStatus, &groupPrice, &groupCurator,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return p, err
	}

	p.Subject = models.Subject(subject)
	p.Status = models.PaymentStatus(status)
	p.PaymentMethod = models.PaymentMethod(method)

	if groupID != nil {
		g := &models.GroupCatalog{ID: *groupID, CuratorID: groupCurator}
		if groupCode != nil {
			g.Code = *groupCode
		}
		if groupFan != nil {
			g.Fan = *groupFan
		}
		if groupStatus != nil {
			g.Status = models.GroupStatus(*groupStatus)
		}
		if groupPrice != nil {
			g.PriceMonthly = *groupPrice
		}
		p.Group = g
	}

	return p, nil
}

// LockStudent serialises money movements for one student until the
// surrounding transaction ends. Row locks alone do not cover the periods a
// concurrent settlement is about to insert.
func (r *PaymentRepository) LockStudent(ctx context.Context, studentID string) error {
	if _, err := r.DB.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
		return fmt.Errorf("failed to lock student %s: %w", studentID, err)
	}
	return nil
}

// ListForAllocation returns the student's live periods with their group terms
// and locks them until the surrounding transaction ends.
func (r *PaymentRepository) ListForAllocation(ctx context.Context, studentID string, groupID *string) ([]models.Payment, error) {
	args := []any{studentID}
	query := `SELECT ` + paymentColumns + paymentFrom + `
		WHERE p.student_id = $1 AND p.is_deleted = false`
	if groupID != nil {
		query += ` AND p.group_id = $2`
		args = append(args, *groupID)
	}
	query += fmt.Sprintf(` ORDER BY p.created_at, p.id LIMIT %d FOR UPDATE OF p`, maxAllocationRows)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments for allocation: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

// ApplySettlement writes the settled amount, status, method and note of a period
func (r *PaymentRepository) ApplySettlement(ctx context.Context, id string, s models.PaymentSettlement) error {
	query := `
		UPDATE payments
		SET amount_paid = $2,
		    status = $3,
		    payment_method = $4,
		    paid_at = $5,
		    note = $6,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.DB.Exec(ctx, query, id, s.AmountPaid, string(s.Status), string(s.PaymentMethod), s.PaidAt, s.Note)
	if err != nil {
		return fmt.Errorf("failed to settle payment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a payment period, assigning an id when none is set
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO payments (
			id, student_id, group_id, subject, month,
			period_start, period_end, amount_required, discount, amount_paid,
			status, payment_method, paid_at, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.DB.QueryRow(ctx, query,
		p.ID, p.StudentID, p.GroupID, string(p.Subject), p.Month,
		p.PeriodStart, p.PeriodEnd, p.AmountRequired, p.Discount, p.AmountPaid,
		string(p.Status), string(p.PaymentMethod), p.PaidAt, p.Note,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// Get returns one payment with its group, deleted or not
func (r *PaymentRepository) Get(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + paymentFrom + ` WHERE p.id = $1`

	p, err := scanPayment(r.DB.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// SoftDelete hides a period from every calculation
func (r *PaymentRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE payments SET is_deleted = true, updated_at = NOW() WHERE id = $1 AND is_deleted = false`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns live payments with their student, newest period first
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListRow, error) {
	var conditions []string
	var args []any
	argNum := 1

	conditions = append(conditions, "p.is_deleted = false")

	if filter.Month != "" {
		conditions = append(conditions, fmt.Sprintf("p.month = $%d", argNum))
		args = append(args, filter.Month)
		argNum++
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("p.subject = $%d", argNum))
		args = append(args, string(filter.Subject))
		argNum++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argNum))
		args = append(args, string(filter.Status))
		argNum++
	}
	if len(filter.StudentPhones) > 0 {
		conditions = append(conditions, fmt.Sprintf("s.phone = ANY($%d)", argNum))
		args = append(args, filter.StudentPhones)
		argNum++
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = p.student_id AND e.group_id = $%d)", argNum))
		args = append(args, filter.GroupID)
		argNum++
	}
	if filter.CuratorID != "" {
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM enrollments e
			JOIN group_catalog cg ON cg.id = e.group_id
			WHERE e.student_id = p.student_id AND cg.curator_id = $%d)`, argNum))
		args = append(args, filter.CuratorID)
		argNum++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPaymentListLimit
	}
	if limit > maxPaymentListLimit {
		limit = maxPaymentListLimit
	}

	query := `SELECT ` + paymentColumns + `, s.full_name, COALESCE(s.phone, '')` + paymentFrom + `
		JOIN students s ON s.id = p.student_id
		WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(` ORDER BY p.period_start DESC NULLS LAST, p.created_at DESC LIMIT $%d`, argNum)
	args = append(args, limit)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var result []models.PaymentListRow
	for rows.Next() {
		var row models.PaymentListRow
		p, err := scanPayment(rows, &row.Student.FullName, &row.Student.Phone)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		row.Payment = p
		row.Student.ID = p.StudentID
		result = append(result, row)
	}

	return result, rows.Err()
}

// ListByNoteTag returns the student's live periods whose note carries tag
func (r *PaymentRepository) ListByNoteTag(ctx context.Context, studentID, tag string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + paymentFrom + `
		WHERE p.student_id = $1 AND p.is_deleted = false AND strpos(p.note, $2) > 0
		ORDER BY p.period_start NULLS LAST, p.created_at`

	rows, err := r.DB.Query(ctx, query, studentID, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments by note: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}
