package repositories

import (
	"context"
	"fmt"

	"km-backend/internal/models"

	"github.com/google/uuid"
)

const checkoutColumns = `
	id, student_id, group_id, amount, provider, callback_token, status,
	external_txn_id, external_status, response_payload, paid_at,
	created_at, updated_at`

type CheckoutRepository struct {
	DB DBTX
}

func NewCheckoutRepository(db DBTX) *CheckoutRepository {
	return &CheckoutRepository{DB: db}
}

func scanCheckout(row rowScanner) (*models.PaymentCheckout, error) {
	c := &models.PaymentCheckout{}
	var provider, status string
	var payload []byte

	err := row.Scan(
		&c.ID, &c.StudentID, &c.GroupID, &c.Amount, &provider, &c.CallbackToken, &status,
		&c.ExternalTxnID, &c.ExternalStatus, &payload, &c.PaidAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Provider = models.PaymentProvider(provider)
	c.Status = models.CheckoutStatus(status)
	c.ResponsePayload = payload
	return c, nil
}

// Create inserts a PENDING checkout
func (r *CheckoutRepository) Create(ctx context.Context, c *models.PaymentCheckout) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = models.CheckoutStatusPending

	query := `
		INSERT INTO payment_checkouts (id, student_id, group_id, amount, provider, callback_token, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.DB.QueryRow(ctx, query,
		c.ID, c.StudentID, c.GroupID, c.Amount, string(c.Provider), c.CallbackToken, string(c.Status),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create checkout: %w", err)
	}

	return nil
}

// Get retrieves a checkout without locking it
func (r *CheckoutRepository) Get(ctx context.Context, id string) (*models.PaymentCheckout, error) {
	c, err := scanCheckout(r.DB.QueryRow(ctx,
		`SELECT `+checkoutColumns+` FROM payment_checkouts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// GetForUpdate retrieves a checkout and holds its row lock for the rest of the transaction
func (r *CheckoutRepository) GetForUpdate(ctx context.Context, id string) (*models.PaymentCheckout, error) {
	c, err := scanCheckout(r.DB.QueryRow(ctx,
		`SELECT `+checkoutColumns+` FROM payment_checkouts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// MarkPaid moves a checkout to PAID. Nil update fields keep the stored value.
func (r *CheckoutRepository) MarkPaid(ctx context.Context, id string, upd models.CheckoutUpdate) error {
	query := `
		UPDATE payment_checkouts
		SET status = $2,
		    provider = COALESCE(NULLIF($3, ''), provider),
		    paid_at = COALESCE($4, paid_at, NOW()),
		    external_txn_id = COALESCE($5, external_txn_id),
		    external_status = COALESCE($6, external_status),
		    response_payload = COALESCE($7, response_payload),
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.DB.Exec(ctx, query,
		id, string(models.CheckoutStatusPaid), string(upd.Provider),
		upd.PaidAt, upd.ExternalTxnID, upd.ExternalStatus, nullableJSON(upd.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to mark checkout %s paid: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed moves a checkout to FAILED unless it is already PAID.
// It reports whether a row changed.
func (r *CheckoutRepository) MarkFailed(ctx context.Context, id string, upd models.CheckoutUpdate) (bool, error) {
	query := `
		UPDATE payment_checkouts
		SET status = $2,
		    provider = COALESCE(NULLIF($3, ''), provider),
		    external_txn_id = COALESCE($4, external_txn_id),
		    external_status = COALESCE($5, external_status),
		    response_payload = COALESCE($6, response_payload),
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'PAID'
	`

	tag, err := r.DB.Exec(ctx, query,
		id, string(models.CheckoutStatusFailed), string(upd.Provider),
		upd.ExternalTxnID, upd.ExternalStatus, nullableJSON(upd.Payload),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark checkout %s failed: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func nullableJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
