package services

import (
	"context"
	"fmt"

	"km-backend/internal/models"
	"km-backend/internal/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentStore is the payment access needed inside a transaction
type PaymentStore interface {
	LockStudent(ctx context.Context, studentID string) error
	ListForAllocation(ctx context.Context, studentID string, groupID *string) ([]models.Payment, error)
	ApplySettlement(ctx context.Context, id string, s models.PaymentSettlement) error
	Create(ctx context.Context, p *models.Payment) error
	SoftDelete(ctx context.Context, id string) error
}

// CheckoutStore is the checkout access settlement needs inside a transaction
type CheckoutStore interface {
	GetForUpdate(ctx context.Context, id string) (*models.PaymentCheckout, error)
	MarkPaid(ctx context.Context, id string, upd models.CheckoutUpdate) error
	MarkFailed(ctx context.Context, id string, upd models.CheckoutUpdate) (bool, error)
}

type AuditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// TxStores are bound to one transaction
type TxStores struct {
	Payments  PaymentStore
	Checkouts CheckoutStore
	Audit     AuditWriter
}

// TxRunner runs fn in a transaction. The transaction commits only when fn returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error
}

type PgTxRunner struct {
	Pool *pgxpool.Pool
}

func NewPgTxRunner(pool *pgxpool.Pool) *PgTxRunner {
	return &PgTxRunner{Pool: pool}
}

func (r *PgTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stores := TxStores{
		Payments:  repositories.NewPaymentRepository(tx),
		Checkouts: repositories.NewCheckoutRepository(tx),
		Audit:     repositories.NewAuditLogRepository(tx),
	}

	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
