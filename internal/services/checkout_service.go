package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"km-backend/internal/billing"
	"km-backend/internal/gateway"
	"km-backend/internal/metrics"
	"km-backend/internal/models"
	"km-backend/internal/repositories"
	"km-backend/internal/validation"

	"github.com/google/uuid"
)

const (
	checkoutNoteTagPrefix = "Checkout #"
	defaultFailedStatus   = "FAILED"
)

// CheckoutReader is checkout access outside a settlement transaction
type CheckoutReader interface {
	Get(ctx context.Context, id string) (*models.PaymentCheckout, error)
	Create(ctx context.Context, c *models.PaymentCheckout) error
}

type StudentReader interface {
	Get(ctx context.Context, id string) (*models.Student, error)
}

type GroupReader interface {
	Get(ctx context.Context, id string) (*models.GroupCatalog, error)
}

// CheckoutService settles provider payments against a student's periods.
// A checkout moves PENDING to PAID or FAILED exactly once.
type CheckoutService struct {
	Tx            TxRunner
	Allocator     *AllocationService
	Checkouts     CheckoutReader
	Students      StudentReader
	Groups        GroupReader
	Notifier      SettlementNotifier
	PublicBaseURL string
	Now           func() time.Time
}

func NewCheckoutService(
	tx TxRunner,
	allocator *AllocationService,
	checkouts CheckoutReader,
	students StudentReader,
	groups GroupReader,
	notifier SettlementNotifier,
	publicBaseURL string,
) *CheckoutService {
	return &CheckoutService{
		Tx:            tx,
		Allocator:     allocator,
		Checkouts:     checkouts,
		Students:      students,
		Groups:        groups,
		Notifier:      notifier,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		Now:           time.Now,
	}
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ApplyCheckoutPayment settles a checkout in one transaction: the checkout row
// is locked, the amount is allocated, the checkout is marked PAID and an
// audit record is written. A second call for a PAID checkout applies nothing.
func (s *CheckoutService) ApplyCheckoutPayment(ctx context.Context, in models.ApplyCheckoutInput) (*models.SettlementResult, error) {
	var (
		result        *models.SettlementResult
		event         *models.SettlementEvent
		allocation    *models.AllocationResult
		method        models.PaymentMethod
		provider      = in.Provider
		amountInvalid bool
	)
	now := s.now()

	err := s.Tx.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		checkout, err := stores.Checkouts.GetForUpdate(ctx, in.CheckoutID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrCheckoutNotFound
			}
			return fmt.Errorf("failed to load checkout %s: %w", in.CheckoutID, err)
		}

		if in.CallbackToken != "" && in.CallbackToken != checkout.CallbackToken {
			return ErrCheckoutTokenInvalid
		}

		switch checkout.Status {
		case models.CheckoutStatusPaid:
			result = &models.SettlementResult{
				CheckoutID:      checkout.ID,
				Status:          models.CheckoutStatusPaid,
				RequestedAmount: checkout.Amount,
			}
			return nil
		case models.CheckoutStatusFailed:
			return ErrCheckoutClosed
		}

		if provider == "" {
			provider = checkout.Provider
		}
		update := models.CheckoutUpdate{
			Provider:       provider,
			ExternalTxnID:  in.ExternalTxnID,
			ExternalStatus: in.ExternalStatus,
			Payload:        in.Payload,
		}

		amount := resolveSettlementAmount(in.AmountPaid, checkout.Amount)
		if amount <= 0 {
			if _, err := stores.Checkouts.MarkFailed(ctx, checkout.ID, update); err != nil {
				return err
			}
			amountInvalid = true
			event = &models.SettlementEvent{
				Type:       "checkout.failed",
				CheckoutID: checkout.ID,
				StudentID:  checkout.StudentID,
				GroupID:    checkout.GroupID,
				Provider:   provider,
				At:         now,
			}
			// Commit the FAILED state, the error is returned after commit
			return nil
		}

		paidAt := now
		if in.PaidAt != nil {
			paidAt = *in.PaidAt
		}
		method = billing.ProviderToPaymentMethod(provider)

		allocation, err = s.Allocator.Allocate(ctx, stores.Payments, models.AllocationRequest{
			StudentID: checkout.StudentID,
			GroupID:   checkout.GroupID,
			Amount:    amount,
			Method:    method,
			PaidAt:    paidAt,
			Now:       now,
			NoteTag:   checkoutNoteTagPrefix + checkout.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to allocate checkout %s: %w", checkout.ID, err)
		}

		update.PaidAt = &paidAt
		if err := stores.Checkouts.MarkPaid(ctx, checkout.ID, update); err != nil {
			return err
		}

		if err := stores.Audit.Create(ctx, auditEntry(in.Actor, models.AuditActionCreate, models.AuditEntityPaymentCheckout, checkout.ID, map[string]any{
			"student_id":       checkout.StudentID,
			"group_id":         checkout.GroupID,
			"provider":         provider,
			"requested_amount": amount,
			"applied_amount":   allocation.AppliedAmount,
			"remaining_amount": allocation.RemainingAmount,
			"updated_payments": allocation.UpdatedPayments,
			"created_payments": allocation.CreatedPayments,
		})); err != nil {
			return err
		}

		result = &models.SettlementResult{
			CheckoutID:      checkout.ID,
			Status:          models.CheckoutStatusPaid,
			RequestedAmount: amount,
			AppliedAmount:   allocation.AppliedAmount,
			RemainingAmount: allocation.RemainingAmount,
		}
		event = &models.SettlementEvent{
			Type:            "checkout.paid",
			CheckoutID:      checkout.ID,
			StudentID:       checkout.StudentID,
			GroupID:         checkout.GroupID,
			Provider:        provider,
			RequestedAmount: amount,
			AppliedAmount:   allocation.AppliedAmount,
			RemainingAmount: allocation.RemainingAmount,
			At:              now,
		}
		return nil
	})
	if err != nil {
		err = s.storeError(err)
		metrics.CheckoutSettlementsTotal.WithLabelValues(string(provider), settlementOutcome(err)).Inc()
		return nil, err
	}

	if amountInvalid {
		metrics.CheckoutSettlementsTotal.WithLabelValues(string(provider), "amount_invalid").Inc()
		s.notify(ctx, *event)
		log.Printf("[Checkout] %s marked FAILED: non-positive amount", in.CheckoutID)
		return nil, ErrCheckoutAmountInvalid
	}

	if event == nil {
		metrics.CheckoutSettlementsTotal.WithLabelValues(string(provider), "duplicate").Inc()
		return result, nil
	}

	metrics.CheckoutSettlementsTotal.WithLabelValues(string(provider), "paid").Inc()
	metrics.RecordAllocation(string(method), allocation.AppliedAmount, allocation.RemainingAmount, len(allocation.CreatedPayments))
	s.notify(ctx, *event)

	log.Printf("[Checkout] %s settled via %s: requested=%d applied=%d remaining=%d",
		result.CheckoutID, provider, result.RequestedAmount, result.AppliedAmount, result.RemainingAmount)
	if result.RemainingAmount > 0 {
		log.Printf("[Checkout] %s left %d unapplied", result.CheckoutID, result.RemainingAmount)
	}

	return result, nil
}

// MarkFailed records an explicit provider failure. A PAID checkout is never
// downgraded; its status is returned unchanged.
func (s *CheckoutService) MarkFailed(ctx context.Context, in models.ApplyCheckoutInput) (models.CheckoutStatus, error) {
	var (
		status  models.CheckoutStatus
		changed bool
		event   models.SettlementEvent
	)

	if in.ExternalStatus == nil {
		v := defaultFailedStatus
		in.ExternalStatus = &v
	}

	err := s.Tx.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		checkout, err := stores.Checkouts.GetForUpdate(ctx, in.CheckoutID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrCheckoutNotFound
			}
			return fmt.Errorf("failed to load checkout %s: %w", in.CheckoutID, err)
		}

		if in.CallbackToken != "" && in.CallbackToken != checkout.CallbackToken {
			return ErrCheckoutTokenInvalid
		}

		if checkout.Status == models.CheckoutStatusPaid {
			status = models.CheckoutStatusPaid
			return nil
		}

		provider := in.Provider
		if provider == "" {
			provider = checkout.Provider
		}
		changed, err = stores.Checkouts.MarkFailed(ctx, checkout.ID, models.CheckoutUpdate{
			Provider:       provider,
			ExternalTxnID:  in.ExternalTxnID,
			ExternalStatus: in.ExternalStatus,
			Payload:        in.Payload,
		})
		if err != nil {
			return err
		}

		status = models.CheckoutStatusFailed
		event = models.SettlementEvent{
			Type:       "checkout.failed",
			CheckoutID: checkout.ID,
			StudentID:  checkout.StudentID,
			GroupID:    checkout.GroupID,
			Provider:   provider,
			At:         s.now(),
		}
		return nil
	})
	if err != nil {
		err = s.storeError(err)
		metrics.CheckoutSettlementsTotal.WithLabelValues(string(in.Provider), settlementOutcome(err)).Inc()
		return "", err
	}

	if changed {
		metrics.CheckoutSettlementsTotal.WithLabelValues(string(event.Provider), "failed").Inc()
		s.notify(ctx, event)
		log.Printf("[Checkout] %s marked FAILED by provider", in.CheckoutID)
	}

	return status, nil
}

// Create opens a PENDING checkout for a student and optional group
func (s *CheckoutService) Create(ctx context.Context, req models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error) {
	if errs := validation.ValidateStruct(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}

	provider, ok := gateway.ParseProvider(req.Provider)
	if !ok {
		return nil, newValidationError("provider", "must be one of: PAYME CLICK UZUM PAYNET")
	}

	if _, err := s.Students.Get(ctx, req.StudentID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	var groupID *string
	if req.GroupID != nil && strings.TrimSpace(*req.GroupID) != "" {
		id := strings.TrimSpace(*req.GroupID)
		if _, err := s.Groups.Get(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrGroupNotFound
			}
			return nil, fmt.Errorf("failed to load group: %w", err)
		}
		groupID = &id
	}

	checkout := &models.PaymentCheckout{
		ID:            uuid.NewString(),
		StudentID:     req.StudentID,
		GroupID:       groupID,
		Amount:        req.Amount,
		Provider:      provider,
		CallbackToken: uuid.NewString(),
	}
	if err := s.Checkouts.Create(ctx, checkout); err != nil {
		if repositories.IsUndefinedTable(err, "payment_checkouts") {
			return nil, ErrPaymentTableMissing
		}
		return nil, err
	}

	log.Printf("[Checkout] created %s for student %s: %d via %s", checkout.ID, checkout.StudentID, checkout.Amount, provider)

	return &models.CreateCheckoutResponse{
		Checkout:      checkout,
		CallbackToken: checkout.CallbackToken,
		PayURL:        s.mockPayURL(checkout),
	}, nil
}

// Get returns a checkout by id
func (s *CheckoutService) Get(ctx context.Context, id string) (*models.PaymentCheckout, error) {
	checkout, err := s.Checkouts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCheckoutNotFound
		}
		if repositories.IsUndefinedTable(err, "payment_checkouts") {
			return nil, ErrPaymentTableMissing
		}
		return nil, err
	}
	return checkout, nil
}

func (s *CheckoutService) mockPayURL(c *models.PaymentCheckout) string {
	if s.PublicBaseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("checkoutId", c.ID)
	q.Set("token", c.CallbackToken)
	q.Set("provider", string(c.Provider))
	q.Set("amount", fmt.Sprintf("%d", c.Amount))
	return s.PublicBaseURL + "/api/payment-gateway/mock-pay?" + q.Encode()
}

func (s *CheckoutService) notify(ctx context.Context, event models.SettlementEvent) {
	if s.Notifier != nil {
		s.Notifier.NotifySettlement(ctx, event)
	}
}

// resolveSettlementAmount prefers a finite caller amount over the reserved one.
// Caller amounts too large for an int64 are ignored.
func resolveSettlementAmount(amountPaid *float64, reserved int64) int64 {
	amount := reserved
	if amountPaid != nil && !math.IsNaN(*amountPaid) && !math.IsInf(*amountPaid, 0) &&
		*amountPaid < float64(math.MaxInt64) {
		amount = int64(math.Floor(*amountPaid))
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func settlementOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCheckoutNotFound):
		return "not_found"
	case errors.Is(err, ErrCheckoutTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrCheckoutClosed):
		return "closed"
	case errors.Is(err, ErrPaymentTableMissing):
		return "table_missing"
	default:
		return "error"
	}
}

func (s *CheckoutService) storeError(err error) error {
	if repositories.IsUndefinedTable(err, "payments", "payment_checkouts") {
		return ErrPaymentTableMissing
	}
	return err
}
