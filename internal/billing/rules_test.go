package billing

import (
	"testing"

	"km-backend/internal/models"
)

func TestDebtAndStatusProperties(t *testing.T) {
	values := []int64{0, 1, 50, 99, 100, 150, 200, 100000}

	for _, req := range values {
		for _, disc := range values {
			if disc > req {
				continue
			}
			for _, paid := range values {
				net := req - disc

				wantDebt := net - paid
				if wantDebt < 0 {
					wantDebt = 0
				}
				if got := Debt(req, disc, paid); got != wantDebt {
					t.Fatalf("Debt(%d, %d, %d) = %d; want %d", req, disc, paid, got, wantDebt)
				}

				status := Status(req, disc, paid)
				switch {
				case paid == 0:
					if status != models.PaymentStatusDebt {
						t.Fatalf("Status(%d, %d, %d) = %s; want DEBT", req, disc, paid, status)
					}
				case paid >= net:
					if status != models.PaymentStatusPaid {
						t.Fatalf("Status(%d, %d, %d) = %s; want PAID", req, disc, paid, status)
					}
				default:
					if status != models.PaymentStatusPartial {
						t.Fatalf("Status(%d, %d, %d) = %s; want PARTIAL", req, disc, paid, status)
					}
				}
			}
		}
	}
}

func TestRequiredNetNeverNegative(t *testing.T) {
	if got := RequiredNet(100, 250); got != 0 {
		t.Errorf("RequiredNet(100, 250) = %d; want 0", got)
	}
	if got := Debt(100, 250, 0); got != 0 {
		t.Errorf("Debt(100, 250, 0) = %d; want 0", got)
	}
}

func TestStatusZeroNetUnpaidIsDebt(t *testing.T) {
	if got := Status(100, 100, 0); got != models.PaymentStatusDebt {
		t.Errorf("Status(100, 100, 0) = %s; want DEBT", got)
	}
}

func TestPaymentDebtIgnoresDeleted(t *testing.T) {
	p := models.Payment{AmountRequired: 500, IsDeleted: true}
	if got := PaymentDebt(p); got != 0 {
		t.Errorf("PaymentDebt(deleted) = %d; want 0", got)
	}
	p.IsDeleted = false
	if got := PaymentDebt(p); got != 500 {
		t.Errorf("PaymentDebt = %d; want 500", got)
	}
}
