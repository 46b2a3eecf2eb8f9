// Package billing holds the pure amount and period arithmetic shared by the
// allocator, settlement and every reporting path. Nothing here touches
// storage or the clock.
package billing

import "km-backend/internal/models"

// RequiredNet is the tuition owed for a period after discount
func RequiredNet(amountRequired, discount int64) int64 {
	if net := amountRequired - discount; net > 0 {
		return net
	}
	return 0
}

// Debt is the shortfall of a period that already exists as a row
func Debt(amountRequired, discount, amountPaid int64) int64 {
	if debt := RequiredNet(amountRequired, discount) - amountPaid; debt > 0 {
		return debt
	}
	return 0
}

// Status classifies a period from its amounts.
// Nothing paid is DEBT even when the net requirement is zero.
func Status(amountRequired, discount, amountPaid int64) models.PaymentStatus {
	if amountPaid == 0 {
		return models.PaymentStatusDebt
	}
	if amountPaid >= RequiredNet(amountRequired, discount) {
		return models.PaymentStatusPaid
	}
	return models.PaymentStatusPartial
}

// PaymentDebt is Debt for a stored row; deleted rows owe nothing
func PaymentDebt(p models.Payment) int64 {
	if p.IsDeleted {
		return 0
	}
	return Debt(p.AmountRequired, p.Discount, p.AmountPaid)
}
