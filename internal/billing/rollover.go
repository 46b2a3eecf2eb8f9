package billing

import (
	"time"

	"km-backend/internal/models"
	"km-backend/internal/timeutil"
)

// ExtraDebtInput is what the rollover computation needs about the latest period of a group
type ExtraDebtInput struct {
	PeriodEnd    *time.Time
	GroupStatus  models.GroupStatus
	PriceMonthly int64
	Now          time.Time
}

// ExtraDebt is the debt of monthly periods elapsed after the last recorded one
type ExtraDebt struct {
	ExtraDebt          int64      `json:"extra_debt"`
	ExtraPeriods       int        `json:"extra_periods"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

// OpenGroupExtraDebt counts the monthly periods that started after periodEnd
// up to and including today. Only open (OCHIQ) groups with a positive price
// accrue rollover debt.
func OpenGroupExtraDebt(in ExtraDebtInput) ExtraDebt {
	if in.PeriodEnd == nil || in.GroupStatus != models.GroupStatusOpen || in.PriceMonthly <= 0 {
		return ExtraDebt{}
	}

	periodEnd := timeutil.DateOnlyUTC(*in.PeriodEnd)
	today := timeutil.DateOnlyUTC(in.Now)
	if !today.After(periodEnd) {
		return ExtraDebt{}
	}

	periods := 0
	cursor := periodEnd
	for !cursor.After(today) {
		periods++
		cursor = timeutil.AddMonthsKeepingDay(periodEnd, periods)
	}

	start := timeutil.AddMonthsKeepingDay(periodEnd, max(periods-1, 0))
	end := timeutil.AddMonthsKeepingDay(periodEnd, periods)

	return ExtraDebt{
		ExtraDebt:          int64(periods) * in.PriceMonthly,
		ExtraPeriods:       periods,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
}

// ExtraDebtFor applies OpenGroupExtraDebt to a stored row and its joined group
func ExtraDebtFor(p models.Payment, now time.Time) ExtraDebt {
	if p.Group == nil || p.IsDeleted {
		return ExtraDebt{}
	}
	return OpenGroupExtraDebt(ExtraDebtInput{
		PeriodEnd:    p.PeriodEnd,
		GroupStatus:  p.Group.Status,
		PriceMonthly: p.Group.PriceMonthly,
		Now:          now,
	})
}

// DebtInfo is base plus rollover debt of one row
type DebtInfo struct {
	BaseDebt           int64      `json:"base_debt"`
	ExtraDebt          int64      `json:"extra_debt"`
	TotalDebt          int64      `json:"total_debt"`
	ExtraPeriods       int        `json:"extra_periods"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
}

// PaymentDebtWithToday treats p as the latest period of its group
func PaymentDebtWithToday(p models.Payment, now time.Time) DebtInfo {
	base := PaymentDebt(p)
	extra := ExtraDebtFor(p, now)
	return DebtInfo{
		BaseDebt:           base,
		ExtraDebt:          extra.ExtraDebt,
		TotalDebt:          base + extra.ExtraDebt,
		ExtraPeriods:       extra.ExtraPeriods,
		CurrentPeriodStart: extra.CurrentPeriodStart,
		CurrentPeriodEnd:   extra.CurrentPeriodEnd,
	}
}

// DebtMap is the today-aware debt of a batch of rows
type DebtMap struct {
	ByPaymentID    map[string]DebtInfo
	TotalBaseDebt  int64
	TotalExtraDebt int64
	TotalDebt      int64
}

// Get returns the debt of a row, zero when the row was not in the batch
func (m DebtMap) Get(paymentID string) DebtInfo {
	return m.ByPaymentID[paymentID]
}

// TodayAwareDebtMap computes base debt for every row and attaches rollover
// debt to the latest row (greatest periodEnd) of each student and group pair.
// Rows without a group or periodEnd never carry rollover debt.
func TodayAwareDebtMap(rows []models.Payment, now time.Time) DebtMap {
	result := DebtMap{ByPaymentID: make(map[string]DebtInfo, len(rows))}
	latest := make(map[string]models.Payment)

	for _, row := range rows {
		base := PaymentDebt(row)
		result.ByPaymentID[row.ID] = DebtInfo{BaseDebt: base, TotalDebt: base}
		result.TotalBaseDebt += base

		if row.IsDeleted || row.GroupID == nil || row.PeriodEnd == nil {
			continue
		}

		key := row.StudentID + ":" + *row.GroupID
		prev, ok := latest[key]
		if !ok || prev.PeriodEnd.Before(*row.PeriodEnd) {
			latest[key] = row
		}
	}

	for _, row := range latest {
		extra := ExtraDebtFor(row, now)
		if extra.ExtraDebt == 0 {
			continue
		}

		info := result.ByPaymentID[row.ID]
		info.ExtraDebt = extra.ExtraDebt
		info.TotalDebt = info.BaseDebt + extra.ExtraDebt
		info.ExtraPeriods = extra.ExtraPeriods
		info.CurrentPeriodStart = extra.CurrentPeriodStart
		info.CurrentPeriodEnd = extra.CurrentPeriodEnd
		result.ByPaymentID[row.ID] = info

		result.TotalExtraDebt += extra.ExtraDebt
	}

	result.TotalDebt = result.TotalBaseDebt + result.TotalExtraDebt
	return result
}
