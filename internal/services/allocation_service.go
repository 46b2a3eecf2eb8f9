package services

import (
	"context"
	"fmt"
	"sort"

	"km-backend/internal/billing"
	"km-backend/internal/models"
	"km-backend/internal/timeutil"
)

const autoPeriodNoteSuffix = " | Auto period payment"

// AllocationService spreads a lump payment over a student's periods.
// It runs on whatever transaction the caller's PaymentStore is bound to.
type AllocationService struct {
	Subjects billing.SubjectResolver
}

func NewAllocationService(subjects billing.SubjectResolver) *AllocationService {
	if subjects == nil {
		subjects = billing.FanLabelResolver{}
	}
	return &AllocationService{Subjects: subjects}
}

// Allocate settles existing debt oldest first, then pays for monthly periods
// of open groups that have elapsed without a row. Money left after both
// passes is reported as RemainingAmount and not stored anywhere.
func (s *AllocationService) Allocate(ctx context.Context, payments PaymentStore, req models.AllocationRequest) (*models.AllocationResult, error) {
	result := &models.AllocationResult{
		UpdatedPayments: []string{},
		CreatedPayments: []string{},
	}

	remaining := max(req.Amount, 0)
	if remaining == 0 {
		return result, nil
	}

	// Taken before the listing so its snapshot includes periods a concurrent
	// settlement for this student committed while we waited
	if err := payments.LockStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}
	rows, err := payments.ListForAllocation(ctx, req.StudentID, req.GroupID)
	if err != nil {
		return nil, err
	}
	sortForAllocation(rows)

	// Pass 1: existing periods with base debt
	for i := range rows {
		if remaining == 0 {
			break
		}
		p := &rows[i]

		debt := billing.PaymentDebt(*p)
		if debt <= 0 {
			continue
		}

		pay := min(debt, remaining)
		amountPaid := p.AmountPaid + pay
		settlement := models.PaymentSettlement{
			AmountPaid:    amountPaid,
			Status:        billing.Status(p.AmountRequired, p.Discount, amountPaid),
			PaymentMethod: req.Method,
			PaidAt:        req.PaidAt,
			Note:          billing.AppendNote(p.Note, req.NoteTag),
		}
		if err := payments.ApplySettlement(ctx, p.ID, settlement); err != nil {
			return nil, err
		}

		p.AmountPaid = settlement.AmountPaid
		p.Status = settlement.Status
		p.Note = settlement.Note
		remaining -= pay
		result.UpdatedPayments = append(result.UpdatedPayments, p.ID)
	}

	// Pass 2: elapsed periods of open groups
	if remaining > 0 {
		latest := latestPeriodPerGroup(rows)

		groupIDs := make([]string, 0, len(latest))
		for id := range latest {
			groupIDs = append(groupIDs, id)
		}
		sort.Strings(groupIDs)

		for _, groupID := range groupIDs {
			if remaining == 0 {
				break
			}

			row := latest[groupID]
			group := row.Group
			if group == nil || group.Status != models.GroupStatusOpen || group.PriceMonthly <= 0 {
				continue
			}

			extra := billing.ExtraDebtFor(row, req.Now)
			for i := 1; i <= extra.ExtraPeriods && remaining > 0; i++ {
				start := timeutil.AddMonthsKeepingDay(*row.PeriodEnd, i-1)
				end := timeutil.AddMonthsKeepingDay(*row.PeriodEnd, i)
				pay := min(group.PriceMonthly, remaining)
				paidAt := req.PaidAt
				gid := groupID

				p := &models.Payment{
					StudentID:      req.StudentID,
					GroupID:        &gid,
					Subject:        s.Subjects.ResolveSubject(*group),
					Month:          timeutil.MonthLabel(start),
					PeriodStart:    &start,
					PeriodEnd:      &end,
					AmountRequired: group.PriceMonthly,
					Discount:       0,
					AmountPaid:     pay,
					Status:         billing.Status(group.PriceMonthly, 0, pay),
					PaymentMethod:  req.Method,
					PaidAt:         &paidAt,
					Note:           req.NoteTag + autoPeriodNoteSuffix,
				}
				if err := payments.Create(ctx, p); err != nil {
					return nil, fmt.Errorf("failed to create period %s for group %s: %w", p.Month, groupID, err)
				}

				remaining -= pay
				result.CreatedPayments = append(result.CreatedPayments, p.ID)
			}
		}
	}

	result.AppliedAmount = req.Amount - remaining
	result.RemainingAmount = remaining
	return result, nil
}

// sortForAllocation orders periods oldest first by periodStart, falling back
// to createdAt for rows without one. Ties go to createdAt, then id.
func sortForAllocation(rows []models.Payment) {
	key := func(p models.Payment) int64 {
		if p.PeriodStart != nil {
			return p.PeriodStart.UnixNano()
		}
		return p.CreatedAt.UnixNano()
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ki, kj := key(rows[i]), key(rows[j])
		if ki != kj {
			return ki < kj
		}
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}

// latestPeriodPerGroup keeps the row with the greatest periodEnd for each group
func latestPeriodPerGroup(rows []models.Payment) map[string]models.Payment {
	latest := make(map[string]models.Payment)
	for _, row := range rows {
		if row.IsDeleted || row.GroupID == nil || row.PeriodEnd == nil {
			continue
		}
		prev, ok := latest[*row.GroupID]
		if !ok || prev.PeriodEnd.Before(*row.PeriodEnd) {
			latest[*row.GroupID] = row
		}
	}
	return latest
}
