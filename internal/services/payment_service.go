package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"km-backend/internal/billing"
	"km-backend/internal/cache"
	"km-backend/internal/metrics"
	"km-backend/internal/models"
	"km-backend/internal/repositories"
	"km-backend/internal/timeutil"
	"km-backend/internal/validation"

	"github.com/google/uuid"
)

const manualPaymentTagPrefix = "Manual payment #"

type PaymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListRow, error)
}

type StudentDirectory interface {
	Get(ctx context.Context, id string) (*models.Student, error)
	GroupsForStudents(ctx context.Context, studentIDs []string, scope models.EnrollmentScope) (map[string][]models.StudentGroup, error)
}

// PaymentService covers the admin and curator payment pages: manual
// periods, lump-sum allocation, deletion, listings and the debtor report.
type PaymentService struct {
	Tx        TxRunner
	Allocator *AllocationService
	Payments  PaymentLister
	Students  StudentDirectory
	Groups    GroupReader
	Subjects  billing.SubjectResolver
	Notifier  SettlementNotifier
	ReportTTL time.Duration
	Now       func() time.Time
}

func NewPaymentService(
	tx TxRunner,
	allocator *AllocationService,
	payments PaymentLister,
	students StudentDirectory,
	groups GroupReader,
	notifier SettlementNotifier,
	reportTTL time.Duration,
) *PaymentService {
	return &PaymentService{
		Tx:        tx,
		Allocator: allocator,
		Payments:  payments,
		Students:  students,
		Groups:    groups,
		Subjects:  allocator.Subjects,
		Notifier:  notifier,
		ReportTTL: reportTTL,
		Now:       time.Now,
	}
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateManual records one monthly period for a student in a group.
// The group's current price becomes the period's required amount.
func (s *PaymentService) CreateManual(ctx context.Context, req models.CreatePaymentRequest, actor models.Actor) (*models.Payment, error) {
	if errs := validation.ValidateStruct(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}

	start, ok := timeutil.ParseDateInput(req.PeriodStart)
	if !ok {
		return nil, newValidationError("period_start", "must be a valid YYYY-MM-DD date")
	}
	method, ok := billing.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, newValidationError("payment_method", "unknown payment method")
	}

	var paidAt *time.Time
	if req.PaidAt != "" {
		t, ok := timeutil.ParseDateInput(req.PaidAt)
		if !ok {
			return nil, newValidationError("paid_at", "must be a valid YYYY-MM-DD date")
		}
		paidAt = &t
	} else if req.AmountPaid > 0 {
		t := s.now()
		paidAt = &t
	}

	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}
	group, err := s.loadGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	end := timeutil.AddMonthsKeepingDay(start, 1)
	requiredNet := billing.RequiredNet(group.PriceMonthly, req.Discount)
	amountPaid := min(req.AmountPaid, requiredNet)

	note := billing.BuildPeriodNote(start, end)
	if extra := strings.TrimSpace(req.Note); extra != "" {
		note += "\n" + extra
	}

	groupID := group.ID
	payment := &models.Payment{
		StudentID:      req.StudentID,
		GroupID:        &groupID,
		Subject:        s.Subjects.ResolveSubject(*group),
		Month:          timeutil.MonthLabel(start),
		PeriodStart:    &start,
		PeriodEnd:      &end,
		AmountRequired: group.PriceMonthly,
		Discount:       req.Discount,
		AmountPaid:     amountPaid,
		Status:         billing.Status(group.PriceMonthly, req.Discount, amountPaid),
		PaymentMethod:  method,
		PaidAt:         paidAt,
		Note:           note,
		Group:          group,
	}

	err = s.Tx.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		if err := stores.Payments.Create(ctx, payment); err != nil {
			return err
		}
		return stores.Audit.Create(ctx, auditEntry(actor, models.AuditActionCreate, models.AuditEntityPayment, payment.ID, map[string]any{
			"student_id":      payment.StudentID,
			"group_id":        groupID,
			"month":           payment.Month,
			"amount_required": payment.AmountRequired,
			"discount":        payment.Discount,
			"amount_paid":     payment.AmountPaid,
			"payment_method":  payment.PaymentMethod,
		}))
	})
	if err != nil {
		return nil, s.storeError(err)
	}

	if amountPaid > 0 {
		metrics.RecordAllocation(string(method), amountPaid, 0, 0)
	}
	s.notify(ctx, models.SettlementEvent{
		Type:            "payment.created",
		StudentID:       payment.StudentID,
		GroupID:         payment.GroupID,
		RequestedAmount: req.AmountPaid,
		AppliedAmount:   amountPaid,
		RemainingAmount: req.AmountPaid - amountPaid,
		At:              s.now(),
	})

	return payment, nil
}

// AllocateManual spreads a lump sum taken at the desk over the student's periods
func (s *PaymentService) AllocateManual(ctx context.Context, req models.AllocatePaymentRequest, actor models.Actor) (*models.AllocationResult, error) {
	if errs := validation.ValidateStruct(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	method, ok := billing.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, newValidationError("payment_method", "unknown payment method")
	}

	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	var groupID *string
	if req.GroupID != nil && strings.TrimSpace(*req.GroupID) != "" {
		group, err := s.loadGroup(ctx, strings.TrimSpace(*req.GroupID))
		if err != nil {
			return nil, err
		}
		groupID = &group.ID
	}

	now := s.now()
	tag := manualPaymentTagPrefix + uuid.NewString()[:8]

	var result *models.AllocationResult
	err := s.Tx.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		var err error
		result, err = s.Allocator.Allocate(ctx, stores.Payments, models.AllocationRequest{
			StudentID: req.StudentID,
			GroupID:   groupID,
			Amount:    req.Amount,
			Method:    method,
			PaidAt:    now,
			Now:       now,
			NoteTag:   tag,
		})
		if err != nil {
			return err
		}

		return stores.Audit.Create(ctx, auditEntry(actor, models.AuditActionCreate, models.AuditEntityPaymentAllocation, req.StudentID, map[string]any{
			"note_tag":         tag,
			"group_id":         groupID,
			"payment_method":   method,
			"requested_amount": req.Amount,
			"applied_amount":   result.AppliedAmount,
			"remaining_amount": result.RemainingAmount,
			"updated_payments": result.UpdatedPayments,
			"created_payments": result.CreatedPayments,
		}))
	})
	if err != nil {
		return nil, s.storeError(err)
	}

	metrics.RecordAllocation(string(method), result.AppliedAmount, result.RemainingAmount, len(result.CreatedPayments))
	s.notify(ctx, models.SettlementEvent{
		Type:            "payment.allocated",
		StudentID:       req.StudentID,
		GroupID:         groupID,
		RequestedAmount: req.Amount,
		AppliedAmount:   result.AppliedAmount,
		RemainingAmount: result.RemainingAmount,
		At:              now,
	})
	log.Printf("[Payments] %s allocated %d for student %s (remaining %d)", tag, result.AppliedAmount, req.StudentID, result.RemainingAmount)

	return result, nil
}

// Delete soft-deletes a period
func (s *PaymentService) Delete(ctx context.Context, id string, actor models.Actor) error {
	err := s.Tx.InTx(ctx, func(ctx context.Context, stores TxStores) error {
		if err := stores.Payments.SoftDelete(ctx, id); err != nil {
			return err
		}
		return stores.Audit.Create(ctx, auditEntry(actor, models.AuditActionDelete, models.AuditEntityPayment, id, nil))
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrPaymentNotFound
		}
		return s.storeError(err)
	}

	s.notify(ctx, models.SettlementEvent{Type: "payment.deleted", At: s.now()})
	return nil
}

// List returns payments with today-aware debt. scope narrows which
// enrollments are shown next to each student.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter, scope models.EnrollmentScope) (*models.PaymentListResponse, error) {
	rows, err := s.Payments.List(ctx, filter)
	if err != nil {
		return nil, s.storeError(err)
	}

	debts := billing.TodayAwareDebtMap(paymentsOf(rows), s.now())

	groups, err := s.Students.GroupsForStudents(ctx, studentIDsOf(rows), scope)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		row := &rows[i]
		info := debts.Get(row.ID)
		row.RequiredNet = billing.RequiredNet(row.AmountRequired, row.Discount)
		row.Debt = info.TotalDebt
		row.ExtraDebt = info.ExtraDebt
		row.Student.Groups = groups[row.StudentID]
		if row.Student.Groups == nil {
			row.Student.Groups = []models.StudentGroup{}
		}
	}
	if rows == nil {
		rows = []models.PaymentListRow{}
	}

	return &models.PaymentListResponse{
		OK:       true,
		Payments: rows,
		Summary: models.PaymentListSummary{
			Total:     len(rows),
			TotalDebt: debts.TotalDebt,
		},
	}, nil
}

// CuratorPayments lists payments of students enrolled in the curator's groups
func (s *PaymentService) CuratorPayments(ctx context.Context, curatorID string, filter models.PaymentFilter) (*models.PaymentListResponse, error) {
	filter.CuratorID = curatorID
	filter.GroupID = ""
	return s.List(ctx, filter, models.EnrollmentScope{CuratorID: curatorID})
}

// Debtors lists every period with outstanding today-aware debt and totals it
// per student, largest debt first. Reports are cached until a payment changes.
func (s *PaymentService) Debtors(ctx context.Context, filter models.PaymentFilter) (*models.DebtorReport, error) {
	key := cache.ReportKey(cache.DebtorReportPrefix,
		filter.Month, string(filter.Subject), filter.GroupID, filter.CuratorID, timeutil.DateOnlyUTC(s.now()).Format(timeutil.DateLayout))
	if data, ok := cache.GetCached(ctx, key); ok {
		var report models.DebtorReport
		if err := json.Unmarshal(data, &report); err == nil {
			return &report, nil
		}
	}

	filter.Status = ""
	filter.StudentPhones = nil
	filter.Limit = 5000

	rows, err := s.Payments.List(ctx, filter)
	if err != nil {
		return nil, s.storeError(err)
	}

	debts := billing.TodayAwareDebtMap(paymentsOf(rows), s.now())
	groups, err := s.Students.GroupsForStudents(ctx, studentIDsOf(rows), models.EnrollmentScope{
		GroupID:   filter.GroupID,
		CuratorID: filter.CuratorID,
	})
	if err != nil {
		return nil, err
	}

	report := &models.DebtorReport{
		OK:       true,
		Students: []models.DebtorStudent{},
		Rows:     []models.DebtorRow{},
	}
	byStudent := make(map[string]*models.DebtorStudent)

	for _, row := range rows {
		debt := debts.Get(row.ID).TotalDebt
		if debt <= 0 {
			continue
		}

		studentGroups := groups[row.StudentID]
		if studentGroups == nil {
			studentGroups = []models.StudentGroup{}
		}
		report.Rows = append(report.Rows, models.DebtorRow{
			PaymentID:      row.ID,
			StudentID:      row.StudentID,
			StudentName:    row.Student.FullName,
			StudentPhone:   row.Student.Phone,
			Subject:        row.Subject,
			Month:          row.Month,
			Status:         row.Status,
			AmountRequired: row.AmountRequired,
			Discount:       row.Discount,
			AmountPaid:     row.AmountPaid,
			Debt:           debt,
			Groups:         studentGroups,
		})
		report.TotalDebt += debt

		agg, ok := byStudent[row.StudentID]
		if !ok {
			agg = &models.DebtorStudent{
				StudentID:    row.StudentID,
				StudentName:  row.Student.FullName,
				StudentPhone: row.Student.Phone,
			}
			byStudent[row.StudentID] = agg
		}
		agg.TotalDebt += debt
		agg.Records++
	}

	for _, agg := range byStudent {
		report.Students = append(report.Students, *agg)
	}
	sort.Slice(report.Students, func(i, j int) bool {
		a, b := report.Students[i], report.Students[j]
		if a.TotalDebt != b.TotalDebt {
			return a.TotalDebt > b.TotalDebt
		}
		return a.StudentName < b.StudentName
	})
	report.TotalRecords = len(report.Rows)

	if s.ReportTTL > 0 {
		if data, err := json.Marshal(report); err == nil {
			cache.SetCached(ctx, key, data, s.ReportTTL)
		}
	}

	return report, nil
}

func (s *PaymentService) ensureStudent(ctx context.Context, id string) error {
	if _, err := s.Students.Get(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("failed to load student: %w", err)
	}
	return nil
}

func (s *PaymentService) loadGroup(ctx context.Context, id string) (*models.GroupCatalog, error) {
	group, err := s.Groups.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return group, nil
}

// storeError maps a missing payment table to ErrPaymentTableMissing
func (s *PaymentService) storeError(err error) error {
	if repositories.IsUndefinedTable(err, "payments", "payment_checkouts") {
		return ErrPaymentTableMissing
	}
	return err
}

func (s *PaymentService) notify(ctx context.Context, event models.SettlementEvent) {
	if s.Notifier != nil {
		s.Notifier.NotifySettlement(ctx, event)
	}
}

func auditEntry(actor models.Actor, action, entity, entityID string, payload map[string]any) *models.AuditLog {
	entry := &models.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	if actor.UserID != "" {
		entry.ActorUserID = &actor.UserID
	}
	if actor.Role != "" {
		entry.ActorRole = &actor.Role
	}
	if actor.IPAddress != "" {
		entry.IPAddress = &actor.IPAddress
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			entry.Payload = data
		}
	}
	return entry
}

func paymentsOf(rows []models.PaymentListRow) []models.Payment {
	payments := make([]models.Payment, len(rows))
	for i, row := range rows {
		payments[i] = row.Payment
	}
	return payments
}

func studentIDsOf(rows []models.PaymentListRow) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if !seen[row.StudentID] {
			seen[row.StudentID] = true
			ids = append(ids, row.StudentID)
		}
	}
	return ids
}
