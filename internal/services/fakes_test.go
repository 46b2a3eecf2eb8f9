package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"km-backend/internal/models"
	"km-backend/internal/repositories"
)

// memDB is an in-memory stand-in for the payment tables. memTx snapshots it
// before each transaction and restores the snapshot when fn fails.
type memDB struct {
	mu        sync.Mutex
	payments  map[string]models.Payment
	checkouts map[string]models.PaymentCheckout
	groups    map[string]models.GroupCatalog
	students  map[string]models.Student
	enrolled  map[string][]models.StudentGroup
	audits    []models.AuditLog
	calls     []string
	seq       int
	clock     time.Time

	failCreate error
}

func newMemDB() *memDB {
	return &memDB{
		payments:  make(map[string]models.Payment),
		checkouts: make(map[string]models.PaymentCheckout),
		groups:    make(map[string]models.GroupCatalog),
		students:  make(map[string]models.Student),
		enrolled:  make(map[string][]models.StudentGroup),
		clock:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

type memSnapshot struct {
	payments  map[string]models.Payment
	checkouts map[string]models.PaymentCheckout
	audits    int
	seq       int
}

func (db *memDB) snapshot() memSnapshot {
	s := memSnapshot{
		payments:  make(map[string]models.Payment, len(db.payments)),
		checkouts: make(map[string]models.PaymentCheckout, len(db.checkouts)),
		audits:    len(db.audits),
		seq:       db.seq,
	}
	for k, v := range db.payments {
		s.payments[k] = v
	}
	for k, v := range db.checkouts {
		s.checkouts[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.payments = s.payments
	db.checkouts = s.checkouts
	db.audits = db.audits[:s.audits]
	db.seq = s.seq
}

func (db *memDB) nextID(prefix string) (string, time.Time) {
	db.seq++
	return fmt.Sprintf("%s%03d", prefix, db.seq), db.clock.Add(time.Duration(db.seq) * time.Second)
}

func (db *memDB) addGroup(g models.GroupCatalog) {
	db.groups[g.ID] = g
}

func (db *memDB) addStudent(s models.Student, groups ...models.StudentGroup) {
	db.students[s.ID] = s
	db.enrolled[s.ID] = groups
}

// addPayment stores a period as-is. The id must be set.
func (db *memDB) addPayment(p models.Payment) {
	if p.CreatedAt.IsZero() {
		_, p.CreatedAt = db.nextID("")
	}
	db.payments[p.ID] = p
}

func (db *memDB) addCheckout(c models.PaymentCheckout) {
	if c.Status == "" {
		c.Status = models.CheckoutStatusPending
	}
	db.checkouts[c.ID] = c
}

func (db *memDB) payment(id string) models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.payments[id]
}

func (db *memDB) checkout(id string) models.PaymentCheckout {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.checkouts[id]
}

func (db *memDB) withGroup(p models.Payment) models.Payment {
	if p.GroupID != nil {
		if g, ok := db.groups[*p.GroupID]; ok {
			p.Group = &g
		}
	}
	return p
}

// memTx serializes transactions the way row locks would
type memTx struct {
	db      *memDB
	commits int
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, stores TxStores) error) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	snap := t.db.snapshot()
	err := fn(ctx, TxStores{
		Payments:  memPayments{t.db},
		Checkouts: memCheckouts{t.db},
		Audit:     memAudit{t.db},
	})
	if err != nil {
		t.db.restore(snap)
		return err
	}
	t.commits++
	return nil
}

type memPayments struct{ db *memDB }

func (m memPayments) LockStudent(ctx context.Context, studentID string) error {
	m.db.calls = append(m.db.calls, "lock:"+studentID)
	return nil
}

func (m memPayments) ListForAllocation(ctx context.Context, studentID string, groupID *string) ([]models.Payment, error) {
	m.db.calls = append(m.db.calls, "list:"+studentID)
	var rows []models.Payment
	for _, p := range m.db.payments {
		if p.IsDeleted || p.StudentID != studentID {
			continue
		}
		if groupID != nil && (p.GroupID == nil || *p.GroupID != *groupID) {
			continue
		}
		rows = append(rows, m.db.withGroup(p))
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

func (m memPayments) ApplySettlement(ctx context.Context, id string, s models.PaymentSettlement) error {
	p, ok := m.db.payments[id]
	if !ok || p.IsDeleted {
		return repositories.ErrNotFound
	}
	paidAt := s.PaidAt
	p.AmountPaid = s.AmountPaid
	p.Status = s.Status
	p.PaymentMethod = s.PaymentMethod
	p.PaidAt = &paidAt
	p.Note = s.Note
	m.db.payments[id] = p
	return nil
}

func (m memPayments) Create(ctx context.Context, p *models.Payment) error {
	if m.db.failCreate != nil {
		return m.db.failCreate
	}
	id, created := m.db.nextID("new-")
	if p.ID == "" {
		p.ID = id
	}
	p.CreatedAt = created
	p.UpdatedAt = created
	stored := *p
	stored.Group = nil
	m.db.payments[p.ID] = stored
	return nil
}

func (m memPayments) SoftDelete(ctx context.Context, id string) error {
	p, ok := m.db.payments[id]
	if !ok || p.IsDeleted {
		return repositories.ErrNotFound
	}
	p.IsDeleted = true
	m.db.payments[id] = p
	return nil
}

// List backs PaymentLister. Only the month filter is honoured.
func (m memPayments) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentListRow, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var rows []models.PaymentListRow
	for _, p := range m.db.payments {
		if p.IsDeleted || (filter.Month != "" && p.Month != filter.Month) {
			continue
		}
		s := m.db.students[p.StudentID]
		rows = append(rows, models.PaymentListRow{
			Payment: m.db.withGroup(p),
			Student: models.StudentSummary{ID: s.ID, FullName: s.FullName, Phone: s.Phone},
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (m memPayments) ListByNoteTag(ctx context.Context, studentID, tag string) ([]models.Payment, error) {
	var rows []models.Payment
	for _, p := range m.db.payments {
		if !p.IsDeleted && p.StudentID == studentID && strings.Contains(p.Note, tag) {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PeriodStart.Before(*rows[j].PeriodStart) })
	return rows, nil
}

type memCheckouts struct{ db *memDB }

func (m memCheckouts) GetForUpdate(ctx context.Context, id string) (*models.PaymentCheckout, error) {
	c, ok := m.db.checkouts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (m memCheckouts) MarkPaid(ctx context.Context, id string, upd models.CheckoutUpdate) error {
	c, ok := m.db.checkouts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Status = models.CheckoutStatusPaid
	if upd.Provider != "" {
		c.Provider = upd.Provider
	}
	c.PaidAt = upd.PaidAt
	if upd.ExternalTxnID != nil {
		c.ExternalTxnID = upd.ExternalTxnID
	}
	if upd.ExternalStatus != nil {
		c.ExternalStatus = upd.ExternalStatus
	}
	if upd.Payload != nil {
		c.ResponsePayload = upd.Payload
	}
	m.db.checkouts[id] = c
	return nil
}

func (m memCheckouts) MarkFailed(ctx context.Context, id string, upd models.CheckoutUpdate) (bool, error) {
	c, ok := m.db.checkouts[id]
	if !ok || c.Status == models.CheckoutStatusPaid {
		return false, nil
	}
	c.Status = models.CheckoutStatusFailed
	if upd.ExternalStatus != nil {
		c.ExternalStatus = upd.ExternalStatus
	}
	if upd.ExternalTxnID != nil {
		c.ExternalTxnID = upd.ExternalTxnID
	}
	m.db.checkouts[id] = c
	return true, nil
}

// Get and Create back CheckoutReader outside a transaction
func (m memCheckouts) Get(ctx context.Context, id string) (*models.PaymentCheckout, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.GetForUpdate(ctx, id)
}

func (m memCheckouts) Create(ctx context.Context, c *models.PaymentCheckout) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c.Status = models.CheckoutStatusPending
	m.db.checkouts[c.ID] = *c
	return nil
}

type memAudit struct{ db *memDB }

func (m memAudit) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = int64(len(m.db.audits) + 1)
	m.db.audits = append(m.db.audits, *entry)
	return nil
}

type memStudents struct{ db *memDB }

func (m memStudents) Get(ctx context.Context, id string) (*models.Student, error) {
	s, ok := m.db.students[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (m memStudents) GroupsForStudents(ctx context.Context, ids []string, scope models.EnrollmentScope) (map[string][]models.StudentGroup, error) {
	out := make(map[string][]models.StudentGroup)
	for _, id := range ids {
		for _, g := range m.db.enrolled[id] {
			if scope.GroupID != "" && g.ID != scope.GroupID {
				continue
			}
			out[id] = append(out[id], g)
		}
	}
	return out, nil
}

type memGroups struct{ db *memDB }

func (m memGroups) Get(ctx context.Context, id string) (*models.GroupCatalog, error) {
	g, ok := m.db.groups[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &g, nil
}

// recordingNotifier keeps every event it is told about
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SettlementEvent
}

func (r *recordingNotifier) NotifySettlement(ctx context.Context, event models.SettlementEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

// period builds a stored period of one month starting at start
func period(id, studentID, groupID string, start time.Time, required, discount, paid int64) models.Payment {
	end := start.AddDate(0, 1, 0)
	p := models.Payment{
		ID:             id,
		StudentID:      studentID,
		Subject:        models.SubjectChemistry,
		Month:          start.Format("2006-01"),
		PeriodStart:    &start,
		PeriodEnd:      &end,
		AmountRequired: required,
		Discount:       discount,
		AmountPaid:     paid,
		PaymentMethod:  models.PaymentMethodCash,
	}
	if groupID != "" {
		p.GroupID = &groupID
	}
	switch {
	case paid == 0:
		p.Status = models.PaymentStatusDebt
	case paid >= required-discount:
		p.Status = models.PaymentStatusPaid
	default:
		p.Status = models.PaymentStatusPartial
	}
	return p
}
