package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"km-backend/internal/models"
	"km-backend/internal/repositories"
	"km-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
)

type PaymentTagLister interface {
	ListByNoteTag(ctx context.Context, studentID, tag string) ([]models.Payment, error)
}

// ReceiptService renders receipts for settled checkouts
type ReceiptService struct {
	Checkouts CheckoutReader
	Students  StudentReader
	Payments  PaymentTagLister
}

func NewReceiptService(checkouts CheckoutReader, students StudentReader, payments PaymentTagLister) *ReceiptService {
	return &ReceiptService{
		Checkouts: checkouts,
		Students:  students,
		Payments:  payments,
	}
}

// ReceiptData is everything printed on a checkout receipt
type ReceiptData struct {
	Checkout *models.PaymentCheckout
	Student  *models.Student
	Periods  []models.Payment // current state of every period the settlement touched
}

// GetReceiptData loads a PAID checkout and the periods its settlement touched
func (s *ReceiptService) GetReceiptData(ctx context.Context, checkoutID string) (*ReceiptData, error) {
	checkout, err := s.Checkouts.Get(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	if checkout.Status != models.CheckoutStatusPaid {
		return nil, ErrCheckoutNotPaid
	}

	student, err := s.Students.Get(ctx, checkout.StudentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	periods, err := s.Payments.ListByNoteTag(ctx, checkout.StudentID, checkoutNoteTagPrefix+checkout.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt periods: %w", err)
	}

	return &ReceiptData{Checkout: checkout, Student: student, Periods: periods}, nil
}

// GenerateCheckoutPDF renders a one page A4 receipt
func (s *ReceiptService) GenerateCheckoutPDF(data *ReceiptData) ([]byte, error) {
	c := data.Checkout

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle("Payment receipt "+c.ID, false)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Payment Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Checkout", "1", 1, "L", true, 0, "")

	paidAt := "-"
	if c.PaidAt != nil {
		paidAt = timeutil.FormatTashkent(*c.PaidAt, timeutil.DisplayLayout)
	}
	externalID := "-"
	if c.ExternalTxnID != nil && *c.ExternalTxnID != "" {
		externalID = *c.ExternalTxnID
	}

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 7, "Checkout ID: "+c.ID, "LR", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Student: "+data.Student.FullName, "L", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Phone: "+data.Student.Phone, "R", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Provider: "+string(c.Provider), "L", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Transaction: "+externalID, "R", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Paid at: "+paidAt, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Amount: "+FormatSom(c.Amount), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Periods
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Periods", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(25, 7, "Month", "1", 0, "C", true, 0, "")
	pdf.CellFormat(55, 7, "Period", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Required", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Paid to date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Status", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, p := range data.Periods {
		span := "-"
		if p.PeriodStart != nil && p.PeriodEnd != nil {
			span = timeutil.FormatUzDate(*p.PeriodStart) + " - " + timeutil.FormatUzDate(*p.PeriodEnd)
		}
		pdf.CellFormat(25, 6, p.Month, "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 6, span, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, FormatSom(p.AmountRequired-p.Discount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, FormatSom(p.AmountPaid), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, string(p.Status), "1", 1, "C", false, 0, "")
	}
	if len(data.Periods) == 0 {
		pdf.CellFormat(190, 6, "No periods recorded", "1", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFillColor(200, 255, 200)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, "Total paid: "+FormatSom(c.Amount), "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReceiptFilename is the download name of a checkout receipt
func ReceiptFilename(c *models.PaymentCheckout, now time.Time) string {
	return fmt.Sprintf("receipt_%s_%s.pdf", shortID(c.ID), now.Format("20060102"))
}

// FormatSom renders an amount with space separated thousands, e.g. 1 250 000 so'm
func FormatSom(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + " so'm"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
