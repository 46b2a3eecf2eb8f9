package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"km-backend/internal/models"
)

func TestFormatSom(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 so'm"},
		{999, "999 so'm"},
		{1000, "1 000 so'm"},
		{1250000, "1 250 000 so'm"},
		{-45000, "-45 000 so'm"},
	}
	for _, tt := range tests {
		if got := FormatSom(tt.in); got != tt.want {
			t.Errorf("FormatSom(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReceiptFilename(t *testing.T) {
	c := &models.PaymentCheckout{ID: "3f2a9c1e-0000-4000-8000-000000000000"}
	if got := ReceiptFilename(c, day(2024, 3, 9)); got != "receipt_3f2a9c1e_20240309.pdf" {
		t.Errorf("ReceiptFilename() = %s", got)
	}
}

func TestReceiptForSettledCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	if _, err := f.svc.ApplyCheckoutPayment(ctx, models.ApplyCheckoutInput{CheckoutID: "c1", ExternalTxnID: ptr("click-77")}); err != nil {
		t.Fatal(err)
	}

	receipts := NewReceiptService(memCheckouts{f.db}, memStudents{f.db}, memPayments{f.db})
	data, err := receipts.GetReceiptData(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Periods) != 3 || data.Periods[0].ID != "p1" {
		t.Errorf("periods = %+v", data.Periods)
	}
	if data.Student.FullName != "Aliyev Vali" {
		t.Errorf("student = %+v", data.Student)
	}

	pdf, err := receipts.GenerateCheckoutPDF(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", pdf[:min(len(pdf), 8)])
	}
}

func TestReceiptRequiresPaidCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	receipts := NewReceiptService(memCheckouts{f.db}, memStudents{f.db}, memPayments{f.db})

	if _, err := receipts.GetReceiptData(context.Background(), "c1"); !errors.Is(err, ErrCheckoutNotPaid) {
		t.Errorf("pending checkout: err = %v, want ErrCheckoutNotPaid", err)
	}
	if _, err := receipts.GetReceiptData(context.Background(), "missing"); !errors.Is(err, ErrCheckoutNotFound) {
		t.Errorf("missing checkout: err = %v, want ErrCheckoutNotFound", err)
	}
}

func TestReceiptPDFWithoutPeriods(t *testing.T) {
	paidAt := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	receipts := NewReceiptService(nil, nil, nil)
	pdf, err := receipts.GenerateCheckoutPDF(&ReceiptData{
		Checkout: &models.PaymentCheckout{ID: "c2", Amount: 100000, Provider: models.ProviderUzum, Status: models.CheckoutStatusPaid, PaidAt: &paidAt},
		Student:  &models.Student{ID: "s1", FullName: "Test"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pdf) == 0 {
		t.Error("empty PDF")
	}
}
