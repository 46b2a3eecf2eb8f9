package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"km-backend/internal/billing"
	"km-backend/internal/config"
	"km-backend/internal/db"
	"km-backend/internal/timeutil"

	"github.com/google/uuid"
)

// Clears billing data and seeds one student in an open group with two
// unpaid months behind and a PENDING checkout, ready for the mock pay page.
func main() {
	fmt.Println("========================================")
	fmt.Println("   Reset Billing Data for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL PAYMENTS, CHECKOUTS AND AUDIT LOGS!")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)

	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	cfg := config.Load()
	pool := db.Connect(cfg)
	defer pool.Close()

	fmt.Println()
	fmt.Println("Resetting billing tables...")

	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"audit_logs",
		"payment_checkouts",
		"payments",
	}
	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  - Cleared %s\n", table)
	}

	const (
		studentID = "demo-student"
		groupID   = "demo-group"
		price     = int64(450000)
	)

	_, err = tx.Exec(ctx, `
		INSERT INTO students (id, full_name, phone) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone`,
		studentID, "Demo O'quvchi", "+998901234567")
	if err != nil {
		log.Fatalf("Failed to create student: %v\n", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO group_catalog (id, code, fan, status, price_monthly) VALUES ($1, $2, $3, 'OCHIQ', $4)
		ON CONFLICT (id) DO UPDATE SET status = 'OCHIQ', price_monthly = EXCLUDED.price_monthly`,
		groupID, "KB-1", "Kimyo va biologiya", price)
	if err != nil {
		log.Fatalf("Failed to create group: %v\n", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO enrollments (student_id, group_id) VALUES ($1, $2)
		ON CONFLICT (student_id, group_id) DO NOTHING`, studentID, groupID)
	if err != nil {
		log.Fatalf("Failed to enroll student: %v\n", err)
	}
	fmt.Println("  - Seeded demo student and open group")

	// The only recorded period ended two months ago; everything since is rollover debt.
	start := timeutil.AddMonthsKeepingDay(timeutil.DateOnlyUTC(timeutil.Now()), -3)
	end := timeutil.AddMonthsKeepingDay(start, 1)
	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, student_id, group_id, subject, month, period_start, period_end,
			amount_required, amount_paid, status, note)
		VALUES ($1, $2, $3, 'BOTH', $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), studentID, groupID, timeutil.MonthLabel(start), start, end,
		price, price/2, billing.Status(price, 0, price/2), billing.BuildPeriodNote(start, end))
	if err != nil {
		log.Fatalf("Failed to create period: %v\n", err)
	}

	checkoutID := uuid.NewString()
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = tx.Exec(ctx, `
		INSERT INTO payment_checkouts (id, student_id, group_id, amount, provider, callback_token)
		VALUES ($1, $2, $3, $4, 'PAYME', $5)`,
		checkoutID, studentID, groupID, 3*price, token)
	if err != nil {
		log.Fatalf("Failed to create checkout: %v\n", err)
	}
	fmt.Println("  - Created PENDING checkout")

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	fmt.Println()
	fmt.Println("Billing data reset successful!")
	fmt.Println()
	fmt.Printf("Mock pay (needs billing.mock_pay_enabled):\n  %s/api/payment-gateway/mock-pay?checkoutId=%s&token=%s\n",
		strings.TrimRight(cfg.Billing.PublicBaseURL, "/"), checkoutID, token)
}
