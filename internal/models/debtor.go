package models

// DebtorRow is one payment with outstanding today-aware debt
type DebtorRow struct {
	PaymentID      string         `json:"payment_id"`
	StudentID      string         `json:"student_id"`
	StudentName    string         `json:"student_name"`
	StudentPhone   string         `json:"student_phone"`
	Subject        Subject        `json:"subject"`
	Month          string         `json:"month"`
	Status         PaymentStatus  `json:"status"`
	AmountRequired int64          `json:"amount_required"`
	Discount       int64          `json:"discount"`
	AmountPaid     int64          `json:"amount_paid"`
	Debt           int64          `json:"debt"`
	Groups         []StudentGroup `json:"groups"`
}

// DebtorStudent aggregates a student's debt across rows
type DebtorStudent struct {
	StudentID    string `json:"student_id"`
	StudentName  string `json:"student_name"`
	StudentPhone string `json:"student_phone"`
	TotalDebt    int64  `json:"total_debt"`
	Records      int    `json:"records"`
}

// DebtorReport is the admin debtor list
type DebtorReport struct {
	OK           bool            `json:"ok"`
	TotalDebt    int64           `json:"total_debt"`
	TotalRecords int             `json:"total_records"`
	Students     []DebtorStudent `json:"students"`
	Rows         []DebtorRow     `json:"rows"`
}
