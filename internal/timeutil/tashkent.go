package timeutil

import (
	"regexp"
	"strings"
	"time"
)

// Tashkent is the Uzbekistan time location (UTC+5)
var Tashkent *time.Location

func init() {
	var err error
	Tashkent, err = time.LoadLocation("Asia/Tashkent")
	if err != nil {
		// Fallback: fixed zone when tzdata is not installed
		Tashkent = time.FixedZone("UZT", 5*60*60)
	}
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	MonthLayout    = "2006-01"
	UzDateLayout   = "02.01.2006"
	DisplayLayout  = "02.01.2006 15:04"
	DateTimeLayout = "2006-01-02 15:04:05"
)

var dateInputPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Now returns the current time in Tashkent
func Now() time.Time {
	return time.Now().In(Tashkent)
}

// FormatTashkent formats a time in Tashkent using the given layout
func FormatTashkent(t time.Time, layout string) string {
	return t.In(Tashkent).Format(layout)
}

// DateOnlyUTC returns UTC midnight of t's UTC calendar date.
// All billing period comparisons happen on these values.
func DateOnlyUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsKeepingDay moves t by the given number of months on the UTC
// calendar. The day of month is kept and clamped to the last day of the
// target month, so Jan 31 + 1 month is Feb 28 (Feb 29 in leap years).
// The result is always a UTC midnight.
func AddMonthsKeepingDay(t time.Time, months int) time.Time {
	u := t.UTC()

	index := int(u.Month()) - 1 + months
	year := u.Year() + floorDiv(index, 12)
	month := time.Month(((index%12)+12)%12 + 1)

	day := u.Day()
	if last := DaysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// MonthLabel returns the YYYY-MM label of t's UTC date
func MonthLabel(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// FormatUzDate renders t's UTC date as dd.mm.yyyy
func FormatUzDate(t time.Time) string {
	return t.UTC().Format(UzDateLayout)
}

// ParseDateInput parses a strict YYYY-MM-DD value into a UTC midnight.
// Impossible dates such as 2023-02-30 are rejected.
func ParseDateInput(value string) (time.Time, bool) {
	raw := strings.TrimSpace(value)
	if !dateInputPattern.MatchString(raw) {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
