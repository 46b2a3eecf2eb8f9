package timeutil

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsKeepingDay(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{"leap february clamp", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"common february clamp", date(2023, time.January, 31), 1, date(2023, time.February, 28)},
		{"plain advance", date(2024, time.March, 15), 1, date(2024, time.April, 15)},
		{"year rollover", date(2024, time.December, 10), 1, date(2025, time.January, 10)},
		{"multi year", date(2024, time.May, 31), 21, date(2026, time.February, 28)},
		{"zero", date(2024, time.May, 31), 0, date(2024, time.May, 31)},
		{"negative into previous year", date(2024, time.January, 15), -1, date(2023, time.December, 15)},
		{"negative clamp", date(2024, time.March, 31), -1, date(2024, time.February, 29)},
		{"negative many", date(2024, time.February, 10), -14, date(2022, time.December, 10)},
		{"thirty first to thirtieth", date(2024, time.August, 31), 1, date(2024, time.September, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsKeepingDay(tt.start, tt.months)
			if !got.Equal(tt.want) {
				t.Errorf("AddMonthsKeepingDay(%s, %d) = %s; want %s",
					tt.start.Format(DateLayout), tt.months, got.Format(DateLayout), tt.want.Format(DateLayout))
			}
		})
	}
}

func TestAddMonthsKeepingDayDropsClock(t *testing.T) {
	start := time.Date(2024, time.January, 31, 23, 30, 0, 0, time.UTC)
	got := AddMonthsKeepingDay(start, 1)
	if got.Hour() != 0 || got.Minute() != 0 || got.Location() != time.UTC {
		t.Errorf("AddMonthsKeepingDay kept clock or zone: %v", got)
	}
}

func TestAddMonthsKeepingDayNeverSkipsMonth(t *testing.T) {
	start := date(2023, time.January, 31)
	for n := -24; n <= 24; n++ {
		got := AddMonthsKeepingDay(start, n)
		wantMonth := (int(time.January)-1+n)%12 + 1
		if wantMonth <= 0 {
			wantMonth += 12
		}
		if int(got.Month()) != wantMonth {
			t.Fatalf("AddMonthsKeepingDay(%d) landed in month %d; want %d", n, got.Month(), wantMonth)
		}
	}
}

func TestDateOnlyUTC(t *testing.T) {
	in := time.Date(2024, time.March, 1, 2, 0, 0, 0, Tashkent)
	got := DateOnlyUTC(in)
	want := date(2024, time.February, 29)
	if !got.Equal(want) {
		t.Errorf("DateOnlyUTC(%v) = %v; want %v", in, got, want)
	}
}

func TestParseDateInput(t *testing.T) {
	tests := []struct {
		in     string
		ok     bool
		expect time.Time
	}{
		{"2024-02-29", true, date(2024, time.February, 29)},
		{" 2024-01-05 ", true, date(2024, time.January, 5)},
		{"2023-02-29", false, time.Time{}},
		{"2024-13-01", false, time.Time{}},
		{"2024-1-5", false, time.Time{}},
		{"05.01.2024", false, time.Time{}},
		{"", false, time.Time{}},
	}

	for _, tt := range tests {
		got, ok := ParseDateInput(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseDateInput(%q) ok = %v; want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.expect) {
			t.Errorf("ParseDateInput(%q) = %v; want %v", tt.in, got, tt.expect)
		}
	}
}

func TestLabels(t *testing.T) {
	d := date(2024, time.March, 7)
	if got := MonthLabel(d); got != "2024-03" {
		t.Errorf("MonthLabel = %q; want %q", got, "2024-03")
	}
	if got := FormatUzDate(d); got != "07.03.2024" {
		t.Errorf("FormatUzDate = %q; want %q", got, "07.03.2024")
	}
}
