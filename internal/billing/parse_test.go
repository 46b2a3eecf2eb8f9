package billing

import (
	"reflect"
	"testing"
	"time"

	"km-backend/internal/models"
)

func TestSubjectFromFan(t *testing.T) {
	tests := []struct {
		fan  string
		want models.Subject
	}{
		{"Kimyo", models.SubjectChemistry},
		{"  CHEMISTRY intensive ", models.SubjectChemistry},
		{"Biologiya", models.SubjectBiology},
		{"biology", models.SubjectBiology},
		{"Kimyo va biologiya", models.SubjectBoth},
		{"Matematika", models.SubjectBoth},
		{"", models.SubjectBoth},
	}

	for _, tt := range tests {
		if got := SubjectFromFan(tt.fan); got != tt.want {
			t.Errorf("SubjectFromFan(%q) = %s; want %s", tt.fan, got, tt.want)
		}
	}

	var resolver SubjectResolver = FanLabelResolver{}
	if got := resolver.ResolveSubject(models.GroupCatalog{Fan: "kimyo"}); got != models.SubjectChemistry {
		t.Errorf("FanLabelResolver = %s; want CHEMISTRY", got)
	}
}

func TestProviderToPaymentMethod(t *testing.T) {
	tests := []struct {
		provider models.PaymentProvider
		want     models.PaymentMethod
	}{
		{models.ProviderPayme, models.PaymentMethodPayme},
		{models.ProviderClick, models.PaymentMethodClick},
		{models.ProviderUzum, models.PaymentMethodUzum},
		{models.ProviderPaynet, models.PaymentMethodPaynet},
		{"APELSIN", models.PaymentMethodBank},
		{"", models.PaymentMethodBank},
	}

	for _, tt := range tests {
		if got := ProviderToPaymentMethod(tt.provider); got != tt.want {
			t.Errorf("ProviderToPaymentMethod(%q) = %s; want %s", tt.provider, got, tt.want)
		}
	}
}

func TestEnumParsers(t *testing.T) {
	if s, ok := ParseSubject("BIOLOGY"); !ok || s != models.SubjectBiology {
		t.Errorf("ParseSubject(BIOLOGY) = %s, %v", s, ok)
	}
	if _, ok := ParseSubject("biology"); ok {
		t.Errorf("ParseSubject is case sensitive")
	}
	if m, ok := ParsePaymentMethod("PAYNET"); !ok || m != models.PaymentMethodPaynet {
		t.Errorf("ParsePaymentMethod(PAYNET) = %s, %v", m, ok)
	}
	if _, ok := ParsePaymentMethod("CARD"); ok {
		t.Errorf("ParsePaymentMethod(CARD) accepted")
	}
	if s, ok := ParsePaymentStatus("PARTIAL"); !ok || s != models.PaymentStatusPartial {
		t.Errorf("ParsePaymentStatus(PARTIAL) = %s, %v", s, ok)
	}
	if _, ok := ParsePaymentStatus(""); ok {
		t.Errorf("ParsePaymentStatus(\"\") accepted")
	}
}

func TestParseNonNegativeInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{" 250000 ", 250000, true},
		{"-1", 0, false},
		{"12.5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNonNegativeInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseNonNegativeInt(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsValidMonth(t *testing.T) {
	valid := []string{"2024-01", "1999-12"}
	invalid := []string{"2024-00", "2024-13", "2024-1", "24-01", "2024-01-01", ""}

	for _, v := range valid {
		if !IsValidMonth(v) {
			t.Errorf("IsValidMonth(%q) = false; want true", v)
		}
	}
	for _, v := range invalid {
		if IsValidMonth(v) {
			t.Errorf("IsValidMonth(%q) = true; want false", v)
		}
	}
}

func TestAppendNote(t *testing.T) {
	tests := []struct {
		base, tag, want string
	}{
		{"", "Checkout #1", "Checkout #1"},
		{"   ", "Checkout #1", "Checkout #1"},
		{"01.01.2024-01.02.2024", "Checkout #1", "01.01.2024-01.02.2024\nCheckout #1"},
		{"x\nCheckout #1", "Checkout #1", "x\nCheckout #1"},
	}
	for _, tt := range tests {
		if got := AppendNote(tt.base, tt.tag); got != tt.want {
			t.Errorf("AppendNote(%q, %q) = %q; want %q", tt.base, tt.tag, got, tt.want)
		}
	}
}

func TestBuildPeriodNote(t *testing.T) {
	start := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	if got := BuildPeriodNote(start, end); got != "31.01.2024-29.02.2024" {
		t.Errorf("BuildPeriodNote = %q", got)
	}
}

func TestPhoneVariants(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"+998 90 123-45-67", []string{"+998901234567", "998901234567"}},
		{"998901234567", []string{"+998901234567", "998901234567"}},
		{"  ", nil},
		{"abc", nil},
	}
	for _, tt := range tests {
		if got := PhoneVariants(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PhoneVariants(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
