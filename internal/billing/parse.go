package billing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"km-backend/internal/models"
	"km-backend/internal/timeutil"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseSubject accepts the exact enum names
func ParseSubject(value string) (models.Subject, bool) {
	switch models.Subject(value) {
	case models.SubjectChemistry, models.SubjectBiology, models.SubjectBoth:
		return models.Subject(value), true
	}
	return "", false
}

// ParsePaymentMethod accepts the exact enum names
func ParsePaymentMethod(value string) (models.PaymentMethod, bool) {
	switch models.PaymentMethod(value) {
	case models.PaymentMethodCash, models.PaymentMethodPayme, models.PaymentMethodClick,
		models.PaymentMethodUzum, models.PaymentMethodPaynet, models.PaymentMethodBank:
		return models.PaymentMethod(value), true
	}
	return "", false
}

// ParsePaymentStatus accepts the exact enum names
func ParsePaymentStatus(value string) (models.PaymentStatus, bool) {
	switch models.PaymentStatus(value) {
	case models.PaymentStatusPaid, models.PaymentStatusPartial, models.PaymentStatusDebt:
		return models.PaymentStatus(value), true
	}
	return "", false
}

// ParseNonNegativeInt parses a whole number ≥ 0
func ParseNonNegativeInt(value string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsValidMonth reports whether value is a YYYY-MM label
func IsValidMonth(value string) bool {
	return monthPattern.MatchString(value)
}

// ProviderToPaymentMethod maps a gateway to the method stamped on settled periods
func ProviderToPaymentMethod(provider models.PaymentProvider) models.PaymentMethod {
	switch provider {
	case models.ProviderPayme:
		return models.PaymentMethodPayme
	case models.ProviderClick:
		return models.PaymentMethodClick
	case models.ProviderUzum:
		return models.PaymentMethodUzum
	case models.ProviderPaynet:
		return models.PaymentMethodPaynet
	}
	return models.PaymentMethodBank
}

// BuildPeriodNote renders a period as dd.mm.yyyy-dd.mm.yyyy
func BuildPeriodNote(start, end time.Time) string {
	return timeutil.FormatUzDate(start) + "-" + timeutil.FormatUzDate(end)
}

// AppendNote adds tag on its own line unless the note already carries it
func AppendNote(base, tag string) string {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return tag
	}
	if strings.Contains(trimmed, tag) {
		return trimmed
	}
	return trimmed + "\n" + tag
}

// NormalizeUzPhone keeps digits and a leading plus, adding the plus when missing
func NormalizeUzPhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}

// PhoneVariants returns the stored spellings a phone may have, with and without plus
func PhoneVariants(raw string) []string {
	normalized := NormalizeUzPhone(raw)
	if normalized == "" || normalized == "+" {
		return nil
	}
	withoutPlus := strings.TrimPrefix(normalized, "+")
	if withoutPlus == normalized {
		return []string{normalized}
	}
	return []string{normalized, withoutPlus}
}
