package billing

import (
	"strings"

	"km-backend/internal/models"
)

// SubjectResolver decides the subject of a period synthesized for a group
type SubjectResolver interface {
	ResolveSubject(group models.GroupCatalog) models.Subject
}

// FanLabelResolver infers the subject from the group's free-text fan label
type FanLabelResolver struct{}

func (FanLabelResolver) ResolveSubject(group models.GroupCatalog) models.Subject {
	return SubjectFromFan(group.Fan)
}

// SubjectFromFan matches "kimyo"/"chemistry" and "biologiya"/"biology".
// Both or neither yields BOTH.
func SubjectFromFan(fan string) models.Subject {
	raw := strings.ToLower(strings.TrimSpace(fan))
	chemistry := strings.Contains(raw, "kimyo") || strings.Contains(raw, "chemistry")
	biology := strings.Contains(raw, "biologiya") || strings.Contains(raw, "biology")

	switch {
	case chemistry && !biology:
		return models.SubjectChemistry
	case biology && !chemistry:
		return models.SubjectBiology
	default:
		return models.SubjectBoth
	}
}
