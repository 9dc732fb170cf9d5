package models

// SubjectKind identifies what a report or moderation action targets.
type SubjectKind string

const (
	// SubjectGroup targets a community group.
	SubjectGroup SubjectKind = "group"
	// SubjectPost targets a post, ads included.
	SubjectPost SubjectKind = "post"
)

// Valid reports whether k is a moderatable subject kind.
func (k SubjectKind) Valid() bool {
	return k == SubjectGroup || k == SubjectPost
}

// ParseSubjectKind accepts the singular and plural route forms ("group", "groups").
func ParseSubjectKind(raw string) (SubjectKind, bool) {
	switch raw {
	case "group", "groups":
		return SubjectGroup, true
	case "post", "posts", "ad", "ads":
		return SubjectPost, true
	}
	return "", false
}

// ModerationStatus is the lifecycle state of a moderated subject.
type ModerationStatus string

const (
	// ModerationStatusActive is the default, visible state.
	ModerationStatusActive ModerationStatus = "active"
	// ModerationStatusInvestigating marks a subject under admin review.
	ModerationStatusInvestigating ModerationStatus = "investigating"
	// ModerationStatusResolved marks a subject whose reports were last settled by an admin.
	ModerationStatusResolved ModerationStatus = "resolved"
	// ModerationStatusDeleted is terminal.
	ModerationStatusDeleted ModerationStatus = "deleted"
)

// Severity is the escalation level derived from a group's warning count.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from none (0) to critical (4); unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityNone:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return -1
}

// ViolationType classifies why a warning or deletion was issued.
type ViolationType string

const (
	ViolationSpam           ViolationType = "spam"
	ViolationHarassment     ViolationType = "harassment"
	ViolationHateSpeech     ViolationType = "hate_speech"
	ViolationViolence       ViolationType = "violence"
	ViolationNudity         ViolationType = "nudity"
	ViolationMisinformation ViolationType = "misinformation"
	ViolationScam           ViolationType = "scam"
	ViolationIllegalContent ViolationType = "illegal_content"
	ViolationOther          ViolationType = "other"
)

// ViolationTypes lists every accepted violation type.
var ViolationTypes = []ViolationType{
	ViolationSpam,
	ViolationHarassment,
	ViolationHateSpeech,
	ViolationViolence,
	ViolationNudity,
	ViolationMisinformation,
	ViolationScam,
	ViolationIllegalContent,
	ViolationOther,
}

// Valid reports whether v is one of ViolationTypes.
func (v ViolationType) Valid() bool {
	for _, known := range ViolationTypes {
		if v == known {
			return true
		}
	}
	return false
}
