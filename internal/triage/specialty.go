package triage

import (
	"regexp"
	"strings"
)

// Specialty is a medical practice area used to route escalated cases.
type Specialty string

const (
	SpecialtyCardiology      Specialty = "Cardiology"
	SpecialtyPsychiatry      Specialty = "Psychiatry"
	SpecialtyDermatology     Specialty = "Dermatology"
	SpecialtyOrthopedics     Specialty = "Orthopedics"
	SpecialtyObstetrics      Specialty = "Obstetrics"
	SpecialtyGeneralPractice Specialty = "General Practice"
)

type specialtyRule struct {
	pattern   *regexp.Regexp
	specialty Specialty
}

// specialtyRules is evaluated in order; the first matching rule wins. Texts
// matching no rule route to General Practice.
var specialtyRules = []specialtyRule{
	{regexp.MustCompile(`(?i)\b(chest\s*pain|heart|palpitat|cardiac|hypertension|blood\s*pressure)\b`), SpecialtyCardiology},
	{regexp.MustCompile(`(?i)\b(anxiety|depress|panic|suicid|mental|insomnia|stress(ed)?)\b`), SpecialtyPsychiatry},
	{regexp.MustCompile(`(?i)\b(rash|skin|acne|itch(y|ing)?|eczema|hives)\b`), SpecialtyDermatology},
	{regexp.MustCompile(`(?i)\b(joint|bone|fracture|back\s*pain|knee|shoulder|sprain)\b`), SpecialtyOrthopedics},
	{regexp.MustCompile(`(?i)\b(pregnan(t|cy)|prenatal|trimester|contraction)\b`), SpecialtyObstetrics},
}

// MatchSpecialty maps symptom text to the specialty that should handle an
// escalation. Pure and deterministic: equal inputs always yield equal outputs,
// and the router never fails; unmatched text falls back to General Practice.
func MatchSpecialty(text string) Specialty {
	text = strings.TrimSpace(text)
	if text == "" {
		return SpecialtyGeneralPractice
	}
	for _, rule := range specialtyRules {
		if rule.pattern.MatchString(text) {
			return rule.specialty
		}
	}
	return SpecialtyGeneralPractice
}
