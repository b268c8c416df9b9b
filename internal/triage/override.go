package triage

import (
	"regexp"
	"strings"
)

// doctorRequestPatterns matches patient messages explicitly asking for a human
// doctor. Any match forces escalation regardless of the assessed severity;
// this is a hard override, not a hint to the classifier.
var doctorRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdoctor\b`),
	regexp.MustCompile(`(?i)\bspeak\s+to\b`),
	regexp.MustCompile(`(?i)\bconnect\s+me\b`),
	regexp.MustCompile(`(?i)\btalk\s+(to|with)\s+(a\s+)?(human|someone|person)\b`),
}

// IsDoctorRequest returns true if the message explicitly requests a human
// doctor.
func IsDoctorRequest(message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	for _, pat := range doctorRequestPatterns {
		if pat.MatchString(message) {
			return true
		}
	}
	return false
}
