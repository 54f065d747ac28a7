// Package classify maps free-text processing errors reported by the
// document backend into a fixed failure taxonomy with remediation hints.
package classify

import (
	"strings"

	"github.com/lkoehler/docintake-go/internal/models"
)

// Tone signals how a classification should be presented.
type Tone string

const (
	ToneError   Tone = "error"
	ToneWarning Tone = "warning"
)

// Classification is the result of matching a failure item against the
// taxonomy.
type Classification struct {
	Category       string `json:"category"`
	Label          string `json:"label"`
	Tone           Tone   `json:"tone"`
	Recommendation string `json:"recommendation"`
}

// rule is one (keywords, category) pair. Rules are evaluated top to
// bottom; the first rule with any keyword hit wins, so the order of the
// table is load-bearing.
type rule struct {
	category       string
	keywords       []string
	label          string
	tone           Tone
	recommendation string
}

var rules = []rule{
	{
		category:       "encrypted",
		keywords:       []string{"verschlüsselt", "encrypted", "passwort", "password", "kennwort", "protected"},
		label:          "Verschlüsselt",
		tone:           ToneError,
		recommendation: "PDF entsperren oder unverschlüsselt erneut hochladen",
	},
	{
		category:       "timeout",
		keywords:       []string{"timeout", "zeitüberschreitung", "deadline", "timed out"},
		label:          "Zeitüberschreitung",
		tone:           ToneWarning,
		recommendation: "Verarbeitung erneut anstoßen; bei großen Dateien Dokument aufteilen",
	},
	{
		category:       "format",
		keywords:       []string{"format", "encoding", "zeichensatz", "parse", "beschädigt", "corrupt", "malformed"},
		label:          "Formatfehler",
		tone:           ToneError,
		recommendation: "Datei in ein unterstütztes Format konvertieren und erneut hochladen",
	},
	{
		category:       "policy",
		keywords:       []string{"permission", "berechtigung", "policy", "forbidden", "zugriff", "denied", "unauthorized"},
		label:          "Zugriff verweigert",
		tone:           ToneError,
		recommendation: "Berechtigungen prüfen oder Administrator kontaktieren",
	},
	{
		category:       "storage",
		keywords:       []string{"storage", "speicher", "cache", "disk", "quota", "bucket"},
		label:          "Speicherfehler",
		tone:           ToneWarning,
		recommendation: "Später erneut versuchen; bei wiederholtem Auftreten Support kontaktieren",
	},
	{
		category:       "ocr",
		keywords:       []string{"ocr", "texterkennung", "tesseract", "no text", "kein text"},
		label:          "OCR-Fehler",
		tone:           ToneWarning,
		recommendation: "Scan-Qualität prüfen oder Dokument mit höherer Auflösung erneut einscannen",
	},
}

// unknownClassification is the fallback when no rule matches.
var unknownClassification = Classification{
	Category:       "unknown",
	Label:          "Unbekannter Fehler",
	Tone:           ToneWarning,
	Recommendation: "Dokument erneut verarbeiten; bleibt der Fehler bestehen, Support kontaktieren",
}

// Classify maps a failure item to its taxonomy entry. Matching is
// deterministic: the error text and extraction engine name are
// concatenated, lowercased, and checked against the rule table in priority
// order.
func Classify(item *models.FailureItem) Classification {
	haystack := strings.ToLower(item.ErrorText() + " " + item.Engine())

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(haystack, kw) {
				return Classification{
					Category:       r.category,
					Label:          r.label,
					Tone:           r.tone,
					Recommendation: r.recommendation,
				}
			}
		}
	}

	return unknownClassification
}

// RejectionSeverity grades a validation-time rejection reason for display.
// This is a simpler heuristic than the post-processing taxonomy above and
// intentionally kept separate from it.
func RejectionSeverity(reason string) string {
	lower := strings.ToLower(reason)

	for _, kw := range []string{"corrupt", "beschädigt", "invalid", "ungültig", "crashed", "abgestürzt", "timeout"} {
		if strings.Contains(lower, kw) {
			return "critical"
		}
	}
	for _, kw := range []string{"too large", "zu groß", "unsupported", "nicht unterstützt", "rejected", "abgelehnt"} {
		if strings.Contains(lower, kw) {
			return "warning"
		}
	}
	return "info"
}
