// Package staging converts raw file handles into lightweight metadata
// records without reading content. It enforces the staged-file cap and
// validates type and size against configurable rules.
package staging

import (
	"fmt"
	"strings"
)

// KindRule describes one document kind: which extensions map to it, the
// MIME type reported for staged files, and an optional per-kind size
// ceiling overriding the global one.
type KindRule struct {
	Kind       string   `yaml:"kind"`
	Extensions []string `yaml:"extensions"`
	MIMEType   string   `yaml:"mime"`
	MaxFileMB  int      `yaml:"maxFileMB,omitempty"`
}

// Rules is the validation rule set applied during staging.
type Rules struct {
	MaxFileMB int        `yaml:"maxFileMB"`
	Kinds     []KindRule `yaml:"kinds"`

	byExt map[string]KindRule
}

// DefaultRules returns the built-in rule set used when no rules file is
// configured. Ceilings are deliberately generous; the downstream service
// applies its own limits.
func DefaultRules() Rules {
	r := Rules{
		MaxFileMB: 50,
		Kinds: []KindRule{
			{Kind: "pdf", Extensions: []string{".pdf"}, MIMEType: "application/pdf", MaxFileMB: 100},
			{Kind: "word", Extensions: []string{".doc", ".docx", ".odt", ".rtf"}, MIMEType: "application/msword"},
			{Kind: "text", Extensions: []string{".txt", ".md", ".csv"}, MIMEType: "text/plain"},
			{Kind: "image", Extensions: []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}, MIMEType: "image/*"},
			{Kind: "email", Extensions: []string{".eml", ".msg"}, MIMEType: "message/rfc822"},
		},
	}
	r.index()
	return r
}

// index builds the extension lookup table. Must be called after the rule
// set is constructed or unmarshaled.
func (r *Rules) index() {
	r.byExt = make(map[string]KindRule)
	for _, k := range r.Kinds {
		for _, ext := range k.Extensions {
			r.byExt[strings.ToLower(ext)] = k
		}
	}
}

// Lookup resolves a file extension (with leading dot, any case) to its
// kind rule. The second return value reports whether the extension is
// supported at all.
func (r *Rules) Lookup(ext string) (KindRule, bool) {
	if r.byExt == nil {
		r.index()
	}
	k, ok := r.byExt[strings.ToLower(ext)]
	return k, ok
}

// MaxBytes returns the size ceiling for a kind rule in bytes.
func (r *Rules) MaxBytes(k KindRule) int64 {
	mb := r.MaxFileMB
	if k.MaxFileMB > 0 {
		mb = k.MaxFileMB
	}
	return int64(mb) * 1024 * 1024
}

// SupportedExtensions returns the sorted-by-kind list of extensions, for
// rejection recommendations and help text.
func (r *Rules) SupportedExtensions() []string {
	var exts []string
	for _, k := range r.Kinds {
		exts = append(exts, k.Extensions...)
	}
	return exts
}

// Validate checks a loaded rule set for obvious mistakes.
func (r *Rules) Validate() error {
	if r.MaxFileMB <= 0 {
		return fmt.Errorf("maxFileMB must be positive, got %d", r.MaxFileMB)
	}
	if len(r.Kinds) == 0 {
		return fmt.Errorf("at least one kind rule is required")
	}
	seen := make(map[string]string)
	for _, k := range r.Kinds {
		if k.Kind == "" {
			return fmt.Errorf("kind rule with empty kind name")
		}
		if len(k.Extensions) == 0 {
			return fmt.Errorf("kind %q has no extensions", k.Kind)
		}
		for _, ext := range k.Extensions {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("kind %q: extension %q must start with a dot", k.Kind, ext)
			}
			lower := strings.ToLower(ext)
			if prev, dup := seen[lower]; dup && prev != k.Kind {
				return fmt.Errorf("extension %q mapped to both %q and %q", ext, prev, k.Kind)
			}
			seen[lower] = k.Kind
		}
	}
	return nil
}
