// Package sanitize cleans free text captured from callers before it is stored.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

	entityReplacer = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// Text strips markup and control characters and collapses whitespace runs
// into a single space. Transcribed speech and model output both end up in
// notes, so neither is trusted to be plain text.
func Text(s string) string {
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	// Entities may have hidden a tag.
	s = htmlTagRegex.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// TextPtr sanitizes an optional field. Blank results become nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	if result == "" {
		return nil
	}
	return &result
}
