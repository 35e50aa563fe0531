// Package sanitize defuses adversarial text before it is embedded in a
// prompt template. Every piece of user-controlled text passes through a
// Sanitizer before reaching a provider call.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Maximum input lengths per call site.
const (
	// MaxClassificationLen bounds inbound message text for classification.
	MaxClassificationLen = 2000
	// MaxShortInputLen bounds short context fields (names, campaign labels).
	MaxShortInputLen = 500
)

// FilteredMarker replaces any matched injection signature. The call is
// not aborted; only the dangerous substring is defused.
const FilteredMarker = "[FILTERED]"

// Sanitizer cleans user-controlled text for safe prompt embedding.
type Sanitizer interface {
	Clean(text string, maxLen int) string
}

// defaultSignatures are the known prompt-injection patterns. Matching is
// case-insensitive and applied after NFKC normalization, so fullwidth
// and compatibility-character disguises fold back to ASCII first.
var defaultSignatures = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard prior instructions",
	"disregard previous instructions",
	"system prompt:",
	"you are now",
	"new instructions:",
	"act as if",
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
	"<|im_start|>",
	"<|im_end|>",
	"### instruction",
}

// breakingChars maps characters that would break the literal embedding
// of text into a prompt string to a single space.
var breakingChars = strings.NewReplacer(
	"\\", " ",
	`"`, " ",
	"'", " ",
	"\n", " ",
	"\r", " ",
	"\t", " ",
)

// PatternSanitizer implements Sanitizer with a pluggable signature list.
type PatternSanitizer struct {
	patterns []*regexp.Regexp
	log      *zap.Logger
}

// Option configures a PatternSanitizer.
type Option func(*PatternSanitizer)

// WithSignatures replaces the default injection signature list.
func WithSignatures(signatures []string) Option {
	return func(s *PatternSanitizer) {
		s.patterns = compileSignatures(signatures)
	}
}

// WithExtraSignatures appends signatures to the default list.
func WithExtraSignatures(signatures []string) Option {
	return func(s *PatternSanitizer) {
		s.patterns = append(s.patterns, compileSignatures(signatures)...)
	}
}

// WithLogger overrides the logger used for security events.
func WithLogger(log *zap.Logger) Option {
	return func(s *PatternSanitizer) {
		s.log = log
	}
}

// New creates a PatternSanitizer with the default signature list.
func New(opts ...Option) *PatternSanitizer {
	s := &PatternSanitizer{
		patterns: compileSignatures(defaultSignatures),
		log:      zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// compileSignatures builds case-insensitive patterns that tolerate any
// run of whitespace where the signature has a space, so a signature
// split across lines still matches once breaking characters are mapped.
func compileSignatures(signatures []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(signatures))
	for _, sig := range signatures {
		quoted := strings.ReplaceAll(regexp.QuoteMeta(sig), " ", `\s+`)
		patterns = append(patterns, regexp.MustCompile("(?i)"+quoted))
	}
	return patterns
}

// Clean maps prompt-breaking characters to spaces, truncates text to
// maxLen, replaces injection signatures with FilteredMarker, and trims.
// It is idempotent and has no side effects beyond logging.
func (s *PatternSanitizer) Clean(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = MaxClassificationLen
	}

	// Breaking characters map to spaces before the signature scan runs.
	// In the other order the replacement would assemble a live signature
	// out of a newline-split one after the scan had already passed it.
	out := norm.NFKC.String(text)
	out = breakingChars.Replace(out)

	if len(out) > maxLen {
		s.log.Info("sanitizer truncated input",
			zap.Int("original_len", len(out)),
			zap.Int("max_len", maxLen),
		)
		out = truncate(out, maxLen)
	}

	for _, p := range s.patterns {
		if p.MatchString(out) {
			s.log.Warn("prompt injection signature filtered",
				zap.String("pattern", p.String()),
				zap.String("preview", Preview(out, 80)),
			)
			out = p.ReplaceAllString(out, FilteredMarker)
		}
	}

	out = strings.TrimSpace(out)

	// Marker substitution can grow the text past the cap; clamp again so
	// the length bound always holds.
	if len(out) > maxLen {
		out = strings.TrimSpace(truncate(out, maxLen))
	}
	return out
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// Preview returns a short redacted prefix of text for log payloads. The
// raw unsanitized text is never logged beyond this preview.
func Preview(text string, n int) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, text)
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}
