package textfilter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Placeholders substituted for contact details in generated text.
const (
	LinkPlaceholder   = "[链接]"
	NumberPlaceholder = "[号码]"
)

// MinNumberDigits is the shortest digit run treated as a phone or card number.
const MinNumberDigits = 8

// DefaultSpeakers are labels models tend to prefix their lines with.
var DefaultSpeakers = []string{"骗子", "对方", "客服", "摊主", "老板", "Scammer", "Assistant", "AI"}

// quotePairs are wrappers removed when they enclose the whole reply.
var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}, {"'", "'"}}

// Sanitizer tidies model output before it is shown to a player: it drops
// speaker labels and wrapping quotes and masks anything that looks like a
// real link, phone number or bank card.
type Sanitizer struct {
	speaker *regexp.Regexp
	link    *regexp.Regexp
	number  *regexp.Regexp
}

// NewSanitizer compiles a sanitizer. With no speakers DefaultSpeakers is used.
func NewSanitizer(speakers ...string) *Sanitizer {
	if len(speakers) == 0 {
		speakers = DefaultSpeakers
	}
	quoted := make([]string, len(speakers))
	for i, s := range speakers {
		quoted[i] = regexp.QuoteMeta(s)
	}

	return &Sanitizer{
		speaker: regexp.MustCompile(`^\s*(?i:` + strings.Join(quoted, "|") + `)\s*[:：]\s*`),
		link:    regexp.MustCompile(`(?i)(?:https?://|www\.)[a-z0-9./?=&%_#:~+\-]+|\b[a-z0-9\-]+\.(?:com|cn|net|top|xyz|cc)\b(?:/[a-z0-9./?=&%_#\-]*)?`),
		number:  regexp.MustCompile(`\+?\d[\d\- ]*\d`),
	}
}

// Clean applies every step.
func (s *Sanitizer) Clean(text string) string {
	return s.Redact(s.StripSpeaker(text))
}

// StripSpeaker removes a leading "label:" and quotes around the whole text.
func (s *Sanitizer) StripSpeaker(text string) string {
	text = strings.TrimSpace(s.speaker.ReplaceAllString(text, ""))
	for _, q := range quotePairs {
		if len(text) > len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			inner := text[len(q[0]) : len(text)-len(q[1])]
			if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return text
}

// Redact masks links and long digit runs. Full-width digits count as digits.
func (s *Sanitizer) Redact(text string) string {
	text = narrowDigits(text)
	text = s.link.ReplaceAllString(text, LinkPlaceholder)
	return s.number.ReplaceAllStringFunc(text, func(match string) string {
		if countDigits(match) < MinNumberDigits {
			return match
		}
		return NumberPlaceholder
	})
}

// ContainsContactDetails reports whether Redact would change text.
func (s *Sanitizer) ContainsContactDetails(text string) bool {
	return s.Redact(text) != narrowDigits(text)
}

func narrowDigits(text string) string {
	return strings.Map(func(r rune) rune {
		p := width.LookupRune(r)
		if p.Kind() == width.EastAsianFullwidth && unicode.IsDigit(r) {
			if n := p.Narrow(); n != 0 {
				return n
			}
		}
		return r
	}, text)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
