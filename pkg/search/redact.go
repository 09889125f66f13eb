package search

import (
	"regexp"

	"github.com/sipeed/picomind/pkg/knowledge"
)

// credentialPattern is one class of secret scrubbed from fetched text.
type credentialPattern struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// Specific patterns come before the generic assignment pattern.
var credentialPatterns = []credentialPattern{
	{
		name: "api_key",
		re: regexp.MustCompile(`(sk_(live|test)_[a-zA-Z0-9]{20,}` +
			`|sk-ant-[a-zA-Z0-9_-]{20,}` +
			`|sk-[a-zA-Z0-9]{20,}` +
			`|AIza[a-zA-Z0-9_-]{35}` +
			`|BSA[a-zA-Z0-9_-]{20,}` +
			`|gh[pousr]_[a-zA-Z0-9]{36,}` +
			`|github_pat_[a-zA-Z0-9_]{22,})`),
		replacement: "[REDACTED_API_KEY]",
	},
	{
		name:        "aws_credential",
		re:          regexp.MustCompile(`(AKIA[A-Z0-9]{16}|(?i)aws[_-]?secret[_-]?access[_-]?key\s*[=:]\s*\S+)`),
		replacement: "[REDACTED_AWS_CREDENTIAL]",
	},
	{
		name:        "private_key",
		re:          regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`),
		replacement: "[REDACTED_PRIVATE_KEY]",
	},
	{
		name:        "jwt",
		re:          regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{10,}\.eyJ[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}`),
		replacement: "[REDACTED_JWT]",
	},
	{
		name:        "database_url",
		re:          regexp.MustCompile(`(?i)(postgres(ql)?|mysql|mongodb(\+srv)?|redis)://[^\s]+:[^\s]+@[^\s]+`),
		replacement: "[REDACTED_DATABASE_URL]",
	},
	{
		name:        "secret_assignment",
		re:          regexp.MustCompile(`(?i)(password|secret|api[_-]?key)\s*[=:]\s*[^\s\[]\S*`),
		replacement: "[REDACTED_SECRET]",
	},
}

// Redact replaces credentials in text and names the pattern classes found.
func Redact(text string) (string, []string) {
	var found []string
	for _, p := range credentialPatterns {
		if p.re.MatchString(text) {
			found = append(found, p.name)
			text = p.re.ReplaceAllString(text, p.replacement)
		}
	}
	return text, found
}

// RedactContent scrubs every text field of c, source titles and URLs
// included, and returns the number of fields changed.
func RedactContent(c knowledge.Content) (knowledge.Content, int) {
	changed := 0
	scrub := func(s string) string {
		out, found := Redact(s)
		if len(found) > 0 {
			changed++
		}
		return out
	}
	scrubAll := func(items []string) []string {
		if items == nil {
			return nil
		}
		out := make([]string, len(items))
		for i, s := range items {
			out[i] = scrub(s)
		}
		return out
	}

	res := knowledge.Content{
		Definitions: scrubAll(c.Definitions),
		KeyConcepts: scrubAll(c.KeyConcepts),
		Examples:    scrubAll(c.Examples),
		Facts:       scrubAll(c.Facts),
	}
	if c.Sources != nil {
		res.Sources = make([]knowledge.Source, len(c.Sources))
		for i, src := range c.Sources {
			src.Title = scrub(src.Title)
			src.URL = scrub(src.URL)
			res.Sources[i] = src
		}
	}
	return res, changed
}
