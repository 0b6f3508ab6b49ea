// Package security holds the secret hygiene and access auditing shared by
// presenced modules: log redaction, a JSONL audit trail and a keyed rate
// limiter for the gateway.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every secret the Redactor recognizes.
const RedactPlaceholder = "***REDACTED***"

// RedactorService is the AppContext service name of the process-wide
// Redactor. Modules that load secrets (API tokens, DSNs) add them to it.
const RedactorService = "security.redactor"

var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|passwd|dsn|api_key|credential)`)

// Redactor scrubs secrets from strings and maps. It matches known token
// formats by pattern and runtime secrets by literal value. It is safe for
// concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: DefaultPatterns()}
}

// AddPattern registers an extra pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral registers a secret value. Empty and duplicate values are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.literals {
		if l == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllStringFunc(s, func(m string) string {
			sub := p.FindStringSubmatchIndex(m)
			// Patterns with a capture group keep the text before it.
			if len(sub) >= 4 && sub[2] >= 0 {
				return m[:sub[2]] + RedactPlaceholder + m[sub[3]:]
			}
			return RedactPlaceholder
		})
	}
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	return s
}

// RedactMap scrubs m in place. String values under secret-looking keys are
// replaced outright; other strings go through Redact.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if s, ok := v.(string); ok && s != "" && secretKeyPattern.MatchString(k) {
			m[k] = RedactPlaceholder
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					r.RedactMap(sub)
				}
			}
		case string:
			m[k] = r.Redact(val)
		}
	}
}

// DefaultPatterns returns the built-in patterns: bearer credentials,
// passwords embedded in URLs and DSNs, and token query parameters.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+([A-Za-z0-9\-._~+/]{8,}=*)`),
		regexp.MustCompile(`://[^:/@\s]+:([^@\s]+)@`),
		regexp.MustCompile(`(?i)\bpassword=([^\s&]+)`),
		regexp.MustCompile(`(?i)[?&](?:access_)?token=([^\s&]+)`),
	}
}
